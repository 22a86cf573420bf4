package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/AgentOS/kernel/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/api/ws"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/console"
)

// shutdownTimeout bounds how long in-flight requests may take once the
// server is asked to stop.
const shutdownTimeout = 5 * time.Second

// Machine is the kernel the admin server inspects.
type Machine interface {
	apihttp.Kernel
	Console() *console.Console
}

// Server is the admin HTTP server.
type Server struct {
	router  *gin.Engine
	config  *config.Config
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewServer creates the admin server and registers its routes.
func NewServer(cfg *config.Config, machine Machine, metrics *monitoring.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(machine, metrics)
	wsHandler := ws.NewHandler(machine.Console(), logger.Named("console"))

	router.GET("/healthz", handlers.Health)
	router.GET("/metrics", gin.WrapH(monitoring.Handler(metrics)))

	api := router.Group("/api")
	api.GET("/processes", handlers.ListProcesses)
	api.GET("/files", handlers.ListFiles)
	api.GET("/files/:name", handlers.GetFile)
	api.GET("/metrics", handlers.Metrics)
	api.GET("/console", wsHandler.HandleConnection)

	return &Server{
		router:  router,
		config:  cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on the configured address until ctx is done, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.Address())
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("admin server listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("admin server stopped")
	return nil
}
