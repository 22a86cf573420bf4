package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/server"
	"github.com/GriffinCanCode/AgentOS/kernel/internal/kernel/machine"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("pintos", flag.ContinueOnError)
	configPath := fs.String("config", "", "Config file (toml, yaml or json)")
	importDir := fs.String("import", "", "Host directory to copy into the filesystem at boot")
	snapshot := fs.String("snapshot", "", "Filesystem snapshot restored at boot and saved at power-off")
	admin := fs.String("admin", "", "Serve the admin API on this address")
	dev := fs.Bool("dev", false, "Development mode (debug level, console encoding)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cmdline := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(cmdline) == "" {
		fmt.Fprintln(os.Stderr, "usage: pintos [flags] -- PROGRAM [ARGS...]")
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pintos: %v\n", err)
		return 2
	}
	if err := applyFlags(cfg, *importDir, *snapshot, *admin, *dev); err != nil {
		fmt.Fprintf(os.Stderr, "pintos: %v\n", err)
		return 2
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "pintos: %v\n", err)
		return 2
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := machine.New(machine.Options{
		Config: cfg,
		Logger: logger,
		Stdout: os.Stdout,
		Stdin:  os.Stdin,
	})
	if err := m.Boot(ctx); err != nil {
		logger.Error("boot failed", zap.Error(err))
		return 1
	}

	status := -1
	g, gctx := errgroup.WithContext(ctx)
	adminCtx, stopAdmin := context.WithCancel(gctx)
	defer stopAdmin()

	g.Go(func() error {
		defer stopAdmin()
		var err error
		status, err = m.Run(gctx, cmdline)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if cfg.Server.Enabled {
		srv := server.NewServer(cfg, m, m.Metrics(), logger.WithBoot(m.BootID().String()).Component("admin"))
		g.Go(func() error {
			return srv.Run(adminCtx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("machine stopped", zap.Error(err))
		if errors.Is(err, machine.ErrExecFailed) {
			return 1
		}
	}
	return status
}

// applyFlags overrides file and environment configuration.
func applyFlags(cfg *config.Config, importDir, snapshot, admin string, dev bool) error {
	if importDir != "" {
		cfg.Filesys.ImportDir = importDir
	}
	if snapshot != "" {
		cfg.Filesys.Snapshot = snapshot
		cfg.Filesys.SaveOnHalt = true
	}
	if admin != "" {
		host, port, err := net.SplitHostPort(admin)
		if err != nil {
			return fmt.Errorf("invalid -admin address %q: %w", admin, err)
		}
		cfg.Server.Enabled = true
		cfg.Server.Host = host
		cfg.Server.Port = port
	}
	if dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}
	return cfg.Validate()
}
