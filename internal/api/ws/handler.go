package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/shared/id"
)

// streamBuffer is the number of output chunks queued per client.
const streamBuffer = 256

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Source is the console being streamed.
type Source interface {
	Subscribe(buffer int) (<-chan []byte, func())
}

// Message is the envelope for every frame in both directions.
type Message struct {
	Type      string `json:"type"`
	Stream    string `json:"stream,omitempty"`
	Data      string `json:"data,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Handler manages console stream connections
type Handler struct {
	source Source
	logger *zap.Logger
}

// NewHandler creates a new console stream handler
func NewHandler(source Source, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{source: source, logger: logger}
}

// conn serializes writes; gorilla allows one concurrent writer.
type conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *conn) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(msg)
}

// HandleConnection upgrades the request and streams console output until
// the client goes away or the console stream ends.
func (h *Handler) HandleConnection(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	sid := id.NewStreamID()
	log := h.logger.With(zap.String("stream", sid.String()))
	out := &conn{ws: ws}

	output, cancel := h.source.Subscribe(streamBuffer)
	defer cancel()

	if err := out.send(Message{Type: "system", Stream: sid.String(), Message: "attached to console"}); err != nil {
		return
	}
	log.Debug("console stream attached")

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		h.readLoop(out, log)
	}()

	ctx := c.Request.Context()
	for {
		select {
		case data, ok := <-output:
			if !ok {
				out.send(Message{Type: "closed"})
				return
			}
			msg := Message{Type: "output", Data: string(data), Timestamp: time.Now().UnixMilli()}
			if err := out.send(msg); err != nil {
				log.Debug("console stream write failed", zap.Error(err))
				return
			}
		case <-readDone:
			log.Debug("console stream detached")
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) readLoop(out *conn, log *zap.Logger) {
	for {
		var msg Message
		if err := out.ws.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "ping":
			if err := out.send(Message{Type: "pong", Timestamp: time.Now().UnixMilli()}); err != nil {
				return
			}
		default:
			log.Debug("ignoring client message", zap.String("type", msg.Type))
		}
	}
}
