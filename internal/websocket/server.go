// Package websocket serves chat sessions over plain WebSocket connections.
package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/bhandras/kubechat/internal/session"
	"github.com/bhandras/kubechat/shared/logger"
	"github.com/bhandras/kubechat/shared/wire"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// DefaultWriteTimeout bounds a single socket write.
	DefaultWriteTimeout = 10 * time.Second
	// DefaultReadLimit is the largest inbound frame accepted, in bytes.
	DefaultReadLimit = 1 << 20
	// DefaultSendBuffer is the number of outbound frames queued per
	// connection.
	DefaultSendBuffer = 64

	msgInvalidPayload = "Invalid message payload."
)

// Config tunes the WebSocket server. Zero values select the defaults.
type Config struct {
	WriteTimeout time.Duration
	ReadLimit    int64
	SendBuffer   int
	Now          func() time.Time
}

// Server accepts WebSocket connections and feeds their chat messages into a
// session manager.
type Server struct {
	manager  *session.Manager
	upgrader websocket.Upgrader
	cfg      Config

	mu    sync.RWMutex
	conns map[string]*Connection
}

// NewServer creates a WebSocket server backed by manager.
func NewServer(manager *session.Manager, cfg Config) *Server {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = DefaultReadLimit
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultSendBuffer
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Server{
		manager: manager,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Browser clients connect from any origin
			},
		},
		cfg:   cfg,
		conns: make(map[string]*Connection),
	}
}

// IsUpgrade reports whether the request is a WebSocket handshake.
func IsUpgrade(c *gin.Context) bool {
	return websocket.IsWebSocketUpgrade(c.Request)
}

// HandleWebSocket upgrades the request and serves the connection until the
// client goes away.
func (s *Server) HandleWebSocket(c *gin.Context) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("[websocket] upgrade error: %v", err)
		return
	}
	ws.SetReadLimit(s.cfg.ReadLimit)

	conn := newConnection(uuid.NewString(), ws, s.cfg)
	s.register(conn)
	go conn.writePump()

	logger.Infof("[websocket] client connected: %s", conn.ID)
	defer func() {
		conn.close()
		s.unregister(conn.ID)
		s.manager.Close(conn.ID)
		logger.Infof("[websocket] client disconnected: %s", conn.ID)
	}()

	s.readLoop(conn)
}

func (s *Server) readLoop(conn *Connection) {
	for {
		_, raw, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warnf("[websocket] %s: read error: %v", conn.ID, err)
			}
			return
		}

		frame, err := wire.Decode(raw)
		if err != nil {
			logger.Warnf("[websocket] %s: %v", conn.ID, err)
			s.reply(conn, conn.Send(wire.Output{
				Event:   wire.EventError,
				Message: msgInvalidPayload,
				Error:   err.Error(),
			}))
			continue
		}

		if frame.Ping {
			s.reply(conn, conn.sendRaw(wire.Pong()))
			continue
		}

		logger.Tracef("[websocket] %s: chat message from %q", conn.ID, frame.Message.Author)
		s.manager.Enqueue(conn.ID, frame.Message, conn)
	}
}

func (s *Server) reply(conn *Connection, err error) {
	if err != nil {
		logger.Debugf("[websocket] %s: dropping reply: %v", conn.ID, err)
	}
}

// ConnectionCount returns the number of open connections.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// Close shuts down every open connection. Their handlers then release the
// associated sessions.
func (s *Server) Close() {
	s.mu.RLock()
	conns := make([]*Connection, 0, len(s.conns))
	for _, conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.RUnlock()

	for _, conn := range conns {
		_ = conn.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second),
		)
		conn.close()
	}
}

func (s *Server) register(conn *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[conn.ID] = conn
}

func (s *Server) unregister(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, connID)
}
