package handlers

import (
	"net/http"

	"github.com/bhandras/kubechat/internal/version"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// SessionCounter reports the number of live chat sessions.
type SessionCounter interface {
	Sessions() int
}

// ConnectionCounter reports the number of open WebSocket connections.
type ConnectionCounter interface {
	ConnectionCount() int
}

// WebSocketHandler serves an upgraded chat connection.
type WebSocketHandler interface {
	HandleWebSocket(c *gin.Context)
}

type HealthHandler struct {
	sessions SessionCounter
	conns    ConnectionCounter
}

func NewHealthHandler(sessions SessionCounter, conns ConnectionCounter) *HealthHandler {
	return &HealthHandler{
		sessions: sessions,
		conns:    conns,
	}
}

type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Sessions    int    `json:"sessions"`
	Connections int    `json:"connections"`
}

func (h *HealthHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:      "ok",
		Version:     version.Version(),
		Sessions:    h.sessions.Sessions(),
		Connections: h.conns.ConnectionCount(),
	})
}

// Root serves chat connections on the server root. Plain HTTP requests get
// a text banner so clients can check the server is reachable.
func Root(ws WebSocketHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if websocket.IsWebSocketUpgrade(c.Request) {
			ws.HandleWebSocket(c)
			return
		}
		c.String(http.StatusOK, "kubechat server %s", version.Version())
	}
}
