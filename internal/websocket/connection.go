package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/bhandras/kubechat/shared/logger"
	"github.com/bhandras/kubechat/shared/wire"
	"github.com/gorilla/websocket"
)

var (
	// ErrConnectionClosed is returned when writing to a closed connection.
	ErrConnectionClosed = errors.New("websocket: connection closed")
	// ErrSendTimeout is returned when the send buffer stayed full for longer
	// than the write timeout.
	ErrSendTimeout = errors.New("websocket: send buffer full")
)

// Connection is one accepted WebSocket client. All writes go through a single
// write pump; Send is safe for concurrent use.
type Connection struct {
	ID string

	conn         *websocket.Conn
	sendCh       chan []byte
	done         chan struct{}
	once         sync.Once
	writeTimeout time.Duration
	now          func() time.Time
}

func newConnection(id string, conn *websocket.Conn, cfg Config) *Connection {
	return &Connection{
		ID:           id,
		conn:         conn,
		sendCh:       make(chan []byte, cfg.SendBuffer),
		done:         make(chan struct{}),
		writeTimeout: cfg.WriteTimeout,
		now:          cfg.Now,
	}
}

// Send encodes out as an envelope and queues it for writing.
func (c *Connection) Send(out wire.Output) error {
	data, err := wire.Encode(out, c.now())
	if err != nil {
		return err
	}
	return c.sendRaw(data)
}

// Done is closed once the connection is shut down.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

func (c *Connection) sendRaw(data []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	timer := time.NewTimer(c.writeTimeout)
	defer timer.Stop()
	select {
	case c.sendCh <- data:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	case <-timer.C:
		return ErrSendTimeout
	}
}

// writePump drains the send channel onto the socket. A failed write shuts
// the connection down so the read loop stops as well.
func (c *Connection) writePump() {
	defer func() {
		c.close()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data := <-c.sendCh:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Debugf("[websocket] %s: write failed: %v", c.ID, err)
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Connection) close() {
	c.once.Do(func() { close(c.done) })
}
