package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/taskwire/taskwire/internal/common/config"
	"go.uber.org/zap"
)

// Conn is a single live client connection. It is owned by the session
// that created it; the registry only references it. The write pump is
// the sole writer on the underlying websocket.
type Conn struct {
	ID        string
	UserID    string
	Username  string
	ProjectID string
	JoinedAt  time.Time

	ws     *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	cfg    config.WebSocketConfig
	logger *zap.Logger
}

func newConn(ws *websocket.Conn, userID, username, projectID string, cfg config.WebSocketConfig, logger *zap.Logger) *Conn {
	c := &Conn{
		ID:        uuid.NewString(),
		UserID:    userID,
		Username:  username,
		ProjectID: projectID,
		JoinedAt:  time.Now(),
		ws:        ws,
		send:      make(chan []byte, cfg.SendBufferSize),
		done:      make(chan struct{}),
		cfg:       cfg,
	}
	c.logger = logger.With(
		zap.String("connection", c.ID),
		zap.String("user", userID),
		zap.String("project", projectID),
	)
	return c
}

// deliver enqueues a payload for the write pump. It never blocks: a full
// queue or an already-closing connection reports failure so the caller
// can tear the connection down.
func (c *Conn) deliver(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Close requests teardown. Safe to call from any goroutine, any number
// of times; the write pump performs the actual socket shutdown and the
// reader unblocks with an error, driving the session's single teardown
// path.
func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.done)
	})
}

// writePump drains the outbound queue onto the websocket and keeps the
// connection alive with periodic pings. It exits when Close is called
// or a write fails, closing the underlying socket on the way out.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Debug("websocket write failed", zap.Error(err))
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
