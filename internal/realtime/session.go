package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/taskwire/taskwire/internal/common/config"
	"github.com/taskwire/taskwire/internal/common/dto"
	"github.com/taskwire/taskwire/pkg/metrics"
	"go.uber.org/zap"
)

// CloseAuthFailure is the application close code sent when a handshake
// fails authentication or project authorization. Clients can distinguish
// it from transport-level closures; invalid token and non-membership are
// deliberately indistinguishable.
const CloseAuthFailure = 4003

// Identity is the user resolved from a bearer token at handshake time.
// It is immutable for the lifetime of the connection.
type Identity struct {
	UserID   string
	Username string
}

// TokenValidator verifies a bearer token and resolves its identity
type TokenValidator interface {
	Validate(token string) (Identity, error)
}

// MembershipChecker answers whether a user is an active member of a
// project. Implementations must fail closed: any ambiguity or error
// resolves to false.
type MembershipChecker interface {
	IsMember(ctx context.Context, userID, projectID string) bool
}

// Session states
type sessionState int32

const (
	stateConnecting sessionState = iota
	stateAuthorized
	stateActive
	stateRejected
	stateClosing
	stateClosed
)

// SessionHandler upgrades project websocket requests and drives each
// connection through its lifecycle.
type SessionHandler struct {
	logger     *zap.Logger
	registry   *Registry
	validator  TokenValidator
	membership MembershipChecker
	metrics    *metrics.Metrics
	cfg        config.WebSocketConfig
	upgrader   websocket.Upgrader
}

// NewSessionHandler creates the websocket session handler
func NewSessionHandler(logger *zap.Logger, registry *Registry, validator TokenValidator, membership MembershipChecker, m *metrics.Metrics, cfg config.WebSocketConfig) *SessionHandler {
	cfg.SetDefaults()
	return &SessionHandler{
		logger:     logger.Named("session"),
		registry:   registry,
		validator:  validator,
		membership: membership,
		metrics:    m,
		cfg:        cfg,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// session is the per-connection state machine
type session struct {
	h        *SessionHandler
	state    atomic.Int32
	conn     *Conn
	groupKey string
}

func (s *session) transition(next sessionState) {
	s.state.Store(int32(next))
}

// HandleProjectSocket serves GET /ws/projects/:project_id. The token
// arrives as a query parameter because browsers cannot set headers on
// websocket upgrades.
func (h *SessionHandler) HandleProjectSocket(c *gin.Context) {
	projectID := c.Param("project_id")
	token := c.Query("token")

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade websocket connection", zap.Error(err))
		return
	}

	s := &session{h: h, groupKey: GroupKey(projectID)}
	s.transition(stateConnecting)

	identity, err := h.validator.Validate(token)
	if err != nil {
		h.logger.Info("websocket handshake rejected",
			zap.String("project", projectID),
			zap.Error(err))
		s.reject(ws)
		return
	}

	// Authorization may hit the database; no registry lock is held here.
	if !h.membership.IsMember(c.Request.Context(), identity.UserID, projectID) {
		h.logger.Info("websocket handshake rejected: not a project member",
			zap.String("project", projectID),
			zap.String("user", identity.UserID))
		s.reject(ws)
		return
	}
	s.transition(stateAuthorized)

	s.conn = newConn(ws, identity.UserID, identity.Username, projectID, h.cfg, h.logger)
	h.registry.Join(s.groupKey, s.conn)
	s.transition(stateActive)
	h.metrics.ConnOpened()

	h.logger.Info("websocket connected",
		zap.String("project", projectID),
		zap.String("user", identity.UserID),
		zap.String("username", identity.Username),
		zap.String("connection", s.conn.ID))

	go s.conn.writePump()
	s.readLoop()
	s.teardown()
}

// reject closes an unauthorized connection with the reserved close code
func (s *session) reject(ws *websocket.Conn) {
	s.transition(stateRejected)
	s.h.metrics.ConnRejected()
	_ = ws.SetWriteDeadline(time.Now().Add(s.h.cfg.WriteWait))
	_ = ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(CloseAuthFailure, "authorization failed"))
	_ = ws.Close()
	s.transition(stateClosed)
}

// readLoop consumes inbound frames until the connection dies. It only
// returns on transport-level failure or close; malformed application
// messages never terminate the connection.
func (s *session) readLoop() {
	ws := s.conn.ws
	_ = ws.SetReadDeadline(time.Now().Add(s.h.cfg.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.h.cfg.PongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.conn.logger.Debug("websocket read failed", zap.Error(err))
			}
			return
		}
		s.handleInbound(data)
	}
}

// handleInbound parses a client message and dispatches on its type
// discriminator. Unknown types and malformed payloads are dropped for
// forward compatibility.
func (s *session) handleInbound(data []byte) {
	var msg dto.InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.conn.logger.Debug("dropping malformed inbound message", zap.Error(err))
		return
	}

	switch msg.Type {
	case string(EventUserActivity):
		s.handleUserActivity(msg)
	default:
		// Unrecognized message types are ignored
	}
}

// handleUserActivity rebroadcasts a typing/viewing indicator to the
// whole group, the sender included, so all of a user's own tabs stay in
// sync. Activity values outside the known set are dropped.
func (s *session) handleUserActivity(msg dto.InboundMessage) {
	if msg.Content != ActivityTyping && msg.Content != ActivityViewing {
		return
	}

	payload, err := encodeEvent(EventUserActivity, &ActivityEvent{
		Type:      EventUserActivity,
		UserID:    s.conn.UserID,
		Username:  s.conn.Username,
		Activity:  msg.Content,
		TaskID:    msg.TaskID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		s.conn.logger.Error("failed to encode activity event", zap.Error(err))
		return
	}

	s.h.metrics.Broadcast(string(EventUserActivity))
	s.h.registry.Broadcast(s.groupKey, payload)
}

// teardown runs exactly once per session when the read loop exits. Leave
// is invoked unconditionally and is idempotent, so every exit path
// (client close, transport error, server shutdown, queue overflow)
// converges here without leaving a dangling registry entry.
func (s *session) teardown() {
	s.transition(stateClosing)
	s.h.registry.Leave(s.groupKey, s.conn)
	s.conn.Close()
	s.h.metrics.ConnClosed()
	s.transition(stateClosed)

	s.h.logger.Info("websocket disconnected",
		zap.String("connection", s.conn.ID),
		zap.String("user", s.conn.UserID),
		zap.String("project", s.conn.ProjectID))
}
