package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskwire/taskwire/internal/common/config"
	"github.com/taskwire/taskwire/pkg/metrics"
	"go.uber.org/zap"
)

// stubValidator resolves fixed tokens to identities
type stubValidator struct {
	identities map[string]Identity
}

func (s *stubValidator) Validate(token string) (Identity, error) {
	id, ok := s.identities[token]
	if !ok {
		return Identity{}, errors.New("invalid token")
	}
	return id, nil
}

// stubMembership allows fixed user/project pairs
type stubMembership struct {
	allowed map[string]bool
}

func (s *stubMembership) IsMember(_ context.Context, userID, projectID string) bool {
	return s.allowed[userID+"/"+projectID]
}

type wsFixture struct {
	srv      *httptest.Server
	registry *Registry
	relay    *Relay
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	m := metrics.New("test")
	registry := NewRegistry(logger, m)
	relay := NewRelay(logger, registry, nil, m)

	validator := &stubValidator{identities: map[string]Identity{
		"alice-token": {UserID: "alice", Username: "alice"},
		"bob-token":   {UserID: "bob", Username: "bob"},
		"carol-token": {UserID: "carol", Username: "carol"},
		"dave-token":  {UserID: "dave", Username: "dave"},
	}}
	membership := &stubMembership{allowed: map[string]bool{
		"alice/p1": true,
		"carol/p1": true,
		"dave/p2":  true,
	}}

	h := NewSessionHandler(logger, registry, validator, membership, m, config.WebSocketConfig{
		SendBufferSize: 16,
		PingInterval:   50 * time.Millisecond,
		PongWait:       2 * time.Second,
		WriteWait:      time.Second,
	})

	r := gin.New()
	r.GET("/ws/projects/:project_id", h.HandleProjectSocket)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &wsFixture{srv: srv, registry: registry, relay: relay}
}

func (f *wsFixture) dial(t *testing.T, projectID, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/projects/" + projectID + "?token=" + token
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func (f *wsFixture) waitGroupSize(t *testing.T, projectID string, n int) {
	t.Helper()
	assert.Eventually(t, func() bool {
		return f.registry.GroupSize(GroupKey(projectID)) == n
	}, 2*time.Second, 10*time.Millisecond)
}

func readJSON(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func readCloseCode(t *testing.T, ws *websocket.Conn) int {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := ws.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	return closeErr.Code
}

func TestSession_MemberJoinsAndNonMemberRejected(t *testing.T) {
	f := newWSFixture(t)

	// Member: transitions to Active and joins the group
	_ = f.dial(t, "p1", "alice-token")
	f.waitGroupSize(t, "p1", 1)

	// Non-member: rejected with the reserved close code, group unchanged
	wsB := f.dial(t, "p1", "bob-token")
	assert.Equal(t, CloseAuthFailure, readCloseCode(t, wsB))
	assert.Equal(t, 1, f.registry.GroupSize(GroupKey("p1")))
}

func TestSession_InvalidTokenRejected(t *testing.T) {
	f := newWSFixture(t)

	ws := f.dial(t, "p1", "forged-token")
	assert.Equal(t, CloseAuthFailure, readCloseCode(t, ws))
	assert.Equal(t, 0, f.registry.GroupSize(GroupKey("p1")))
}

func TestSession_ActivitySelfEcho(t *testing.T) {
	f := newWSFixture(t)

	wsAlice := f.dial(t, "p1", "alice-token")
	wsCarol := f.dial(t, "p1", "carol-token")
	f.waitGroupSize(t, "p1", 2)

	require.NoError(t, wsAlice.WriteJSON(map[string]any{
		"type":    "user_activity",
		"content": "typing",
		"task_id": "t1",
	}))

	// Every group member receives the indicator, the sender included
	for _, ws := range []*websocket.Conn{wsAlice, wsCarol} {
		msg := readJSON(t, ws)
		assert.Equal(t, "user_activity", msg["type"])
		assert.Equal(t, "alice", msg["user_id"])
		assert.Equal(t, "alice", msg["username"])
		assert.Equal(t, "typing", msg["activity"])
		assert.Equal(t, "t1", msg["task_id"])
		ts, ok := msg["timestamp"].(string)
		require.True(t, ok)
		_, err := time.Parse(time.RFC3339, ts)
		assert.NoError(t, err)
	}
}

func TestSession_InvalidActivityDropped(t *testing.T) {
	f := newWSFixture(t)

	wsAlice := f.dial(t, "p1", "alice-token")
	wsCarol := f.dial(t, "p1", "carol-token")
	f.waitGroupSize(t, "p1", 2)

	// Activity values outside {typing, viewing} are not broadcast
	require.NoError(t, wsAlice.WriteJSON(map[string]any{
		"type":    "user_activity",
		"content": "dancing",
	}))
	// Unknown message types are ignored
	require.NoError(t, wsAlice.WriteJSON(map[string]any{
		"type": "mark_comments_read",
	}))
	// Malformed JSON is dropped without closing the connection
	require.NoError(t, wsAlice.WriteMessage(websocket.TextMessage, []byte("{not json")))

	// A valid indicator still comes through afterwards, proving the
	// connection survived and nothing else was queued before it.
	require.NoError(t, wsAlice.WriteJSON(map[string]any{
		"type":    "user_activity",
		"content": "viewing",
	}))

	msg := readJSON(t, wsCarol)
	assert.Equal(t, "viewing", msg["activity"])
	assert.Nil(t, msg["task_id"])
}

func TestSession_PublishReachesOnlyProjectGroup(t *testing.T) {
	f := newWSFixture(t)

	wsAlice := f.dial(t, "p1", "alice-token")
	wsCarol := f.dial(t, "p1", "carol-token")
	wsDave := f.dial(t, "p2", "dave-token")
	f.waitGroupSize(t, "p1", 2)
	f.waitGroupSize(t, "p2", 1)

	f.relay.Publish(context.Background(), "p1", EventTaskCreated, map[string]any{
		"id":    "t1",
		"title": "X",
	})

	for _, ws := range []*websocket.Conn{wsAlice, wsCarol} {
		msg := readJSON(t, ws)
		assert.Equal(t, "task_created", msg["type"])
		task, ok := msg["task"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "t1", task["id"])
	}

	// Dave's project saw nothing
	require.NoError(t, wsDave.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := wsDave.ReadMessage()
	assert.Error(t, err)
}

func TestSession_DisconnectLeavesGroup(t *testing.T) {
	f := newWSFixture(t)

	wsAlice := f.dial(t, "p1", "alice-token")
	_ = f.dial(t, "p1", "carol-token")
	f.waitGroupSize(t, "p1", 2)

	require.NoError(t, wsAlice.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = wsAlice.Close()

	f.waitGroupSize(t, "p1", 1)
}

func TestSession_ServerInitiatedClose(t *testing.T) {
	f := newWSFixture(t)

	ws := f.dial(t, "p1", "alice-token")
	f.waitGroupSize(t, "p1", 1)

	// Shutdown path: closing from another goroutine drives the same
	// leave-then-release teardown.
	f.registry.CloseAll()
	f.waitGroupSize(t, "p1", 0)

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := ws.ReadMessage()
	var closeErr *websocket.CloseError
	if assert.ErrorAs(t, err, &closeErr) {
		assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
	}
}
