package realtime

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/taskwire/taskwire/internal/common/config"
	"github.com/taskwire/taskwire/pkg/metrics"
	"go.uber.org/zap"
)

func newTestRegistry() *Registry {
	return NewRegistry(zap.NewNop(), metrics.New("test"))
}

// newTestConn builds a connection without a live websocket; deliver and
// Close never touch the socket, only the write pump does.
func newTestConn(userID, projectID string, buffer int) *Conn {
	cfg := config.WebSocketConfig{SendBufferSize: buffer}
	cfg.SetDefaults()
	return &Conn{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProjectID: projectID,
		send:      make(chan []byte, buffer),
		done:      make(chan struct{}),
		cfg:       cfg,
		logger:    zap.NewNop(),
	}
}

func TestRegistry_JoinLeave(t *testing.T) {
	r := newTestRegistry()
	key := GroupKey("p1")
	c := newTestConn("u1", "p1", 4)

	r.Join(key, c)
	assert.Equal(t, 1, r.GroupSize(key))

	// Join is idempotent
	r.Join(key, c)
	assert.Equal(t, 1, r.GroupSize(key))

	r.Leave(key, c)
	assert.Equal(t, 0, r.GroupSize(key))

	// Leave is idempotent, including on a group that no longer exists
	r.Leave(key, c)
	assert.Equal(t, 0, r.GroupSize(key))
}

func TestRegistry_LeaveNeverJoined(t *testing.T) {
	r := newTestRegistry()
	c := newTestConn("u1", "p1", 4)

	// Leaving without ever joining is a no-op
	r.Leave(GroupKey("p1"), c)
	assert.Equal(t, 0, r.GroupSize(GroupKey("p1")))
}

func TestRegistry_GroupRemovedWhenEmpty(t *testing.T) {
	r := newTestRegistry()
	key := GroupKey("p1")
	a := newTestConn("u1", "p1", 4)
	b := newTestConn("u2", "p1", 4)

	r.Join(key, a)
	r.Join(key, b)
	r.Leave(key, a)

	r.mu.RLock()
	_, exists := r.groups[key]
	r.mu.RUnlock()
	assert.True(t, exists)

	r.Leave(key, b)
	r.mu.RLock()
	_, exists = r.groups[key]
	r.mu.RUnlock()
	assert.False(t, exists, "empty group should be dropped")
}

func TestRegistry_BroadcastSnapshot(t *testing.T) {
	r := newTestRegistry()
	key := GroupKey("p1")
	a := newTestConn("u1", "p1", 4)
	b := newTestConn("u2", "p1", 4)
	other := newTestConn("u3", "p2", 4)

	r.Join(key, a)
	r.Join(key, b)
	r.Join(GroupKey("p2"), other)

	n := r.Broadcast(key, []byte(`{"type":"task_created"}`))
	assert.Equal(t, 2, n)
	assert.Len(t, a.send, 1)
	assert.Len(t, b.send, 1)
	assert.Len(t, other.send, 0, "other project's connection must not receive")

	// A connection joining after the broadcast receives nothing
	late := newTestConn("u4", "p1", 4)
	r.Join(key, late)
	assert.Len(t, late.send, 0)
}

func TestRegistry_BroadcastUnknownGroup(t *testing.T) {
	r := newTestRegistry()
	assert.Equal(t, 0, r.Broadcast(GroupKey("ghost"), []byte("x")))
}

func TestRegistry_OverflowClosesConnection(t *testing.T) {
	r := newTestRegistry()
	key := GroupKey("p1")
	stalled := newTestConn("u1", "p1", 1)
	healthy := newTestConn("u2", "p1", 4)

	r.Join(key, stalled)
	r.Join(key, healthy)

	// Fill the stalled connection's queue, then overflow it. The failure
	// is isolated: the healthy connection still gets every payload.
	assert.Equal(t, 2, r.Broadcast(key, []byte("one")))
	n := r.Broadcast(key, []byte("two"))
	assert.Equal(t, 1, n)
	assert.Len(t, healthy.send, 2)

	select {
	case <-stalled.done:
		// closed as mandated by the overflow policy
	default:
		t.Fatal("stalled connection was not closed on overflow")
	}
}

func TestRegistry_DeliverToClosedConnection(t *testing.T) {
	r := newTestRegistry()
	key := GroupKey("p1")
	c := newTestConn("u1", "p1", 4)
	r.Join(key, c)

	c.Close()
	n := r.Broadcast(key, []byte("x"))
	assert.Equal(t, 0, n)
}

func TestRegistry_ConcurrentUse(t *testing.T) {
	r := newTestRegistry()

	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		key := GroupKey(fmt.Sprintf("p%d", p))
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(key string, i int) {
				defer wg.Done()
				c := newTestConn(fmt.Sprintf("u%d", i), key, 64)
				r.Join(key, c)
				r.Broadcast(key, []byte("ping"))
				r.Leave(key, c)
			}(key, i)
		}
	}
	wg.Wait()

	for p := 0; p < 8; p++ {
		assert.Equal(t, 0, r.GroupSize(GroupKey(fmt.Sprintf("p%d", p))))
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	r := newTestRegistry()
	a := newTestConn("u1", "p1", 4)
	b := newTestConn("u2", "p2", 4)
	r.Join(GroupKey("p1"), a)
	r.Join(GroupKey("p2"), b)

	r.CloseAll()
	for _, c := range []*Conn{a, b} {
		select {
		case <-c.done:
		default:
			t.Fatalf("connection %s was not closed", c.ID)
		}
	}
}
