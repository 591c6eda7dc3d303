package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskwire/taskwire/internal/common/config"
	"github.com/taskwire/taskwire/pkg/metrics"
	"go.uber.org/zap"
)

func newTestBridge(t *testing.T, addr string) *RedisBridge {
	t.Helper()
	b, err := NewRedisBridge(zap.NewNop(), &config.RedisConfig{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestRedisBridge_ConnectFailure(t *testing.T) {
	_, err := NewRedisBridge(zap.NewNop(), &config.RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestRedisBridge_PublishWatchRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	bridge := newTestBridge(t, mr.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bridge.Watch(ctx)
	require.NoError(t, err)

	// Watch tails the stream from its current end; give the reader a
	// moment to start blocking before publishing.
	time.Sleep(100 * time.Millisecond)

	payload, err := json.Marshal(map[string]any{"type": "task_created"})
	require.NoError(t, err)
	require.NoError(t, bridge.Publish(ctx, &BridgeMessage{
		Origin:    "instance-a",
		ProjectID: "p1",
		Kind:      EventTaskCreated,
		Payload:   payload,
	}))

	select {
	case msg := <-ch:
		assert.Equal(t, "instance-a", msg.Origin)
		assert.Equal(t, "p1", msg.ProjectID)
		assert.Equal(t, EventTaskCreated, msg.Kind)
		assert.JSONEq(t, string(payload), string(msg.Payload))
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for bridged message")
	}
}

func TestRedisBridge_WatchStopsOnCancel(t *testing.T) {
	mr := miniredis.RunT(t)
	bridge := newTestBridge(t, mr.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := bridge.Watch(ctx)
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(3 * time.Second):
		t.Fatal("watch channel not closed after cancel")
	}
}

// Two relays sharing one stream behave as a single broadcast domain:
// a publish on one instance reaches the other's group exactly once,
// and never echoes back to the publisher.
func TestRelay_BridgedInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	logger := zap.NewNop()

	regA := NewRegistry(logger, metrics.New("test"))
	regB := NewRegistry(logger, metrics.New("test"))
	relayA := NewRelay(logger, regA, newTestBridge(t, mr.Addr()), metrics.New("test"))
	relayB := NewRelay(logger, regB, newTestBridge(t, mr.Addr()), metrics.New("test"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = relayA.Run(ctx) }()
	go func() { _ = relayB.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	connA := newTestConn("u1", "p1", 4)
	connB := newTestConn("u2", "p1", 4)
	regA.Join(GroupKey("p1"), connA)
	regB.Join(GroupKey("p1"), connB)

	relayA.Publish(ctx, "p1", EventTaskCreated, map[string]any{"id": "t1"})

	// Local delivery is synchronous
	require.Len(t, connA.send, 1)

	// Peer delivery arrives through the stream
	require.Eventually(t, func() bool {
		return len(connB.send) == 1
	}, 3*time.Second, 20*time.Millisecond)

	var got map[string]any
	require.NoError(t, json.Unmarshal(<-connB.send, &got))
	assert.Equal(t, "task_created", got["type"])

	// The publisher never sees its own event a second time
	time.Sleep(200 * time.Millisecond)
	assert.Len(t, connA.send, 1)
}
