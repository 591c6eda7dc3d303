package realtime

import (
	"sync"

	"github.com/taskwire/taskwire/pkg/metrics"
	"go.uber.org/zap"
)

// group is the set of connections bound to one project
type group struct {
	mu    sync.RWMutex
	conns map[*Conn]struct{}
}

// Registry tracks live connections per broadcast group and fans events
// out to them. All operations are safe under arbitrary concurrent use.
//
// The registry mutex guards the group map; each group carries its own
// lock so a broadcast storm in one project never contends with another
// project's broadcasts. Groups are created on first join and removed
// when their last member leaves, under both locks so a concurrent Join
// can't land in an orphaned group.
type Registry struct {
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	groups map[string]*group
}

// NewRegistry creates a connection registry
func NewRegistry(logger *zap.Logger, m *metrics.Metrics) *Registry {
	return &Registry{
		logger:  logger.Named("registry"),
		metrics: m,
		groups:  make(map[string]*group),
	}
}

// Join adds a connection to the named group, creating the group if
// needed. Joining a group the connection is already in is a no-op.
func (r *Registry) Join(groupKey string, c *Conn) {
	r.mu.Lock()
	g, ok := r.groups[groupKey]
	if !ok {
		g = &group{conns: make(map[*Conn]struct{})}
		r.groups[groupKey] = g
	}
	g.mu.Lock()
	g.conns[c] = struct{}{}
	g.mu.Unlock()
	r.mu.Unlock()

	r.logger.Debug("connection joined group",
		zap.String("group", groupKey),
		zap.String("connection", c.ID),
		zap.String("user", c.UserID))
}

// Leave removes a connection from the named group. Removing an absent
// connection, or leaving a group that no longer exists, is a no-op.
// The group entry itself is dropped once it empties.
func (r *Registry) Leave(groupKey string, c *Conn) {
	r.mu.Lock()
	g, ok := r.groups[groupKey]
	if !ok {
		r.mu.Unlock()
		return
	}
	g.mu.Lock()
	delete(g.conns, c)
	empty := len(g.conns) == 0
	g.mu.Unlock()
	if empty {
		delete(r.groups, groupKey)
	}
	r.mu.Unlock()

	r.logger.Debug("connection left group",
		zap.String("group", groupKey),
		zap.String("connection", c.ID))
}

// Broadcast delivers payload to every connection in the group's
// membership snapshot at call time. A connection that cannot accept the
// payload (outbound queue full) is closed rather than silently skipped;
// its failure never aborts delivery to the remaining recipients. Returns
// the number of successful deliveries.
func (r *Registry) Broadcast(groupKey string, payload []byte) int {
	r.mu.RLock()
	g, ok := r.groups[groupKey]
	r.mu.RUnlock()
	if !ok {
		return 0
	}

	g.mu.RLock()
	snapshot := make([]*Conn, 0, len(g.conns))
	for c := range g.conns {
		snapshot = append(snapshot, c)
	}
	g.mu.RUnlock()

	delivered := 0
	for _, c := range snapshot {
		if c.deliver(payload) {
			delivered++
			continue
		}
		r.logger.Warn("dropping connection with stalled outbound queue",
			zap.String("group", groupKey),
			zap.String("connection", c.ID),
			zap.String("user", c.UserID))
		r.metrics.DeliveryDropped()
		c.Close()
	}
	return delivered
}

// GroupSize returns the current number of connections in a group
func (r *Registry) GroupSize(groupKey string) int {
	r.mu.RLock()
	g, ok := r.groups[groupKey]
	r.mu.RUnlock()
	if !ok {
		return 0
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.conns)
}

// CloseAll requests teardown of every live connection. Each session then
// runs its normal leave-and-release path, so the registry drains without
// dangling entries. Used on server shutdown.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	var snapshot []*Conn
	for _, g := range r.groups {
		g.mu.RLock()
		for c := range g.conns {
			snapshot = append(snapshot, c)
		}
		g.mu.RUnlock()
	}
	r.mu.RUnlock()

	for _, c := range snapshot {
		c.Close()
	}
}
