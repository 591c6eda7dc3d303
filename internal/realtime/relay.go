package realtime

import (
	"context"

	"github.com/google/uuid"
	"github.com/taskwire/taskwire/pkg/metrics"
	"go.uber.org/zap"
)

// Relay is the bridge between mutation code and connected clients. CRUD
// handlers call Publish after a committed write; publish-after-commit
// ordering is the caller's responsibility. Delivery failures are
// per-recipient and never surface to the publisher.
type Relay struct {
	logger     *zap.Logger
	registry   *Registry
	bridge     Bridge
	metrics    *metrics.Metrics
	instanceID string
}

// NewRelay creates an event relay. bridge may be nil, in which case
// events stay within this process's broadcast domain.
func NewRelay(logger *zap.Logger, registry *Registry, bridge Bridge, m *metrics.Metrics) *Relay {
	return &Relay{
		logger:     logger.Named("relay"),
		registry:   registry,
		bridge:     bridge,
		metrics:    m,
		instanceID: uuid.NewString(),
	}
}

// Publish packages a typed event and broadcasts it to the project's
// group. With a bridge configured, the event is also relayed to peer
// instances; a bridge failure is logged and otherwise ignored.
func (r *Relay) Publish(ctx context.Context, projectID string, kind EventKind, data any) {
	payload, err := encodeEvent(kind, data)
	if err != nil {
		r.logger.Error("failed to encode event",
			zap.String("project", projectID),
			zap.String("kind", string(kind)),
			zap.Error(err))
		return
	}

	r.metrics.Broadcast(string(kind))
	delivered := r.registry.Broadcast(GroupKey(projectID), payload)
	r.logger.Debug("event published",
		zap.String("project", projectID),
		zap.String("kind", string(kind)),
		zap.Int("delivered", delivered))

	if r.bridge != nil {
		msg := &BridgeMessage{
			Origin:    r.instanceID,
			ProjectID: projectID,
			Kind:      kind,
			Payload:   payload,
		}
		if err := r.bridge.Publish(ctx, msg); err != nil {
			r.logger.Warn("failed to relay event to bridge", zap.Error(err))
		}
	}
}

// Run consumes events relayed by peer instances and rebroadcasts them
// locally. Events this instance originated are skipped to avoid double
// delivery. Blocks until ctx is cancelled; a no-op without a bridge.
func (r *Relay) Run(ctx context.Context) error {
	if r.bridge == nil {
		<-ctx.Done()
		return nil
	}

	ch, err := r.bridge.Watch(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if msg.Origin == r.instanceID {
				continue
			}
			r.registry.Broadcast(GroupKey(msg.ProjectID), msg.Payload)
			r.logger.Debug("rebroadcast event from peer instance",
				zap.String("project", msg.ProjectID),
				zap.String("kind", string(msg.Kind)))
		}
	}
}
