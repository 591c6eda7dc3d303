package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/taskwire/taskwire/internal/common/config"
	"go.uber.org/zap"
)

// BridgeMessage is an event in transit between instances
type BridgeMessage struct {
	Origin    string          `json:"origin"`
	ProjectID string          `json:"project_id"`
	Kind      EventKind       `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
}

// Bridge relays published events across server instances so all of them
// share one logical broadcast domain.
type Bridge interface {
	// Publish sends an event to peer instances
	Publish(ctx context.Context, msg *BridgeMessage) error

	// Watch returns a channel of events published by any instance,
	// this one included; callers filter on Origin.
	Watch(ctx context.Context) (<-chan *BridgeMessage, error)

	// Close releases the bridge's resources
	Close() error
}

// RedisBridge implements Bridge on a Redis stream
type RedisBridge struct {
	logger *zap.Logger
	client *redis.Client
	stream string
}

// NewRedisBridge creates a Redis-backed bridge and verifies connectivity
func NewRedisBridge(logger *zap.Logger, cfg *config.RedisConfig) (*RedisBridge, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	stream := cfg.Stream
	if stream == "" {
		stream = "taskwire:events"
	}

	return &RedisBridge{
		logger: logger.Named("bridge.redis"),
		client: client,
		stream: stream,
	}, nil
}

// Publish implements Bridge.Publish
func (b *RedisBridge) Publish(ctx context.Context, msg *BridgeMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal bridge message: %w", err)
	}

	// Cap the stream; events are ephemeral and replay is a non-goal
	_, err = b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		MaxLen: 1024,
		Approx: true,
		Values: map[string]interface{}{
			"event":     string(data),
			"timestamp": time.Now().Unix(),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to add message to stream: %w", err)
	}
	return nil
}

// Watch implements Bridge.Watch
func (b *RedisBridge) Watch(ctx context.Context) (<-chan *BridgeMessage, error) {
	ch := make(chan *BridgeMessage, 16)

	go func() {
		defer close(ch)

		// Start from the latest entry; every instance reads the stream
		// independently so all of them see every event.
		lastID := "$"

		for {
			select {
			case <-ctx.Done():
				return
			default:
				streams, err := b.client.XRead(ctx, &redis.XReadArgs{
					Streams: []string{b.stream, lastID},
					Count:   16,
					Block:   time.Second,
				}).Result()
				if err != nil {
					if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
						return
					}
					if !errors.Is(err, redis.Nil) {
						b.logger.Error("failed to read from stream", zap.Error(err))
					}
					continue
				}

				for _, stream := range streams {
					for _, message := range stream.Messages {
						lastID = message.ID

						raw, exists := message.Values["event"]
						if !exists {
							continue
						}
						var msg BridgeMessage
						if err := json.Unmarshal([]byte(raw.(string)), &msg); err != nil {
							b.logger.Error("failed to unmarshal bridge message", zap.Error(err))
							continue
						}
						select {
						case ch <- &msg:
						case <-ctx.Done():
							return
						}
					}
				}
			}
		}
	}()

	return ch, nil
}

// Close implements Bridge.Close
func (b *RedisBridge) Close() error {
	return b.client.Close()
}
