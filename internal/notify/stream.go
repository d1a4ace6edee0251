package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hundredminds/backend/pkg/logger"
)

const (
	// DefaultStream is the redis stream notifications are queued on.
	DefaultStream = "hundredminds:notifications"
	// DefaultGroup is the consumer group of the delivery worker.
	DefaultGroup = "mailers"

	payloadField = "payload"
)

// StreamPublisher queues notifications on a redis stream.
type StreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewStreamPublisher builds the redis transport. maxLen caps the stream
// approximately; zero leaves it unbounded.
func NewStreamPublisher(client *redis.Client, stream string, maxLen int64) (*StreamPublisher, error) {
	if client == nil {
		return nil, errors.New("notify: redis client is required")
	}
	if strings.TrimSpace(stream) == "" {
		stream = DefaultStream
	}
	return &StreamPublisher{client: client, stream: stream, maxLen: maxLen}, nil
}

// Publish appends n to the stream.
func (p *StreamPublisher) Publish(ctx context.Context, n Notification) error {
	payload, err := n.Encode()
	if err != nil {
		return fmt.Errorf("notify: encode notification: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"kind":       string(n.Kind),
			payloadField: payload,
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("notify: xadd %s: %w", p.stream, err)
	}
	return nil
}

// ConsumerConfig tunes a StreamConsumer.
type ConsumerConfig struct {
	Stream        string
	Group         string
	Consumer      string
	BatchSize     int64
	Block         time.Duration
	ClaimInterval time.Duration
}

// StreamConsumer reads queued notifications through a consumer group and hands
// them to a delivery publisher. Entries are acknowledged only after delivery,
// so entries left pending by a crashed worker are claimed again.
type StreamConsumer struct {
	client  *redis.Client
	cfg     ConsumerConfig
	deliver Publisher
	log     *zap.Logger
}

// NewStreamConsumer builds a consumer for cfg, filling defaults.
func NewStreamConsumer(client *redis.Client, deliver Publisher, cfg ConsumerConfig) (*StreamConsumer, error) {
	if client == nil {
		return nil, errors.New("notify: redis client is required")
	}
	if deliver == nil {
		return nil, errors.New("notify: delivery publisher is required")
	}
	if cfg.Stream == "" {
		cfg.Stream = DefaultStream
	}
	if cfg.Group == "" {
		cfg.Group = DefaultGroup
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "worker-1"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	if cfg.ClaimInterval <= 0 {
		cfg.ClaimInterval = time.Minute
	}
	return &StreamConsumer{
		client:  client,
		cfg:     cfg,
		deliver: deliver,
		log:     logger.WithModule("notify.worker"),
	}, nil
}

// EnsureGroup creates the consumer group and stream when missing.
func (c *StreamConsumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("notify: create group %s: %w", c.cfg.Group, err)
	}
	return nil
}

// Run consumes until ctx is cancelled.
func (c *StreamConsumer) Run(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(c.cfg.ClaimInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}

		if _, err := c.ReadOnce(ctx); err != nil && ctx.Err() == nil {
			c.log.Error("stream read failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(2 * time.Second):
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := c.ClaimStalled(ctx); err != nil && ctx.Err() == nil {
				c.log.Warn("claim stalled entries failed", zap.Error(err))
			}
		default:
		}
	}
}

// ReadOnce reads one batch of new entries and reports how many were delivered.
func (c *StreamConsumer) ReadOnce(ctx context.Context) (int, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    c.cfg.BatchSize,
		Block:    c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}

	delivered := 0
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			if c.handle(ctx, msg) {
				delivered++
			}
		}
	}
	return delivered, nil
}

// ClaimStalled takes over entries idle longer than the claim interval and retries them.
func (c *StreamConsumer) ClaimStalled(ctx context.Context) (int, error) {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.cfg.Stream,
		Group:  c.cfg.Group,
		Start:  "-",
		End:    "+",
		Count:  c.cfg.BatchSize,
	}).Result()
	if err != nil {
		return 0, err
	}

	var ids []string
	for _, entry := range pending {
		if entry.Idle >= c.cfg.ClaimInterval {
			ids = append(ids, entry.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	msgs, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   c.cfg.Stream,
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		MinIdle:  c.cfg.ClaimInterval,
		Messages: ids,
	}).Result()
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, msg := range msgs {
		if c.handle(ctx, msg) {
			delivered++
		}
	}
	return delivered, nil
}

func (c *StreamConsumer) handle(ctx context.Context, msg redis.XMessage) bool {
	n, err := decodeMessage(msg)
	if err != nil {
		// a malformed entry can never be delivered
		c.log.Error("dropping malformed notification", zap.String("message_id", msg.ID), zap.Error(err))
		c.ack(ctx, msg.ID)
		return false
	}

	if err := c.deliver.Publish(ctx, n); err != nil {
		c.log.Error("notification delivery failed",
			zap.String("message_id", msg.ID),
			zap.String("kind", string(n.Kind)),
			zap.Error(err),
		)
		return false
	}

	c.ack(ctx, msg.ID)
	return true
}

func (c *StreamConsumer) ack(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, id).Err(); err != nil {
		c.log.Error("ack failed", zap.String("message_id", id), zap.Error(err))
	}
}

func decodeMessage(msg redis.XMessage) (Notification, error) {
	raw, ok := msg.Values[payloadField]
	if !ok {
		return Notification{}, errors.New("notify: stream entry has no payload")
	}
	switch v := raw.(type) {
	case string:
		return Decode([]byte(v))
	case []byte:
		return Decode(v)
	default:
		return Notification{}, fmt.Errorf("notify: unexpected payload type %T", raw)
	}
}
