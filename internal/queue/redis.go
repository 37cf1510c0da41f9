package queue

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"tradewind/internal/orders/saga"

	"github.com/redis/go-redis/v9"
)

// RedisStreamClient is the minimal client surface used by RedisChannel.
type RedisStreamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
}

// RedisChannel carries saga events on a Redis stream with a consumer group.
// Messages are acknowledged only after the handler succeeds, so a crashed or
// failed delivery stays pending and is re-read on the next pass: at-least-once.
type RedisChannel struct {
	client   RedisStreamClient
	stream   string
	group    string
	consumer string
	block    time.Duration
	maxLen   int64
	logf     func(format string, args ...any)
}

// NewRedisChannel constructs a channel on the given stream and group.
func NewRedisChannel(client RedisStreamClient, stream, group, consumer string, block time.Duration, maxLen int64, logf func(string, ...any)) *RedisChannel {
	if stream == "" {
		stream = "submit_order_saga"
	}
	if group == "" {
		group = "saga-orchestrator"
	}
	if consumer == "" {
		consumer = "orchestrator-1"
	}
	if block <= 0 {
		block = 5 * time.Second
	}
	if logf == nil {
		logf = log.Printf
	}
	return &RedisChannel{
		client:   client,
		stream:   stream,
		group:    group,
		consumer: consumer,
		block:    block,
		maxLen:   maxLen,
		logf:     logf,
	}
}

// Publish appends the event to the stream.
func (c *RedisChannel) Publish(ctx context.Context, ev saga.Event) error {
	args := &redis.XAddArgs{
		Stream: c.stream,
		Values: map[string]any{
			"saga_id":    ev.SagaID,
			"order_id":   ev.OrderID,
			"step":       string(ev.Step),
			"created_at": ev.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
	if c.maxLen > 0 {
		args.MaxLen = c.maxLen
		args.Approx = true
	}
	return c.client.XAdd(ctx, args).Err()
}

// Consume delivers events to the handler until the context ends. Each pass
// first re-reads this consumer's unacknowledged entries, then blocks for new
// ones.
func (c *RedisChannel) Consume(ctx context.Context, handle Handler) error {
	if err := c.ensureGroup(ctx); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.readOnce(ctx, "0", 0, handle); err != nil {
			return err
		}
		if err := c.readOnce(ctx, ">", c.block, handle); err != nil {
			return err
		}
	}
}

func (c *RedisChannel) ensureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (c *RedisChannel) readOnce(ctx context.Context, cursor string, block time.Duration, handle Handler) error {
	args := &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, cursor},
		Count:    1,
		Block:    block,
	}
	if block <= 0 {
		args.Block = -1 // do not block when sweeping pending entries
	}

	streams, err := c.client.XReadGroup(ctx, args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		c.logf("saga channel: read failed: %v", err)
		return nil
	}

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			ev, ok := decodeEvent(msg.Values)
			if !ok {
				c.logf("saga channel: malformed message %s, acknowledging", msg.ID)
				_ = c.client.XAck(ctx, c.stream, c.group, msg.ID).Err()
				continue
			}
			if err := handle(ctx, ev); err != nil {
				// Leave unacked; the pending sweep redelivers it.
				c.logf("saga %s: handler failed, leaving pending: %v", ev.SagaID, err)
				continue
			}
			if err := c.client.XAck(ctx, c.stream, c.group, msg.ID).Err(); err != nil {
				c.logf("saga %s: ack failed: %v", ev.SagaID, err)
			}
		}
	}
	return nil
}

func decodeEvent(values map[string]any) (saga.Event, bool) {
	sagaID, _ := values["saga_id"].(string)
	orderID, _ := values["order_id"].(string)
	step, _ := values["step"].(string)
	if sagaID == "" || step == "" {
		return saga.Event{}, false
	}

	ev := saga.Event{
		SagaID:  sagaID,
		OrderID: orderID,
		Step:    saga.Step(step),
	}
	if raw, _ := values["created_at"].(string); raw != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			ev.CreatedAt = ts
		}
	}
	return ev, true
}
