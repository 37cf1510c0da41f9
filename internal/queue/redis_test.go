package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"tradewind/internal/orders/saga"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisChannel(t *testing.T) (*RedisChannel, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ch := NewRedisChannel(client, "submit_order_saga", "saga-orchestrator", "orchestrator-test", 50*time.Millisecond, 0, func(string, ...any) {})
	return ch, client
}

func TestRedisChannel_PublishAndConsume(t *testing.T) {
	t.Parallel()

	ch, _ := newRedisChannel(t)
	sink := newEventSink(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = ch.Consume(ctx, sink.handle) }()

	ev := saga.Event{
		SagaID:    "saga-1",
		OrderID:   "order-1",
		Step:      saga.StepDeclared,
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := ch.Publish(ctx, ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitFor(t, sink.done)
	got := sink.received()[0]
	if got.SagaID != "saga-1" || got.OrderID != "order-1" || got.Step != saga.StepDeclared {
		t.Fatalf("unexpected event: %+v", got)
	}
	if !got.CreatedAt.Equal(ev.CreatedAt) {
		t.Fatalf("timestamp must round-trip, got %v", got.CreatedAt)
	}
}

func TestRedisChannel_FailedHandlerIsRedelivered(t *testing.T) {
	t.Parallel()

	ch, _ := newRedisChannel(t)
	sink := newEventSink(1)
	sink.errs = []error{errors.New("transient")}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = ch.Consume(ctx, sink.handle) }()

	if err := ch.Publish(ctx, saga.Event{SagaID: "saga-1", OrderID: "order-1", Step: saga.StepCreated}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	// First delivery fails and is left pending; the pending sweep must
	// deliver it again.
	waitFor(t, sink.done)
	if got := sink.received(); len(got) != 1 || got[0].SagaID != "saga-1" {
		t.Fatalf("expected redelivery, got %v", got)
	}
}

func TestRedisChannel_AckedMessageNotRedelivered(t *testing.T) {
	t.Parallel()

	ch, client := newRedisChannel(t)
	sink := newEventSink(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = ch.Consume(ctx, sink.handle) }()

	if err := ch.Publish(ctx, saga.Event{SagaID: "saga-1", OrderID: "order-1", Step: saga.StepCreated}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	waitFor(t, sink.done)

	// Give the consumer a moment, then verify nothing is left pending.
	deadline := time.Now().Add(2 * time.Second)
	for {
		pending, err := client.XPending(ctx, "submit_order_saga", "saga-orchestrator").Result()
		if err == nil && pending.Count == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected no pending entries, got %+v (err %v)", pending, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
