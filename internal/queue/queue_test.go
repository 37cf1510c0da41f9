package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tradewind/internal/orders/saga"
)

type eventSink struct {
	mu     sync.Mutex
	events []saga.Event
	errs   []error
	done   chan struct{}
	want   int
}

func newEventSink(want int) *eventSink {
	return &eventSink{done: make(chan struct{}), want: want}
}

func (s *eventSink) handle(ctx context.Context, ev saga.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return err
		}
	}
	s.events = append(s.events, ev)
	if len(s.events) == s.want {
		close(s.done)
	}
	return nil
}

func (s *eventSink) received() []saga.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]saga.Event(nil), s.events...)
}

func waitFor(t *testing.T, done chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for events")
	}
}

func TestLocalChannel_DeliversInOrder(t *testing.T) {
	t.Parallel()

	ch := NewLocalChannel(8, func(string, ...any) {})
	sink := newEventSink(2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = ch.Consume(ctx, sink.handle) }()

	first := saga.Event{SagaID: "s1", OrderID: "o1", Step: saga.StepDeclared}
	second := saga.Event{SagaID: "s1", OrderID: "o1", Step: saga.StepCreated}
	if err := ch.Publish(ctx, first); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := ch.Publish(ctx, second); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitFor(t, sink.done)
	got := sink.received()
	if got[0].Step != saga.StepDeclared || got[1].Step != saga.StepCreated {
		t.Fatalf("expected FIFO delivery, got %v", got)
	}
}

func TestLocalChannel_RedeliversOnHandlerError(t *testing.T) {
	t.Parallel()

	ch := NewLocalChannel(8, func(string, ...any) {})
	sink := newEventSink(1)
	sink.errs = []error{errors.New("transient")}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = ch.Consume(ctx, sink.handle) }()

	if err := ch.Publish(ctx, saga.Event{SagaID: "s1", OrderID: "o1", Step: saga.StepCreated}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitFor(t, sink.done)
	if got := sink.received(); len(got) != 1 || got[0].SagaID != "s1" {
		t.Fatalf("expected redelivered event, got %v", got)
	}
}

func TestPump_RepublishesSuccessor(t *testing.T) {
	t.Parallel()

	ch := NewLocalChannel(8, func(string, ...any) {})
	next := saga.Event{SagaID: "s1", OrderID: "o1", Step: saga.StepCreated}
	handler := Pump(ch, func(ctx context.Context, ev saga.Event) (*saga.Event, error) {
		return &next, nil
	})

	if err := handler(context.Background(), saga.Event{SagaID: "s1", Step: saga.StepDeclared}); err != nil {
		t.Fatalf("pump: %v", err)
	}

	select {
	case got := <-ch.events:
		if got.Step != saga.StepCreated {
			t.Fatalf("unexpected successor: %v", got)
		}
	default:
		t.Fatalf("expected a republished event")
	}
}

func TestPump_TerminalProducesNothing(t *testing.T) {
	t.Parallel()

	ch := NewLocalChannel(8, func(string, ...any) {})
	handler := Pump(ch, func(ctx context.Context, ev saga.Event) (*saga.Event, error) {
		return nil, nil
	})

	if err := handler(context.Background(), saga.Event{SagaID: "s1", Step: saga.StepSubmittedStatus}); err != nil {
		t.Fatalf("pump: %v", err)
	}
	select {
	case got := <-ch.events:
		t.Fatalf("unexpected event: %v", got)
	default:
	}
}

func TestPump_PropagatesAdvanceError(t *testing.T) {
	t.Parallel()

	ch := NewLocalChannel(8, func(string, ...any) {})
	boom := errors.New("storage down")
	handler := Pump(ch, func(ctx context.Context, ev saga.Event) (*saga.Event, error) {
		return nil, boom
	})

	if err := handler(context.Background(), saga.Event{SagaID: "s1", Step: saga.StepCreated}); !errors.Is(err, boom) {
		t.Fatalf("expected advance error, got %v", err)
	}
}
