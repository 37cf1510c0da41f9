package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tradewind/internal/observability"
)

type stubLimiter struct {
	calls int
	err   error
}

func (s *stubLimiter) Wait(ctx context.Context) error {
	s.calls++
	return s.err
}

func TestRateLimitMiddleware_PassesThrough(t *testing.T) {
	limiter := &stubLimiter{}
	metrics := observability.NewMetrics()

	handler := rateLimitMiddleware(limiter, metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if limiter.calls != 1 {
		t.Fatalf("expected 1 limiter call, got %d", limiter.calls)
	}
	snap := metrics.Snapshot()
	if snap.Methods["POST /orders"].Count != 1 {
		t.Fatalf("expected tracked call, got %+v", snap.Methods)
	}
}

func TestRateLimitMiddleware_RejectsWhenLimited(t *testing.T) {
	limiter := &stubLimiter{err: errors.New("limited")}
	metrics := observability.NewMetrics()

	called := false
	handler := rateLimitMiddleware(limiter, metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/orders/1", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if called {
		t.Fatalf("handler must not run when limited")
	}
	snap := metrics.Snapshot()
	if snap.Methods["GET /orders/1"].Errors != 1 {
		t.Fatalf("expected tracked error, got %+v", snap.Methods)
	}
}

func TestRateLimitMiddleware_CountsServerErrors(t *testing.T) {
	metrics := observability.NewMetrics()

	handler := rateLimitMiddleware(nil, metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	req := httptest.NewRequest(http.MethodGet, "/orders/1", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	snap := metrics.Snapshot()
	if snap.Methods["GET /orders/1"].Errors != 1 {
		t.Fatalf("expected tracked error, got %+v", snap.Methods)
	}
}

func TestHTTPRateLimiter_TakesAndRefillsTokens(t *testing.T) {
	current := time.Unix(0, 0)
	var waits []time.Duration

	limiter := newHTTPRateLimiter(100*time.Millisecond, 2, func(d time.Duration) {
		waits = append(waits, d)
	})
	limiter.now = func() time.Time { return current }
	limiter.sleep = func(_ context.Context, d time.Duration) error {
		current = current.Add(d)
		return nil
	}
	limiter.last = current
	limiter.tokens = 2

	for i := 0; i < 2; i++ {
		if err := limiter.Wait(context.Background()); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
	if len(waits) != 0 {
		t.Fatalf("burst should not wait, got %v", waits)
	}

	// Bucket drained: the next call waits for a refill.
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("wait after drain: %v", err)
	}
	if len(waits) == 0 {
		t.Fatalf("expected a recorded wait")
	}
}

func TestHTTPRateLimiter_ContextCancelled(t *testing.T) {
	limiter := newHTTPRateLimiter(time.Hour, 1, nil)
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := limiter.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestHTTPRateLimiter_NilAndDisabled(t *testing.T) {
	var limiter *httpRateLimiter
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("nil limiter must allow: %v", err)
	}
	disabled := newHTTPRateLimiter(0, 0, nil)
	if err := disabled.Wait(context.Background()); err != nil {
		t.Fatalf("disabled limiter must allow: %v", err)
	}
}
