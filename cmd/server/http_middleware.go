package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"tradewind/internal/observability"
)

type rateLimiter interface {
	Wait(ctx context.Context) error
}

// httpRateLimiter is a simple token bucket limiter.
type httpRateLimiter struct {
	mu     sync.Mutex
	rate   time.Duration
	burst  int
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
	onWait func(time.Duration)

	tokens int
	last   time.Time
}

func newHTTPRateLimiter(rate time.Duration, burst int, onWait func(time.Duration)) *httpRateLimiter {
	now := time.Now
	limiter := &httpRateLimiter{
		rate:   rate,
		burst:  burst,
		now:    now,
		sleep:  sleepWithContext,
		onWait: onWait,
	}
	limiter.tokens = burst
	limiter.last = now()
	return limiter
}

func (r *httpRateLimiter) Wait(ctx context.Context) error {
	if r == nil || r.rate <= 0 || r.burst <= 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.mu.Lock()
		now := r.now()
		r.refill(now)
		if r.tokens > 0 {
			r.tokens--
			r.mu.Unlock()
			return nil
		}
		wait := r.rate - now.Sub(r.last)
		r.mu.Unlock()
		if wait <= 0 {
			continue
		}
		if r.onWait != nil {
			r.onWait(wait)
		}
		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (r *httpRateLimiter) refill(now time.Time) {
	if r.rate <= 0 {
		r.tokens = r.burst
		r.last = now
		return
	}
	elapsed := now.Sub(r.last)
	if elapsed < r.rate {
		return
	}
	add := int(elapsed / r.rate)
	if add <= 0 {
		return
	}
	r.tokens += add
	if r.tokens > r.burst {
		r.tokens = r.burst
	}
	r.last = r.last.Add(time.Duration(add) * r.rate)
}

// statusRecorder captures the response code so the span can count errors.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// rateLimitMiddleware throttles ingress with the token bucket and records a
// per-route span on the metrics registry.
func rateLimitMiddleware(limiter rateLimiter, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			span := metrics.Start(r.Method + " " + r.URL.Path)
			if limiter != nil {
				if err := limiter.Wait(r.Context()); err != nil {
					span.End(err)
					http.Error(w, "rate limited", http.StatusTooManyRequests)
					return
				}
			}
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			if rec.status >= http.StatusInternalServerError {
				span.End(errServerStatus)
			} else {
				span.End(nil)
			}
		})
	}
}

var errServerStatus = errors.New("server error status")

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
