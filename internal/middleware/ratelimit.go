package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// maxTrackedClients caps the bucket map; new clients beyond it are rejected
// until idle buckets are cleaned up.
const maxTrackedClients = 100_000

// RateLimiter is per-client-IP token bucket rate limiting middleware.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64 // tokens per second
	burst   float64
	exempt  map[string]struct{}
	now     func() time.Time
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// NewRateLimiter creates a rate limiter with the given sustained rate
// (requests per second) and burst size.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   float64(burst),
		exempt:  make(map[string]struct{}),
		now:     time.Now,
	}
}

// Exempt excludes exact request paths (health probes, signed webhooks) from
// limiting.
func (rl *RateLimiter) Exempt(paths ...string) *RateLimiter {
	for _, p := range paths {
		rl.exempt[p] = struct{}{}
	}
	return rl
}

// Handler returns HTTP middleware that enforces the limit.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := rl.exempt[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}

		remaining, wait, ok := rl.take(clientIP(r))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(int(rl.burst)))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// take consumes one token for key. It returns the whole tokens left, the
// wait until the next token when refused, and whether the request may pass.
func (rl *RateLimiter) take(key string) (int, time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok {
		if len(rl.buckets) >= maxTrackedClients {
			return 0, rl.perToken(), false
		}
		b = &bucket{tokens: rl.burst, seen: now}
		rl.buckets[key] = b
	} else {
		b.tokens = math.Min(rl.burst, b.tokens+now.Sub(b.seen).Seconds()*rl.rate)
		b.seen = now
	}

	if b.tokens < 1 {
		return 0, time.Duration((1 - b.tokens) / rl.rate * float64(time.Second)), false
	}
	b.tokens--
	return int(b.tokens), 0, true
}

func (rl *RateLimiter) perToken() time.Duration {
	return time.Duration(float64(time.Second) / rl.rate)
}

// RunCleanup removes buckets idle for longer than maxIdle every interval
// until ctx is done.
func (rl *RateLimiter) RunCleanup(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.cleanup(maxIdle)
		}
	}
}

func (rl *RateLimiter) cleanup(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-maxIdle)
	for key, b := range rl.buckets {
		if b.seen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

// Len returns the number of tracked clients.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// clientIP uses RemoteAddr only. Forwarding headers are spoofable.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
