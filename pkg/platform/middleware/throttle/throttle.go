// Package throttle rate-limits requests per client IP with a sliding window.
// This is abuse damping in front of the per-beneficiary claim window, not a
// replacement for it: one IP farming many addresses hits this first.
package throttle

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"faucetd/pkg/platform/middleware/metadata"
)

// Limiter is an in-memory sliding-window counter keyed by client IP. The
// sliding window avoids the burst-at-boundary problem of fixed buckets. Not
// distributed: each instance enforces its own share of the limit.
type Limiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	windows map[string][]time.Time
}

// NewLimiter creates a limiter allowing limit requests per window per key.
func NewLimiter(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:   limit,
		window:  window,
		windows: make(map[string][]time.Time),
	}
}

// Allow records one request for key and reports whether it is within the
// limit. When denied, retryAfter says how long until a slot frees up.
func (l *Limiter) Allow(key string) (allowed bool, retryAfter time.Duration) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	stamps := l.windows[key]
	cutoff := now.Add(-l.window)
	i := 0
	for ; i < len(stamps); i++ {
		if stamps[i].After(cutoff) {
			break
		}
	}
	stamps = stamps[i:]

	if len(stamps) >= l.limit {
		l.windows[key] = stamps
		return false, stamps[0].Add(l.window).Sub(now)
	}

	l.windows[key] = append(stamps, now)
	return true, 0
}

// Reset clears the window for a key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// PerClientIP returns middleware that throttles by the client IP captured by
// the metadata middleware. Requests with no resolvable IP pass through;
// denying on a missing attribute would let a proxy misconfiguration take the
// whole faucet down.
func PerClientIP(limiter *Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := metadata.GetClientIP(r.Context())
			if ip == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed, retryAfter := limiter.Allow(ip)
			if !allowed {
				logger.WarnContext(r.Context(), "client throttled", "ip", ip)
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "too_many_requests"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
