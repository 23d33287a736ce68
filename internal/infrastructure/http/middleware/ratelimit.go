package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mealsmith/v2/internal/infrastructure/config"
)

// clientLimiter keeps one token bucket per client IP. Stale buckets
// are dropped periodically so the map stays bounded.
type clientLimiter struct {
	mu       sync.Mutex
	clients  map[string]*clientBucket
	limit    rate.Limit
	burst    int
	lifetime time.Duration
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(cfg config.RateLimitConfig) *clientLimiter {
	cl := &clientLimiter{
		clients:  make(map[string]*clientBucket),
		limit:    rate.Limit(float64(cfg.RequestsPerMin) / 60.0),
		burst:    cfg.BurstSize,
		lifetime: cfg.CleanupInterval,
	}

	if cfg.Enable && cfg.CleanupInterval > 0 {
		go cl.cleanupLoop(cfg.CleanupInterval)
	}

	return cl
}

// Allow reports whether the client may proceed.
func (cl *clientLimiter) Allow(clientIP string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	bucket, ok := cl.clients[clientIP]
	if !ok {
		bucket = &clientBucket{limiter: rate.NewLimiter(cl.limit, cl.burst)}
		cl.clients[clientIP] = bucket
	}
	bucket.lastSeen = time.Now()

	return bucket.limiter.Allow()
}

// WebRateLimit applies the per-IP token bucket policy to a plain
// net/http handler chain.
func WebRateLimit(cfg config.RateLimitConfig) func(http.Handler) http.Handler {
	limiter := newClientLimiter(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}

			if !limiter.Allow(host) {
				w.Header().Set("Retry-After", "60")
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (cl *clientLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-cl.lifetime)

		cl.mu.Lock()
		for ip, bucket := range cl.clients {
			if bucket.lastSeen.Before(cutoff) {
				delete(cl.clients, ip)
			}
		}
		cl.mu.Unlock()
	}
}
