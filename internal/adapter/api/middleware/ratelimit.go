package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterIdleTTL bounds how long an inactive tenant keeps its bucket. An idle
// bucket has refilled anyway, so eviction never grants extra tokens.
const limiterIdleTTL = 15 * time.Minute

// tenantRateLimiter hands out one token bucket per tenant key. Training
// triggers are cheap to accept but expensive downstream, so rapid re-clicks
// are throttled here before they hit the queue. Buckets for tenants idle
// longer than idleTTL are swept, keeping the map bounded by recently active
// tenants.
type tenantRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*tenantBucket
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
}

type tenantBucket struct {
	*rate.Limiter
	lastSeen time.Time
}

func newTenantRateLimiter(limit rate.Limit, burst int, idleTTL time.Duration) *tenantRateLimiter {
	return &tenantRateLimiter{
		limiters:  make(map[string]*tenantBucket),
		limit:     limit,
		burst:     burst,
		idleTTL:   idleTTL,
		lastSweep: time.Now(),
	}
}

func (l *tenantRateLimiter) limiter(tenantKey string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastSweep) > l.idleTTL {
		l.sweep(now)
	}

	bucket, found := l.limiters[tenantKey]
	if !found {
		bucket = &tenantBucket{Limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[tenantKey] = bucket
	}
	bucket.lastSeen = now
	return bucket.Limiter
}

// sweep drops buckets idle longer than the TTL. Caller holds the mutex.
func (l *tenantRateLimiter) sweep(now time.Time) {
	for key, bucket := range l.limiters {
		if now.Sub(bucket.lastSeen) > l.idleTTL {
			delete(l.limiters, key)
		}
	}
	l.lastSweep = now
}

// TenantRateLimit is a middleware factory that rate-limits requests per
// tenant, read from the {tenantKey} path segment. ratePerMinute tokens refill
// per minute up to burst.
func TenantRateLimit(ratePerMinute float64, burst int, logger *slog.Logger) func(http.Handler) http.Handler {
	limiters := newTenantRateLimiter(rate.Limit(ratePerMinute/60.0), burst, limiterIdleTTL)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantKey := r.PathValue("tenantKey")
			if tenantKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !limiters.limiter(tenantKey).Allow() {
				logger.Warn("training trigger rate limited", "tenant_key", tenantKey)
				http.Error(w, "Too many training requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
