package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/user/assistor/internal/adapter/metrics"
)

// APIKeyRepository validates service API keys against PostgreSQL with a
// short-lived in-memory cache in front. Concurrent misses for the same key
// collapse into one query, so a cold cache under load costs one round trip
// per distinct key, not per request.
type APIKeyRepository struct {
	logger  *slog.Logger
	ttl     time.Duration
	metrics *metrics.Metrics

	lookup func(ctx context.Context, key string) (bool, error)
	group  singleflight.Group

	mu    sync.RWMutex
	cache map[string]keyCacheEntry
}

type keyCacheEntry struct {
	valid     bool
	expiresAt time.Time
}

// NewAPIKeyRepository creates a PostgreSQL-backed API key repository.
func NewAPIKeyRepository(db *sql.DB, logger *slog.Logger, cacheTTL time.Duration, m *metrics.Metrics) *APIKeyRepository {
	r := &APIKeyRepository{
		logger:  logger,
		ttl:     cacheTTL,
		metrics: m,
		cache:   make(map[string]keyCacheEntry),
	}
	r.lookup = func(ctx context.Context, key string) (bool, error) {
		// Active keys only; a NULL expiry means the key never expires.
		const query = `
			SELECT EXISTS(
				SELECT 1 FROM service_api_keys
				WHERE key = $1 AND is_active = true
				  AND (expires_at IS NULL OR expires_at > NOW())
			)`
		var valid bool
		if err := db.QueryRowContext(ctx, query, key).Scan(&valid); err != nil {
			return false, err
		}
		return valid, nil
	}
	return r
}

// IsValid reports whether key belongs to an active service API key. Both
// positive and negative answers are cached for the configured TTL; failures
// are not cached, so the next request retries the database.
func (r *APIKeyRepository) IsValid(ctx context.Context, key string) (bool, error) {
	if valid, ok := r.cached(key); ok {
		if r.metrics != nil {
			r.metrics.APIKeyCacheHits.Inc()
		}
		return valid, nil
	}
	if r.metrics != nil {
		r.metrics.APIKeyCacheMisses.Inc()
	}

	result, err, _ := r.group.Do(key, func() (interface{}, error) {
		valid, err := r.lookup(ctx, key)
		if err != nil {
			return false, err
		}
		r.store(key, valid)
		return valid, nil
	})
	if err != nil {
		r.logger.Error("failed to validate API key", "error", err)
		return false, err
	}
	return result.(bool), nil
}

func (r *APIKeyRepository) cached(key string) (valid, found bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return false, false
	}
	return entry.valid, true
}

func (r *APIKeyRepository) store(key string, valid bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[key] = keyCacheEntry{valid: valid, expiresAt: time.Now().Add(r.ttl)}
}
