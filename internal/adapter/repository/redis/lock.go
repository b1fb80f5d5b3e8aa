package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/user/assistor/internal/domain"
)

// pendingProvisionTTL keeps a reconciliation marker around long enough for an
// operator to reconcile by hand if automatic recovery never runs.
const pendingProvisionTTL = 7 * 24 * time.Hour

// releaseScript deletes the lock only when the caller still holds it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// TenantLock implements domain.TenantLocker on Redis: a token-guarded
// SET NX PX lock per tenant, plus the reconciliation marker holding ids that
// were minted by the backend but not yet persisted to the directory.
type TenantLock struct {
	client *redis.Client
	logger *slog.Logger
}

// NewTenantLock creates a Redis-backed tenant locker.
func NewTenantLock(client *redis.Client, logger *slog.Logger) *TenantLock {
	return &TenantLock{
		client: client,
		logger: logger.With("component", "tenant_lock"),
	}
}

// Acquire takes the tenant's provisioning lock for at most ttl.
func (l *TenantLock) Acquire(ctx context.Context, tenantKey string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockKey(tenantKey), token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("failed to acquire provisioning lock: %w", err)
	}
	if !ok {
		return "", domain.ErrLockHeld
	}
	return token, nil
}

// Release frees the lock if the token still matches. Releasing an expired or
// stolen lock is a no-op.
func (l *TenantLock) Release(ctx context.Context, tenantKey, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{lockKey(tenantKey)}, token).Err(); err != nil {
		return fmt.Errorf("failed to release provisioning lock: %w", err)
	}
	return nil
}

// PutPendingProvision records ids minted by the backend before the directory
// upsert. If the upsert fails, this marker is what prevents a second backend
// provisioning call on retry.
func (l *TenantLock) PutPendingProvision(ctx context.Context, tenantKey string, record domain.TenantRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal pending provision record: %w", err)
	}
	if err := l.client.Set(ctx, pendingKey(tenantKey), payload, pendingProvisionTTL).Err(); err != nil {
		return fmt.Errorf("failed to store pending provision marker: %w", err)
	}
	return nil
}

// GetPendingProvision returns the reconciliation marker, or (nil, nil) when
// no marker exists.
func (l *TenantLock) GetPendingProvision(ctx context.Context, tenantKey string) (*domain.TenantRecord, error) {
	payload, err := l.client.Get(ctx, pendingKey(tenantKey)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read pending provision marker: %w", err)
	}

	var record domain.TenantRecord
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending provision marker: %w", err)
	}
	return &record, nil
}

// ClearPendingProvision removes the reconciliation marker after the directory
// upsert succeeded.
func (l *TenantLock) ClearPendingProvision(ctx context.Context, tenantKey string) error {
	if err := l.client.Del(ctx, pendingKey(tenantKey)).Err(); err != nil {
		return fmt.Errorf("failed to clear pending provision marker: %w", err)
	}
	return nil
}

func lockKey(tenantKey string) string {
	return "provision:lock:" + tenantKey
}

func pendingKey(tenantKey string) string {
	return "provision:pending:" + tenantKey
}
