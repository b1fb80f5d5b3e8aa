package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/assistor/internal/adapter/assistant"
	"github.com/user/assistor/internal/adapter/metrics"
	"github.com/user/assistor/internal/domain"
)

const lockPollInterval = 200 * time.Millisecond

// ProvisionService guarantees that exactly one {externalTenantId, assistantId}
// pair ever exists per tenant, and that a freshly provisioned assistant starts
// with locale-appropriate default instructions.
type ProvisionService struct {
	directory domain.TenantDirectory
	shops     domain.ShopInfoReader
	backend   domain.ProvisionerBackend
	assistant domain.AssistantConfigurator
	locker    domain.TenantLocker
	logger    *slog.Logger
	metrics   *metrics.Metrics
	lockTTL   time.Duration
	lockWait  time.Duration
}

// NewProvisionService creates the provisioning service. lockTTL bounds how
// long the per-tenant critical section may run; lockWait bounds how long a
// contending request waits for the holder to finish.
func NewProvisionService(
	directory domain.TenantDirectory,
	shops domain.ShopInfoReader,
	backend domain.ProvisionerBackend,
	configurator domain.AssistantConfigurator,
	locker domain.TenantLocker,
	logger *slog.Logger,
	m *metrics.Metrics,
	lockTTL, lockWait time.Duration,
) *ProvisionService {
	return &ProvisionService{
		directory: directory,
		shops:     shops,
		backend:   backend,
		assistant: configurator,
		locker:    locker,
		logger:    logger,
		metrics:   m,
		lockTTL:   lockTTL,
		lockWait:  lockWait,
	}
}

// EnsureProvisioned returns the tenant's record, provisioning it first if
// needed. A complete record is returned without any network calls beyond the
// directory read. At most one backend provisioning call is ever made per
// tenant: concurrent requests serialize on a per-tenant lock, and a
// persistence failure after a successful backend call is recovered from the
// reconciliation marker instead of calling the backend again.
func (s *ProvisionService) EnsureProvisioned(ctx context.Context, creds domain.TenantCredentials) (*domain.TenantRecord, error) {
	// Idempotency fast path: a complete record short-circuits everything.
	record, err := s.readDirectory(ctx, creds)
	if err != nil {
		return nil, err
	}
	if record.Provisioned() {
		s.count("fast_path")
		return record, nil
	}

	token, err := s.locker.Acquire(ctx, creds.TenantKey, s.lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			if s.metrics != nil {
				s.metrics.LockContention.Inc()
			}
			return s.awaitHolder(ctx, creds)
		}
		s.logger.Error("failed to acquire provisioning lock",
			"tenant_key", creds.TenantKey, "op", "ensure_provisioned", "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrLockUnavailable, err)
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), creds.TenantKey, token); err != nil {
			s.logger.Warn("failed to release provisioning lock",
				"tenant_key", creds.TenantKey, "op", "ensure_provisioned", "error", err)
		}
	}()

	return s.provisionLocked(ctx, creds)
}

// provisionLocked runs the critical section. The caller holds the tenant lock.
func (s *ProvisionService) provisionLocked(ctx context.Context, creds domain.TenantCredentials) (*domain.TenantRecord, error) {
	// Double-check under the lock: a concurrent request may have finished
	// while this one was acquiring.
	record, err := s.readDirectory(ctx, creds)
	if err != nil {
		return nil, err
	}
	if record.Provisioned() {
		s.count("fast_path")
		return record, nil
	}

	// A surviving marker means a previous attempt already minted ids but
	// failed to persist them. Reuse the ids; never call the backend twice.
	pending, err := s.locker.GetPendingProvision(ctx, creds.TenantKey)
	if err != nil {
		s.logger.Error("failed to read reconciliation marker",
			"tenant_key", creds.TenantKey, "op", "ensure_provisioned", "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrLockUnavailable, err)
	}
	reconciled := pending != nil

	if pending == nil {
		externalTenantID, assistantID, err := s.backend.Provision(ctx, creds.TenantKey, creds.AccessToken)
		if err != nil {
			s.count("backend_error")
			return nil, err
		}
		pending = &domain.TenantRecord{
			TenantKey:        creds.TenantKey,
			ExternalTenantID: externalTenantID,
			AssistantID:      assistantID,
		}
		if err := s.locker.PutPendingProvision(ctx, creds.TenantKey, *pending); err != nil {
			// The marker is the safety net for a persist failure below. Losing
			// it is loud but not fatal while the directory write still works.
			s.logger.Error("failed to store reconciliation marker; persist failure would require manual reconciliation",
				"tenant_key", creds.TenantKey, "op", "ensure_provisioned", "error", err)
		}
	}

	if err := s.directory.Set(ctx, creds, *pending); err != nil {
		s.count("persist_error")
		s.logger.Error("PersistenceAfterProvisionFailed: backend resources exist but directory write failed",
			"tenant_key", creds.TenantKey,
			"op", "ensure_provisioned",
			"external_tenant_id", pending.ExternalTenantID,
			"assistant_id", pending.AssistantID,
			"error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceAfterProvision, err)
	}

	if err := s.locker.ClearPendingProvision(ctx, creds.TenantKey); err != nil {
		s.logger.Warn("failed to clear reconciliation marker after successful persist",
			"tenant_key", creds.TenantKey, "op", "ensure_provisioned", "error", err)
	}

	if reconciled {
		s.count("reconciled")
		s.logger.Info("recovered previously minted ids from reconciliation marker",
			"tenant_key", creds.TenantKey, "op", "ensure_provisioned")
	} else {
		s.count("provisioned")
	}

	// Best effort: seeding default instructions never rolls back provisioning.
	s.seedAssistant(ctx, creds, pending.AssistantID)

	return pending, nil
}

// awaitHolder polls the directory while another request provisions the same
// tenant, returning the holder's result once it lands.
func (s *ProvisionService) awaitHolder(ctx context.Context, creds domain.TenantCredentials) (*domain.TenantRecord, error) {
	deadline := time.Now().Add(s.lockWait)
	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			record, err := s.readDirectory(ctx, creds)
			if err != nil {
				return nil, err
			}
			if record.Provisioned() {
				s.count("fast_path")
				return record, nil
			}
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("%w: timed out waiting for concurrent provisioning of %s",
					domain.ErrLockHeld, creds.TenantKey)
			}
		}
	}
}

// readDirectory fetches the tenant record, treating only ErrTenantNotFound as
// "not provisioned". An unreachable directory aborts: falling through to
// provisioning during an outage would mint duplicate downstream resources.
func (s *ProvisionService) readDirectory(ctx context.Context, creds domain.TenantCredentials) (*domain.TenantRecord, error) {
	record, err := s.directory.Get(ctx, creds)
	if err != nil {
		if errors.Is(err, domain.ErrTenantNotFound) {
			return &domain.TenantRecord{TenantKey: creds.TenantKey}, nil
		}
		s.count("directory_error")
		return nil, err
	}
	return record, nil
}

// seedAssistant writes the locale-appropriate default instructions and tools.
func (s *ProvisionService) seedAssistant(ctx context.Context, creds domain.TenantCredentials, assistantID string) {
	shop, err := s.shops.ShopInfo(ctx, creds)
	if err != nil {
		s.logger.Warn("failed to fetch shop descriptor; assistant keeps backend defaults",
			"tenant_key", creds.TenantKey, "op", "seed_assistant", "error", err)
		return
	}

	instructions, err := assistant.DefaultInstructions(shop)
	if err != nil {
		s.logger.Warn("failed to render default instructions",
			"tenant_key", creds.TenantKey, "op", "seed_assistant", "error", err)
		return
	}

	if err := s.assistant.Configure(ctx, assistantID, instructions); err != nil {
		s.logger.Warn("failed to seed assistant instructions",
			"tenant_key", creds.TenantKey, "op", "seed_assistant", "assistant_id", assistantID, "error", err)
	}
}

// Offboard tears down a tenant's downstream resources. Retriggering for an
// already-removed tenant succeeds.
func (s *ProvisionService) Offboard(ctx context.Context, tenantKey string) error {
	if err := s.backend.Deprovision(ctx, tenantKey); err != nil {
		s.logger.Error("offboarding failed", "tenant_key", tenantKey, "op", "offboard", "error", err)
		return err
	}
	if err := s.locker.ClearPendingProvision(ctx, tenantKey); err != nil {
		s.logger.Warn("failed to clear reconciliation marker during offboarding",
			"tenant_key", tenantKey, "op", "offboard", "error", err)
	}
	s.logger.Info("tenant offboarded", "tenant_key", tenantKey, "op", "offboard")
	return nil
}

func (s *ProvisionService) count(outcome string) {
	if s.metrics != nil {
		s.metrics.ProvisionTotal.WithLabelValues(outcome).Inc()
	}
}
