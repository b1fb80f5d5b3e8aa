package domain

import (
	"context"
	"time"
)

// TenantDirectory stores per-tenant provisioning metadata in the platform's
// per-installation metadata store.
type TenantDirectory interface {
	// Get returns the tenant's record, ErrTenantNotFound when none exists, or
	// ErrDirectoryUnavailable when the store cannot be reached.
	Get(ctx context.Context, creds TenantCredentials) (*TenantRecord, error)

	// Set upserts the non-empty fields of record only; fields not listed are
	// never overwritten. A write failure is surfaced to the caller.
	Set(ctx context.Context, creds TenantCredentials, record TenantRecord) error
}

// ShopInfoReader fetches the storefront metadata used to seed the assistant's
// default instructions.
type ShopInfoReader interface {
	ShopInfo(ctx context.Context, creds TenantCredentials) (*ShopDescriptor, error)
}

// ProvisionerBackend is the external backend that mints the downstream
// resources for a tenant. Provision is NOT idempotent downstream; callers
// must guarantee at most one call per tenant ever.
type ProvisionerBackend interface {
	Provision(ctx context.Context, tenantKey, accessToken string) (externalTenantID, assistantID string, err error)

	// Deprovision tears down a tenant's downstream resources. It is
	// idempotent: deprovisioning an unknown tenant succeeds.
	Deprovision(ctx context.Context, tenantKey string) error
}

// AssistantConfigurator reads and updates an assistant's instructions and
// tool definitions.
type AssistantConfigurator interface {
	Instructions(ctx context.Context, assistantID string) (string, error)
	Configure(ctx context.Context, assistantID, instructions string) error
}

// ComputeInvoker invokes the external batch-compute function that embeds a
// tenant's catalog into its vector namespace. The call is synchronous and
// bounded by the context deadline.
type ComputeInvoker interface {
	CreateEmbeddings(ctx context.Context, tokenRef, tenantKey string) error
}

// VectorStatsReader is a read-only view of the vector store.
type VectorStatsReader interface {
	// NamespaceCount returns the number of vectors in the tenant's namespace,
	// 0 (not an error) when the namespace does not exist yet.
	NamespaceCount(ctx context.Context, namespace string) (int64, error)
}

// JobQueue is a durable, at-least-once training job queue. Delivery order is
// not guaranteed, within or across tenants.
type JobQueue interface {
	// Enqueue appends a job and returns its assigned id. It does not
	// deduplicate; rapid triggers produce multiple jobs.
	Enqueue(ctx context.Context, job TrainingJob) (string, error)

	// Dequeue reads up to count new jobs for the consumer group.
	Dequeue(ctx context.Context, group, consumer string, count int) ([]TrainingJob, error)

	// Claim takes over jobs whose delivery has been pending longer than
	// minIdle (e.g. after a worker crash), with their true delivery counts.
	Claim(ctx context.Context, group, consumer string, minIdle time.Duration, count int) ([]TrainingJob, error)

	// Ack marks deliveries as successfully processed.
	Ack(ctx context.Context, group string, messageIDs ...string) error

	// MoveToDeadLetter copies an exhausted job to the dead-letter stream for
	// manual inspection. The caller acknowledges the original delivery
	// afterwards.
	MoveToDeadLetter(ctx context.Context, job TrainingJob, cause string) error
}

// JobRunRecorder persists job run outcomes for operator inspection.
type JobRunRecorder interface {
	RecordRun(ctx context.Context, run JobRun) error
	ListRuns(ctx context.Context, tenantKey string, limit int) ([]JobRun, error)
}

// TenantLocker provides the per-tenant mutual exclusion around the
// provisioning critical section, plus the reconciliation marker that guards
// against double backend provisioning after a persistence failure.
type TenantLocker interface {
	// Acquire takes the tenant's lock, returning a release token, or
	// ErrLockHeld when another holder exists.
	Acquire(ctx context.Context, tenantKey string, ttl time.Duration) (token string, err error)
	Release(ctx context.Context, tenantKey, token string) error

	// PutPendingProvision records ids minted by the backend before they are
	// persisted to the directory.
	PutPendingProvision(ctx context.Context, tenantKey string, record TenantRecord) error
	// GetPendingProvision returns the marker, or (nil, nil) when absent.
	GetPendingProvision(ctx context.Context, tenantKey string) (*TenantRecord, error)
	ClearPendingProvision(ctx context.Context, tenantKey string) error
}

// APIKeyRepository validates service API keys for the HTTP surface.
type APIKeyRepository interface {
	IsValid(ctx context.Context, key string) (bool, error)
}

// QueueAdminRepository exposes read-only queue introspection for operators.
type QueueAdminRepository interface {
	GroupInfo(ctx context.Context) ([]ConsumerGroupInfo, error)
	PendingSummary(ctx context.Context, group string) (*PendingSummary, error)
	DeadLetters(ctx context.Context, count int64) ([]DeadLetterEntry, error)
}
