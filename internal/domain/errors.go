package domain

import "errors"

var (
	// ErrTenantNotFound is returned by the tenant directory when no record
	// exists for the tenant. It is the only directory error the provisioning
	// service may interpret as "not yet provisioned".
	ErrTenantNotFound = errors.New("tenant record not found")

	// ErrDirectoryUnavailable means the tenant directory could not be read or
	// written. It must never be treated as "unprovisioned": doing so would
	// mint duplicate downstream resources during a directory outage.
	ErrDirectoryUnavailable = errors.New("tenant directory unavailable")

	// ErrProvisioningUnavailable means the provisioning backend errored or
	// returned a non-success status. Nothing has been persisted; the caller
	// may retry by reloading.
	ErrProvisioningUnavailable = errors.New("provisioning backend unavailable")

	// ErrPersistenceAfterProvision means the backend minted resources but the
	// directory upsert failed. The ids exist downstream and are held in the
	// reconciliation marker; a later attempt retries only the persistence
	// step and must not call the backend again.
	ErrPersistenceAfterProvision = errors.New("failed to persist provisioned ids")

	// ErrComputeFailed means the batch-compute function returned an error or
	// a non-success payload.
	ErrComputeFailed = errors.New("compute invocation failed")

	// ErrComputeTimeout means the batch-compute call exceeded its deadline.
	// The function may still run to completion downstream; the job is treated
	// as failed, not cancelled.
	ErrComputeTimeout = errors.New("compute invocation timed out")

	// ErrLockHeld means another request holds the tenant's provisioning lock.
	ErrLockHeld = errors.New("provisioning lock held by another request")

	// ErrLockUnavailable means the coordination store backing the provisioning
	// lock and reconciliation marker could not be reached. Distinct from
	// ErrDirectoryUnavailable so an outage points at the right collaborator.
	ErrLockUnavailable = errors.New("provisioning coordination store unavailable")
)
