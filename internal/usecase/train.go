package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/user/assistor/internal/adapter/metrics"
	"github.com/user/assistor/internal/domain"
)

// Trainer enqueues training jobs and processes them: one synchronous
// batch-compute invocation per job, acknowledged only on success, with an
// attempt budget and a dead-letter sink for jobs that exhaust it.
type Trainer struct {
	queue          domain.JobQueue
	compute        domain.ComputeInvoker
	runs           domain.JobRunRecorder
	logger         *slog.Logger
	metrics        *metrics.Metrics
	maxAttempts    int64
	computeTimeout time.Duration

	// inflight collapses concurrent jobs for the same tenant into a single
	// compute invocation within this process. The downstream effect is an
	// idempotent upsert keyed by product id, so the collapse only saves
	// compute; correctness does not depend on it.
	inflight singleflight.Group
}

// NewTrainer creates the training use case.
func NewTrainer(
	queue domain.JobQueue,
	compute domain.ComputeInvoker,
	runs domain.JobRunRecorder,
	logger *slog.Logger,
	m *metrics.Metrics,
	maxAttempts int64,
	computeTimeout time.Duration,
) *Trainer {
	return &Trainer{
		queue:          queue,
		compute:        compute,
		runs:           runs,
		logger:         logger,
		metrics:        m,
		maxAttempts:    maxAttempts,
		computeTimeout: computeTimeout,
	}
}

// EnqueueTraining appends one training job for the tenant and returns its id.
// Fire and forget: it does not deduplicate, and rapid triggers produce
// multiple jobs that later converge at the vector store.
func (t *Trainer) EnqueueTraining(ctx context.Context, creds domain.TenantCredentials) (string, error) {
	job := domain.TrainingJob{
		TenantKey:  creds.TenantKey,
		TokenRef:   creds.AccessToken,
		EnqueuedAt: time.Now().UTC(),
	}

	jobID, err := t.queue.Enqueue(ctx, job)
	if err != nil {
		t.logger.Error("failed to enqueue training job",
			"tenant_key", creds.TenantKey, "op", "enqueue_training", "error", err)
		return "", err
	}

	if t.metrics != nil {
		t.metrics.JobsEnqueuedTotal.Inc()
	}
	t.logger.Info("training job enqueued", "tenant_key", creds.TenantKey, "job_id", jobID)
	return jobID, nil
}

// ProcessBatch dequeues up to count new jobs and processes them concurrently.
// Running the batch in parallel is what lets duplicate same-tenant deliveries
// collapse into one compute invocation.
func (t *Trainer) ProcessBatch(ctx context.Context, group, consumer string, count int) (int, error) {
	jobs, err := t.queue.Dequeue(ctx, group, consumer, count)
	if err != nil {
		t.logger.Error("failed to dequeue training jobs", "op", "process_batch", "error", err)
		return 0, err
	}

	t.processAll(ctx, group, jobs)
	return len(jobs), nil
}

// ReclaimStale takes over deliveries abandoned by crashed workers and
// processes them with their accumulated attempt counts.
func (t *Trainer) ReclaimStale(ctx context.Context, group, consumer string, minIdle time.Duration, count int) (int, error) {
	jobs, err := t.queue.Claim(ctx, group, consumer, minIdle, count)
	if err != nil {
		t.logger.Error("failed to claim stale training jobs", "op", "reclaim_stale", "error", err)
		return 0, err
	}

	t.processAll(ctx, group, jobs)
	return len(jobs), nil
}

func (t *Trainer) processAll(ctx context.Context, group string, jobs []domain.TrainingJob) {
	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(job domain.TrainingJob) {
			defer wg.Done()
			t.ProcessJob(ctx, group, job)
		}(job)
	}
	wg.Wait()
}

// ProcessJob runs one delivery to a terminal decision: acknowledged on
// success, left pending for redelivery on failure, or dead-lettered once the
// attempt budget is spent.
func (t *Trainer) ProcessJob(ctx context.Context, group string, job domain.TrainingJob) {
	start := time.Now()
	_, err, shared := t.inflight.Do(job.TenantKey, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, t.computeTimeout)
		defer cancel()
		return nil, t.compute.CreateEmbeddings(callCtx, job.TokenRef, job.TenantKey)
	})

	if t.metrics != nil {
		t.metrics.ComputeDuration.Observe(time.Since(start).Seconds())
	}

	if err == nil {
		if ackErr := t.queue.Ack(ctx, group, job.StreamMessageID); ackErr != nil {
			// The compute ran; redelivery will rerun it, and the vector
			// store's upsert-by-id keeps the rerun convergent.
			t.logger.Error("failed to acknowledge completed job; it will be redelivered",
				"tenant_key", job.TenantKey, "job_id", job.ID, "op", "process_job", "error", ackErr)
			return
		}
		t.recordRun(ctx, job, domain.JobRunCompleted, "")
		t.countJob(domain.JobRunCompleted)
		t.logger.Info("training job completed",
			"tenant_key", job.TenantKey, "job_id", job.ID, "attempt", job.Attempts, "shared_run", shared)
		return
	}

	t.logger.Error("training job failed",
		"tenant_key", job.TenantKey, "job_id", job.ID, "attempt", job.Attempts, "op", "process_job", "error", err)

	if job.Attempts >= t.maxAttempts {
		t.deadLetter(ctx, group, job, err)
		return
	}

	// Not acknowledged: the queue's retry policy redelivers the job.
	t.recordRun(ctx, job, domain.JobRunFailed, err.Error())
	t.countJob(domain.JobRunFailed)
}

func (t *Trainer) deadLetter(ctx context.Context, group string, job domain.TrainingJob, cause error) {
	if err := t.queue.MoveToDeadLetter(ctx, job, cause.Error()); err != nil {
		// Leave the delivery pending; the next reclaim retries the move.
		t.logger.Error("failed to dead-letter exhausted job",
			"tenant_key", job.TenantKey, "job_id", job.ID, "op", "process_job", "error", err)
		return
	}
	if err := t.queue.Ack(ctx, group, job.StreamMessageID); err != nil {
		t.logger.Error("failed to acknowledge dead-lettered job",
			"tenant_key", job.TenantKey, "job_id", job.ID, "op", "process_job", "error", err)
	}
	t.recordRun(ctx, job, domain.JobRunDeadLettered, cause.Error())
	t.countJob(domain.JobRunDeadLettered)
	t.logger.Warn("training job dead-lettered after exhausting retries",
		"tenant_key", job.TenantKey, "job_id", job.ID, "attempts", job.Attempts)
}

func (t *Trainer) recordRun(ctx context.Context, job domain.TrainingJob, status domain.JobRunStatus, errMsg string) {
	if t.runs == nil {
		return
	}
	run := domain.JobRun{
		JobID:      job.ID,
		TenantKey:  job.TenantKey,
		Status:     status,
		Attempt:    job.Attempts,
		Error:      errMsg,
		FinishedAt: time.Now().UTC(),
	}
	if err := t.runs.RecordRun(ctx, run); err != nil {
		t.logger.Warn("failed to record job run",
			"tenant_key", job.TenantKey, "job_id", job.ID, "status", status, "error", err)
	}
}

func (t *Trainer) countJob(status domain.JobRunStatus) {
	if t.metrics != nil {
		t.metrics.JobsTotal.WithLabelValues(string(status)).Inc()
	}
}
