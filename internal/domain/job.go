package domain

import "time"

// TrainingJob is one request to (re)compute a tenant's catalog embeddings.
// Jobs have no identity beyond the id assigned at enqueue time; duplicate
// jobs for the same tenant are legal and converge at the vector store.
type TrainingJob struct {
	ID         string    `json:"job_id"`
	TenantKey  string    `json:"tenant_key"`
	TokenRef   string    `json:"token_ref"`
	EnqueuedAt time.Time `json:"enqueued_at"`

	// StreamMessageID is the queue's delivery handle; set on dequeue.
	StreamMessageID string `json:"-"`
	// Attempts is how many times this job has been delivered, including the
	// current delivery.
	Attempts int64 `json:"-"`
}

// JobRunStatus is the terminal outcome of one processing attempt.
type JobRunStatus string

const (
	JobRunCompleted    JobRunStatus = "completed"
	JobRunFailed       JobRunStatus = "failed"
	JobRunDeadLettered JobRunStatus = "dead_lettered"
)

// JobRun records the outcome of a single processing attempt for inspection.
type JobRun struct {
	JobID      string       `json:"job_id"`
	TenantKey  string       `json:"tenant_key"`
	Status     JobRunStatus `json:"status"`
	Attempt    int64        `json:"attempt"`
	Error      string       `json:"error,omitempty"`
	FinishedAt time.Time    `json:"finished_at"`
}

// ConsumerGroupInfo describes one consumer group on the training stream.
type ConsumerGroupInfo struct {
	Name            string `json:"name"`
	Consumers       int64  `json:"consumers"`
	Pending         int64  `json:"pending"`
	LastDeliveredID string `json:"last_delivered_id"`
}

// PendingSummary summarizes unacknowledged deliveries for a consumer group.
type PendingSummary struct {
	Total          int64            `json:"total"`
	FirstMessageID string           `json:"first_message_id"`
	LastMessageID  string           `json:"last_message_id"`
	ConsumerTotals map[string]int64 `json:"consumer_totals"`
}

// DeadLetterEntry is one job held in the dead-letter stream for manual
// inspection.
type DeadLetterEntry struct {
	MessageID         string      `json:"message_id"`
	Job               TrainingJob `json:"job"`
	OriginalMessageID string      `json:"original_message_id"`
	Attempts          int64       `json:"attempts"`
	Cause             string      `json:"cause"`
	FailedAt          time.Time   `json:"failed_at"`
}
