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

// JobQueue implements domain.JobQueue on Redis Streams. Delivery is
// at-least-once: a job stays in the consumer group's pending list until it is
// acknowledged, and stale deliveries are recovered via Claim.
type JobQueue struct {
	client    *redis.Client
	logger    *slog.Logger
	stream    string
	dlqStream string
}

// NewJobQueue creates the queue and ensures the consumer group exists.
func NewJobQueue(client *redis.Client, logger *slog.Logger, stream, dlqStream, group string) (*JobQueue, error) {
	q := &JobQueue{
		client:    client,
		logger:    logger.With("component", "job_queue"),
		stream:    stream,
		dlqStream: dlqStream,
	}

	err := client.XGroupCreateMkStream(context.Background(), stream, group, "0").Err()
	if err != nil && !isBusyGroupError(err) {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return q, nil
}

// Enqueue appends a job to the training stream and returns its assigned id.
func (q *JobQueue) Enqueue(ctx context.Context, job domain.TrainingJob) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal training job: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{"payload": payload},
	}
	if err := q.client.XAdd(ctx, args).Err(); err != nil {
		return "", fmt.Errorf("failed to XADD training job: %w", err)
	}
	return job.ID, nil
}

// Dequeue reads up to count new jobs for the consumer group. New deliveries
// carry attempt 1.
func (q *JobQueue) Dequeue(ctx context.Context, group, consumer string, count int) ([]domain.TrainingJob, error) {
	args := &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{q.stream, ">"},
		Count:    int64(count),
		Block:    2 * time.Second,
	}

	streams, err := q.client.XReadGroup(ctx, args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to XREADGROUP from training stream: %w", err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	jobs := make([]domain.TrainingJob, 0, len(streams[0].Messages))
	for _, msg := range streams[0].Messages {
		job, ok := q.decodeMessage(msg)
		if !ok {
			continue
		}
		job.Attempts = 1
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Claim takes over deliveries that have been pending longer than minIdle,
// e.g. after a worker crash, and annotates them with their true delivery
// counts so the attempt budget survives worker restarts.
func (q *JobQueue) Claim(ctx context.Context, group, consumer string, minIdle time.Duration, count int) ([]domain.TrainingJob, error) {
	args := &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    int64(count),
	}

	msgs, _, err := q.client.XAutoClaim(ctx, args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to XAUTOCLAIM stale deliveries: %w", err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	attempts, err := q.deliveryCounts(ctx, group, msgs)
	if err != nil {
		q.logger.Warn("failed to read delivery counts for claimed jobs", "error", err)
	}

	jobs := make([]domain.TrainingJob, 0, len(msgs))
	for _, msg := range msgs {
		job, ok := q.decodeMessage(msg)
		if !ok {
			continue
		}
		if n, found := attempts[msg.ID]; found {
			job.Attempts = n
		} else {
			job.Attempts = 1
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (q *JobQueue) deliveryCounts(ctx context.Context, group string, msgs []redis.XMessage) (map[string]int64, error) {
	counts := make(map[string]int64, len(msgs))
	if len(msgs) == 0 {
		return counts, nil
	}

	details, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.stream,
		Group:  group,
		Start:  msgs[0].ID,
		End:    msgs[len(msgs)-1].ID,
		Count:  int64(len(msgs)),
	}).Result()
	if err != nil {
		return counts, fmt.Errorf("failed to XPENDING claimed range: %w", err)
	}

	for _, d := range details {
		counts[d.ID] = d.RetryCount
	}
	return counts, nil
}

// Ack marks deliveries as successfully processed.
func (q *JobQueue) Ack(ctx context.Context, group string, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	if err := q.client.XAck(ctx, q.stream, group, messageIDs...).Err(); err != nil {
		return fmt.Errorf("failed to XACK training jobs: %w", err)
	}
	return nil
}

// MoveToDeadLetter copies an exhausted job to the dead-letter stream. The
// caller acknowledges the original delivery afterwards.
func (q *JobQueue) MoveToDeadLetter(ctx context.Context, job domain.TrainingJob, cause string) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job for dead-letter stream: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: q.dlqStream,
		Values: map[string]interface{}{
			"payload":         payload,
			"original_msg_id": job.StreamMessageID,
			"attempts":        job.Attempts,
			"cause":           cause,
			"failed_at":       time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := q.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to XADD to dead-letter stream: %w", err)
	}

	q.logger.Warn("moved job to dead-letter stream",
		"job_id", job.ID, "tenant_key", job.TenantKey, "attempts", job.Attempts, "cause", cause)
	return nil
}

func (q *JobQueue) decodeMessage(msg redis.XMessage) (domain.TrainingJob, bool) {
	payload, ok := msg.Values["payload"].(string)
	if !ok {
		q.logger.Warn("invalid message format in training stream, skipping", "message_id", msg.ID)
		return domain.TrainingJob{}, false
	}

	var job domain.TrainingJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		q.logger.Warn("failed to unmarshal training job from stream, skipping", "message_id", msg.ID, "error", err)
		return domain.TrainingJob{}, false
	}
	job.StreamMessageID = msg.ID
	return job, true
}

func isBusyGroupError(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}
