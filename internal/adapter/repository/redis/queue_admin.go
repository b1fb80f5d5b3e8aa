package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/assistor/internal/domain"
)

// QueueAdminRepository implements domain.QueueAdminRepository for the
// training stream and its dead-letter stream.
type QueueAdminRepository struct {
	client    *redis.Client
	logger    *slog.Logger
	stream    string
	dlqStream string
}

// NewQueueAdminRepository creates a read-only queue introspection repository.
func NewQueueAdminRepository(client *redis.Client, logger *slog.Logger, stream, dlqStream string) *QueueAdminRepository {
	return &QueueAdminRepository{
		client:    client,
		logger:    logger.With("component", "queue_admin"),
		stream:    stream,
		dlqStream: dlqStream,
	}
}

// GroupInfo retrieves information about all consumer groups on the training
// stream.
func (r *QueueAdminRepository) GroupInfo(ctx context.Context) ([]domain.ConsumerGroupInfo, error) {
	groups, err := r.client.XInfoGroups(ctx, r.stream).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get group info for stream %s: %w", r.stream, err)
	}

	result := make([]domain.ConsumerGroupInfo, len(groups))
	for i, g := range groups {
		result[i] = domain.ConsumerGroupInfo{
			Name:            g.Name,
			Consumers:       g.Consumers,
			Pending:         g.Pending,
			LastDeliveredID: g.LastDeliveredID,
		}
	}
	return result, nil
}

// PendingSummary retrieves a summary of unacknowledged deliveries for a group.
func (r *QueueAdminRepository) PendingSummary(ctx context.Context, group string) (*domain.PendingSummary, error) {
	pending, err := r.client.XPending(ctx, r.stream, group).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get pending summary for group %s: %w", group, err)
	}

	return &domain.PendingSummary{
		Total:          pending.Count,
		FirstMessageID: pending.Lower,
		LastMessageID:  pending.Higher,
		ConsumerTotals: pending.Consumers,
	}, nil
}

// DeadLetters returns the most recent entries in the dead-letter stream.
func (r *QueueAdminRepository) DeadLetters(ctx context.Context, count int64) ([]domain.DeadLetterEntry, error) {
	msgs, err := r.client.XRevRangeN(ctx, r.dlqStream, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read dead-letter stream: %w", err)
	}

	entries := make([]domain.DeadLetterEntry, 0, len(msgs))
	for _, msg := range msgs {
		entry, ok := r.decodeEntry(msg)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (r *QueueAdminRepository) decodeEntry(msg redis.XMessage) (domain.DeadLetterEntry, bool) {
	entry := domain.DeadLetterEntry{MessageID: msg.ID}

	payload, ok := msg.Values["payload"].(string)
	if !ok {
		r.logger.Warn("invalid dead-letter entry, skipping", "message_id", msg.ID)
		return domain.DeadLetterEntry{}, false
	}
	if err := json.Unmarshal([]byte(payload), &entry.Job); err != nil {
		r.logger.Warn("failed to unmarshal dead-letter job, skipping", "message_id", msg.ID, "error", err)
		return domain.DeadLetterEntry{}, false
	}

	if v, ok := msg.Values["original_msg_id"].(string); ok {
		entry.OriginalMessageID = v
	}
	if v, ok := msg.Values["cause"].(string); ok {
		entry.Cause = v
	}
	if v, ok := msg.Values["attempts"].(string); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			r.logger.Warn("invalid attempts field in dead-letter entry", "message_id", msg.ID, "value", v)
		} else {
			entry.Attempts = n
		}
	}
	if v, ok := msg.Values["failed_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			entry.FailedAt = t
		}
	}
	return entry, true
}
