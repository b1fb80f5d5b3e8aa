package usecase

import (
	"context"
	"log/slog"

	"github.com/user/assistor/internal/domain"
)

// EmbeddingStats reads the derived per-tenant vector counts. Pure read, not
// coupled to job completion, safe to poll.
type EmbeddingStats struct {
	reader domain.VectorStatsReader
	logger *slog.Logger
}

// NewEmbeddingStats creates the embedding count reader.
func NewEmbeddingStats(reader domain.VectorStatsReader, logger *slog.Logger) *EmbeddingStats {
	return &EmbeddingStats{reader: reader, logger: logger}
}

// Count returns the number of vectors in the tenant's namespace; a tenant
// that was never trained yields 0.
func (s *EmbeddingStats) Count(ctx context.Context, tenantKey string) (int64, error) {
	count, err := s.reader.NamespaceCount(ctx, tenantKey)
	if err != nil {
		s.logger.Error("failed to read embedding count",
			"tenant_key", tenantKey, "op", "embedding_count", "error", err)
		return 0, err
	}
	return count, nil
}
