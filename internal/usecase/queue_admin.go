package usecase

import (
	"context"

	"github.com/user/assistor/internal/domain"
)

// QueueAdminUseCase provides read-only queue introspection for operators.
type QueueAdminUseCase struct {
	repo domain.QueueAdminRepository
}

// NewQueueAdminUseCase creates a new QueueAdminUseCase.
func NewQueueAdminUseCase(repo domain.QueueAdminRepository) *QueueAdminUseCase {
	return &QueueAdminUseCase{repo: repo}
}

func (uc *QueueAdminUseCase) GroupInfo(ctx context.Context) ([]domain.ConsumerGroupInfo, error) {
	return uc.repo.GroupInfo(ctx)
}

func (uc *QueueAdminUseCase) PendingSummary(ctx context.Context, group string) (*domain.PendingSummary, error) {
	return uc.repo.PendingSummary(ctx, group)
}

func (uc *QueueAdminUseCase) DeadLetters(ctx context.Context, count int64) ([]domain.DeadLetterEntry, error) {
	if count <= 0 {
		count = 50 // Default count
	}
	return uc.repo.DeadLetters(ctx, count)
}
