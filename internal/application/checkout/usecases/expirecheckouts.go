package usecases

import (
	"context"
	"fmt"

	"checkoutgo/internal/domain/checkout"
	"checkoutgo/internal/shared/logger"
)

// ExpireCheckoutsUseCase is run on a schedule to close out checkouts whose
// window passed without a confirmation. A late confirmation can still flip
// an expired checkout to paid.
type ExpireCheckoutsUseCase struct {
	checkoutRepo checkout.CheckoutRepository
	logger       logger.Interface
}

func NewExpireCheckoutsUseCase(checkoutRepo checkout.CheckoutRepository, logger logger.Interface) *ExpireCheckoutsUseCase {
	return &ExpireCheckoutsUseCase{
		checkoutRepo: checkoutRepo,
		logger:       logger,
	}
}

func (uc *ExpireCheckoutsUseCase) Execute(ctx context.Context) (int, error) {
	expired, err := uc.checkoutRepo.GetExpiredCheckouts(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load expired checkouts: %w", err)
	}

	count := 0
	for _, co := range expired {
		if err := co.MarkExpired(); err != nil {
			continue
		}
		if err := uc.checkoutRepo.Update(ctx, co); err != nil {
			uc.logger.Errorw("failed to expire checkout", "reference", co.Reference(), "error", err)
			continue
		}
		count++
	}

	if count > 0 {
		uc.logger.Infow("expired stale checkouts", "count", count)
	}
	return count, nil
}
