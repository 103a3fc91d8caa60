package usecases

import (
	"context"
	"fmt"

	"checkoutgo/internal/application/checkout/fulfillment"
	"checkoutgo/internal/domain/checkout"
	"checkoutgo/internal/shared/logger"
)

// RetryFulfillmentUseCase re-runs fulfillment for checkouts that were paid
// but whose operation did not complete, typically after a crash or a
// downstream outage. The payment claim happened once; only the side effect
// is retried, so handlers should be idempotent on their own arguments.
type RetryFulfillmentUseCase struct {
	checkoutRepo   checkout.CheckoutRepository
	fulfillmentOps *fulfillment.Registry
	logger         logger.Interface
}

func NewRetryFulfillmentUseCase(
	checkoutRepo checkout.CheckoutRepository,
	fulfillmentOps *fulfillment.Registry,
	logger logger.Interface,
) *RetryFulfillmentUseCase {
	return &RetryFulfillmentUseCase{
		checkoutRepo:   checkoutRepo,
		fulfillmentOps: fulfillmentOps,
		logger:         logger,
	}
}

func (uc *RetryFulfillmentUseCase) Execute(ctx context.Context) (int, error) {
	pending, err := uc.checkoutRepo.GetPaidUnfulfilled(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load unfulfilled checkouts: %w", err)
	}

	count := 0
	for _, co := range pending {
		if err := uc.fulfillmentOps.Dispatch(ctx, co.FulfillmentOp(), co.FulfillmentArgs()); err != nil {
			uc.logger.Warnw("fulfillment retry failed",
				"reference", co.Reference(),
				"operation", co.FulfillmentOp(),
				"error", err,
			)
			continue
		}
		if err := co.MarkFulfilled(); err != nil {
			continue
		}
		if err := uc.checkoutRepo.Update(ctx, co); err != nil {
			uc.logger.Errorw("failed to persist fulfillment", "reference", co.Reference(), "error", err)
			continue
		}
		count++
	}

	if count > 0 {
		uc.logger.Infow("recovered pending fulfillments", "count", count)
	}
	return count, nil
}
