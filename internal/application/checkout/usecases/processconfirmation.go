package usecases

import (
	"context"
	"fmt"
	"time"

	"checkoutgo/internal/application/checkout/fulfillment"
	"checkoutgo/internal/application/checkout/gateway"
	"checkoutgo/internal/domain/checkout"
	"checkoutgo/internal/shared/goroutine"
	"checkoutgo/internal/shared/logger"
)

// ReceiptNotifier sends a payment receipt to the customer after a
// successful confirmation.
type ReceiptNotifier interface {
	SendReceipt(ctx context.Context, cmd ReceiptCommand) error
}

type ReceiptCommand struct {
	Reference string
	Email     string
	Amount    string
	Provider  string
	PaidAt    time.Time
}

// ProcessConfirmationUseCase applies a normalized provider confirmation to
// the ledger. Both the webhook path and the return-verification path funnel
// through here, so the exactly-once claim has a single home.
type ProcessConfirmationUseCase struct {
	checkoutRepo    checkout.CheckoutRepository
	fulfillmentOps  *fulfillment.Registry
	receiptNotifier ReceiptNotifier // Optional
	logger          logger.Interface
}

func NewProcessConfirmationUseCase(
	checkoutRepo checkout.CheckoutRepository,
	fulfillmentOps *fulfillment.Registry,
	logger logger.Interface,
) *ProcessConfirmationUseCase {
	return &ProcessConfirmationUseCase{
		checkoutRepo:   checkoutRepo,
		fulfillmentOps: fulfillmentOps,
		logger:         logger,
	}
}

// SetReceiptNotifier sets the receipt notifier (optional dependency injection)
func (uc *ProcessConfirmationUseCase) SetReceiptNotifier(notifier ReceiptNotifier) {
	uc.receiptNotifier = notifier
}

func (uc *ProcessConfirmationUseCase) Execute(ctx context.Context, co *checkout.Checkout, conf *gateway.Confirmation) error {
	switch conf.Event {
	case gateway.EventPaymentSucceeded:
		return uc.handleSuccess(ctx, co, conf)
	case gateway.EventPaymentFailed:
		return uc.handleFailure(ctx, co, conf)
	case gateway.EventSubscriptionCancelled:
		return uc.handleCancellation(ctx, co)
	case gateway.EventIgnored:
		return nil
	default:
		uc.logger.Warnw("unhandled confirmation event", "reference", co.Reference(), "event", string(conf.Event))
		return nil
	}
}

func (uc *ProcessConfirmationUseCase) handleSuccess(ctx context.Context, co *checkout.Checkout, conf *gateway.Confirmation) error {
	if conf.Amount > 0 {
		if err := co.ValidateConfirmationAmount(conf.Amount, conf.Currency); err != nil {
			uc.logger.Errorw("confirmation amount mismatch",
				"reference", co.Reference(),
				"expected", co.Amount().MinorUnits(),
				"got", conf.Amount,
				"error", err,
			)
			return fmt.Errorf("confirmation rejected: %w", err)
		}
	}

	var subscriptionID *string
	if conf.SubscriptionID != "" {
		subscriptionID = &conf.SubscriptionID
	}

	claimed, err := uc.checkoutRepo.ClaimPaid(ctx, co.Reference(), subscriptionID)
	if err != nil {
		return fmt.Errorf("failed to claim payment: %w", err)
	}
	if !claimed {
		// A concurrent confirmation won the claim. Fulfillment already ran
		// or is running there, so this delivery only needs an ack.
		uc.logger.Infow("payment already processed", "reference", co.Reference())
		return nil
	}

	if err := co.MarkPaid(conf.SubscriptionID); err != nil {
		return err
	}

	uc.logger.Infow("payment confirmed",
		"reference", co.Reference(),
		"provider", co.Provider().String(),
		"amount", co.Amount().String(),
	)

	if err := uc.fulfillmentOps.Dispatch(ctx, co.FulfillmentOp(), co.FulfillmentArgs()); err != nil {
		// The claim stands; fulfilledAt stays unset so the scheduler
		// retries the operation without touching the payment state.
		uc.logger.Errorw("fulfillment failed, will retry",
			"reference", co.Reference(),
			"operation", co.FulfillmentOp(),
			"error", err,
		)
		if updateErr := uc.checkoutRepo.Update(ctx, co); updateErr != nil {
			uc.logger.Errorw("failed to persist paid state", "reference", co.Reference(), "error", updateErr)
		}
		return nil
	}

	if err := co.MarkFulfilled(); err != nil {
		return err
	}
	if err := uc.checkoutRepo.Update(ctx, co); err != nil {
		uc.logger.Errorw("failed to persist fulfillment", "reference", co.Reference(), "error", err)
		return fmt.Errorf("failed to update checkout: %w", err)
	}

	uc.sendReceipt(co)
	return nil
}

func (uc *ProcessConfirmationUseCase) handleFailure(ctx context.Context, co *checkout.Checkout, conf *gateway.Confirmation) error {
	reason := "payment failed"
	if v, ok := conf.Raw["failure_reason"].(string); ok && v != "" {
		reason = v
	}
	if err := co.MarkFailed(reason); err != nil {
		// Paid state is never demoted by a late failure event.
		uc.logger.Warnw("ignoring failure event", "reference", co.Reference(), "error", err)
		return nil
	}
	return uc.checkoutRepo.Update(ctx, co)
}

func (uc *ProcessConfirmationUseCase) handleCancellation(ctx context.Context, co *checkout.Checkout) error {
	if err := co.MarkCancelled(); err != nil {
		uc.logger.Warnw("ignoring cancellation event", "reference", co.Reference(), "error", err)
		return nil
	}
	uc.logger.Infow("subscription cancelled by provider", "reference", co.Reference())
	return uc.checkoutRepo.Update(ctx, co)
}

func (uc *ProcessConfirmationUseCase) sendReceipt(co *checkout.Checkout) {
	if uc.receiptNotifier == nil {
		return
	}

	cmd := ReceiptCommand{
		Reference: co.Reference(),
		Email:     co.Email(),
		Amount:    co.Amount().String(),
		Provider:  co.Provider().String(),
	}
	if co.PaidAt() != nil {
		cmd.PaidAt = *co.PaidAt()
	}

	goroutine.SafeGo(uc.logger, "send-receipt", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := uc.receiptNotifier.SendReceipt(ctx, cmd); err != nil {
			uc.logger.Warnw("failed to send receipt", "reference", cmd.Reference, "error", err)
		}
	})
}
