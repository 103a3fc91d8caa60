package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"checkoutgo/internal/domain/checkout"
	vo "checkoutgo/internal/domain/checkout/valueobjects"
	"checkoutgo/internal/infrastructure/persistence/mappers"
	"checkoutgo/internal/infrastructure/persistence/models"
	"checkoutgo/internal/shared/biztime"
	"checkoutgo/internal/shared/db"
)

type CheckoutRepository struct {
	db *gorm.DB
}

func NewCheckoutRepository(db *gorm.DB) *CheckoutRepository {
	return &CheckoutRepository{db: db}
}

func (r *CheckoutRepository) Create(ctx context.Context, co *checkout.Checkout) error {
	model := mappers.CheckoutToModel(co)

	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create checkout: %w", err)
	}

	// Write back the auto-generated ID to the domain object
	co.SetID(model.ID)

	return nil
}

func (r *CheckoutRepository) Update(ctx context.Context, co *checkout.Checkout) error {
	model := mappers.CheckoutToModel(co)

	result := db.GetTxFromContext(ctx, r.db).
		Model(&models.CheckoutModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]interface{}{
			"status":                   model.Status,
			"paid":                     model.Paid,
			"paid_at":                  model.PaidAt,
			"fulfilled_at":             model.FulfilledAt,
			"provider_session_id":      model.ProviderSessionID,
			"provider_subscription_id": model.ProviderSubscriptionID,
			"meta":                     model.Meta,
			"version":                  model.Version,
			"updated_at":               model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update checkout: %w", result.Error)
	}

	// Note: RowsAffected may be 0 when updated values are identical to existing values.

	return nil
}

func (r *CheckoutRepository) GetByID(ctx context.Context, id uint) (*checkout.Checkout, error) {
	var model models.CheckoutModel

	if err := db.GetTxFromContext(ctx, r.db).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, checkout.ErrCheckoutNotFound
		}
		return nil, fmt.Errorf("failed to get checkout: %w", err)
	}

	return mappers.CheckoutToDomain(&model)
}

func (r *CheckoutRepository) GetByReference(ctx context.Context, reference string) (*checkout.Checkout, error) {
	var model models.CheckoutModel

	if err := db.GetTxFromContext(ctx, r.db).
		Where("reference = ?", reference).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, checkout.ErrCheckoutNotFound
		}
		return nil, fmt.Errorf("failed to get checkout: %w", err)
	}

	return mappers.CheckoutToDomain(&model)
}

func (r *CheckoutRepository) GetByProviderSessionID(ctx context.Context, sessionID string) (*checkout.Checkout, error) {
	var model models.CheckoutModel

	if err := db.GetTxFromContext(ctx, r.db).
		Where("provider_session_id = ?", sessionID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, checkout.ErrCheckoutNotFound
		}
		return nil, fmt.Errorf("failed to get checkout: %w", err)
	}

	return mappers.CheckoutToDomain(&model)
}

func (r *CheckoutRepository) GetByProviderSubscriptionID(ctx context.Context, subscriptionID string) (*checkout.Checkout, error) {
	var model models.CheckoutModel

	if err := db.GetTxFromContext(ctx, r.db).
		Where("provider_subscription_id = ?", subscriptionID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, checkout.ErrCheckoutNotFound
		}
		return nil, fmt.Errorf("failed to get checkout: %w", err)
	}

	return mappers.CheckoutToDomain(&model)
}

// ClaimPaid flips the paid flag with a single conditional update. The WHERE
// clause guarantees exactly one winner per reference no matter how many
// confirmations race, including across processes.
func (r *CheckoutRepository) ClaimPaid(ctx context.Context, reference string, providerSubscriptionID *string) (bool, error) {
	now := biztime.NowUTC()
	updates := map[string]interface{}{
		"paid":       true,
		"status":     vo.CheckoutStatusPaid.String(),
		"paid_at":    now,
		"updated_at": now,
	}
	if providerSubscriptionID != nil {
		updates["provider_subscription_id"] = *providerSubscriptionID
	}

	result := db.GetTxFromContext(ctx, r.db).
		Model(&models.CheckoutModel{}).
		Where("reference = ? AND paid = ?", reference, false).
		Updates(updates)

	if result.Error != nil {
		return false, fmt.Errorf("failed to claim payment: %w", result.Error)
	}

	return result.RowsAffected == 1, nil
}

func (r *CheckoutRepository) GetExpiredCheckouts(ctx context.Context) ([]*checkout.Checkout, error) {
	var dbModels []models.CheckoutModel

	pending := []string{
		vo.CheckoutStatusCreated.String(),
		vo.CheckoutStatusAwaitingRedirect.String(),
		vo.CheckoutStatusAwaitingConfirmation.String(),
	}

	if err := db.GetTxFromContext(ctx, r.db).
		Where("status IN ? AND expired_at < ?", pending, biztime.NowUTC()).
		Find(&dbModels).Error; err != nil {
		return nil, fmt.Errorf("failed to get expired checkouts: %w", err)
	}

	return r.toDomainList(dbModels)
}

func (r *CheckoutRepository) GetPaidUnfulfilled(ctx context.Context) ([]*checkout.Checkout, error) {
	var dbModels []models.CheckoutModel

	if err := db.GetTxFromContext(ctx, r.db).
		Where("paid = ? AND fulfilled_at IS NULL", true).
		Find(&dbModels).Error; err != nil {
		return nil, fmt.Errorf("failed to get unfulfilled checkouts: %w", err)
	}

	return r.toDomainList(dbModels)
}

func (r *CheckoutRepository) toDomainList(dbModels []models.CheckoutModel) ([]*checkout.Checkout, error) {
	checkouts := make([]*checkout.Checkout, 0, len(dbModels))
	for i := range dbModels {
		co, err := mappers.CheckoutToDomain(&dbModels[i])
		if err != nil {
			return nil, err
		}
		checkouts = append(checkouts, co)
	}
	return checkouts, nil
}
