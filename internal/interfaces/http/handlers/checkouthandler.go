package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	checkoutUsecases "checkoutgo/internal/application/checkout/usecases"
	"checkoutgo/internal/domain/checkout"
	"checkoutgo/internal/shared/logger"
	"checkoutgo/internal/shared/utils"
)

// CheckoutReader is the read-only slice of the repository the handler needs
// for status queries.
type CheckoutReader interface {
	GetByReference(ctx context.Context, reference string) (*checkout.Checkout, error)
}

type CheckoutHandler struct {
	createCheckoutUC     *checkoutUsecases.CreateCheckoutUseCase
	cancelSubscriptionUC *checkoutUsecases.CancelSubscriptionUseCase
	checkouts            CheckoutReader
	logger               logger.Interface
}

func NewCheckoutHandler(
	createCheckoutUC *checkoutUsecases.CreateCheckoutUseCase,
	cancelSubscriptionUC *checkoutUsecases.CancelSubscriptionUseCase,
	checkouts CheckoutReader,
	logger logger.Interface,
) *CheckoutHandler {
	return &CheckoutHandler{
		createCheckoutUC:     createCheckoutUC,
		cancelSubscriptionUC: cancelSubscriptionUC,
		checkouts:            checkouts,
		logger:               logger,
	}
}

type CreateCheckoutRequest struct {
	Price           string                 `json:"price" binding:"required"`
	Currency        string                 `json:"currency"`
	PaymentType     string                 `json:"payment_type" binding:"required,oneof=onetime recurring"`
	Frequency       string                 `json:"frequency"`
	Provider        string                 `json:"provider" binding:"required"`
	Email           string                 `json:"email" binding:"required,email"`
	CallbackURL     string                 `json:"callback_url" binding:"required"`
	ErrorURL        string                 `json:"error_url"`
	ProviderKeys    map[string]string      `json:"provider_keys"`
	FulfillmentOp   string                 `json:"fulfillment_op" binding:"required"`
	FulfillmentArgs map[string]interface{} `json:"fulfillment_args"`
}

// CreateCheckout opens a checkout and returns the provider redirect URL.
// Provider outages come back with status 0 in the body, not an HTTP error.
func (h *CheckoutHandler) CreateCheckout(c *gin.Context) {
	var req CreateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorw("failed to bind request", "error", err)
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	cmd := checkoutUsecases.CreateCheckoutCommand{
		Price:           req.Price,
		Currency:        req.Currency,
		PaymentType:     req.PaymentType,
		Frequency:       req.Frequency,
		Provider:        req.Provider,
		Email:           req.Email,
		CallbackURL:     req.CallbackURL,
		ErrorURL:        req.ErrorURL,
		ProviderKeys:    req.ProviderKeys,
		FulfillmentOp:   req.FulfillmentOp,
		FulfillmentArgs: req.FulfillmentArgs,
	}

	result, err := h.createCheckoutUC.Execute(c.Request.Context(), cmd)
	if err != nil {
		h.logger.Errorw("failed to create checkout", "error", err, "provider", req.Provider)
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "checkout created", result)
}

type CheckoutResponse struct {
	Reference   string  `json:"reference"`
	Provider    string  `json:"provider"`
	PaymentType string  `json:"payment_type"`
	Frequency   string  `json:"frequency,omitempty"`
	Amount      string  `json:"amount"`
	Currency    string  `json:"currency"`
	Email       string  `json:"email"`
	Status      string  `json:"status"`
	PaidAt      *string `json:"paid_at,omitempty"`
	FulfilledAt *string `json:"fulfilled_at,omitempty"`
	ExpiredAt   string  `json:"expired_at"`
	CreatedAt   string  `json:"created_at"`
}

func (h *CheckoutHandler) GetCheckout(c *gin.Context) {
	reference := c.Param("reference")

	co, err := h.checkouts.GetByReference(c.Request.Context(), reference)
	if err != nil {
		if errors.Is(err, checkout.ErrCheckoutNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "checkout not found")
			return
		}
		h.logger.Errorw("failed to load checkout", "error", err, "reference", reference)
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", toCheckoutResponse(co))
}

func (h *CheckoutHandler) CancelSubscription(c *gin.Context) {
	reference := c.Param("reference")

	if err := h.cancelSubscriptionUC.Execute(c.Request.Context(), reference); err != nil {
		h.logger.Errorw("failed to cancel subscription", "error", err, "reference", reference)
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "subscription cancelled", nil)
}

func toCheckoutResponse(co *checkout.Checkout) CheckoutResponse {
	resp := CheckoutResponse{
		Reference:   co.Reference(),
		Provider:    co.Provider().String(),
		PaymentType: co.PaymentType().String(),
		Amount:      co.Amount().String(),
		Currency:    co.Amount().Currency(),
		Email:       co.Email(),
		Status:      co.Status().String(),
		ExpiredAt:   co.ExpiredAt().Format(time.RFC3339),
		CreatedAt:   co.CreatedAt().Format(time.RFC3339),
	}

	if co.PaymentType().IsRecurring() {
		resp.Frequency = co.Frequency().String()
	}
	if co.PaidAt() != nil {
		paidAt := co.PaidAt().Format(time.RFC3339)
		resp.PaidAt = &paidAt
	}
	if co.FulfilledAt() != nil {
		fulfilledAt := co.FulfilledAt().Format(time.RFC3339)
		resp.FulfilledAt = &fulfilledAt
	}

	return resp
}
