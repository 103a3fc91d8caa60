package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	checkoutUsecases "checkoutgo/internal/application/checkout/usecases"
	vo "checkoutgo/internal/domain/checkout/valueobjects"
	"checkoutgo/internal/shared/logger"
	"checkoutgo/internal/shared/utils"
)

// maxWebhookBodySize bounds provider payloads; the largest real deliveries
// are a few KB of JSON.
const maxWebhookBodySize = 1 << 20

type WebhookHandler struct {
	handleWebhookUC *checkoutUsecases.HandleWebhookUseCase
	logger          logger.Interface
}

func NewWebhookHandler(handleWebhookUC *checkoutUsecases.HandleWebhookUseCase, logger logger.Interface) *WebhookHandler {
	return &WebhookHandler{
		handleWebhookUC: handleWebhookUC,
		logger:          logger,
	}
}

// HandleWebhook receives one provider delivery. The raw body is read before
// anything else; signature schemes cover the exact bytes on the wire.
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	provider, err := vo.NewProvider(c.Param("provider"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusNotFound, "unknown provider")
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodySize))
	if err != nil {
		h.logger.Errorw("failed to read webhook body", "error", err, "provider", provider)
		utils.ErrorResponse(c, http.StatusBadRequest, "failed to read request body")
		return
	}

	if err := h.handleWebhookUC.Execute(c.Request.Context(), provider, c.Request, body); err != nil {
		h.logger.Warnw("webhook rejected", "error", err, "provider", provider)
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "received", nil)
}
