package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	checkoutUsecases "checkoutgo/internal/application/checkout/usecases"
	"checkoutgo/internal/domain/checkout"
	"checkoutgo/internal/shared/logger"
)

// ReturnHandler lands customers coming back from the provider's hosted
// page. Every exit is a redirect; there is no JSON consumer on this path.
type ReturnHandler struct {
	verifyReturnUC   *checkoutUsecases.VerifyReturnUseCase
	checkouts        CheckoutReader
	errorRedirectURL string
	logger           logger.Interface
}

func NewReturnHandler(
	verifyReturnUC *checkoutUsecases.VerifyReturnUseCase,
	checkouts CheckoutReader,
	errorRedirectURL string,
	logger logger.Interface,
) *ReturnHandler {
	return &ReturnHandler{
		verifyReturnUC:   verifyReturnUC,
		checkouts:        checkouts,
		errorRedirectURL: errorRedirectURL,
		logger:           logger,
	}
}

// HandleReturn verifies the payment out of band and redirects the customer
// to the merchant's callback or error URL. Query params are forwarded to
// the gateway; several providers put their transaction handle there.
func (h *ReturnHandler) HandleReturn(c *gin.Context) {
	reference := c.Param("reference")

	params := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	result, err := h.verifyReturnUC.Execute(c.Request.Context(), reference, params)
	if err != nil {
		h.logger.Errorw("return verification failed", "error", err, "reference", reference)
		c.Redirect(http.StatusFound, h.errorDestination(c, reference))
		return
	}

	c.Redirect(http.StatusFound, result.RedirectURL)
}

// HandleCancel is where the customer lands after abandoning the hosted
// page. The ledger is left alone; the expiry sweep reaps the checkout.
func (h *ReturnHandler) HandleCancel(c *gin.Context) {
	reference := c.Param("reference")

	h.logger.Infow("checkout abandoned by customer", "reference", reference)
	c.Redirect(http.StatusFound, h.errorDestination(c, reference))
}

func (h *ReturnHandler) errorDestination(c *gin.Context, reference string) string {
	co, err := h.checkouts.GetByReference(c.Request.Context(), reference)
	if err != nil {
		if !errors.Is(err, checkout.ErrCheckoutNotFound) {
			h.logger.Errorw("failed to load checkout for redirect", "error", err, "reference", reference)
		}
		return h.errorRedirectURL
	}

	if co.ErrorURL() != "" {
		return co.ErrorURL()
	}
	return h.errorRedirectURL
}
