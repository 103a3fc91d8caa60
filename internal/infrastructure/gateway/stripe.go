package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	appgateway "checkoutgo/internal/application/checkout/gateway"
	"checkoutgo/internal/domain/checkout"
	vo "checkoutgo/internal/domain/checkout/valueobjects"
	sharedConfig "checkoutgo/internal/shared/config"
	"checkoutgo/internal/shared/logger"
)

// StripeGateway drives Stripe Checkout hosted sessions. Recurring checkouts
// reuse provider-side prices through deterministic lookup keys, so repeated
// checkouts for the same amount and interval never pile up duplicate plans.
type StripeGateway struct {
	cfg    sharedConfig.StripeConfig
	logger logger.Interface
}

func NewStripeGateway(cfg sharedConfig.StripeConfig, logger logger.Interface) *StripeGateway {
	return &StripeGateway{cfg: cfg, logger: logger}
}

// clientFor builds an API client honoring the per-checkout key override.
func (g *StripeGateway) clientFor(co *checkout.Checkout) *client.API {
	sc := &client.API{}
	sc.Init(co.ProviderKey("secret_key", g.cfg.SecretKey), nil)
	return sc
}

func (g *StripeGateway) CreateSession(ctx context.Context, co *checkout.Checkout, req appgateway.CreateSessionRequest) (*appgateway.CreateSessionResponse, error) {
	sc := g.clientFor(co)
	amount := co.Amount()

	params := &stripe.CheckoutSessionParams{
		ClientReferenceID: stripe.String(co.Reference()),
		CustomerEmail:     stripe.String(co.Email()),
		SuccessURL:        stripe.String(req.SuccessURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(req.CancelURL),
	}
	params.Context = ctx

	planID := ""
	if co.PaymentType().IsRecurring() {
		price, err := g.ensureRecurringPrice(ctx, sc, amount, co.Frequency())
		if err != nil {
			return nil, fmt.Errorf("failed to resolve recurring price: %w", err)
		}
		planID = price.ID
		params.Mode = stripe.String(string(stripe.CheckoutSessionModeSubscription))
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(price.ID),
				Quantity: stripe.Int64(1),
			},
		}
	} else {
		params.Mode = stripe.String(string(stripe.CheckoutSessionModePayment))
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(amount.Currency())),
					UnitAmount: stripe.Int64(amount.MinorUnits()),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Checkout " + co.Reference()),
					},
				},
				Quantity: stripe.Int64(1),
			},
		}
	}

	session, err := sc.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe session creation failed: %w", err)
	}

	return &appgateway.CreateSessionResponse{
		SessionID:   session.ID,
		RedirectURL: session.URL,
		PlanID:      planID,
	}, nil
}

// ensureRecurringPrice finds or creates the price for this amount and
// interval. The lookup key is a pure function of both, which makes the
// find-or-create idempotent on Stripe's side.
func (g *StripeGateway) ensureRecurringPrice(ctx context.Context, sc *client.API, amount vo.Money, frequency vo.Frequency) (*stripe.Price, error) {
	lookupKey := fmt.Sprintf("checkout_%s_%d_%s", strings.ToLower(amount.Currency()), amount.MinorUnits(), frequency)

	listParams := &stripe.PriceListParams{
		LookupKeys: stripe.StringSlice([]string{lookupKey}),
	}
	listParams.Context = ctx
	iter := sc.Prices.List(listParams)
	for iter.Next() {
		return iter.Price(), nil
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	productParams := &stripe.ProductParams{
		Name: stripe.String(fmt.Sprintf("Subscription %s %s", amount.String(), frequency)),
	}
	productParams.Context = ctx
	product, err := sc.Products.New(productParams)
	if err != nil {
		return nil, err
	}

	priceParams := &stripe.PriceParams{
		Product:    stripe.String(product.ID),
		Currency:   stripe.String(strings.ToLower(amount.Currency())),
		UnitAmount: stripe.Int64(amount.MinorUnits()),
		LookupKey:  stripe.String(lookupKey),
		Recurring: &stripe.PriceRecurringParams{
			Interval: stripe.String(stripeInterval(frequency)),
		},
	}
	priceParams.Context = ctx
	return sc.Prices.New(priceParams)
}

func stripeInterval(frequency vo.Frequency) string {
	if frequency == vo.FrequencyYearly {
		return "year"
	}
	return "month"
}

func (g *StripeGateway) VerifyReturn(ctx context.Context, co *checkout.Checkout, params map[string]string) (*appgateway.Confirmation, error) {
	sessionID := params["session_id"]
	if sessionID == "" && co.ProviderSessionID() != nil {
		sessionID = *co.ProviderSessionID()
	}
	if sessionID == "" {
		return nil, fmt.Errorf("missing session_id")
	}

	getParams := &stripe.CheckoutSessionParams{}
	getParams.Context = ctx
	session, err := g.clientFor(co).CheckoutSessions.Get(sessionID, getParams)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch session: %w", err)
	}

	return g.confirmationFromSession(session), nil
}

func (g *StripeGateway) ParseWebhook(req *http.Request, body []byte) (*appgateway.Confirmation, error) {
	// Accounts pin their own API versions, which rarely match the version
	// this SDK release was generated against. Authenticity comes from the
	// signature alone, so the version check is skipped.
	event, err := webhook.ConstructEventWithOptions(body, req.Header.Get("Stripe-Signature"), g.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("signature verification failed: %w", err)
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("failed to parse session payload: %w", err)
		}
		return g.confirmationFromSession(&session), nil

	case "checkout.session.async_payment_failed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("failed to parse session payload: %w", err)
		}
		return &appgateway.Confirmation{
			Reference: session.ClientReferenceID,
			SessionID: session.ID,
			Event:     appgateway.EventPaymentFailed,
		}, nil

	case "invoice.paid":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return nil, fmt.Errorf("failed to parse invoice payload: %w", err)
		}
		// Recurring renewals arrive as invoices; only the subscription
		// correlates them back to a checkout.
		if invoice.Subscription == nil {
			return &appgateway.Confirmation{Event: appgateway.EventIgnored}, nil
		}
		return &appgateway.Confirmation{
			SubscriptionID: invoice.Subscription.ID,
			Event:          appgateway.EventPaymentSucceeded,
			Amount:         invoice.AmountPaid,
			Currency:       strings.ToUpper(string(invoice.Currency)),
		}, nil

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("failed to parse subscription payload: %w", err)
		}
		return &appgateway.Confirmation{
			SubscriptionID: sub.ID,
			Event:          appgateway.EventSubscriptionCancelled,
		}, nil

	default:
		return &appgateway.Confirmation{Event: appgateway.EventIgnored}, nil
	}
}

func (g *StripeGateway) confirmationFromSession(session *stripe.CheckoutSession) *appgateway.Confirmation {
	conf := &appgateway.Confirmation{
		Reference: session.ClientReferenceID,
		SessionID: session.ID,
		Amount:    session.AmountTotal,
		Currency:  strings.ToUpper(string(session.Currency)),
	}
	if session.Subscription != nil {
		conf.SubscriptionID = session.Subscription.ID
	}

	if session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
		conf.Event = appgateway.EventPaymentSucceeded
	} else {
		// Delayed payment methods complete via async_payment_succeeded.
		conf.Event = appgateway.EventIgnored
	}
	return conf
}

func (g *StripeGateway) CancelSubscription(ctx context.Context, co *checkout.Checkout) error {
	// No provider-side subscription to cancel; the local downgrade is all
	// there is.
	if co.ProviderSubscriptionID() == nil {
		return nil
	}

	cancelParams := &stripe.SubscriptionCancelParams{}
	cancelParams.Context = ctx
	_, err := g.clientFor(co).Subscriptions.Cancel(*co.ProviderSubscriptionID(), cancelParams)
	if err != nil {
		return fmt.Errorf("stripe cancellation failed: %w", err)
	}
	return nil
}
