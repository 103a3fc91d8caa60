package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"

	appgateway "checkoutgo/internal/application/checkout/gateway"
	"checkoutgo/internal/domain/checkout"
	vo "checkoutgo/internal/domain/checkout/valueobjects"
	sharedConfig "checkoutgo/internal/shared/config"
	"checkoutgo/internal/shared/logger"
)

// RazorpayGateway drives Razorpay payment links for one-time checkouts and
// subscriptions for recurring ones. Plan reuse is a client-side match over
// the plan listing since Razorpay's API has no amount filter.
type RazorpayGateway struct {
	cfg    sharedConfig.RazorpayConfig
	logger logger.Interface
}

func NewRazorpayGateway(cfg sharedConfig.RazorpayConfig, logger logger.Interface) *RazorpayGateway {
	return &RazorpayGateway{cfg: cfg, logger: logger}
}

func (g *RazorpayGateway) clientFor(co *checkout.Checkout) *razorpay.Client {
	keyID := co.ProviderKey("key_id", g.cfg.KeyID)
	keySecret := co.ProviderKey("key_secret", g.cfg.KeySecret)
	return razorpay.NewClient(keyID, keySecret)
}

func (g *RazorpayGateway) CreateSession(ctx context.Context, co *checkout.Checkout, req appgateway.CreateSessionRequest) (*appgateway.CreateSessionResponse, error) {
	if co.PaymentType().IsRecurring() {
		return g.createSubscription(co)
	}
	return g.createPaymentLink(co, req)
}

func (g *RazorpayGateway) createPaymentLink(co *checkout.Checkout, req appgateway.CreateSessionRequest) (*appgateway.CreateSessionResponse, error) {
	amount := co.Amount()

	link, err := g.clientFor(co).PaymentLink.Create(map[string]interface{}{
		"amount":          amount.MinorUnits(),
		"currency":        amount.Currency(),
		"reference_id":    co.Reference(),
		"callback_url":    req.SuccessURL,
		"callback_method": "get",
		"customer": map[string]interface{}{
			"email": co.Email(),
		},
		"notes": map[string]interface{}{
			"reference": co.Reference(),
		},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay payment link creation failed: %w", err)
	}

	return &appgateway.CreateSessionResponse{
		SessionID:   stringField(link, "id"),
		RedirectURL: stringField(link, "short_url"),
	}, nil
}

func (g *RazorpayGateway) createSubscription(co *checkout.Checkout) (*appgateway.CreateSessionResponse, error) {
	client := g.clientFor(co)
	amount := co.Amount()

	planID, err := g.ensurePlan(client, amount, co.Frequency())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve plan: %w", err)
	}

	sub, err := client.Subscription.Create(map[string]interface{}{
		"plan_id":         planID,
		"total_count":     totalCount(co.Frequency()),
		"customer_notify": 1,
		"notes": map[string]interface{}{
			"reference": co.Reference(),
		},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay subscription creation failed: %w", err)
	}

	return &appgateway.CreateSessionResponse{
		SessionID:   stringField(sub, "id"),
		RedirectURL: stringField(sub, "short_url"),
		PlanID:      planID,
	}, nil
}

// totalCount is the number of billing cycles Razorpay requires up front.
// Ten years either way; cancellation ends the subscription earlier.
func totalCount(frequency vo.Frequency) int {
	if frequency == vo.FrequencyYearly {
		return 10
	}
	return 120
}

func razorpayPeriod(frequency vo.Frequency) string {
	if frequency == vo.FrequencyYearly {
		return "yearly"
	}
	return "monthly"
}

// ensurePlan reuses an existing plan matching amount, period, and currency.
// The listing cannot be filtered server-side, so the match happens here.
func (g *RazorpayGateway) ensurePlan(client *razorpay.Client, amount vo.Money, frequency vo.Frequency) (string, error) {
	period := razorpayPeriod(frequency)

	existing, err := client.Plan.All(map[string]interface{}{"count": 100}, nil)
	if err != nil {
		return "", err
	}
	if items, ok := existing["items"].([]interface{}); ok {
		for _, raw := range items {
			plan, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			if stringField(plan, "period") != period {
				continue
			}
			item, ok := plan["item"].(map[string]interface{})
			if !ok {
				continue
			}
			planAmount, _ := item["amount"].(float64)
			if int64(planAmount) == amount.MinorUnits() && stringField(item, "currency") == amount.Currency() {
				return stringField(plan, "id"), nil
			}
		}
	}

	created, err := client.Plan.Create(map[string]interface{}{
		"period":   period,
		"interval": 1,
		"item": map[string]interface{}{
			"name":     fmt.Sprintf("Subscription %s %s", amount.String(), frequency),
			"amount":   amount.MinorUnits(),
			"currency": amount.Currency(),
		},
	}, nil)
	if err != nil {
		return "", err
	}
	return stringField(created, "id"), nil
}

// VerifyReturn fetches the payment out of band; callback query params are
// not trusted on their own.
func (g *RazorpayGateway) VerifyReturn(ctx context.Context, co *checkout.Checkout, params map[string]string) (*appgateway.Confirmation, error) {
	paymentID := params["razorpay_payment_id"]
	if paymentID == "" {
		return nil, fmt.Errorf("missing razorpay_payment_id")
	}

	payment, err := g.clientFor(co).Payment.Fetch(paymentID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payment: %w", err)
	}

	conf := &appgateway.Confirmation{
		Reference: co.Reference(),
		Currency:  stringField(payment, "currency"),
		PaidAt:    time.Now().UTC(),
	}
	if amount, ok := payment["amount"].(float64); ok {
		conf.Amount = int64(amount)
	}

	if razorpayPaymentCaptured(stringField(payment, "status")) {
		conf.Event = appgateway.EventPaymentSucceeded
	} else {
		conf.Event = appgateway.EventPaymentFailed
	}
	return conf, nil
}

// razorpayPaymentCaptured reports whether the payment status means money has
// actually moved. Authorized funds are not captured yet and must not trigger
// fulfillment.
func razorpayPaymentCaptured(status string) bool {
	return status == "captured"
}

func (g *RazorpayGateway) ParseWebhook(req *http.Request, body []byte) (*appgateway.Confirmation, error) {
	signature := req.Header.Get("X-Razorpay-Signature")
	if signature == "" || !utils.VerifyWebhookSignature(string(body), signature, g.cfg.WebhookSecret) {
		return nil, fmt.Errorf("signature verification failed")
	}

	var event struct {
		Event   string `json:"event"`
		Payload struct {
			PaymentLink struct {
				Entity struct {
					ID          string `json:"id"`
					ReferenceID string `json:"reference_id"`
				} `json:"entity"`
			} `json:"payment_link"`
			Subscription struct {
				Entity struct {
					ID    string            `json:"id"`
					Notes map[string]string `json:"notes"`
				} `json:"entity"`
			} `json:"subscription"`
			Payment struct {
				Entity struct {
					Amount   int64  `json:"amount"`
					Currency string `json:"currency"`
				} `json:"entity"`
			} `json:"payment"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}

	switch event.Event {
	case "payment_link.paid":
		return &appgateway.Confirmation{
			Reference: event.Payload.PaymentLink.Entity.ReferenceID,
			SessionID: event.Payload.PaymentLink.Entity.ID,
			Event:     appgateway.EventPaymentSucceeded,
			Amount:    event.Payload.Payment.Entity.Amount,
			Currency:  event.Payload.Payment.Entity.Currency,
			PaidAt:    time.Now().UTC(),
		}, nil

	case "subscription.charged", "subscription.activated":
		return &appgateway.Confirmation{
			Reference:      event.Payload.Subscription.Entity.Notes["reference"],
			SessionID:      event.Payload.Subscription.Entity.ID,
			SubscriptionID: event.Payload.Subscription.Entity.ID,
			Event:          appgateway.EventPaymentSucceeded,
			Amount:         event.Payload.Payment.Entity.Amount,
			Currency:       event.Payload.Payment.Entity.Currency,
			PaidAt:         time.Now().UTC(),
		}, nil

	case "subscription.cancelled":
		return &appgateway.Confirmation{
			Reference:      event.Payload.Subscription.Entity.Notes["reference"],
			SubscriptionID: event.Payload.Subscription.Entity.ID,
			Event:          appgateway.EventSubscriptionCancelled,
		}, nil

	default:
		return &appgateway.Confirmation{Event: appgateway.EventIgnored}, nil
	}
}

func (g *RazorpayGateway) CancelSubscription(ctx context.Context, co *checkout.Checkout) error {
	// No provider-side subscription to cancel; the local downgrade is all
	// there is.
	if co.ProviderSubscriptionID() == nil {
		return nil
	}

	_, err := g.clientFor(co).Subscription.Cancel(*co.ProviderSubscriptionID(), map[string]interface{}{
		"cancel_at_cycle_end": 0,
	}, nil)
	if err != nil {
		return fmt.Errorf("razorpay cancellation failed: %w", err)
	}
	return nil
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
