package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	appgateway "checkoutgo/internal/application/checkout/gateway"
	"checkoutgo/internal/domain/checkout"
	vo "checkoutgo/internal/domain/checkout/valueobjects"
	sharedConfig "checkoutgo/internal/shared/config"
	"checkoutgo/internal/shared/logger"
)

const paystackBaseURL = "https://api.paystack.co"

// PaystackGateway integrates Paystack's transaction API. There is no
// official Go SDK, so requests go through a thin JSON client. Webhooks are
// authenticated with an HMAC-SHA512 of the raw body under the secret key.
type PaystackGateway struct {
	cfg        sharedConfig.PaystackConfig
	baseURL    string
	httpClient *http.Client
	logger     logger.Interface
}

func NewPaystackGateway(cfg sharedConfig.PaystackConfig, logger logger.Interface) *PaystackGateway {
	return &PaystackGateway{
		cfg:     cfg,
		baseURL: paystackBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

type paystackResponse struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (g *PaystackGateway) doRequest(ctx context.Context, secretKey, method, path string, payload interface{}) (json.RawMessage, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paystack request failed: %w", err)
	}
	defer resp.Body.Close()

	var parsed paystackResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode paystack response: %w", err)
	}
	if resp.StatusCode >= 400 || !parsed.Status {
		return nil, fmt.Errorf("paystack error: %s (%s)", parsed.Message, resp.Status)
	}

	return parsed.Data, nil
}

func (g *PaystackGateway) secretFor(co *checkout.Checkout) string {
	return co.ProviderKey("secret_key", g.cfg.SecretKey)
}

func (g *PaystackGateway) CreateSession(ctx context.Context, co *checkout.Checkout, req appgateway.CreateSessionRequest) (*appgateway.CreateSessionResponse, error) {
	secret := g.secretFor(co)
	amount := co.Amount()

	payload := map[string]interface{}{
		"email":        co.Email(),
		"amount":       amount.MinorUnits(),
		"currency":     amount.Currency(),
		"reference":    co.Reference(),
		"callback_url": req.SuccessURL,
	}

	planCode := ""
	if co.PaymentType().IsRecurring() {
		code, err := g.ensurePlan(ctx, secret, amount, co.Frequency())
		if err != nil {
			return nil, fmt.Errorf("failed to resolve plan: %w", err)
		}
		planCode = code
		payload["plan"] = code
	}

	data, err := g.doRequest(ctx, secret, http.MethodPost, "/transaction/initialize", payload)
	if err != nil {
		return nil, err
	}

	var initData struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}
	if err := json.Unmarshal(data, &initData); err != nil {
		return nil, fmt.Errorf("failed to parse initialize response: %w", err)
	}

	return &appgateway.CreateSessionResponse{
		SessionID:   initData.AccessCode,
		RedirectURL: initData.AuthorizationURL,
		PlanID:      planCode,
	}, nil
}

type paystackPlan struct {
	PlanCode string `json:"plan_code"`
	Amount   int64  `json:"amount"`
	Interval string `json:"interval"`
	Currency string `json:"currency"`
}

// ensurePlan reuses an existing plan matching amount, interval, and currency
// before creating a new one.
func (g *PaystackGateway) ensurePlan(ctx context.Context, secret string, amount vo.Money, frequency vo.Frequency) (string, error) {
	interval := paystackInterval(frequency)

	data, err := g.doRequest(ctx, secret, http.MethodGet,
		fmt.Sprintf("/plan?amount=%d&interval=%s", amount.MinorUnits(), interval), nil)
	if err != nil {
		return "", err
	}

	var plans []paystackPlan
	if err := json.Unmarshal(data, &plans); err != nil {
		return "", fmt.Errorf("failed to parse plan list: %w", err)
	}
	for _, p := range plans {
		if p.Amount == amount.MinorUnits() && p.Interval == interval && p.Currency == amount.Currency() {
			return p.PlanCode, nil
		}
	}

	created, err := g.doRequest(ctx, secret, http.MethodPost, "/plan", map[string]interface{}{
		"name":     fmt.Sprintf("Subscription %s %s", amount.String(), frequency),
		"amount":   amount.MinorUnits(),
		"interval": interval,
		"currency": amount.Currency(),
	})
	if err != nil {
		return "", err
	}

	var plan paystackPlan
	if err := json.Unmarshal(created, &plan); err != nil {
		return "", fmt.Errorf("failed to parse plan response: %w", err)
	}
	return plan.PlanCode, nil
}

func paystackInterval(frequency vo.Frequency) string {
	if frequency == vo.FrequencyYearly {
		return "annually"
	}
	return "monthly"
}

type paystackTransaction struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	PaidAt    string `json:"paid_at"`
}

// VerifyReturn confirms the transaction out of band. The redirect alone is
// never trusted.
func (g *PaystackGateway) VerifyReturn(ctx context.Context, co *checkout.Checkout, params map[string]string) (*appgateway.Confirmation, error) {
	reference := params["trxref"]
	if reference == "" {
		reference = params["reference"]
	}
	if reference == "" {
		reference = co.Reference()
	}

	data, err := g.doRequest(ctx, g.secretFor(co), http.MethodGet, "/transaction/verify/"+reference, nil)
	if err != nil {
		return nil, err
	}

	var tx paystackTransaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, fmt.Errorf("failed to parse verify response: %w", err)
	}

	conf := &appgateway.Confirmation{
		Reference: tx.Reference,
		Amount:    tx.Amount,
		Currency:  tx.Currency,
	}
	if tx.Status == "success" {
		conf.Event = appgateway.EventPaymentSucceeded
		if paidAt, err := time.Parse(time.RFC3339, tx.PaidAt); err == nil {
			conf.PaidAt = paidAt
		}
	} else {
		conf.Event = appgateway.EventPaymentFailed
	}
	return conf, nil
}

func (g *PaystackGateway) ParseWebhook(req *http.Request, body []byte) (*appgateway.Confirmation, error) {
	if !g.verifySignature(body, req.Header.Get("X-Paystack-Signature")) {
		return nil, fmt.Errorf("signature verification failed")
	}

	var event struct {
		Event string `json:"event"`
		Data  struct {
			Reference        string `json:"reference"`
			Amount           int64  `json:"amount"`
			Currency         string `json:"currency"`
			PaidAt           string `json:"paid_at"`
			SubscriptionCode string `json:"subscription_code"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}

	switch event.Event {
	case "charge.success":
		conf := &appgateway.Confirmation{
			Reference:      event.Data.Reference,
			SubscriptionID: event.Data.SubscriptionCode,
			Event:          appgateway.EventPaymentSucceeded,
			Amount:         event.Data.Amount,
			Currency:       event.Data.Currency,
		}
		if paidAt, err := time.Parse(time.RFC3339, event.Data.PaidAt); err == nil {
			conf.PaidAt = paidAt
		}
		return conf, nil

	case "subscription.disable", "subscription.not_renew":
		return &appgateway.Confirmation{
			SubscriptionID: event.Data.SubscriptionCode,
			Event:          appgateway.EventSubscriptionCancelled,
		}, nil

	default:
		return &appgateway.Confirmation{Event: appgateway.EventIgnored}, nil
	}
}

// verifySignature checks the HMAC-SHA512 of the raw body against the
// platform secret key in constant time.
func (g *PaystackGateway) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(g.cfg.SecretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (g *PaystackGateway) CancelSubscription(ctx context.Context, co *checkout.Checkout) error {
	// No provider-side subscription to cancel; the local downgrade is all
	// there is.
	if co.ProviderSubscriptionID() == nil {
		return nil
	}
	secret := g.secretFor(co)
	code := *co.ProviderSubscriptionID()

	// Disabling needs the email token, which only the subscription
	// resource carries.
	data, err := g.doRequest(ctx, secret, http.MethodGet, "/subscription/"+code, nil)
	if err != nil {
		return fmt.Errorf("failed to fetch subscription: %w", err)
	}
	var sub struct {
		EmailToken string `json:"email_token"`
	}
	if err := json.Unmarshal(data, &sub); err != nil {
		return fmt.Errorf("failed to parse subscription: %w", err)
	}

	_, err = g.doRequest(ctx, secret, http.MethodPost, "/subscription/disable", map[string]interface{}{
		"code":  code,
		"token": sub.EmailToken,
	})
	if err != nil {
		return fmt.Errorf("paystack cancellation failed: %w", err)
	}
	return nil
}
