package gateway

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	appgateway "checkoutgo/internal/application/checkout/gateway"
	"checkoutgo/internal/domain/checkout"
	vo "checkoutgo/internal/domain/checkout/valueobjects"
	sharedConfig "checkoutgo/internal/shared/config"
	"checkoutgo/internal/shared/logger"
)

const flutterwaveBaseURL = "https://api.flutterwave.com/v3"

// FlutterwaveGateway integrates Flutterwave's standard payment flow. Its
// webhook only proves a shared hash, not payload integrity, so every
// notification is re-verified against the transactions API before the
// ledger is touched.
type FlutterwaveGateway struct {
	cfg        sharedConfig.FlutterwaveConfig
	baseURL    string
	httpClient *http.Client
	logger     logger.Interface
}

func NewFlutterwaveGateway(cfg sharedConfig.FlutterwaveConfig, logger logger.Interface) *FlutterwaveGateway {
	return &FlutterwaveGateway{
		cfg:     cfg,
		baseURL: flutterwaveBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

type flutterwaveResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (g *FlutterwaveGateway) doRequest(ctx context.Context, secretKey, method, path string, payload interface{}) (json.RawMessage, error) {
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
		return nil, fmt.Errorf("flutterwave request failed: %w", err)
	}
	defer resp.Body.Close()

	var parsed flutterwaveResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode flutterwave response: %w", err)
	}
	if resp.StatusCode >= 400 || parsed.Status != "success" {
		return nil, fmt.Errorf("flutterwave error: %s (%s)", parsed.Message, resp.Status)
	}

	return parsed.Data, nil
}

func (g *FlutterwaveGateway) secretFor(co *checkout.Checkout) string {
	return co.ProviderKey("secret_key", g.cfg.SecretKey)
}

// majorUnits formats the amount the way Flutterwave expects: whole currency
// units, not subunits.
func majorUnits(m vo.Money) string {
	if m.IsZeroDecimal() {
		return fmt.Sprintf("%d", m.MinorUnits())
	}
	return fmt.Sprintf("%d.%02d", m.AmountInCents()/100, m.AmountInCents()%100)
}

func (g *FlutterwaveGateway) CreateSession(ctx context.Context, co *checkout.Checkout, req appgateway.CreateSessionRequest) (*appgateway.CreateSessionResponse, error) {
	secret := g.secretFor(co)
	amount := co.Amount()

	payload := map[string]interface{}{
		"tx_ref":       co.Reference(),
		"amount":       majorUnits(amount),
		"currency":     amount.Currency(),
		"redirect_url": req.SuccessURL,
		"customer": map[string]interface{}{
			"email": co.Email(),
		},
	}

	planID := ""
	if co.PaymentType().IsRecurring() {
		id, err := g.ensurePlan(ctx, secret, amount, co.Frequency())
		if err != nil {
			return nil, fmt.Errorf("failed to resolve payment plan: %w", err)
		}
		planID = id
		payload["payment_plan"] = id
	}

	data, err := g.doRequest(ctx, secret, http.MethodPost, "/payments", payload)
	if err != nil {
		return nil, err
	}

	var paymentData struct {
		Link string `json:"link"`
	}
	if err := json.Unmarshal(data, &paymentData); err != nil {
		return nil, fmt.Errorf("failed to parse payment response: %w", err)
	}

	// Flutterwave has no session object; the tx_ref doubles as the session
	// identifier.
	return &appgateway.CreateSessionResponse{
		SessionID:   co.Reference(),
		RedirectURL: paymentData.Link,
		PlanID:      planID,
	}, nil
}

type flutterwavePlan struct {
	ID       int64   `json:"id"`
	Amount   float64 `json:"amount"`
	Interval string  `json:"interval"`
	Currency string  `json:"currency"`
	Status   string  `json:"status"`
}

func (g *FlutterwaveGateway) ensurePlan(ctx context.Context, secret string, amount vo.Money, frequency vo.Frequency) (string, error) {
	interval := flutterwaveInterval(frequency)

	data, err := g.doRequest(ctx, secret, http.MethodGet,
		fmt.Sprintf("/payment-plans?amount=%s&interval=%s&currency=%s", majorUnits(amount), interval, amount.Currency()), nil)
	if err != nil {
		return "", err
	}

	var plans []flutterwavePlan
	if err := json.Unmarshal(data, &plans); err != nil {
		return "", fmt.Errorf("failed to parse plan list: %w", err)
	}
	for _, p := range plans {
		if p.Status == "active" && p.Interval == interval && p.Currency == amount.Currency() &&
			toMinorUnits(p.Amount, amount.Currency()) == amount.MinorUnits() {
			return fmt.Sprintf("%d", p.ID), nil
		}
	}

	created, err := g.doRequest(ctx, secret, http.MethodPost, "/payment-plans", map[string]interface{}{
		"name":     fmt.Sprintf("Subscription %s %s", amount.String(), frequency),
		"amount":   majorUnits(amount),
		"currency": amount.Currency(),
		"interval": interval,
	})
	if err != nil {
		return "", err
	}

	var plan flutterwavePlan
	if err := json.Unmarshal(created, &plan); err != nil {
		return "", fmt.Errorf("failed to parse plan response: %w", err)
	}
	return fmt.Sprintf("%d", plan.ID), nil
}

func flutterwaveInterval(frequency vo.Frequency) string {
	if frequency == vo.FrequencyYearly {
		return "yearly"
	}
	return "monthly"
}

// toMinorUnits converts a Flutterwave major-unit amount into the same minor
// unit Money.MinorUnits produces.
func toMinorUnits(amount float64, currency string) int64 {
	m := vo.NewMoney(int64(math.Round(amount*100)), currency)
	return m.MinorUnits()
}

type flutterwaveTransaction struct {
	ID       int64   `json:"id"`
	TxRef    string  `json:"tx_ref"`
	Status   string  `json:"status"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

func (g *FlutterwaveGateway) verifyTransaction(ctx context.Context, secret string, transactionID string) (*appgateway.Confirmation, error) {
	data, err := g.doRequest(ctx, secret, http.MethodGet, "/transactions/"+transactionID+"/verify", nil)
	if err != nil {
		return nil, err
	}

	var tx flutterwaveTransaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, fmt.Errorf("failed to parse verify response: %w", err)
	}

	conf := &appgateway.Confirmation{
		Reference: tx.TxRef,
		Amount:    toMinorUnits(tx.Amount, tx.Currency),
		Currency:  tx.Currency,
		PaidAt:    time.Now().UTC(),
	}
	if tx.Status == "successful" {
		conf.Event = appgateway.EventPaymentSucceeded
	} else {
		conf.Event = appgateway.EventPaymentFailed
	}
	return conf, nil
}

func (g *FlutterwaveGateway) VerifyReturn(ctx context.Context, co *checkout.Checkout, params map[string]string) (*appgateway.Confirmation, error) {
	if params["status"] == "cancelled" {
		return &appgateway.Confirmation{
			Reference: co.Reference(),
			Event:     appgateway.EventPaymentFailed,
		}, nil
	}

	transactionID := params["transaction_id"]
	if transactionID == "" {
		return nil, fmt.Errorf("missing transaction_id")
	}
	return g.verifyTransaction(ctx, g.secretFor(co), transactionID)
}

func (g *FlutterwaveGateway) ParseWebhook(req *http.Request, body []byte) (*appgateway.Confirmation, error) {
	hash := req.Header.Get("verif-hash")
	if hash == "" || subtle.ConstantTimeCompare([]byte(hash), []byte(g.cfg.WebhookHash)) != 1 {
		return nil, fmt.Errorf("signature verification failed")
	}

	var event struct {
		Event string `json:"event"`
		Data  struct {
			ID    int64  `json:"id"`
			TxRef string `json:"tx_ref"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}

	if event.Event != "charge.completed" {
		return &appgateway.Confirmation{Event: appgateway.EventIgnored}, nil
	}

	// The hash only authenticates the sender. Amount and status must come
	// from the transactions API, not the webhook body.
	return g.verifyTransaction(req.Context(), g.cfg.SecretKey, fmt.Sprintf("%d", event.Data.ID))
}

func (g *FlutterwaveGateway) CancelSubscription(ctx context.Context, co *checkout.Checkout) error {
	secret := g.secretFor(co)

	subscriptionID := ""
	if co.ProviderSubscriptionID() != nil {
		subscriptionID = *co.ProviderSubscriptionID()
	} else {
		// Charge webhooks carry no subscription id; resolve it from the
		// customer's active subscriptions instead.
		id, err := g.findSubscriptionID(ctx, secret, co)
		if err != nil {
			return err
		}
		subscriptionID = id
	}

	_, err := g.doRequest(ctx, secret, http.MethodPut, "/subscriptions/"+subscriptionID+"/cancel", nil)
	if err != nil {
		return fmt.Errorf("flutterwave cancellation failed: %w", err)
	}
	return nil
}

func (g *FlutterwaveGateway) findSubscriptionID(ctx context.Context, secret string, co *checkout.Checkout) (string, error) {
	data, err := g.doRequest(ctx, secret, http.MethodGet, "/subscriptions?email="+co.Email(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to list subscriptions: %w", err)
	}

	var subs []struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
		Plan   int64  `json:"plan"`
	}
	if err := json.Unmarshal(data, &subs); err != nil {
		return "", fmt.Errorf("failed to parse subscription list: %w", err)
	}

	planID, _ := co.Meta()["provider_plan_id"].(string)
	for _, s := range subs {
		if s.Status != "active" {
			continue
		}
		if planID == "" || fmt.Sprintf("%d", s.Plan) == planID {
			return fmt.Sprintf("%d", s.ID), nil
		}
	}
	return "", fmt.Errorf("no active subscription found for %s", co.Email())
}
