package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"checkoutgo/internal/domain/checkout"
)

// MockGateway is a configurable in-memory gateway for tests and local
// development.
type MockGateway struct {
	shouldSucceed bool

	CreateSessionErr      error
	VerifyReturnErr       error
	CancelSubscriptionErr error

	// WebhookConfirmation, when set, is returned verbatim from ParseWebhook.
	WebhookConfirmation *Confirmation

	CancelledReferences []string
}

func NewMockGateway(shouldSucceed bool) *MockGateway {
	return &MockGateway{shouldSucceed: shouldSucceed}
}

func (m *MockGateway) CreateSession(ctx context.Context, co *checkout.Checkout, req CreateSessionRequest) (*CreateSessionResponse, error) {
	if m.CreateSessionErr != nil {
		return nil, m.CreateSessionErr
	}
	sessionID := fmt.Sprintf("mock_%s", co.Reference())
	return &CreateSessionResponse{
		SessionID:   sessionID,
		RedirectURL: fmt.Sprintf("https://mock-payments.example.com/pay?session=%s", sessionID),
	}, nil
}

func (m *MockGateway) VerifyReturn(ctx context.Context, co *checkout.Checkout, params map[string]string) (*Confirmation, error) {
	if m.VerifyReturnErr != nil {
		return nil, m.VerifyReturnErr
	}
	event := EventPaymentSucceeded
	if !m.shouldSucceed {
		event = EventPaymentFailed
	}
	return &Confirmation{
		Reference: co.Reference(),
		Event:     event,
		Amount:    co.Amount().MinorUnits(),
		Currency:  co.Amount().Currency(),
		PaidAt:    time.Now().UTC(),
	}, nil
}

func (m *MockGateway) ParseWebhook(req *http.Request, body []byte) (*Confirmation, error) {
	if m.WebhookConfirmation != nil {
		return m.WebhookConfirmation, nil
	}
	reference := req.URL.Query().Get("reference")
	if reference == "" {
		return nil, fmt.Errorf("missing reference")
	}
	event := EventPaymentSucceeded
	if !m.shouldSucceed {
		event = EventPaymentFailed
	}
	return &Confirmation{
		Reference: reference,
		Event:     event,
		PaidAt:    time.Now().UTC(),
	}, nil
}

func (m *MockGateway) CancelSubscription(ctx context.Context, co *checkout.Checkout) error {
	if m.CancelSubscriptionErr != nil {
		return m.CancelSubscriptionErr
	}
	m.CancelledReferences = append(m.CancelledReferences, co.Reference())
	return nil
}
