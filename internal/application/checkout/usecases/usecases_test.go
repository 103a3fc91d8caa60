package usecases

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkoutgo/internal/application/checkout/fulfillment"
	"checkoutgo/internal/application/checkout/gateway"
	"checkoutgo/internal/domain/checkout"
	vo "checkoutgo/internal/domain/checkout/valueobjects"
	"checkoutgo/internal/shared/logger"
)

type fakeCheckoutRepo struct {
	mu     sync.Mutex
	byRef  map[string]*checkout.Checkout
	nextID uint

	createErr error
	updateErr error
}

func newFakeCheckoutRepo() *fakeCheckoutRepo {
	return &fakeCheckoutRepo{byRef: make(map[string]*checkout.Checkout)}
}

func (r *fakeCheckoutRepo) Create(ctx context.Context, co *checkout.Checkout) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	co.SetID(r.nextID)
	r.byRef[co.Reference()] = co
	return nil
}

func (r *fakeCheckoutRepo) Update(ctx context.Context, co *checkout.Checkout) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byRef[co.Reference()] = co
	return nil
}

func (r *fakeCheckoutRepo) GetByID(ctx context.Context, id uint) (*checkout.Checkout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, co := range r.byRef {
		if co.ID() == id {
			return co, nil
		}
	}
	return nil, checkout.ErrCheckoutNotFound
}

func (r *fakeCheckoutRepo) GetByReference(ctx context.Context, reference string) (*checkout.Checkout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	co, ok := r.byRef[reference]
	if !ok {
		return nil, checkout.ErrCheckoutNotFound
	}
	return co, nil
}

func (r *fakeCheckoutRepo) GetByProviderSessionID(ctx context.Context, sessionID string) (*checkout.Checkout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, co := range r.byRef {
		if co.ProviderSessionID() != nil && *co.ProviderSessionID() == sessionID {
			return co, nil
		}
	}
	return nil, checkout.ErrCheckoutNotFound
}

func (r *fakeCheckoutRepo) GetByProviderSubscriptionID(ctx context.Context, subscriptionID string) (*checkout.Checkout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, co := range r.byRef {
		if co.ProviderSubscriptionID() != nil && *co.ProviderSubscriptionID() == subscriptionID {
			return co, nil
		}
	}
	return nil, checkout.ErrCheckoutNotFound
}

func (r *fakeCheckoutRepo) ClaimPaid(ctx context.Context, reference string, providerSubscriptionID *string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	co, ok := r.byRef[reference]
	if !ok {
		return false, checkout.ErrCheckoutNotFound
	}
	if co.Status().IsPaid() {
		return false, nil
	}
	subID := ""
	if providerSubscriptionID != nil {
		subID = *providerSubscriptionID
	}
	if err := co.MarkPaid(subID); err != nil {
		return false, err
	}
	return true, nil
}

func (r *fakeCheckoutRepo) GetExpiredCheckouts(ctx context.Context) ([]*checkout.Checkout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*checkout.Checkout
	for _, co := range r.byRef {
		if !co.Status().IsFinal() && co.IsExpired() {
			out = append(out, co)
		}
	}
	return out, nil
}

func (r *fakeCheckoutRepo) GetPaidUnfulfilled(ctx context.Context) ([]*checkout.Checkout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*checkout.Checkout
	for _, co := range r.byRef {
		if co.RequiresFulfillment() {
			out = append(out, co)
		}
	}
	return out, nil
}

type fulfillmentRecorder struct {
	mu    sync.Mutex
	calls []map[string]interface{}
	err   error
}

func (f *fulfillmentRecorder) handle(ctx context.Context, args map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, args)
	return nil
}

func (f *fulfillmentRecorder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type testEnv struct {
	repo      *fakeCheckoutRepo
	gateways  *gateway.Registry
	ops       *fulfillment.Registry
	mock      *gateway.MockGateway
	recorder  *fulfillmentRecorder
	createUC  *CreateCheckoutUseCase
	confirmUC *ProcessConfirmationUseCase
	webhookUC *HandleWebhookUseCase
	returnUC  *VerifyReturnUseCase
	cancelUC  *CancelSubscriptionUseCase
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := newFakeCheckoutRepo()
	gateways := gateway.NewRegistry()
	mock := gateway.NewMockGateway(true)
	gateways.Register(vo.ProviderStripe, mock)

	ops := fulfillment.NewRegistry()
	recorder := &fulfillmentRecorder{}
	ops.MustRegister("orders.complete", recorder.handle)

	log := logger.NewLogger()
	confirmUC := NewProcessConfirmationUseCase(repo, ops, log)

	return &testEnv{
		repo:      repo,
		gateways:  gateways,
		ops:       ops,
		mock:      mock,
		recorder:  recorder,
		createUC:  NewCreateCheckoutUseCase(repo, gateways, ops, "https://pay.example.com", 30*time.Minute, log),
		confirmUC: confirmUC,
		webhookUC: NewHandleWebhookUseCase(repo, gateways, confirmUC, log),
		returnUC:  NewVerifyReturnUseCase(repo, gateways, confirmUC, log),
		cancelUC:  NewCancelSubscriptionUseCase(repo, gateways, log),
	}
}

func validCommand() CreateCheckoutCommand {
	return CreateCheckoutCommand{
		Price:         "25.00",
		Currency:      "USD",
		PaymentType:   "onetime",
		Provider:      "stripe",
		Email:         "buyer@example.com",
		CallbackURL:   "https://merchant.example.com/thanks",
		ErrorURL:      "https://merchant.example.com/sorry",
		FulfillmentOp: "orders.complete",
		FulfillmentArgs: map[string]interface{}{
			"order_id": float64(42),
		},
	}
}

func successConfirmation(co *checkout.Checkout) *gateway.Confirmation {
	return &gateway.Confirmation{
		Reference: co.Reference(),
		Event:     gateway.EventPaymentSucceeded,
		Amount:    co.Amount().MinorUnits(),
		Currency:  co.Amount().Currency(),
		PaidAt:    time.Now().UTC(),
	}
}

func newWebhookRequest(t *testing.T, reference string) *http.Request {
	t.Helper()
	url := "https://pay.example.com/api/v1/webhooks/stripe"
	if reference != "" {
		url += "?reference=" + reference
	}
	req, err := http.NewRequest(http.MethodPost, url, nil)
	require.NoError(t, err)
	return req
}

// =============================================================================
// CreateCheckout
// =============================================================================

func TestCreateCheckout_Success(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.createUC.Execute(context.Background(), validCommand())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Status)
	assert.NotEmpty(t, result.Reference)
	assert.Contains(t, result.RedirectURL, "mock-payments.example.com")

	co, err := env.repo.GetByReference(context.Background(), result.Reference)
	require.NoError(t, err)
	assert.Equal(t, vo.CheckoutStatusAwaitingRedirect, co.Status())
	require.NotNil(t, co.ProviderSessionID())
}

func TestCreateCheckout_ProviderFailureIsSoft(t *testing.T) {
	env := newTestEnv(t)
	env.mock.CreateSessionErr = errors.New("stripe: api_connection_error")

	result, err := env.createUC.Execute(context.Background(), validCommand())
	require.NoError(t, err, "provider outage must not surface as an error")

	assert.Equal(t, 0, result.Status)
	assert.Empty(t, result.RedirectURL)
	assert.Contains(t, result.Response, "api_connection_error")

	co, err := env.repo.GetByReference(context.Background(), result.Reference)
	require.NoError(t, err)
	assert.Equal(t, vo.CheckoutStatusFailed, co.Status())
}

func TestCreateCheckout_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateCheckoutCommand)
	}{
		{name: "bad price", mutate: func(c *CreateCheckoutCommand) { c.Price = "abc" }},
		{name: "bad payment type", mutate: func(c *CreateCheckoutCommand) { c.PaymentType = "weekly" }},
		{name: "recurring without frequency", mutate: func(c *CreateCheckoutCommand) { c.PaymentType = "recurring" }},
		{name: "unknown provider", mutate: func(c *CreateCheckoutCommand) { c.Provider = "square" }},
		{name: "unregistered provider", mutate: func(c *CreateCheckoutCommand) { c.Provider = "razorpay" }},
		{name: "unknown fulfillment op", mutate: func(c *CreateCheckoutCommand) { c.FulfillmentOp = "orders.unknown" }},
		{name: "missing email", mutate: func(c *CreateCheckoutCommand) { c.Email = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			cmd := validCommand()
			tt.mutate(&cmd)
			_, err := env.createUC.Execute(context.Background(), cmd)
			assert.Error(t, err)
		})
	}
}

// =============================================================================
// ProcessConfirmation
// =============================================================================

func createPendingCheckout(t *testing.T, env *testEnv) *checkout.Checkout {
	t.Helper()
	result, err := env.createUC.Execute(context.Background(), validCommand())
	require.NoError(t, err)
	require.Equal(t, 1, result.Status)
	co, err := env.repo.GetByReference(context.Background(), result.Reference)
	require.NoError(t, err)
	return co
}

func TestProcessConfirmation_SuccessFulfillsOnce(t *testing.T) {
	env := newTestEnv(t)
	co := createPendingCheckout(t, env)

	require.NoError(t, env.confirmUC.Execute(context.Background(), co, successConfirmation(co)))

	assert.Equal(t, vo.CheckoutStatusPaid, co.Status())
	require.NotNil(t, co.FulfilledAt())
	require.Equal(t, 1, env.recorder.callCount())
	assert.Equal(t, float64(42), env.recorder.calls[0]["order_id"])
}

func TestProcessConfirmation_DuplicateIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	co := createPendingCheckout(t, env)

	require.NoError(t, env.confirmUC.Execute(context.Background(), co, successConfirmation(co)))
	require.NoError(t, env.confirmUC.Execute(context.Background(), co, successConfirmation(co)))

	assert.Equal(t, 1, env.recorder.callCount(), "duplicate confirmation must not fulfill twice")
}

func TestProcessConfirmation_ConcurrentConfirmationsFulfillOnce(t *testing.T) {
	env := newTestEnv(t)
	co := createPendingCheckout(t, env)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = env.confirmUC.Execute(context.Background(), co, successConfirmation(co))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, env.recorder.callCount())
	assert.Equal(t, vo.CheckoutStatusPaid, co.Status())
}

func TestProcessConfirmation_AmountMismatchRejected(t *testing.T) {
	env := newTestEnv(t)
	co := createPendingCheckout(t, env)

	conf := successConfirmation(co)
	conf.Amount = 100

	err := env.confirmUC.Execute(context.Background(), co, conf)
	assert.Error(t, err)
	assert.NotEqual(t, vo.CheckoutStatusPaid, co.Status())
	assert.Equal(t, 0, env.recorder.callCount())
}

func TestProcessConfirmation_FulfillmentFailureKeepsClaim(t *testing.T) {
	env := newTestEnv(t)
	co := createPendingCheckout(t, env)
	env.recorder.err = errors.New("downstream unavailable")

	require.NoError(t, env.confirmUC.Execute(context.Background(), co, successConfirmation(co)))

	assert.Equal(t, vo.CheckoutStatusPaid, co.Status())
	assert.Nil(t, co.FulfilledAt(), "failed fulfillment must stay retryable")

	// scheduler retry path
	env.recorder.err = nil
	log := logger.NewLogger()
	retryUC := NewRetryFulfillmentUseCase(env.repo, env.ops, log)
	count, err := retryUC.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.NotNil(t, co.FulfilledAt())
	assert.Equal(t, 1, env.recorder.callCount())
}

func TestProcessConfirmation_FailureEventNeverDemotesPaid(t *testing.T) {
	env := newTestEnv(t)
	co := createPendingCheckout(t, env)
	require.NoError(t, env.confirmUC.Execute(context.Background(), co, successConfirmation(co)))

	conf := &gateway.Confirmation{Reference: co.Reference(), Event: gateway.EventPaymentFailed}
	require.NoError(t, env.confirmUC.Execute(context.Background(), co, conf))
	assert.Equal(t, vo.CheckoutStatusPaid, co.Status())
}

// =============================================================================
// HandleWebhook
// =============================================================================

func TestHandleWebhook_UnknownReferenceIsAcked(t *testing.T) {
	env := newTestEnv(t)

	req := newWebhookRequest(t, "co_does_not_exist")
	err := env.webhookUC.Execute(context.Background(), vo.ProviderStripe, req, nil)
	assert.NoError(t, err, "unknown references are acknowledged, not retried")
	assert.Equal(t, 0, env.recorder.callCount())
}

func TestHandleWebhook_InvalidSignatureRejected(t *testing.T) {
	env := newTestEnv(t)

	// mock gateway rejects requests without a reference param
	req := newWebhookRequest(t, "")
	err := env.webhookUC.Execute(context.Background(), vo.ProviderStripe, req, nil)
	assert.Error(t, err)
}

func TestHandleWebhook_SuccessDrivesFulfillment(t *testing.T) {
	env := newTestEnv(t)
	co := createPendingCheckout(t, env)

	req := newWebhookRequest(t, co.Reference())
	require.NoError(t, env.webhookUC.Execute(context.Background(), vo.ProviderStripe, req, nil))

	assert.Equal(t, vo.CheckoutStatusPaid, co.Status())
	assert.Equal(t, 1, env.recorder.callCount())
}

func paidRecurringCheckout(t *testing.T, env *testEnv, subscriptionID string) *checkout.Checkout {
	t.Helper()
	result, err := env.createUC.Execute(context.Background(), recurringCommand())
	require.NoError(t, err)
	co, err := env.repo.GetByReference(context.Background(), result.Reference)
	require.NoError(t, err)
	conf := successConfirmation(co)
	conf.SubscriptionID = subscriptionID
	require.NoError(t, env.confirmUC.Execute(context.Background(), co, conf))
	return co
}

func TestHandleWebhook_CancellationBySubscriptionID(t *testing.T) {
	env := newTestEnv(t)
	co := paidRecurringCheckout(t, env, "sub_123")

	// Provider cancellation notifications carry no checkout reference, only
	// the subscription id.
	env.mock.WebhookConfirmation = &gateway.Confirmation{
		SubscriptionID: "sub_123",
		Event:          gateway.EventSubscriptionCancelled,
	}

	req := newWebhookRequest(t, "")
	require.NoError(t, env.webhookUC.Execute(context.Background(), vo.ProviderStripe, req, nil))
	assert.Equal(t, vo.CheckoutStatusCancelled, co.Status())
}

func TestHandleWebhook_UnknownSubscriptionIDIsAcked(t *testing.T) {
	env := newTestEnv(t)
	env.mock.WebhookConfirmation = &gateway.Confirmation{
		SubscriptionID: "sub_elsewhere",
		Event:          gateway.EventSubscriptionCancelled,
	}

	req := newWebhookRequest(t, "")
	assert.NoError(t, env.webhookUC.Execute(context.Background(), vo.ProviderStripe, req, nil))
}

func TestHandleWebhook_UnknownProvider(t *testing.T) {
	env := newTestEnv(t)
	req := newWebhookRequest(t, "co_abc")
	err := env.webhookUC.Execute(context.Background(), vo.ProviderFlutterwave, req, nil)
	assert.Error(t, err)
}

// =============================================================================
// VerifyReturn
// =============================================================================

func TestVerifyReturn_Success(t *testing.T) {
	env := newTestEnv(t)
	co := createPendingCheckout(t, env)

	result, err := env.returnUC.Execute(context.Background(), co.Reference(), nil)
	require.NoError(t, err)
	assert.True(t, result.Paid)
	assert.Equal(t, co.CallbackURL(), result.RedirectURL)
	assert.Equal(t, 1, env.recorder.callCount())
}

func TestVerifyReturn_AlreadyPaidSkipsVerification(t *testing.T) {
	env := newTestEnv(t)
	co := createPendingCheckout(t, env)
	require.NoError(t, env.confirmUC.Execute(context.Background(), co, successConfirmation(co)))

	env.mock.VerifyReturnErr = errors.New("should not be called")
	result, err := env.returnUC.Execute(context.Background(), co.Reference(), nil)
	require.NoError(t, err)
	assert.True(t, result.Paid)
	assert.Equal(t, 1, env.recorder.callCount())
}

func TestVerifyReturn_VerificationFailureRedirectsToErrorURL(t *testing.T) {
	env := newTestEnv(t)
	co := createPendingCheckout(t, env)
	env.mock.VerifyReturnErr = errors.New("transaction not found")

	result, err := env.returnUC.Execute(context.Background(), co.Reference(), nil)
	require.NoError(t, err)
	assert.False(t, result.Paid)
	assert.Equal(t, co.ErrorURL(), result.RedirectURL)
	assert.Equal(t, 0, env.recorder.callCount())
}

func TestVerifyReturn_UnknownReference(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.returnUC.Execute(context.Background(), "co_missing", nil)
	assert.Error(t, err)
}

// =============================================================================
// CancelSubscription
// =============================================================================

func recurringCommand() CreateCheckoutCommand {
	cmd := validCommand()
	cmd.PaymentType = "recurring"
	cmd.Frequency = "monthly"
	return cmd
}

func TestCancelSubscription_Success(t *testing.T) {
	env := newTestEnv(t)
	result, err := env.createUC.Execute(context.Background(), recurringCommand())
	require.NoError(t, err)
	co, err := env.repo.GetByReference(context.Background(), result.Reference)
	require.NoError(t, err)

	conf := successConfirmation(co)
	conf.SubscriptionID = "sub_123"
	require.NoError(t, env.confirmUC.Execute(context.Background(), co, conf))

	require.NoError(t, env.cancelUC.Execute(context.Background(), co.Reference()))
	assert.Equal(t, vo.CheckoutStatusCancelled, co.Status())
	assert.Contains(t, env.mock.CancelledReferences, co.Reference())
}

func TestCancelSubscription_Errors(t *testing.T) {
	t.Run("unknown reference", func(t *testing.T) {
		env := newTestEnv(t)
		assert.Error(t, env.cancelUC.Execute(context.Background(), "co_missing"))
	})

	t.Run("one-time checkout", func(t *testing.T) {
		env := newTestEnv(t)
		co := createPendingCheckout(t, env)
		assert.Error(t, env.cancelUC.Execute(context.Background(), co.Reference()))
	})

	t.Run("provider failure still downgrades locally", func(t *testing.T) {
		env := newTestEnv(t)
		co := paidRecurringCheckout(t, env, "sub_123")

		env.mock.CancelSubscriptionErr = errors.New("provider down")
		require.NoError(t, env.cancelUC.Execute(context.Background(), co.Reference()))
		assert.Equal(t, vo.CheckoutStatusCancelled, co.Status())
	})

	t.Run("never paid", func(t *testing.T) {
		env := newTestEnv(t)
		result, err := env.createUC.Execute(context.Background(), recurringCommand())
		require.NoError(t, err)
		assert.Error(t, env.cancelUC.Execute(context.Background(), result.Reference))
	})
}

// =============================================================================
// ExpireCheckouts
// =============================================================================

func TestExpireCheckouts(t *testing.T) {
	env := newTestEnv(t)
	log := logger.NewLogger()
	expireUC := NewExpireCheckoutsUseCase(env.repo, log)

	stale := checkout.ReconstructCheckout(checkout.CheckoutReconstructParams{
		Reference:   "co_stale",
		Amount:      vo.NewMoney(2500, "USD"),
		PaymentType: vo.PaymentTypeOneTime,
		Provider:    vo.ProviderStripe,
		Status:      vo.CheckoutStatusAwaitingRedirect,
		ExpiredAt:   time.Now().UTC().Add(-time.Hour),
	})
	env.repo.byRef[stale.Reference()] = stale

	fresh := createPendingCheckout(t, env)

	count, err := expireUC.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, vo.CheckoutStatusExpired, stale.Status())
	assert.Equal(t, vo.CheckoutStatusAwaitingRedirect, fresh.Status())
}
