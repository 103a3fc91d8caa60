package http

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"checkoutgo/internal/application/checkout/fulfillment"
	"checkoutgo/internal/application/checkout/gateway"
	checkoutUsecases "checkoutgo/internal/application/checkout/usecases"
	vo "checkoutgo/internal/domain/checkout/valueobjects"
	"checkoutgo/internal/infrastructure/auth"
	"checkoutgo/internal/infrastructure/config"
	"checkoutgo/internal/infrastructure/email"
	"checkoutgo/internal/infrastructure/fulfillmentops"
	infraGateway "checkoutgo/internal/infrastructure/gateway"
	"checkoutgo/internal/infrastructure/ratelimit"
	"checkoutgo/internal/infrastructure/repository"
	"checkoutgo/internal/infrastructure/scheduler"
	"checkoutgo/internal/interfaces/http/handlers"
	"checkoutgo/internal/interfaces/http/middleware"
	"checkoutgo/internal/interfaces/http/routes"
	"checkoutgo/internal/shared/logger"
)

// Router wires the infrastructure, use cases, and handlers together and
// owns the background scheduler.
type Router struct {
	engine *gin.Engine
	cfg    *config.Config
	log    logger.Interface

	redisClient      *redis.Client
	schedulerManager *scheduler.SchedulerManager
	fulfillmentOps   *fulfillment.Registry

	checkoutHandler *handlers.CheckoutHandler
	returnHandler   *handlers.ReturnHandler
	webhookHandler  *handlers.WebhookHandler

	authMiddleware   *middleware.AuthMiddleware
	webhookRateLimit gin.HandlerFunc
}

func NewRouter(db *gorm.DB, cfg *config.Config, log logger.Interface) (*Router, error) {
	r := &Router{
		engine: gin.New(),
		cfg:    cfg,
		log:    log,
	}

	checkoutRepo := repository.NewCheckoutRepository(db)

	gateways := gateway.NewRegistry()
	gateways.Register(vo.ProviderStripe, infraGateway.NewStripeGateway(cfg.Providers.Stripe, log))
	gateways.Register(vo.ProviderPaystack, infraGateway.NewPaystackGateway(cfg.Providers.Paystack, log))
	gateways.Register(vo.ProviderFlutterwave, infraGateway.NewFlutterwaveGateway(cfg.Providers.Flutterwave, log))
	gateways.Register(vo.ProviderRazorpay, infraGateway.NewRazorpayGateway(cfg.Providers.Razorpay, log))

	r.fulfillmentOps = fulfillment.NewRegistry()
	fulfillmentops.RegisterBuiltins(r.fulfillmentOps, log)

	expiresIn := time.Duration(cfg.Checkout.ExpireMinutes) * time.Minute

	createCheckoutUC := checkoutUsecases.NewCreateCheckoutUseCase(
		checkoutRepo, gateways, r.fulfillmentOps, cfg.Server.BaseURL, expiresIn, log)
	confirmUC := checkoutUsecases.NewProcessConfirmationUseCase(checkoutRepo, r.fulfillmentOps, log)
	handleWebhookUC := checkoutUsecases.NewHandleWebhookUseCase(checkoutRepo, gateways, confirmUC, log)
	verifyReturnUC := checkoutUsecases.NewVerifyReturnUseCase(checkoutRepo, gateways, confirmUC, log)
	cancelSubscriptionUC := checkoutUsecases.NewCancelSubscriptionUseCase(checkoutRepo, gateways, log)
	expireUC := checkoutUsecases.NewExpireCheckoutsUseCase(checkoutRepo, log)
	retryUC := checkoutUsecases.NewRetryFulfillmentUseCase(checkoutRepo, r.fulfillmentOps, log)

	if cfg.Email.Enabled {
		confirmUC.SetReceiptNotifier(email.NewSMTPReceiptSender(cfg.Email))
	}

	if cfg.Redis.Host != "" {
		r.redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		limiter := ratelimit.NewRedisRateLimiter(r.redisClient)
		r.webhookRateLimit = middleware.WebhookRateLimit(limiter, cfg.Checkout.WebhookRequestsPerMinute, log)
	}

	schedulerManager, err := scheduler.NewSchedulerManager(log)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	if err := schedulerManager.RegisterCheckoutJobs(expireUC, retryUC); err != nil {
		return nil, fmt.Errorf("failed to register scheduler jobs: %w", err)
	}
	r.schedulerManager = schedulerManager

	jwtService := auth.NewJWTService(cfg.Auth.JWT)
	r.authMiddleware = middleware.NewAuthMiddleware(jwtService, log)

	r.checkoutHandler = handlers.NewCheckoutHandler(createCheckoutUC, cancelSubscriptionUC, checkoutRepo, log)
	r.returnHandler = handlers.NewReturnHandler(verifyReturnUC, checkoutRepo, cfg.Server.ErrorRedirectURL, log)
	r.webhookHandler = handlers.NewWebhookHandler(handleWebhookUC, log)

	return r, nil
}

func (r *Router) SetupRoutes() {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.Logger(r.log))
	r.engine.Use(middleware.ErrorHandler())
	r.engine.Use(middleware.CORS(r.cfg.Server.AllowedOrigins))

	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.engine.Group("/api/v1")
	routes.SetupCheckoutRoutes(api, r.checkoutHandler, r.returnHandler, r.authMiddleware)
	routes.SetupWebhookRoutes(api, r.webhookHandler, r.webhookRateLimit)
}

// FulfillmentOps exposes the registry so embedding applications can add
// their own operations before the server starts.
func (r *Router) FulfillmentOps() *fulfillment.Registry {
	return r.fulfillmentOps
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

// StartBackground launches the expiry and fulfillment retry sweeps.
func (r *Router) StartBackground() {
	r.schedulerManager.Start()
}

func (r *Router) Shutdown() error {
	if err := r.schedulerManager.Stop(); err != nil {
		return err
	}
	if r.redisClient != nil {
		return r.redisClient.Close()
	}
	return nil
}
