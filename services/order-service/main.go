package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	aws_pkg "github.com/yashrajoria/storefront-backend/pkg/aws"
	"github.com/yashrajoria/storefront-backend/services/common/auth"
	apperrors "github.com/yashrajoria/storefront-backend/services/common/errors"
	"github.com/yashrajoria/storefront-backend/services/common/logger"
	commonmw "github.com/yashrajoria/storefront-backend/services/common/middleware"
	"github.com/yashrajoria/storefront-backend/services/order-service/config"
	"github.com/yashrajoria/storefront-backend/services/order-service/controllers"
	"github.com/yashrajoria/storefront-backend/services/order-service/database"
	"github.com/yashrajoria/storefront-backend/services/order-service/kafka"
	"github.com/yashrajoria/storefront-backend/services/order-service/middleware"
	"github.com/yashrajoria/storefront-backend/services/order-service/providers"
	"github.com/yashrajoria/storefront-backend/services/order-service/repository"
	"github.com/yashrajoria/storefront-backend/services/order-service/routes"
	servicepkg "github.com/yashrajoria/storefront-backend/services/order-service/services"
)

const serviceName = "order-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, awsErr := aws_pkg.LoadAWSConfig(ctx, aws_pkg.Options{Region: cfg.AWSRegion, Endpoint: cfg.AWSEndpoint})

	var sinks []io.Writer
	if cfg.CloudWatchLogGroup != "" && awsErr == nil {
		shipper, err := aws_pkg.NewLogShipper(ctx, awsCfg, cfg.CloudWatchLogGroup, serviceName)
		if err != nil {
			log.Printf("CloudWatch log shipping disabled: %v", err)
		} else {
			sinks = append(sinks, shipper)
		}
	}
	zapLogger, err := logger.New(cfg.Env, cfg.LogLevel, sinks...)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync() //nolint:errcheck

	if awsErr != nil {
		zapLogger.Warn("AWS config unavailable, SNS and CloudWatch disabled", zap.Error(awsErr))
	}

	if cfg.AWSUseSecrets {
		if awsErr != nil {
			zapLogger.Fatal("AWS_USE_SECRETS set but AWS config failed", zap.Error(awsErr))
		}
		if err := cfg.ApplySecrets(ctx, aws_pkg.NewSecretsClient(awsCfg)); err != nil {
			zapLogger.Fatal("Failed to load secrets", zap.Error(err))
		}
	}
	if err := cfg.Validate(); err != nil {
		zapLogger.Fatal("Invalid configuration", zap.Error(err))
	}

	var metrics servicepkg.MetricsRecorder
	if awsErr == nil {
		metrics = aws_pkg.NewMetricsClient(awsCfg, cfg.CloudWatchNamespace, cfg.CloudWatchEnabled)
	}

	db, err := database.ConnectPostgres(ctx, cfg.DSN(), cfg.AutoMigrate, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db) //nolint:errcheck
	store := repository.NewGormStore(db)

	var intents repository.IntentCache
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			zapLogger.Warn("Redis unavailable, payment intents are not idempotent", zap.Error(err))
		} else {
			defer redisClient.Close() //nolint:errcheck
			intents = repository.NewRedisIntentCache(redisClient, cfg.IntentTTL)
		}
	}

	gateway := providers.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.RazorpayBaseURL, cfg.GatewayTimeout)

	var publisher servicepkg.EventPublisher = servicepkg.NoopPublisher{}
	switch cfg.EventBus {
	case "kafka":
		producer := kafka.NewProducer(cfg.Brokers(), cfg.OrderEventsTopic, zapLogger)
		defer producer.Close() //nolint:errcheck
		publisher = producer
	case "sns":
		if awsErr != nil {
			zapLogger.Fatal("EVENT_BUS=sns but AWS config failed", zap.Error(awsErr))
		}
		publisher = servicepkg.NewSNSEventPublisher(aws_pkg.NewSNSClient(awsCfg), cfg.OrderSNSTopicARN)
	}

	cartService := servicepkg.NewCartService(store, zapLogger)
	orderService := servicepkg.NewOrderService(store, publisher, metrics, cfg.Currency, zapLogger)
	checkoutService := servicepkg.NewCheckoutService(store, gateway, intents, publisher, metrics, servicepkg.CheckoutConfig{
		Currency: cfg.Currency,
	}, zapLogger)
	accountService, err := servicepkg.NewAccountService(store, zapLogger)
	if err != nil {
		zapLogger.Fatal("Invalid purge plan", zap.Error(err))
	}

	if cfg.FulfillmentEventsTopic != "" {
		consumer := servicepkg.NewFulfillmentConsumer(cfg.Brokers(), cfg.FulfillmentEventsTopic, cfg.FulfillmentGroupID, orderService, zapLogger)
		defer consumer.Close() //nolint:errcheck
		go consumer.Start(ctx)
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		gin.Recovery(),
		logger.RequestID(),
		commonmw.RequestLogger(zapLogger),
		commonmw.SecurityHeaders(),
		commonmw.CORSMiddleware(cfg.AllowedOrigins),
		commonmw.NewHTTPMetrics(prometheus.DefaultRegisterer, "order_service").Middleware(),
		commonmw.Timeout(30*time.Second),
		apperrors.ErrorMiddleware(),
	)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": serviceName})
	})
	r.GET("/metrics", gin.WrapH(commonmw.MetricsHandler()))

	verifier := auth.NewTokenVerifier(cfg.JWTSecret)
	middleware.WarnIfTrustingHeaders(verifier, zapLogger)

	routes.RegisterRoutes(r, routes.Controllers{
		Cart:     controllers.NewCartController(cartService),
		Checkout: controllers.NewCheckoutController(checkoutService),
		Order:    controllers.NewOrderController(orderService),
		Admin:    controllers.NewAdminController(orderService, accountService),
	}, verifier, commonmw.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst, 10*time.Minute))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	zapLogger.Info("Order service started",
		zap.String("port", cfg.Port),
		zap.String("event_bus", cfg.EventBus),
		zap.Bool("intent_cache", intents != nil),
	)
	<-ctx.Done()
	zapLogger.Info("Shutting down order service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	zapLogger.Info("Server exited cleanly")
}
