package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"autobook/internal/config"
	"autobook/internal/consumer"
	"autobook/internal/database"
	"autobook/internal/handler"
	"autobook/internal/middleware"
	"autobook/internal/monitor"
	"autobook/internal/payment"
	"autobook/internal/redis"
	"autobook/internal/repository"
	"autobook/internal/service/auth"
	"autobook/internal/service/charge"
	"autobook/internal/service/fulfillment"
	"autobook/internal/service/gateway"
	"autobook/internal/utils"
	"autobook/pkg/bloom"
	"autobook/pkg/breaker"
	"autobook/pkg/limiter"
	"autobook/pkg/log"
	"autobook/pkg/pause"
	"autobook/pkg/queue"
	"autobook/pkg/snowflake"

	"github.com/allegro/bigcache/v3"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.WithFields(map[string]interface{}{
			"error": err.Error(),
		}).Fatal("Failed to load config")
	}
	config.GlobalConfig = cfg

	logConfig := log.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Filename:   cfg.Log.Filename,
		MaxSize:    cfg.Log.MaxSize,
		MaxAge:     cfg.Log.MaxAge,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
	}
	log.Init(logConfig)

	if err := database.Init(cfg); err != nil {
		log.WithFields(map[string]interface{}{
			"error": err.Error(),
		}).Fatal("Failed to initialize database")
	}
	defer database.Close()

	if err := database.AutoMigrate(database.GetDB()); err != nil {
		log.WithFields(map[string]interface{}{
			"error": err.Error(),
		}).Fatal("Failed to run migrations")
	}

	if err := redis.Init(cfg); err != nil {
		log.WithFields(map[string]interface{}{
			"error": err.Error(),
		}).Fatal("Failed to initialize redis")
	}
	defer redis.Close()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	db := database.GetDB()
	redisClient := redis.GetClient()

	// repositories
	campaignRepo := repository.NewCampaignRepository(db)
	instrumentRepo := repository.NewInstrumentRepository(db)
	intentRepo := repository.NewIntentRepository(db)
	requestRepo := repository.NewBookingRequestRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	tripRepo := repository.NewTripRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	userRepo := repository.NewUserRepository(db)

	idGenerator, err := snowflake.NewIDGenerator(1)
	if err != nil {
		log.WithFields(map[string]interface{}{
			"error": err.Error(),
		}).Fatal("Failed to create ID generator")
	}

	messageQueue, err := buildMessageQueue(cfg)
	if err != nil {
		log.WithFields(map[string]interface{}{
			"error": err.Error(),
		}).Fatal("Failed to create message queue")
	}
	defer messageQueue.Close()

	// payment gateway with primary/secondary providers
	primary := payment.NewStripeProvider(cfg.Payment.Primary.APIKey)
	secondary := payment.NewAdyenProvider(
		cfg.Payment.Secondary.BaseURL,
		cfg.Payment.Secondary.APIKey,
		cfg.Payment.Secondary.MerchantAccount,
		cfg.Payment.Secondary.Timeout,
	)

	breakerManager := breaker.NewManager(breaker.Config{
		MaxRequests: cfg.Payment.Breaker.MaxRequests,
		Interval:    cfg.Payment.Breaker.Interval,
		Timeout:     cfg.Payment.Breaker.Timeout,
		ReadyToTrip: func(counts breaker.Counts) bool {
			if counts.Requests < cfg.Payment.Breaker.MinRequests {
				return false
			}
			failureRate := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRate >= cfg.Payment.Breaker.FailureRatio
		},
		OnStateChange: func(name string, from breaker.State, to breaker.State) {
			log.WithFields(map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	paymentGateway := gateway.New(primary, secondary, breakerManager, cfg.Payment.FallbackEnabled)

	// charge pipeline support
	chargeScripts := redis.NewChargeScripts(redisClient)
	campaignFilter := bloom.NewCountingBloomFilter(redisClient, bloom.Config{
		KeyPrefix:        "autobook:campaigns",
		ExpectedElements: 100000,
	})
	pauseManager := pause.NewManager(redisClient)
	rateLimiter := limiter.NewMultiDimensionLimiter(redisClient)

	localCache, err := bigcache.New(context.Background(), bigcache.DefaultConfig(10*time.Minute))
	if err != nil {
		log.WithFields(map[string]interface{}{
			"error": err.Error(),
		}).Fatal("Failed to create local cache")
	}

	chargeService := charge.NewChargeService(
		campaignRepo,
		instrumentRepo,
		intentRepo,
		requestRepo,
		paymentGateway,
		chargeScripts,
		campaignFilter,
		pauseManager,
		rateLimiter,
		messageQueue,
		localCache,
		idGenerator,
		cfg.Queue.FulfillmentTopic,
	)

	if err := chargeService.PrewarmCampaignFilter(context.Background()); err != nil {
		log.WithFields(map[string]interface{}{
			"error": err.Error(),
		}).Warn("Campaign filter prewarm failed, filter rebuilds on demand")
	}

	// fulfillment worker
	airlineClient := fulfillment.NewRESTAirlineClient(
		cfg.Fulfillment.AirlineBaseURL,
		cfg.Fulfillment.AirlineToken,
		cfg.Fulfillment.AirlineTimeout,
	)

	fulfillmentService := fulfillment.NewFulfillmentService(
		requestRepo,
		bookingRepo,
		campaignRepo,
		intentRepo,
		tripRepo,
		notificationRepo,
		paymentGateway,
		airlineClient,
		messageQueue,
		redisClient,
		idGenerator,
		cfg.Queue.FulfillmentTopic,
		fulfillment.Config{
			MaxAttempts: cfg.Fulfillment.MaxAttempts,
			StaleAfter:  cfg.Fulfillment.StaleAfter,
		},
	)

	fulfillmentConsumer := consumer.NewFulfillmentConsumer(
		fulfillmentService,
		messageQueue,
		cfg.Queue.FulfillmentTopic,
		cfg.Fulfillment.SweepInterval,
	)
	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	defer consumerCancel()
	fulfillmentConsumer.Start(consumerCtx)
	defer fulfillmentConsumer.Stop()

	jwtManager := utils.NewJWTManager(
		cfg.Security.JWTSecret,
		cfg.Security.JWTIssuer,
		cfg.Security.AccessExpire,
		cfg.Security.RefreshExpire,
	)
	authService := auth.NewAuthService(userRepo, jwtManager, redisClient)

	metrics := monitor.NewMetricsCollector()
	go metrics.StartSystemMetricsCollection(consumerCtx)

	router := setupRouter(cfg, metrics, deps{
		authService:      authService,
		chargeService:    chargeService,
		campaignRepo:     campaignRepo,
		instrumentRepo:   instrumentRepo,
		requestRepo:      requestRepo,
		bookingRepo:      bookingRepo,
		notificationRepo: notificationRepo,
	})

	server := &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	go func() {
		log.WithFields(map[string]interface{}{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting HTTP server")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithFields(map[string]interface{}{
				"error": err.Error(),
			}).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithFields(map[string]interface{}{
			"error": err.Error(),
		}).Fatal("Server forced to shutdown")
	}

	log.Info("Server exited")
}

type deps struct {
	authService      auth.AuthService
	chargeService    charge.ChargeService
	campaignRepo     repository.CampaignRepository
	instrumentRepo   repository.InstrumentRepository
	requestRepo      repository.BookingRequestRepository
	bookingRepo      repository.BookingRepository
	notificationRepo repository.NotificationRepository
}

func buildMessageQueue(cfg *config.Config) (queue.MessageQueue, error) {
	switch cfg.Queue.Driver {
	case "kafka":
		return queue.NewKafkaMessageQueue(queue.KafkaConfig{
			Brokers: cfg.Queue.Brokers,
			GroupID: cfg.Queue.GroupID,
		}), nil
	case "memory", "":
		return queue.NewMemoryMessageQueue(), nil
	default:
		return nil, fmt.Errorf("unknown queue driver %q", cfg.Queue.Driver)
	}
}

func setupRouter(cfg *config.Config, metrics *monitor.MetricsCollector, d deps) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS())
	router.Use(httpMetrics(metrics))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.IPRateLimit(cfg.RateLimit.PerIP.RPS, cfg.RateLimit.PerIP.Burst))
	}

	router.GET("/health", healthCheck)
	router.GET("/ping", ping)
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	authHandler := handler.NewAuthHandler(d.authService)
	chargeHandler := handler.NewChargeHandler(d.chargeService)
	campaignHandler := handler.NewCampaignHandler(d.campaignRepo, d.instrumentRepo, d.chargeService)
	bookingHandler := handler.NewBookingHandler(d.requestRepo, d.bookingRepo, d.notificationRepo)

	api := router.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/health", healthCheck)
			v1.GET("/ping", ping)

			authGroup := v1.Group("/auth")
			{
				authGroup.POST("/register", authHandler.Register)
				authGroup.POST("/login", authHandler.Login)
				authGroup.POST("/refresh", authHandler.RefreshToken)
			}

			tokenValidator := func(ctx context.Context, token string) (*utils.JWTClaims, error) {
				return d.authService.ValidateToken(ctx, token)
			}

			protected := v1.Group("")
			protected.Use(middleware.Auth(tokenValidator))
			{
				protected.POST("/auth/logout", authHandler.Logout)

				protected.POST("/campaigns", campaignHandler.CreateCampaign)
				protected.GET("/campaigns", campaignHandler.ListCampaigns)
				protected.POST("/campaigns/:id/cancel", campaignHandler.CancelCampaign)

				chargeGroup := protected.Group("/charges")
				chargeGroup.Use(middleware.ChargeRateLimit())
				{
					chargeGroup.POST("", chargeHandler.CreateCharge)
					chargeGroup.GET("/:campaign_id/:offer_id", chargeHandler.QueryCharge)
					chargeGroup.POST("/prewarm", chargeHandler.PrewarmCampaigns)
				}

				protected.GET("/booking-requests/:id", bookingHandler.GetBookingRequest)
				protected.GET("/bookings", bookingHandler.ListBookings)
				protected.GET("/trips/:id/notifications", bookingHandler.ListTripNotifications)
				protected.GET("/notifications", bookingHandler.ListNotifications)
				protected.POST("/notifications/:id/read", bookingHandler.MarkNotificationRead)
			}
		}
	}

	return router
}

func httpMetrics(metrics *monitor.MetricsCollector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()))
		metrics.RecordHTTPDuration(c.Request.Method, path, time.Since(start))
	}
}

func healthCheck(c *gin.Context) {
	dbHealth := checkDatabase()
	redisHealth := checkRedis()

	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"version":   "1.0.0",
		"services": map[string]interface{}{
			"database": dbHealth,
			"redis":    redisHealth,
		},
	}

	if !dbHealth["healthy"].(bool) || !redisHealth["healthy"].(bool) {
		health["status"] = "error"
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}

	c.JSON(http.StatusOK, health)
}

func ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "pong",
		"timestamp": time.Now().Unix(),
	})
}

func checkDatabase() map[string]interface{} {
	db := database.GetDB()
	if db == nil {
		return map[string]interface{}{
			"healthy": false,
			"error":   "database connection is nil",
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return map[string]interface{}{
			"healthy": false,
			"error":   err.Error(),
		}
	}

	if err := sqlDB.Ping(); err != nil {
		return map[string]interface{}{
			"healthy": false,
			"error":   err.Error(),
		}
	}

	return map[string]interface{}{
		"healthy": true,
		"status":  "connected",
	}
}

func checkRedis() map[string]interface{} {
	client := redis.GetClient()
	if client == nil {
		return map[string]interface{}{
			"healthy": false,
			"error":   "redis client is nil",
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return map[string]interface{}{
			"healthy": false,
			"error":   err.Error(),
		}
	}

	return map[string]interface{}{
		"healthy": true,
		"status":  "connected",
	}
}
