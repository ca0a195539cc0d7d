package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tripnest/booking-backend/internal/cache"
	"github.com/tripnest/booking-backend/internal/config"
	"github.com/tripnest/booking-backend/internal/database"
	"github.com/tripnest/booking-backend/internal/handlers"
	"github.com/tripnest/booking-backend/internal/middleware"
	"github.com/tripnest/booking-backend/internal/services"
	"github.com/tripnest/booking-backend/pkg/inventory"
	"github.com/tripnest/booking-backend/pkg/jwt"
	"github.com/tripnest/booking-backend/pkg/payment"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting TripNest booking backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStartup()

	// Persistence is optional; without DATABASE_URL orders live in memory
	var (
		bookingStore services.BookingOrderStore = services.NewMemoryBookingStore()
		auditLogger  services.PaymentAuditLogger
		auditReader  handlers.PaymentAuditReader
		dbPinger     handlers.Pinger
	)
	if cfg.Database.URL != "" {
		logger.Info("Connecting to database...")
		db, err := database.NewConnection(startupCtx, cfg.Database)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := database.EnsureSchema(startupCtx, db.DB); err != nil {
			logger.Fatalf("Failed to prepare database schema: %v", err)
		}
		logger.Info("Database connection established")

		auditRepository := database.NewPaymentAuditRepository(db.DB, logger)
		bookingStore = database.NewBookingOrderRepository(db.DB)
		auditLogger = auditRepository
		auditReader = auditRepository
		dbPinger = db
	} else {
		logger.Warn("DATABASE_URL not set, booking orders are kept in memory and payment audits are disabled")
	}

	var (
		hotelCache  services.HotelListCache
		redisPinger handlers.Pinger
	)
	if cfg.Redis.URL != "" {
		redisClient, err := cache.NewRedisClient(startupCtx, cfg.Redis.URL)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, hotel list caching disabled")
		} else {
			defer redisClient.Close()
			listCache := cache.NewHotelListCache(redisClient, cfg.Redis.HotelListTTL)
			hotelCache = listCache
			redisPinger = handlers.PingerFunc(listCache.Ping)
			logger.Info("Hotel list cache connected")
		}
	}

	inventoryClient := inventory.NewClient(inventory.Config{
		BaseURL:           cfg.Inventory.BaseURL,
		ClientID:          cfg.Inventory.ClientID,
		ClientSecret:      cfg.Inventory.ClientSecret,
		Timeout:           cfg.Inventory.Timeout,
		TokenSafetyMargin: cfg.Inventory.TokenSafetyMargin,
		RequestsPerSecond: cfg.Inventory.RequestsPerSecond,
	}, logger)
	if !inventoryClient.Configured() {
		logger.Warn("Inventory credentials not set, search and booking will report the provider as unavailable")
	}

	gateway, err := newPaymentGateway(cfg.Payment, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize payment gateway: %v", err)
	}
	logger.WithField("gateway", gateway.Name()).Info("Payment gateway initialized")

	// Initialize services
	searchService := services.NewSearchService(inventoryClient, hotelCache, services.SearchConfig{
		FallbackHotelID: cfg.Search.FallbackHotelID,
		CandidateLimit:  cfg.Search.CandidateLimit,
		StayLeadDays:    cfg.Search.StayLeadDays,
		StayNights:      cfg.Search.StayNights,
		Currency:        cfg.Search.Currency,
	}, logger)
	quoteSecret := cfg.Booking.QuoteSecret
	if quoteSecret == "" {
		quoteSecret, err = randomSecret()
		if err != nil {
			logger.Fatalf("Failed to generate pricing quote secret: %v", err)
		}
		logger.Warn("PRICING_QUOTE_SECRET not set, priced offers expire on restart")
	}
	quoteSigner := jwt.NewService(quoteSecret, cfg.JWT.Issuer, cfg.Booking.QuoteTTL)
	bookingService := services.NewBookingService(inventoryClient, bookingStore, quoteSigner, services.BookingConfig{
		QuoteTTL: cfg.Booking.QuoteTTL,
	}, logger)
	paymentService := services.NewPaymentService(gateway, services.NewMemoryPaymentStore(), auditLogger, services.PaymentConfig{
		SessionTTL:      cfg.Payment.SessionTTL,
		SettlementDays:  cfg.Payment.SettlementDays,
		DefaultCurrency: cfg.Payment.DefaultCurrency,
	}, logger)

	searchHandler := handlers.NewSearchHandler(searchService, cfg.Search.RadiusKm, logger)
	bookingHandler := handlers.NewBookingHandler(bookingService, logger)
	paymentHandler := handlers.NewPaymentHandler(paymentService, auditReader, logger)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestMetadata())
	if cfg.Server.RequestLog {
		router.Use(middleware.RequestLogger(logger))
	}

	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", middleware.CorrelationIDHeader},
		AllowCredentials: !allowsAnyOrigin(cfg.CORS.AllowedOrigins),
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", handlers.HealthCheck(version, map[string]handlers.Pinger{
		"database": dbPinger,
		"redis":    redisPinger,
	}))

	v1 := router.Group("/api/v1")
	v1.Use(middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst).Handler())

	// Search stays public
	v1.GET("/flights/search", searchHandler.SearchFlights)
	v1.GET("/hotels/search", searchHandler.SearchHotels)
	v1.GET("/hotels/:hotelId/offers", searchHandler.GetHotelOffers)

	protected := v1.Group("")
	if cfg.JWT.Secret != "" {
		jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTokenExpiry)
		protected.Use(middleware.AuthMiddleware(jwtService, logger))
	} else {
		logger.Warn("JWT_SECRET not set, booking and payment routes are unauthenticated")
	}

	protected.POST("/flights/price", bookingHandler.PriceFlight)
	protected.POST("/flights/book", bookingHandler.BookFlight)
	protected.POST("/hotels/price", bookingHandler.PriceHotel)
	protected.POST("/hotels/book", bookingHandler.BookHotel)

	protected.GET("/bookings/:orderId", bookingHandler.GetBooking)

	// Provider callbacks authenticate with the shared webhook secret, not a
	// customer token
	if cfg.Booking.WebhookSecret != "" {
		webhooks := v1.Group("/webhooks", middleware.ProviderWebhookAuth(cfg.Booking.WebhookSecret, logger))
		webhooks.POST("/bookings/:orderId/status", bookingHandler.ApplyProviderStatus)
	} else {
		logger.Warn("PROVIDER_WEBHOOK_SECRET not set, provider booking status callbacks are disabled")
	}

	payments := protected.Group("/payments")
	{
		payments.GET("/gateway/status", paymentHandler.GatewayStatus)
		payments.POST("/session", paymentHandler.CreateSession)
		payments.POST("/order", paymentHandler.CreateOrder)
		payments.POST("/:orderId/pay", paymentHandler.ProcessPayment)
		payments.GET("/:orderId/verify", paymentHandler.VerifyPayment)
		payments.POST("/:orderId/refund", paymentHandler.RefundPayment)
		payments.GET("/:orderId/audit", paymentHandler.GetAuditTrail)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

func newPaymentGateway(cfg config.PaymentConfig, logger *logrus.Logger) (payment.Gateway, error) {
	if cfg.Mode == "http" {
		return payment.NewHTTPGateway(payment.HTTPConfig{
			Environment: cfg.Environment,
			BaseURL:     cfg.BaseURL,
			MerchantID:  cfg.MerchantID,
			APIPassword: cfg.APIPassword,
			Timeout:     cfg.Timeout,
		}, logger)
	}
	return payment.NewSimulator(nil), nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// allowsAnyOrigin reports a wildcard origin, which cannot be combined with
// credentials.
func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
