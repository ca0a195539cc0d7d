package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// JWT configuration
	JWT JWTConfig

	// CORS configuration
	CORS CORSConfig

	// Inventory provider configuration
	Inventory InventoryConfig

	// Payment gateway configuration
	Payment PaymentConfig

	// Pricing quote and provider webhook configuration
	Booking BookingConfig

	// Search configuration
	Search SearchConfig

	// Rate limiting configuration
	RateLimit RateLimitConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
	RequestLog  bool
}

// DatabaseConfig holds database-related configuration. An empty URL keeps
// booking orders and audits in memory.
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// RedisConfig holds the hotel list cache configuration
type RedisConfig struct {
	URL          string
	HotelListTTL time.Duration
}

// JWTConfig holds JWT-related configuration. Booking and payment routes are
// only protected when Secret is set.
type JWTConfig struct {
	Secret            string
	Issuer            string
	AccessTokenExpiry time.Duration
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// InventoryConfig holds flight and hotel provider credentials
type InventoryConfig struct {
	BaseURL           string
	ClientID          string
	ClientSecret      string
	Timeout           time.Duration
	TokenSafetyMargin time.Duration
	RequestsPerSecond float64
}

// PaymentConfig holds payment gateway configuration
type PaymentConfig struct {
	Mode            string // "simulator" or "http"
	BaseURL         string
	Environment     string // "sandbox" or "production"
	MerchantID      string
	APIPassword     string // SECRET - never expose to client
	Timeout         time.Duration
	SessionTTL      time.Duration
	SettlementDays  int
	DefaultCurrency string
}

// BookingConfig holds the secrets around the booking pipeline. QuoteSecret
// signs priced offers; WebhookSecret authenticates provider status callbacks.
type BookingConfig struct {
	QuoteSecret   string // SECRET - defaults to JWT_SECRET
	QuoteTTL      time.Duration
	WebhookSecret string // SECRET - provider status route is off when empty
}

// SearchConfig holds hotel search tuning
type SearchConfig struct {
	FallbackHotelID string
	CandidateLimit  int
	RadiusKm        int
	StayLeadDays    int
	StayNights      int
	Currency        string
}

// RateLimitConfig holds inbound rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			RequestLog:  getEnvAsBool("ENABLE_REQUEST_LOGGING", true),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", ""),
			HotelListTTL: getEnvAsDuration("HOTEL_LIST_CACHE_TTL", 15*time.Minute),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			Issuer:            getEnv("JWT_ISSUER", "tripnest"),
			AccessTokenExpiry: getEnvAsDuration("JWT_ACCESS_TOKEN_EXPIRY", time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization", "X-Correlation-ID"}),
		},
		Inventory: InventoryConfig{
			BaseURL:           getEnv("AMADEUS_API_URL", "https://test.api.amadeus.com"),
			ClientID:          getEnv("AMADEUS_CLIENT_ID", ""),
			ClientSecret:      getEnv("AMADEUS_CLIENT_SECRET", ""),
			Timeout:           time.Duration(getEnvAsInt("AMADEUS_TIMEOUT_SECONDS", 20)) * time.Second,
			TokenSafetyMargin: getEnvAsDuration("AMADEUS_TOKEN_SAFETY_MARGIN", time.Minute),
			RequestsPerSecond: getEnvAsFloat("AMADEUS_REQUESTS_PER_SECOND", 10),
		},
		Payment: PaymentConfig{
			Mode:            getEnv("PAYMENT_GATEWAY_MODE", "simulator"),
			BaseURL:         getEnv("PAYMENT_GATEWAY_URL", ""),
			Environment:     getEnv("PAYMENT_GATEWAY_ENV", "sandbox"),
			MerchantID:      getEnv("PAYMENT_MERCHANT_ID", ""),
			APIPassword:     getEnv("PAYMENT_API_PASSWORD", ""),
			Timeout:         time.Duration(getEnvAsInt("PAYMENT_TIMEOUT_SECONDS", 30)) * time.Second,
			SessionTTL:      time.Duration(getEnvAsInt("PAYMENT_SESSION_TTL_MINUTES", 30)) * time.Minute,
			SettlementDays:  getEnvAsInt("PAYMENT_REFUND_SETTLEMENT_DAYS", 3),
			DefaultCurrency: getEnv("PAYMENT_DEFAULT_CURRENCY", "INR"),
		},
		Booking: BookingConfig{
			QuoteSecret:   getEnv("PRICING_QUOTE_SECRET", getEnv("JWT_SECRET", "")),
			QuoteTTL:      getEnvAsDuration("PRICING_QUOTE_TTL", 30*time.Minute),
			WebhookSecret: getEnv("PROVIDER_WEBHOOK_SECRET", ""),
		},
		Search: SearchConfig{
			FallbackHotelID: getEnv("HOTEL_FALLBACK_ID", "MCLONGHM"),
			CandidateLimit:  getEnvAsInt("HOTEL_CANDIDATE_LIMIT", 5),
			RadiusKm:        getEnvAsInt("HOTEL_SEARCH_RADIUS_KM", 5),
			StayLeadDays:    getEnvAsInt("HOTEL_STAY_LEAD_DAYS", 30),
			StayNights:      getEnvAsInt("HOTEL_STAY_NIGHTS", 3),
			Currency:        getEnv("SEARCH_CURRENCY", "INR"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_RPM", 120),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Payment.Mode {
	case "simulator":
	case "http":
		if c.Payment.MerchantID == "" || c.Payment.APIPassword == "" {
			return fmt.Errorf("PAYMENT_MERCHANT_ID and PAYMENT_API_PASSWORD are required for the http gateway")
		}
	default:
		return fmt.Errorf("invalid payment gateway mode: %s (must be 'simulator' or 'http')", c.Payment.Mode)
	}

	if c.Payment.SettlementDays < 0 {
		return fmt.Errorf("PAYMENT_REFUND_SETTLEMENT_DAYS must not be negative")
	}
	if c.Payment.SessionTTL <= 0 {
		return fmt.Errorf("PAYMENT_SESSION_TTL_MINUTES must be positive")
	}
	if c.Booking.QuoteTTL <= 0 {
		return fmt.Errorf("PRICING_QUOTE_TTL must be positive")
	}
	if c.Search.CandidateLimit < 1 {
		return fmt.Errorf("HOTEL_CANDIDATE_LIMIT must be at least 1")
	}
	if c.RateLimit.RequestsPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_RPM must not be negative")
	}

	// Production requires real credentials
	if c.IsProduction() {
		if c.Inventory.ClientID == "" || c.Inventory.ClientSecret == "" {
			return fmt.Errorf("AMADEUS_CLIENT_ID and AMADEUS_CLIENT_SECRET are required in production")
		}
		if c.JWT.Secret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.Payment.Mode == "simulator" {
			return fmt.Errorf("the payment simulator cannot be used in production")
		}
		if c.Booking.WebhookSecret == "" {
			return fmt.Errorf("PROVIDER_WEBHOOK_SECRET is required in production")
		}
	}

	return nil
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Invalid number value for %s, using default: %g", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go duration strings such as "15m" or "90s"
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid duration value for %s, using default: %s", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
