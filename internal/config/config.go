package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Pricing  PricingConfig
	Payment  PaymentConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime int // seconds
}

// LoggerConfig holds logger-related configuration.
type LoggerConfig struct {
	Level  string
	Format string // "json" or "console"
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	APIKey string
}

// PricingConfig holds the tax, shipping and verification knobs the pricing
// calculator and checkout saga run on.
type PricingConfig struct {
	TaxRate               decimal.Decimal // e.g. 0.15
	ShippingCost          decimal.Decimal // flat cost when below threshold
	FreeShippingThreshold decimal.Decimal
	PriceTolerance        decimal.Decimal // absolute, per aggregate field
	MaxShippingShare      decimal.Decimal // per-seller cap as fraction of total shipping
	PlatformFeePct        decimal.Decimal
}

// PaymentConfig holds payment gateway and webhook configuration. An empty
// ProviderBaseURL selects the simulated gateway, which is only legal
// outside production.
type PaymentConfig struct {
	Environment     string // "production" enables strict mode, disables test confirmations
	WebhookSecret   string
	Currency        string
	ProviderBaseURL string
	ProviderAPIKey  string
	TimeoutSecs     int
}

// RedisConfig holds the idempotency marker store configuration.
type RedisConfig struct {
	Addr          string
	MarkerTTLSecs int
}

// KafkaConfig holds event sink configuration. Empty brokers disable
// publishing.
type KafkaConfig struct {
	Brokers string // comma-separated
	Topic   string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "marketcheckout"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MinConnections:  getEnvAsInt("DB_MIN_CONNECTIONS", 5),
			MaxConnLifetime: getEnvAsInt("DB_MAX_CONN_LIFETIME", 300),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			APIKey: getEnv("API_KEY", ""),
		},
		Pricing: PricingConfig{
			TaxRate:               getEnvAsDecimal("TAX_RATE", "0.15"),
			ShippingCost:          getEnvAsDecimal("SHIPPING_COST", "10.00"),
			FreeShippingThreshold: getEnvAsDecimal("FREE_SHIPPING_THRESHOLD", "50.00"),
			PriceTolerance:        getEnvAsDecimal("PRICE_TOLERANCE", "0.01"),
			MaxShippingShare:      getEnvAsDecimal("MAX_SHIPPING_SHARE", "0.60"),
			PlatformFeePct:        getEnvAsDecimal("PLATFORM_FEE_PCT", "10"),
		},
		Payment: PaymentConfig{
			Environment:     getEnv("PAYMENT_ENVIRONMENT", "development"),
			WebhookSecret:   getEnv("PAYMENT_WEBHOOK_SECRET", ""),
			Currency:        getEnv("PAYMENT_CURRENCY", "USD"),
			ProviderBaseURL: getEnv("PAYMENT_PROVIDER_URL", ""),
			ProviderAPIKey:  getEnv("PAYMENT_PROVIDER_API_KEY", ""),
			TimeoutSecs:     getEnvAsInt("PAYMENT_TIMEOUT_SECONDS", 30),
		},
		Redis: RedisConfig{
			Addr:          getEnv("REDIS_ADDR", "localhost:6379"),
			MarkerTTLSecs: getEnvAsInt("IDEMPOTENCY_TTL_SECONDS", 300),
		},
		Kafka: KafkaConfig{
			Brokers: getEnv("KAFKA_BROKERS", ""),
			Topic:   getEnv("KAFKA_ORDER_TOPIC", "order.created"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}

	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	if c.Database.MinConnections < 1 {
		return fmt.Errorf("database min connections must be at least 1")
	}

	if c.Database.MinConnections > c.Database.MaxConnections {
		return fmt.Errorf("database min connections cannot exceed max connections")
	}

	if c.Auth.APIKey == "" {
		return fmt.Errorf("API key is required")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logger.Format)
	}

	if c.Pricing.TaxRate.IsNegative() || c.Pricing.TaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("tax rate must be in [0, 1): %s", c.Pricing.TaxRate)
	}

	if c.Pricing.ShippingCost.IsNegative() {
		return fmt.Errorf("shipping cost cannot be negative: %s", c.Pricing.ShippingCost)
	}

	if c.Pricing.PriceTolerance.IsNegative() {
		return fmt.Errorf("price tolerance cannot be negative: %s", c.Pricing.PriceTolerance)
	}

	if c.Pricing.MaxShippingShare.LessThanOrEqual(decimal.Zero) || c.Pricing.MaxShippingShare.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("max shipping share must be in (0, 1]: %s", c.Pricing.MaxShippingShare)
	}

	if c.Payment.Environment == "production" && c.Payment.WebhookSecret == "" {
		return fmt.Errorf("webhook secret is required in production")
	}

	if c.Payment.Environment == "production" && c.Payment.ProviderBaseURL == "" {
		return fmt.Errorf("payment provider URL is required in production")
	}

	if c.Payment.TimeoutSecs < 1 {
		return fmt.Errorf("payment timeout must be at least 1 second")
	}

	if c.Redis.MarkerTTLSecs < 1 {
		return fmt.Errorf("idempotency TTL must be at least 1 second")
	}

	return nil
}

// IsProduction reports whether the payment environment is production.
// Simulated test confirmations are refused there.
func (c *PaymentConfig) IsProduction() bool {
	return c.Environment == "production"
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Address returns the server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDecimal retrieves an environment variable as a decimal or returns
// the default. Invalid values fall back to the default rather than erroring;
// Validate catches out-of-range results.
func getEnvAsDecimal(key, defaultValue string) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return decimal.RequireFromString(defaultValue)
}
