package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config is the full runtime configuration of the API and its workers.
type Config struct {
	App      AppConfig
	DB       DBConfig
	JWT      JWTConfig
	Stripe   StripeConfig
	Pricing  PricingConfig
	Boost    BoostConfig
	Checkout CheckoutConfig
	RabbitMQ RabbitMQConfig
	Redis    RedisConfig
	Webhook  WebhookConfig
	Sweeper  SweeperConfig
}

type AppConfig struct {
	Port      string
	Env       string
	LogLevel  string
	LogFormat string
}

type DBConfig struct {
	Driver       string
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	Timeout       time.Duration
}

// PricingConfig holds the checkout pricing rules.
type PricingConfig struct {
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal
}

// BoostConfig prices paid product boosts.
type BoostConfig struct {
	DailyPrice decimal.Decimal
}

type CheckoutConfig struct {
	OrderNumberMaxAttempts int
}

type RabbitMQConfig struct {
	URL string
}

type RedisConfig struct {
	URL string
}

type WebhookConfig struct {
	IdempotencyTTL time.Duration
}

type SweeperConfig struct {
	Enabled   bool
	Interval  time.Duration
	BatchSize int
	LockTTL   time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_DSN", "file:marketplace.db?cache=shared")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("JWT_SECRET", "change-me")
	v.SetDefault("JWT_TTL", "24h")

	v.SetDefault("STRIPE_SECRET_KEY", "")
	v.SetDefault("STRIPE_WEBHOOK_SECRET", "")
	v.SetDefault("STRIPE_CURRENCY", "usd")
	v.SetDefault("STRIPE_TIMEOUT", "5s")

	v.SetDefault("TAX_RATE", "0.10")
	v.SetDefault("FREE_SHIPPING_THRESHOLD", "100")
	v.SetDefault("FLAT_SHIPPING_FEE", "10")
	v.SetDefault("ORDER_NUMBER_MAX_ATTEMPTS", 10)
	v.SetDefault("BOOST_DAILY_PRICE", "5.00")

	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("WEBHOOK_IDEMPOTENCY_TTL", "72h")

	v.SetDefault("SWEEPER_ENABLED", true)
	v.SetDefault("SWEEPER_INTERVAL", "1h")
	v.SetDefault("SWEEPER_BATCH_SIZE", 100)
	v.SetDefault("SWEEPER_LOCK_TTL", "30m")
}

// Load reads configuration from an optional .env file and the environment.
func Load() (Config, error) {
	// A missing .env file is fine; real deployments use the environment.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		App: AppConfig{
			Port:      v.GetString("APP_PORT"),
			Env:       v.GetString("APP_ENV"),
			LogLevel:  v.GetString("LOG_LEVEL"),
			LogFormat: v.GetString("LOG_FORMAT"),
		},
		DB: DBConfig{
			Driver:       strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
			DSN:          v.GetString("DB_DSN"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
			TTL:    v.GetDuration("JWT_TTL"),
		},
		Stripe: StripeConfig{
			SecretKey:     strings.TrimSpace(v.GetString("STRIPE_SECRET_KEY")),
			WebhookSecret: strings.TrimSpace(v.GetString("STRIPE_WEBHOOK_SECRET")),
			Currency:      strings.ToLower(v.GetString("STRIPE_CURRENCY")),
			Timeout:       v.GetDuration("STRIPE_TIMEOUT"),
		},
		Checkout: CheckoutConfig{
			OrderNumberMaxAttempts: v.GetInt("ORDER_NUMBER_MAX_ATTEMPTS"),
		},
		RabbitMQ: RabbitMQConfig{URL: v.GetString("RABBITMQ_URL")},
		Redis:    RedisConfig{URL: v.GetString("REDIS_URL")},
		Webhook: WebhookConfig{
			IdempotencyTTL: v.GetDuration("WEBHOOK_IDEMPOTENCY_TTL"),
		},
		Sweeper: SweeperConfig{
			Enabled:   v.GetBool("SWEEPER_ENABLED"),
			Interval:  v.GetDuration("SWEEPER_INTERVAL"),
			BatchSize: v.GetInt("SWEEPER_BATCH_SIZE"),
			LockTTL:   v.GetDuration("SWEEPER_LOCK_TTL"),
		},
	}

	var err error
	if cfg.Pricing.TaxRate, err = decimalSetting(v, "TAX_RATE"); err != nil {
		return Config{}, err
	}
	if cfg.Pricing.FreeShippingThreshold, err = decimalSetting(v, "FREE_SHIPPING_THRESHOLD"); err != nil {
		return Config{}, err
	}
	if cfg.Pricing.FlatShippingFee, err = decimalSetting(v, "FLAT_SHIPPING_FEE"); err != nil {
		return Config{}, err
	}
	if cfg.Boost.DailyPrice, err = decimalSetting(v, "BOOST_DAILY_PRICE"); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the services cannot run with.
func (c Config) Validate() error {
	switch c.DB.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DB.Driver)
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Pricing.TaxRate.IsNegative() || c.Pricing.FreeShippingThreshold.IsNegative() || c.Pricing.FlatShippingFee.IsNegative() {
		return fmt.Errorf("pricing settings must be non-negative")
	}
	if !c.Boost.DailyPrice.IsPositive() {
		return fmt.Errorf("BOOST_DAILY_PRICE must be positive")
	}
	if c.Checkout.OrderNumberMaxAttempts < 1 {
		return fmt.Errorf("ORDER_NUMBER_MAX_ATTEMPTS must be at least 1")
	}
	if c.App.Env == "production" && c.Stripe.WebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required in production")
	}
	return nil
}

func decimalSetting(v *viper.Viper, key string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(v.GetString(key))
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: invalid decimal %q: %w", key, raw, err)
	}
	return d, nil
}
