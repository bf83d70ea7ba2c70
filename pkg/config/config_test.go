package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg, err := fromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "0.1", cfg.Pricing.TaxRate.String())
	assert.Equal(t, "100", cfg.Pricing.FreeShippingThreshold.String())
	assert.Equal(t, "10", cfg.Pricing.FlatShippingFee.String())
	assert.Equal(t, "5", cfg.Boost.DailyPrice.String())
	assert.Equal(t, 5*time.Second, cfg.Stripe.Timeout)
	assert.Equal(t, 10, cfg.Checkout.OrderNumberMaxAttempts)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.True(t, cfg.Sweeper.Enabled)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("TAX_RATE", "0.2")
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DB_DSN", "postgres://localhost/marketplace")
	t.Setenv("SWEEPER_INTERVAL", "15m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.2", cfg.Pricing.TaxRate.String())
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, 15*time.Minute, cfg.Sweeper.Interval)
}

func TestValidation(t *testing.T) {
	t.Run("bad decimal", func(t *testing.T) {
		v := viper.New()
		setDefaults(v)
		v.Set("FLAT_SHIPPING_FEE", "ten")
		_, err := fromViper(v)
		assert.ErrorContains(t, err, "FLAT_SHIPPING_FEE")
	})

	t.Run("free boosts", func(t *testing.T) {
		v := viper.New()
		setDefaults(v)
		v.Set("BOOST_DAILY_PRICE", "0")
		_, err := fromViper(v)
		assert.ErrorContains(t, err, "BOOST_DAILY_PRICE")
	})

	t.Run("unknown driver", func(t *testing.T) {
		v := viper.New()
		setDefaults(v)
		v.Set("DB_DRIVER", "mongo")
		_, err := fromViper(v)
		assert.ErrorContains(t, err, "DB_DRIVER")
	})

	t.Run("production needs webhook secret", func(t *testing.T) {
		v := viper.New()
		setDefaults(v)
		v.Set("APP_ENV", "production")
		_, err := fromViper(v)
		assert.ErrorContains(t, err, "STRIPE_WEBHOOK_SECRET")
	})
}
