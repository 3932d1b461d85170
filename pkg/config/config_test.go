package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSV(t *testing.T) {
	assert.Nil(t, CSV(""))
	assert.Equal(t, []string{"a:9092", "b:9092"}, CSV(" a:9092, ,b:9092 "))
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TAX_RATE", "")
	t.Setenv("PENDING_ORDER_TTL", "")
	t.Setenv("SERVER_PORT", "not-a-port")

	cfg := Load()

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.True(t, decimal.RequireFromString("0.05").Equal(cfg.Pricing.TaxRate))
	assert.Equal(t, "INR", cfg.Pricing.Currency)
	assert.Zero(t, cfg.PendingOrderTTL)
	assert.Equal(t, "Storefront", cfg.Gateway.MerchantName)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("TAX_RATE", "0.18")
	t.Setenv("SHIPPING_FEE", "49.00")
	t.Setenv("FREE_SHIPPING_MIN", "-5")
	t.Setenv("PENDING_ORDER_TTL", "48h")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg := Load()

	require.Len(t, cfg.KafkaBrokers, 2)
	assert.True(t, decimal.RequireFromString("0.18").Equal(cfg.Pricing.TaxRate))
	assert.True(t, decimal.RequireFromString("49").Equal(cfg.Pricing.ShippingFee))
	assert.True(t, cfg.Pricing.FreeShippingMin.IsZero())
	assert.Equal(t, 48*time.Hour, cfg.PendingOrderTTL)
}
