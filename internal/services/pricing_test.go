package services_test

import (
	"testing"

	"marketplace/internal/services"
	"marketplace/pkg/config"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPricing_Quote(t *testing.T) {
	pricing := services.NewPricing(config.PricingConfig{
		TaxRate:               decimal.RequireFromString("0.10"),
		FreeShippingThreshold: decimal.NewFromInt(100),
		FlatShippingFee:       decimal.NewFromInt(10),
	})

	tests := []struct {
		name     string
		subtotal string
		tax      string
		shipping string
		total    string
	}{
		{name: "at threshold pays shipping", subtotal: "100", tax: "10", shipping: "10", total: "120"},
		{name: "above threshold ships free", subtotal: "100.01", tax: "10", shipping: "0", total: "110.01"},
		{name: "half cent rounds up", subtotal: "0.05", tax: "0.01", shipping: "10", total: "10.06"},
		{name: "empty", subtotal: "0", tax: "0", shipping: "10", total: "10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			totals := pricing.Quote(decimal.RequireFromString(tt.subtotal))
			assert.Equal(t, tt.tax, totals.Tax.String())
			assert.Equal(t, tt.shipping, totals.ShippingCost.String())
			assert.Equal(t, tt.total, totals.Total.String())
			assert.True(t, totals.Discount.IsZero())
			assert.True(t, totals.Total.Equal(totals.Subtotal.Add(totals.Tax).Add(totals.ShippingCost).Sub(totals.Discount)))
		})
	}
}

func TestLineTotal(t *testing.T) {
	assert.Equal(t, "59.97", services.LineTotal(decimal.RequireFromString("19.99"), 3).String())
	assert.Equal(t, "0", services.LineTotal(decimal.RequireFromString("19.99"), 0).String())
}
