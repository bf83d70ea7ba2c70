package payments

import (
	"context"

	"github.com/shopspring/decimal"
)

// Gateway creates payment intents and turns signed webhook requests into events.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	ParseWebhook(payload []byte, signature string) (Event, error)
}

// IntentRequest describes the amount to collect for one order.
type IntentRequest struct {
	Amount      decimal.Decimal
	Currency    string
	CustomerID  string
	Description string
	Metadata    map[string]string
}

// Intent is the gateway side of a payment attempt.
type Intent struct {
	ID           string
	ClientSecret string
}

// MinorUnits converts a two-decimal amount to the gateway's integer unit (cents).
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
