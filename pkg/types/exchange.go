package types

import (
	"context"

	"github.com/shopspring/decimal"
)

// SubmitOrder is a cross-margin market order request against the venue.
type SubmitOrder struct {
	Market string
	Side   OrderSide

	// PosSide is the hedge-mode position side the order acts on.
	PosSide SideType

	Quantity decimal.Decimal
}

// OrderReceipt is the venue acknowledgment of an accepted order.
type OrderReceipt struct {
	OrderID       string
	ClientOrderID string
}

// Exchange is the trading surface the strategies run against. Implementations
// are stateless; there is no retry or backoff here, a failed call is reported
// to the caller and abandoned until the next natural trigger.
type Exchange interface {
	// SubmitMarketOrder places a cross-margin market order and returns the
	// venue order id. The venue-level success code is already checked.
	SubmitMarketOrder(ctx context.Context, order SubmitOrder) (*OrderReceipt, error)

	// QueryAverageFillPrice returns the average fill price of an order, or an
	// error when the venue has not recorded one yet.
	QueryAverageFillPrice(ctx context.Context, market, orderID string) (decimal.Decimal, error)

	// QueryMarkPrice returns the current mark price of a market.
	QueryMarkPrice(ctx context.Context, market string) (decimal.Decimal, error)
}

// Notifier pushes human-readable trade events to a reporting channel.
// Implementations are best effort and must never block trading.
type Notifier interface {
	Notify(format string, args ...interface{})
}
