package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type PositionStatus string

const (
	PositionStatusActive PositionStatus = "active"
	PositionStatusClosed PositionStatus = "closed"
)

type CloseReason string

const (
	CloseReasonProfitTarget      CloseReason = "profit_target"
	CloseReasonStopLoss          CloseReason = "stop_loss"
	CloseReasonTimeout           CloseReason = "timeout"
	CloseReasonSequenceTimeout   CloseReason = "sequence_timeout"
	CloseReasonEmergencyStopLoss CloseReason = "emergency_stop_loss"
	CloseReasonPartialProfit     CloseReason = "partial_profit"
	CloseReasonControlHandover   CloseReason = "control_handover"
)

// SimplePosition is one reversed entry owned by a simple strategy instance.
type SimplePosition struct {
	GID                int64 `db:"gid" json:"gid"`
	StrategyInstanceID int64 `db:"strategy_instance_id" json:"strategyInstanceId"`

	Market     string          `db:"market" json:"market"`
	Side       SideType        `db:"side" json:"side"`
	Size       decimal.Decimal `db:"size" json:"size"`
	EntryPrice decimal.Decimal `db:"entry_price" json:"entryPrice"`

	Status          PositionStatus `db:"status" json:"status"`
	ExchangeOrderID string         `db:"exchange_order_id" json:"exchangeOrderId"`

	OpenedAt time.Time  `db:"opened_at" json:"openedAt"`
	ClosedAt *time.Time `db:"closed_at" json:"closedAt,omitempty"`

	PnL         decimal.Decimal `db:"pnl" json:"pnl"`
	CloseReason CloseReason     `db:"close_reason" json:"closeReason,omitempty"`
}

// UnrealizedPnL returns the quote-currency profit of the position against the
// given mark price. Sign flips with our side.
func (p *SimplePosition) UnrealizedPnL(mark decimal.Decimal) decimal.Decimal {
	if p.Side == SideTypeLong {
		return mark.Sub(p.EntryPrice).Mul(p.Size)
	}
	return p.EntryPrice.Sub(mark).Mul(p.Size)
}

// PnLRatio returns the fractional profit against the entry price, e.g. 0.31
// for a 31% favorable move.
func (p *SimplePosition) PnLRatio(mark decimal.Decimal) decimal.Decimal {
	if p.EntryPrice.IsZero() {
		return decimal.Zero
	}
	if p.Side == SideTypeLong {
		return mark.Sub(p.EntryPrice).Div(p.EntryPrice)
	}
	return p.EntryPrice.Sub(mark).Div(p.EntryPrice)
}

// Notional is the entry-price value of the position in quote currency.
func (p *SimplePosition) Notional() decimal.Decimal {
	return p.EntryPrice.Mul(p.Size)
}
