package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// TurtleSequence groups consecutive same-direction reversed entries into one
// reversal campaign. All entries that land within the lookback window share a
// sequence; the sequence is the unit of profit taking and unwind.
type TurtleSequence struct {
	GID                int64 `db:"gid" json:"gid"`
	StrategyInstanceID int64 `db:"strategy_instance_id" json:"strategyInstanceId"`

	Direction SideType       `db:"direction" json:"direction"`
	Status    PositionStatus `db:"status" json:"status"`

	// CurrentMaxQuantity is the highest signal ordinal absorbed so far. The
	// partial-profit tier is keyed by this value, not by individual entries.
	CurrentMaxQuantity int `db:"current_max_quantity" json:"currentMaxQuantity"`

	StartedAt   time.Time   `db:"started_at" json:"startedAt"`
	ClosedAt    *time.Time  `db:"closed_at" json:"closedAt,omitempty"`
	CloseReason CloseReason `db:"close_reason" json:"closeReason,omitempty"`
}

// TurtlePosition is one sized entry inside a turtle sequence, tagged with the
// originating signal's ordinal quantity. Within a sequence there is at most
// one active position per distinct ordinal.
type TurtlePosition struct {
	GID        int64 `db:"gid" json:"gid"`
	SequenceID int64 `db:"sequence_id" json:"sequenceId"`

	Market     string          `db:"market" json:"market"`
	Side       SideType        `db:"side" json:"side"`
	Size       decimal.Decimal `db:"size" json:"size"`
	EntryPrice decimal.Decimal `db:"entry_price" json:"entryPrice"`
	Ordinal    int             `db:"ordinal" json:"ordinal"`

	Status          PositionStatus `db:"status" json:"status"`
	ExchangeOrderID string         `db:"exchange_order_id" json:"exchangeOrderId"`

	OpenedAt    time.Time   `db:"opened_at" json:"openedAt"`
	ClosedAt    *time.Time  `db:"closed_at" json:"closedAt,omitempty"`
	CloseReason CloseReason `db:"close_reason" json:"closeReason,omitempty"`
}

func (p *TurtlePosition) UnrealizedPnL(mark decimal.Decimal) decimal.Decimal {
	if p.Side == SideTypeLong {
		return mark.Sub(p.EntryPrice).Mul(p.Size)
	}
	return p.EntryPrice.Sub(mark).Mul(p.Size)
}

func (p *TurtlePosition) Notional() decimal.Decimal {
	return p.EntryPrice.Mul(p.Size)
}
