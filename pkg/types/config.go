package types

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// SimpleConfig is the per-instance configuration of the simple reverse
// strategy. Missing fields fall back to the stock parameters.
type SimpleConfig struct {
	// BasePositionSize is multiplied by the signal quantity to size an entry.
	BasePositionSize decimal.Decimal `json:"basePositionSize"`
	MaxPositionSize  decimal.Decimal `json:"maxPositionSize"`

	MaxConcurrentPositions int `json:"maxConcurrentPositions"`

	// ProfitTarget and StopLoss are fractional thresholds on the entry price,
	// e.g. 0.30 and -0.15.
	ProfitTarget float64 `json:"profitTarget"`
	StopLoss     float64 `json:"stopLoss"`

	PositionTimeoutHours int `json:"positionTimeoutHours"`
}

func (c *SimpleConfig) Defaults() {
	if c.BasePositionSize.IsZero() {
		c.BasePositionSize = decimal.NewFromInt(10)
	}
	if c.MaxPositionSize.IsZero() {
		c.MaxPositionSize = decimal.NewFromInt(1000)
	}
	if c.MaxConcurrentPositions == 0 {
		c.MaxConcurrentPositions = 5
	}
	if c.ProfitTarget == 0 {
		c.ProfitTarget = 0.30
	}
	if c.StopLoss == 0 {
		c.StopLoss = -0.15
	}
	if c.PositionTimeoutHours == 0 {
		c.PositionTimeoutHours = 6
	}
}

func (c *SimpleConfig) Validate() error {
	if c.ProfitTarget <= 0 {
		return errors.New("profitTarget must be positive")
	}
	if c.StopLoss >= 0 {
		return errors.New("stopLoss must be negative")
	}
	if c.MaxConcurrentPositions <= 0 {
		return errors.New("maxConcurrentPositions must be positive")
	}
	return nil
}

func (c *SimpleConfig) PositionTimeout() time.Duration {
	return time.Duration(c.PositionTimeoutHours) * time.Hour
}

func ParseSimpleConfig(blob []byte) (*SimpleConfig, error) {
	var c SimpleConfig
	if len(blob) > 0 {
		if err := json.Unmarshal(blob, &c); err != nil {
			return nil, errors.Wrap(err, "can not parse simple strategy config")
		}
	}

	c.Defaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// TurtleTier fixes the sizing and profit-taking behavior for one signal
// ordinal. The table is closed: there are no ad hoc numeric-keyed maps, tiers
// beyond the table follow the overflow policy.
type TurtleTier struct {
	Ordinal         int             `json:"ordinal"`
	PositionSize    decimal.Decimal `json:"positionSize"`
	ProfitThreshold float64         `json:"profitThreshold"`
	CloseRatio      float64         `json:"closeRatio"`
}

type TierOverflowPolicy string

const (
	// TierOverflowClamp reuses the highest configured tier for ordinals above
	// the table.
	TierOverflowClamp TierOverflowPolicy = "clamp"

	// TierOverflowExtend extrapolates the size as ordinal x 10 and falls back
	// to the stock threshold/ratio defaults.
	TierOverflowExtend TierOverflowPolicy = "extend"
)

// TurtleConfig is the per-instance configuration of the turtle reverse
// strategy.
type TurtleConfig struct {
	Tiers []TurtleTier `json:"tiers"`

	MaxPositionSize decimal.Decimal `json:"maxPositionSize"`

	// SequenceLookbackHours bounds how old an active same-direction sequence
	// may be for a new entry to join it.
	SequenceLookbackHours int `json:"sequenceLookbackHours"`
	SequenceTimeoutHours  int `json:"sequenceTimeoutHours"`

	// EmergencyStopLoss is the sequence-level fractional loss that triggers a
	// full unwind, e.g. -0.20.
	EmergencyStopLoss float64 `json:"emergencyStopLoss"`

	TierOverflowPolicy TierOverflowPolicy `json:"tierOverflowPolicy"`
}

// DefaultTurtleTiers is the stock tier table carried over from the production
// parameter set: entries 1 and 2 are sized but never profit-taken, entry 3
// takes half at +50%, entries 4 and up take most of the book at +30%.
func DefaultTurtleTiers() []TurtleTier {
	return []TurtleTier{
		{Ordinal: 1, PositionSize: decimal.NewFromInt(10), ProfitThreshold: 0, CloseRatio: 0},
		{Ordinal: 2, PositionSize: decimal.NewFromInt(20), ProfitThreshold: 0, CloseRatio: 0},
		{Ordinal: 3, PositionSize: decimal.NewFromInt(30), ProfitThreshold: 0.50, CloseRatio: 0.50},
		{Ordinal: 4, PositionSize: decimal.NewFromInt(40), ProfitThreshold: 0.30, CloseRatio: 0.80},
		{Ordinal: 5, PositionSize: decimal.NewFromInt(50), ProfitThreshold: 0.30, CloseRatio: 0.90},
		{Ordinal: 6, PositionSize: decimal.NewFromInt(60), ProfitThreshold: 0.30, CloseRatio: 0.90},
		{Ordinal: 7, PositionSize: decimal.NewFromInt(70), ProfitThreshold: 0.30, CloseRatio: 0.90},
		{Ordinal: 8, PositionSize: decimal.NewFromInt(80), ProfitThreshold: 0.30, CloseRatio: 0.90},
	}
}

func (c *TurtleConfig) Defaults() {
	if len(c.Tiers) == 0 {
		c.Tiers = DefaultTurtleTiers()
	}
	if c.MaxPositionSize.IsZero() {
		c.MaxPositionSize = decimal.NewFromInt(1000)
	}
	if c.SequenceLookbackHours == 0 {
		c.SequenceLookbackHours = 8
	}
	if c.SequenceTimeoutHours == 0 {
		c.SequenceTimeoutHours = 8
	}
	if c.EmergencyStopLoss == 0 {
		c.EmergencyStopLoss = -0.20
	}
	if c.TierOverflowPolicy == "" {
		c.TierOverflowPolicy = TierOverflowExtend
	}
}

func (c *TurtleConfig) Validate() error {
	if c.EmergencyStopLoss >= 0 {
		return errors.New("emergencyStopLoss must be negative")
	}

	switch c.TierOverflowPolicy {
	case TierOverflowClamp, TierOverflowExtend:
	default:
		return errors.Errorf("unknown tier overflow policy %q", c.TierOverflowPolicy)
	}

	for _, tier := range c.Tiers {
		if tier.CloseRatio < 0 || tier.CloseRatio > 1 {
			return errors.Errorf("tier %d: closeRatio must be within [0, 1]", tier.Ordinal)
		}
	}
	return nil
}

func (c *TurtleConfig) SequenceLookback() time.Duration {
	return time.Duration(c.SequenceLookbackHours) * time.Hour
}

func (c *TurtleConfig) SequenceTimeout() time.Duration {
	return time.Duration(c.SequenceTimeoutHours) * time.Hour
}

// Tier resolves the tier for an ordinal, applying the overflow policy above
// the configured table.
func (c *TurtleConfig) Tier(ordinal int) TurtleTier {
	var highest TurtleTier
	for _, tier := range c.Tiers {
		if tier.Ordinal == ordinal {
			return tier
		}
		if tier.Ordinal > highest.Ordinal {
			highest = tier
		}
	}

	if c.TierOverflowPolicy == TierOverflowClamp && ordinal > highest.Ordinal && highest.Ordinal > 0 {
		highest.Ordinal = ordinal
		return highest
	}

	return TurtleTier{
		Ordinal:         ordinal,
		PositionSize:    decimal.NewFromInt(int64(ordinal) * 10),
		ProfitThreshold: 0.30,
		CloseRatio:      0.90,
	}
}

func ParseTurtleConfig(blob []byte) (*TurtleConfig, error) {
	var c TurtleConfig
	if len(blob) > 0 {
		if err := json.Unmarshal(blob, &c); err != nil {
			return nil, errors.Wrap(err, "can not parse turtle strategy config")
		}
	}

	c.Defaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}
