package types

import (
	"time"
)

type StrategyKind string

const (
	StrategyKindSimple StrategyKind = "simple"
	StrategyKindTurtle StrategyKind = "turtle"
)

type InstanceStatus string

const (
	InstanceStatusRunning InstanceStatus = "running"
	InstanceStatusStopped InstanceStatus = "stopped"
	InstanceStatusPaused  InstanceStatus = "paused"
	InstanceStatusError   InstanceStatus = "error"
)

// StrategyInstance is a persisted strategy configuration row. Instances are
// created and edited by the management surface; the engine only reads running
// ones and flips nothing here.
type StrategyInstance struct {
	ID     int64        `db:"id" json:"id"`
	UserID int64        `db:"user_id" json:"userId"`
	Market string       `db:"market" json:"market"`
	Kind   StrategyKind `db:"kind" json:"kind"`

	Status InstanceStatus `db:"status" json:"status"`

	// Config is the raw per-kind JSON configuration blob, see
	// SimpleConfig / TurtleConfig.
	Config []byte `db:"config" json:"config"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

func (s *StrategyInstance) IsRunning() bool {
	return s.Status == InstanceStatusRunning
}

// SimpleConfig parses the config blob as a simple reverse configuration with
// defaults applied.
func (s *StrategyInstance) SimpleConfig() (*SimpleConfig, error) {
	return ParseSimpleConfig(s.Config)
}

// TurtleConfig parses the config blob as a turtle reverse configuration with
// defaults applied.
func (s *StrategyInstance) TurtleConfig() (*TurtleConfig, error) {
	return ParseTurtleConfig(s.Config)
}
