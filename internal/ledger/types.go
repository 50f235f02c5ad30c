package ledger

import (
	"time"

	"gorm.io/datatypes"

	"fxledger/internal/pkg/fxpair"
)

// Action is the direction of an executed trade.
type Action string

const (
	ActionBuy   Action = "BUY"
	ActionSell  Action = "SELL"
	ActionClose Action = "CLOSE"
)

// IncreasesExposure reports whether the action adds to the base
// currency position.
func (a Action) IncreasesExposure() bool { return a == ActionBuy }

// Trade is an immutable executed-trade fact. Rows are created by
// import and never mutated or deleted afterwards.
type Trade struct {
	ID          int64
	ExternalID  string
	Timestamp   time.Time
	Pair        fxpair.Pair
	Action      Action
	Quantity    float64
	Price       float64
	Fee         float64
	RealizedPnL *float64
}

// Inference is an inference-log entry consumed read-only from the
// ingestion collaborator.
type Inference struct {
	ID         int64
	SourceRef  string
	Timestamp  time.Time
	RawContent string
	Actions    datatypes.JSON
}

// Link associates a trade with the temporally nearest inference.
// At most one Link exists per trade.
type Link struct {
	TradeID         int64
	InferenceID     int64
	DistanceSeconds float64
	CreatedAt       time.Time
}

// Side is the observed position of a metric relative to a threshold.
type Side string

const (
	SideInside    Side = "inside"
	SideTriggered Side = "triggered"
)

// AlertState is the persisted per-threshold crossing state. LastSide is
// written every tick regardless of firing so oscillation around the
// boundary cannot cause alert storms; Version guards concurrent ticks.
type AlertState struct {
	Key                string
	LastSide           Side
	LastFiredAt        *time.Time
	LastFiredDirection string
	LastValue          float64
	Version            int64
	UpdatedAt          time.Time
}
