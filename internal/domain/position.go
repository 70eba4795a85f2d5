package domain

import "time"

// Position is the primary, signal-driven leg of an instrument's trade cycle.
type Position struct {
	Instrument    string    `json:"instrument"`
	Side          Side      `json:"side"`
	EntryPrice    float64   `json:"entry_price"`
	LotSize       float64   `json:"lot_size"`
	TakeProfit    float64   `json:"take_profit"`
	TicketRef     string    `json:"ticket_ref"`
	OpenedAt      time.Time `json:"opened_at"`
	BalanceAtOpen float64   `json:"balance_at_open"`
}

type LegStatus string

const (
	LegPending   LegStatus = "PENDING"
	LegTriggered LegStatus = "TRIGGERED"
	LegClosed    LegStatus = "CLOSED"
	LegCancelled LegStatus = "CANCELLED"
)

// ContingencyLeg is one cascade hedge order. Leg directions strictly
// alternate: leg k+1 is always opposite to leg k, and leg 1 is opposite
// to the primary position.
type ContingencyLeg struct {
	Level        int       `json:"level"` // 1-based
	Side         Side      `json:"side"`
	Multiplier   float64   `json:"multiplier"`
	LotSize      float64   `json:"lot_size"`
	TriggerPrice float64   `json:"trigger_price"`
	StopLoss     float64   `json:"stop_loss"`
	TakeProfit   float64   `json:"take_profit"`
	TicketRef    string    `json:"ticket_ref"`
	Status       LegStatus `json:"status"`
}

type PlanState string

const (
	PlanPrimaryOpen PlanState = "PRIMARY_OPEN"
	PlanCascade     PlanState = "CASCADE"
	// PlanHalted marks a plan with corrupted cascade state. No further
	// automated action is taken on the instrument.
	PlanHalted PlanState = "HALTED"
)

// ContingencyPlan owns one instrument's active trade from entry to flat.
// At most one plan may exist per instrument at any time.
type ContingencyPlan struct {
	Instrument     string           `json:"instrument"`
	Primary        Position         `json:"primary"`
	Legs           []ContingencyLeg `json:"legs"`
	CurrentLevel   int              `json:"current_level"` // 0 while no leg has triggered
	MaxLevels      int              `json:"max_levels"`
	State          PlanState        `json:"state"`
	ReferenceLevel float64          `json:"reference_level"` // fast SMA at signal time, leg-1 trigger
	StopDistance   float64          `json:"stop_distance"`
	CreatedAt      time.Time        `json:"created_at"`
}

// NormalTakeProfit is the favorable-side target for the primary position,
// two stop distances from entry.
func (p *ContingencyPlan) NormalTakeProfit() float64 {
	return p.Primary.EntryPrice + 2*p.StopDistance*p.Primary.Side.Sign()
}

// CounterTakeProfit is the target on the hedge side, two stop distances
// beyond the reference level in the adverse direction.
func (p *ContingencyPlan) CounterTakeProfit() float64 {
	return p.ReferenceLevel - 2*p.StopDistance*p.Primary.Side.Sign()
}

// PendingLeg returns the most recent leg still waiting for its trigger,
// or nil when every placed leg has filled or closed.
func (p *ContingencyPlan) PendingLeg() *ContingencyLeg {
	for i := len(p.Legs) - 1; i >= 0; i-- {
		if p.Legs[i].Status == LegPending {
			return &p.Legs[i]
		}
	}
	return nil
}

// TriggeredLegs returns the legs that have filled and are still open.
func (p *ContingencyPlan) TriggeredLegs() []*ContingencyLeg {
	var out []*ContingencyLeg
	for i := range p.Legs {
		if p.Legs[i].Status == LegTriggered {
			out = append(out, &p.Legs[i])
		}
	}
	return out
}

// CooldownEntry records the last primary entry time for an instrument.
// A minimum gap is enforced between primary entries regardless of
// cascade activity in between.
type CooldownEntry struct {
	Instrument  string
	LastEntryAt time.Time
}

// TradeRecord is the append-only trade log contract.
type TradeRecord struct {
	Time       time.Time `json:"time"`
	Instrument string    `json:"instrument"`
	Action     string    `json:"action"`
	Price      float64   `json:"price"`
	LotSize    float64   `json:"lot_size"`
	StopLoss   float64   `json:"stop_loss,omitempty"`
	TicketRef  string    `json:"ticket_ref,omitempty"`
}

// PositionHistory is one closed trade cycle persisted for review.
type PositionHistory struct {
	ID          int64     `json:"id"`
	Instrument  string    `json:"instrument"`
	Side        Side      `json:"side"`
	LotSize     float64   `json:"lot_size"`
	EntryPrice  float64   `json:"entry_price"`
	ExitPrice   float64   `json:"exit_price"`
	RealizedPnL float64   `json:"realized_pnl"`
	Reason      string    `json:"reason"`
	ClosedAt    time.Time `json:"closed_at"`
}
