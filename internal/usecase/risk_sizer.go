package usecase

import (
	"errors"
	"math"

	"github.com/vikar/fx_cascade_trader/internal/domain"
)

// ErrInvalidSize means no broker-legal lot size satisfies the risk
// budget. The caller must abort the entry; no order is placed.
var ErrInvalidSize = errors.New("cannot size position within broker constraints")

const standardLotUnits = 100000

// Pip floors guard the division against near-zero stop distances.
const (
	minStopPips    = 10
	minStopPipsJPY = 100
)

// RiskSizer converts an account balance and a reference stop distance
// into a broker-legal lot size.
type RiskSizer struct {
	riskPct float64
}

func NewRiskSizer(riskPct float64) *RiskSizer {
	if riskPct <= 0 || riskPct > 1 {
		riskPct = 0.02
	}
	return &RiskSizer{riskPct: riskPct}
}

func (s *RiskSizer) RiskPct() float64 { return s.riskPct }

// LotSize computes riskAmount / (stopPips * pipValuePerLot), then rounds
// down to the lot step and clamps into [MinLot, MaxLot].
func (s *RiskSizer) LotSize(instrument string, balance, stopDistance, price float64, c *domain.InstrumentConstraints) (float64, error) {
	if c == nil || balance <= 0 || price <= 0 || c.PipSize <= 0 {
		return 0, ErrInvalidSize
	}

	riskAmount := balance * s.riskPct

	stopPips := stopDistance / c.PipSize
	floor := float64(minStopPips)
	if IsJPY(instrument) {
		floor = minStopPipsJPY
	}
	if stopPips < floor {
		stopPips = floor
	}

	pipValuePerLot := c.PipSize / price * standardLotUnits
	if pipValuePerLot <= 0 {
		return 0, ErrInvalidSize
	}

	lot := riskAmount / (stopPips * pipValuePerLot)
	if math.IsNaN(lot) || math.IsInf(lot, 0) {
		return 0, ErrInvalidSize
	}

	if c.LotStep > 0 {
		lot = math.Floor(lot/c.LotStep+1e-9) * c.LotStep
	}
	if lot <= 0 {
		return 0, ErrInvalidSize
	}
	if lot < c.MinLot {
		lot = c.MinLot
	}
	if c.MaxLot > 0 && lot > c.MaxLot {
		lot = c.MaxLot
	}
	return lot, nil
}

// RoundLotUp rounds a cascade lot up to the step, falling back to the
// two-decimal volume convention when no step is known.
func RoundLotUp(lot, step float64) float64 {
	if step <= 0 {
		step = 0.01
	}
	return math.Ceil(lot/step-1e-9) * step
}
