package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vikar/fx_cascade_trader/internal/domain"
	"go.uber.org/zap"
)

// DefaultMultipliers is the cascade lot progression, indexed by leg level
// (level 1 = index 0). The sequence is deliberately irregular and must
// not be reordered or interpolated.
var DefaultMultipliers = []float64{
	1, 1.33, 1, 1.33, 2.44, 3.99, 4.5, 6.7, 9.5, 11.33, 14.5, 17.53, 19.65,
}

// ErrInvariantViolation signals corrupted cascade state (broken leg
// alternation). The instrument is halted; the state is never repaired
// automatically.
var ErrInvariantViolation = errors.New("cascade invariant violation")

type CascadeConfig struct {
	Multipliers []float64
	MaxLevels   int
	LotStep     float64
}

func DefaultCascadeConfig() CascadeConfig {
	return CascadeConfig{
		Multipliers: DefaultMultipliers,
		MaxLevels:   len(DefaultMultipliers),
	}
}

// CascadeEngine owns the position lifecycle state machine for one plan at
// a time. It is driven by the scheduler, which guarantees single-writer
// access per instrument.
type CascadeEngine struct {
	venue  domain.Venue
	trades *TradeLog
	log    *zap.Logger
	cfg    CascadeConfig
}

func NewCascadeEngine(venue domain.Venue, trades *TradeLog, log *zap.Logger, cfg CascadeConfig) *CascadeEngine {
	if len(cfg.Multipliers) == 0 {
		cfg.Multipliers = DefaultMultipliers
	}
	if cfg.MaxLevels <= 0 || cfg.MaxLevels > len(cfg.Multipliers) {
		cfg.MaxLevels = len(cfg.Multipliers)
	}
	return &CascadeEngine{venue: venue, trades: trades, log: log, cfg: cfg}
}

// Open enters PRIMARY_OPEN: a market order in the signal direction, a
// take-profit two stop distances from entry, and the level-1 hedge leg
// registered as a pending stop order at the reference level.
func (e *CascadeEngine) Open(ctx context.Context, sig domain.Signal, lot float64, account *domain.AccountSnapshot) (*domain.ContingencyPlan, error) {
	if sig.Side == domain.SideNone || lot <= 0 {
		return nil, fmt.Errorf("cannot open plan for %s: empty signal", sig.Instrument)
	}

	fill, err := e.venue.PlaceMarketOrder(ctx, &domain.MarketOrderRequest{
		Instrument: sig.Instrument,
		Side:       sig.Side,
		LotSize:    lot,
	})
	if err != nil {
		return nil, fmt.Errorf("primary order rejected: %w", err)
	}

	sign := sig.Side.Sign()
	entry := fill.FillPrice
	stop := sig.StopDistance
	plan := &domain.ContingencyPlan{
		Instrument: sig.Instrument,
		Primary: domain.Position{
			Instrument:    sig.Instrument,
			Side:          sig.Side,
			EntryPrice:    entry,
			LotSize:       lot,
			TakeProfit:    entry + 2*stop*sign,
			TicketRef:     fill.TicketRef,
			OpenedAt:      time.Now().UTC(),
			BalanceAtOpen: account.Balance,
		},
		MaxLevels:      e.cfg.MaxLevels,
		State:          domain.PlanPrimaryOpen,
		ReferenceLevel: entry - stop*sign,
		StopDistance:   stop,
		CreatedAt:      time.Now().UTC(),
	}

	e.trades.Record(ctx, &domain.TradeRecord{
		Instrument: sig.Instrument,
		Action:     "OPEN_" + string(sig.Side),
		Price:      entry,
		LotSize:    lot,
		TicketRef:  fill.TicketRef,
	})

	// A rejected leg placement is retried on the next cycle; the primary
	// stays open either way.
	if err := e.placeLeg(ctx, plan, 1, entry); err != nil {
		e.log.Warn("level-1 leg placement rejected, will retry",
			zap.String("instrument", sig.Instrument), zap.Error(err))
	}

	return plan, nil
}

// lotStep resolves the volume step for leg sizing. A configured step
// wins; otherwise the venue's instrument constraints are asked, and
// RoundLotUp falls back to 0.01 when neither is known.
func (e *CascadeEngine) lotStep(ctx context.Context, instrument string) float64 {
	if e.cfg.LotStep > 0 {
		return e.cfg.LotStep
	}
	c, err := e.venue.GetInstrumentConstraints(ctx, instrument)
	if err != nil || c == nil {
		return 0
	}
	return c.LotStep
}

// legSideFor returns the direction leg `level` must have: leg 1 opposes
// the primary and directions alternate strictly from there.
func legSideFor(primary domain.Side, level int) domain.Side {
	if level%2 == 1 {
		return primary.Opposite()
	}
	return primary
}

// placeLeg registers leg `level` as a pending order. Leg 1 triggers at
// the reference level; every subsequent leg triggers at the original
// entry price, never at the previous trigger.
func (e *CascadeEngine) placeLeg(ctx context.Context, plan *domain.ContingencyPlan, level int, currentPrice float64) error {
	if level < 1 || level > plan.MaxLevels || level > len(e.cfg.Multipliers) {
		return nil
	}

	side := legSideFor(plan.Primary.Side, level)
	trigger := plan.Primary.EntryPrice
	if level == 1 {
		trigger = plan.ReferenceLevel
	}

	mult := e.cfg.Multipliers[level-1]
	lot := RoundLotUp(plan.Primary.LotSize*mult, e.lotStep(ctx, plan.Instrument))

	// Losing side of the trigger for this leg's direction.
	stopLoss := trigger - 3*plan.StopDistance*side.Sign()
	takeProfit := trigger + 2*plan.StopDistance*side.Sign()

	req := &domain.PendingOrderRequest{
		Instrument: plan.Instrument,
		Kind:       domain.PendingKindFor(side, trigger, currentPrice),
		Price:      trigger,
		LotSize:    lot,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
	}
	res, err := e.venue.PlacePendingOrder(ctx, req)
	if err != nil {
		return err
	}

	plan.Legs = append(plan.Legs, domain.ContingencyLeg{
		Level:        level,
		Side:         side,
		Multiplier:   mult,
		LotSize:      lot,
		TriggerPrice: trigger,
		StopLoss:     stopLoss,
		TakeProfit:   takeProfit,
		TicketRef:    res.TicketRef,
		Status:       domain.LegPending,
	})

	e.trades.Record(ctx, &domain.TradeRecord{
		Instrument: plan.Instrument,
		Action:     fmt.Sprintf("PLACE_LEG_%d_%s", level, side),
		Price:      trigger,
		LotSize:    lot,
		StopLoss:   stopLoss,
		TicketRef:  res.TicketRef,
	})

	e.log.Info("cascade leg placed",
		zap.String("instrument", plan.Instrument),
		zap.Int("level", level),
		zap.String("side", string(side)),
		zap.Float64("trigger", trigger),
		zap.Float64("lot", lot))
	return nil
}

// nextExpectedLevel is the level of the leg that should currently exist
// in Pending status: one past the number of placed legs.
func (e *CascadeEngine) nextExpectedLevel(plan *domain.ContingencyPlan) int {
	return len(plan.Legs) + 1
}

// Update drives the cascade one step for a new price observation. It
// returns done=true (with the close reason) when the plan reached flat,
// all closes confirmed by the venue; the caller then discards the plan.
func (e *CascadeEngine) Update(ctx context.Context, plan *domain.ContingencyPlan, prevPrice, price float64) (done bool, reason string, err error) {
	if plan.State == domain.PlanHalted {
		return false, "", ErrInvariantViolation
	}
	if err := e.checkAlternation(plan); err != nil {
		return false, "", err
	}

	// Retry a previously rejected placement. The next leg to exist is
	// always len(Legs)+1 while escalation is still allowed.
	if plan.PendingLeg() == nil {
		next := e.nextExpectedLevel(plan)
		if next <= plan.MaxLevels && (next == 1 || plan.CurrentLevel == next-1) {
			if err := e.placeLeg(ctx, plan, next, price); err != nil {
				e.log.Warn("cascade leg placement rejected, will retry",
					zap.String("instrument", plan.Instrument),
					zap.Int("level", next), zap.Error(err))
			}
		}
	}

	// Trigger detection: the pending leg fills when price reaches its
	// trigger from either side.
	if leg := plan.PendingLeg(); leg != nil && priceReached(prevPrice, price, leg.TriggerPrice) {
		leg.Status = domain.LegTriggered
		plan.CurrentLevel = leg.Level
		plan.State = domain.PlanCascade

		e.trades.Record(ctx, &domain.TradeRecord{
			Instrument: plan.Instrument,
			Action:     fmt.Sprintf("LEG_%d_TRIGGERED_%s", leg.Level, leg.Side),
			Price:      leg.TriggerPrice,
			LotSize:    leg.LotSize,
			TicketRef:  leg.TicketRef,
		})
		e.log.Info("cascade leg triggered",
			zap.String("instrument", plan.Instrument),
			zap.Int("level", leg.Level),
			zap.Float64("price", price))

		if err := e.checkAlternation(plan); err != nil {
			return false, "", err
		}

		// Escalate: the next leg goes at the original entry price.
		// Beyond MaxLevels escalation halts but nothing auto-closes.
		if leg.Level < plan.MaxLevels {
			if err := e.placeLeg(ctx, plan, leg.Level+1, price); err != nil {
				e.log.Warn("cascade escalation rejected, will retry",
					zap.String("instrument", plan.Instrument),
					zap.Int("level", leg.Level+1), zap.Error(err))
			}
		}
	}

	// Counter take-profit: the hedge side has run two stop distances past
	// the reference level.
	if plan.CurrentLevel > 0 && reachedFavorable(price, plan.CounterTakeProfit(), plan.Primary.Side.Opposite()) {
		done, err := e.ClosePlan(ctx, plan, price, "COUNTER_TAKE_PROFIT")
		return done, "COUNTER_TAKE_PROFIT", err
	}

	// Normal take-profit on the primary.
	if reachedFavorable(price, plan.NormalTakeProfit(), plan.Primary.Side) {
		done, err := e.ClosePlan(ctx, plan, price, "TAKE_PROFIT")
		return done, "TAKE_PROFIT", err
	}

	return false, "", nil
}

// priceReached reports whether price touched or crossed the trigger
// between two observations.
func priceReached(prev, curr, trigger float64) bool {
	if prev == 0 {
		return false
	}
	return (prev <= trigger && curr >= trigger) || (prev >= trigger && curr <= trigger)
}

// reachedFavorable reports whether price is at or beyond target on the
// favorable side for the given direction.
func reachedFavorable(price, target float64, side domain.Side) bool {
	return (price-target)*side.Sign() >= 0
}

// ClosePlan closes the primary position and every triggered leg, and
// cancels untriggered pending legs. Rejected venue calls leave the plan
// active so the close is retried next cycle; the state machine never
// fabricates a closed state.
func (e *CascadeEngine) ClosePlan(ctx context.Context, plan *domain.ContingencyPlan, price float64, reason string) (bool, error) {
	var firstErr error

	if plan.Primary.TicketRef != "" {
		if err := e.venue.ClosePosition(ctx, plan.Primary.TicketRef); err != nil {
			firstErr = fmt.Errorf("close primary: %w", err)
			e.log.Warn("primary close rejected, will retry",
				zap.String("instrument", plan.Instrument), zap.Error(err))
		} else {
			e.trades.Record(ctx, &domain.TradeRecord{
				Instrument: plan.Instrument,
				Action:     "CLOSE_PRIMARY_" + reason,
				Price:      price,
				LotSize:    plan.Primary.LotSize,
				TicketRef:  plan.Primary.TicketRef,
			})
			plan.Primary.TicketRef = ""
		}
	}

	for i := range plan.Legs {
		leg := &plan.Legs[i]
		switch leg.Status {
		case domain.LegTriggered:
			if err := e.venue.ClosePosition(ctx, leg.TicketRef); err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("close leg %d: %w", leg.Level, err)
				}
				continue
			}
			e.trades.Record(ctx, &domain.TradeRecord{
				Instrument: plan.Instrument,
				Action:     fmt.Sprintf("CLOSE_LEG_%d_%s", leg.Level, reason),
				Price:      price,
				LotSize:    leg.LotSize,
				TicketRef:  leg.TicketRef,
			})
			leg.Status = domain.LegClosed
		case domain.LegPending:
			if err := e.venue.CancelPendingOrder(ctx, leg.TicketRef); err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("cancel leg %d: %w", leg.Level, err)
				}
				continue
			}
			leg.Status = domain.LegCancelled
		}
	}

	if firstErr != nil {
		return false, firstErr
	}

	e.log.Info("plan closed",
		zap.String("instrument", plan.Instrument),
		zap.String("reason", reason),
		zap.Float64("price", price),
		zap.Int("levels_used", plan.CurrentLevel))
	return true, nil
}

// RealizedPnL estimates the closed plan's profit in account currency at
// the given exit price.
func (e *CascadeEngine) RealizedPnL(plan *domain.ContingencyPlan, exit float64) float64 {
	pnl := (exit - plan.Primary.EntryPrice) * plan.Primary.Side.Sign() * plan.Primary.LotSize * standardLotUnits
	for i := range plan.Legs {
		leg := plan.Legs[i]
		// Cancelled legs never filled and contribute nothing.
		if leg.Status == domain.LegClosed || leg.Status == domain.LegTriggered {
			pnl += (exit - leg.TriggerPrice) * leg.Side.Sign() * leg.LotSize * standardLotUnits
		}
	}
	return pnl
}

// checkAlternation verifies the structural invariants: leg 1 opposes the
// primary and consecutive legs oppose each other. A violation is a
// programming error, not a market condition; the plan is halted.
func (e *CascadeEngine) checkAlternation(plan *domain.ContingencyPlan) error {
	for i := range plan.Legs {
		leg := plan.Legs[i]
		if leg.Side != legSideFor(plan.Primary.Side, leg.Level) {
			plan.State = domain.PlanHalted
			e.log.Error("cascade alternation broken, halting instrument",
				zap.String("instrument", plan.Instrument),
				zap.Int("level", leg.Level),
				zap.String("side", string(leg.Side)))
			return fmt.Errorf("%w: leg %d side %s on %s plan",
				ErrInvariantViolation, leg.Level, leg.Side, plan.Primary.Side)
		}
		if i > 0 && plan.Legs[i-1].Side == leg.Side {
			plan.State = domain.PlanHalted
			return fmt.Errorf("%w: legs %d and %d share direction %s",
				ErrInvariantViolation, plan.Legs[i-1].Level, leg.Level, leg.Side)
		}
	}
	return nil
}
