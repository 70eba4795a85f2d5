package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vikar/fx_cascade_trader/internal/domain"
	"go.uber.org/zap"
)

type SchedulerConfig struct {
	Instruments     []string
	Timeframe       string
	CandleCount     int
	Cooldown        time.Duration // minimum gap between primary entries per instrument
	InstrumentPause time.Duration // sleep between instruments inside a cycle
	CyclePause      time.Duration // sleep between full cycles
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Timeframe:       "M5",
		CandleCount:     260,
		Cooldown:        time.Hour,
		InstrumentPause: 250 * time.Millisecond,
		CyclePause:      30 * time.Second,
	}
}

// Scheduler drives every instrument through the indicator -> signal ->
// sizing -> lifecycle pipeline, one instrument at a time. It is the sole
// owner of the plan map and the cooldown table; plans are handed to the
// cascade engine by reference, never shared across call sites.
type Scheduler struct {
	venue    domain.Venue
	strategy Strategy
	sizer    *RiskSizer
	cascade  *CascadeEngine
	exits    *ExitMonitor
	repo     domain.TradeRepository
	metrics  Metrics
	log      *zap.Logger
	cfg      SchedulerConfig

	mu        sync.RWMutex
	plans     map[string]*domain.ContingencyPlan
	cooldowns map[string]time.Time
	lastPrice map[string]float64
	halted    map[string]bool
}

func NewScheduler(
	venue domain.Venue,
	strategy Strategy,
	sizer *RiskSizer,
	cascade *CascadeEngine,
	exits *ExitMonitor,
	repo domain.TradeRepository,
	metrics Metrics,
	log *zap.Logger,
	cfg SchedulerConfig,
) *Scheduler {
	if cfg.CandleCount < smaSlowPeriod {
		cfg.CandleCount = smaSlowPeriod + 60
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Hour
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Scheduler{
		venue:     venue,
		strategy:  strategy,
		sizer:     sizer,
		cascade:   cascade,
		exits:     exits,
		repo:      repo,
		metrics:   metrics,
		log:       log,
		cfg:       cfg,
		plans:     make(map[string]*domain.ContingencyPlan),
		cooldowns: make(map[string]time.Time),
		lastPrice: make(map[string]float64),
		halted:    make(map[string]bool),
	}
}

// Restore reloads persisted plan snapshots and re-verifies each against
// venue state: a snapshot with no matching open position is dropped
// rather than assumed live.
func (s *Scheduler) Restore(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	snapshots, err := s.repo.ListPlanSnapshots(ctx)
	if err != nil {
		return fmt.Errorf("list plan snapshots: %w", err)
	}
	for _, plan := range snapshots {
		open, err := s.venue.GetOpenPositions(ctx, plan.Instrument)
		if err != nil {
			s.log.Warn("restore: venue check failed, keeping snapshot",
				zap.String("instrument", plan.Instrument), zap.Error(err))
			s.adoptPlan(plan)
			continue
		}
		if len(open) == 0 {
			s.log.Info("restore: no open positions, dropping stale plan",
				zap.String("instrument", plan.Instrument))
			if err := s.repo.DeletePlanSnapshot(ctx, plan.Instrument); err != nil {
				s.log.Warn("restore: snapshot delete failed", zap.Error(err))
			}
			continue
		}
		s.adoptPlan(plan)
		s.log.Info("restore: plan resumed",
			zap.String("instrument", plan.Instrument),
			zap.String("state", string(plan.State)),
			zap.Int("level", plan.CurrentLevel))
	}
	return nil
}

func (s *Scheduler) adoptPlan(plan *domain.ContingencyPlan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[plan.Instrument] = plan
	s.cooldowns[plan.Instrument] = plan.Primary.OpenedAt
	if plan.State == domain.PlanHalted {
		s.halted[plan.Instrument] = true
	}
}

// Run executes cycles until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		s.RunCycle(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.CyclePause):
		}
	}
}

// RunCycle processes every instrument once. One instrument's failure
// never aborts the cycle for the others.
func (s *Scheduler) RunCycle(ctx context.Context) {
	// One authoritative balance snapshot per cycle for the kill switch.
	account, err := s.venue.GetAccountSnapshot(ctx)
	if err != nil {
		s.log.Warn("account snapshot unavailable, skipping cycle", zap.Error(err))
		return
	}

	for _, instrument := range s.cfg.Instruments {
		if ctx.Err() != nil {
			return
		}
		if err := s.safeProcess(ctx, instrument, account); err != nil {
			s.metrics.InstrumentError(instrument)
			if errors.Is(err, ErrInvariantViolation) {
				s.log.Error("instrument halted on invariant violation",
					zap.String("instrument", instrument), zap.Error(err))
			} else {
				s.log.Warn("instrument cycle failed",
					zap.String("instrument", instrument), zap.Error(err))
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.InstrumentPause):
		}
	}
	s.metrics.CycleCompleted()
}

func (s *Scheduler) safeProcess(ctx context.Context, instrument string, account *domain.AccountSnapshot) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic processing %s: %v", instrument, r)
		}
	}()
	return s.processInstrument(ctx, instrument, account)
}

func (s *Scheduler) processInstrument(ctx context.Context, instrument string, account *domain.AccountSnapshot) error {
	s.mu.RLock()
	halted := s.halted[instrument]
	s.mu.RUnlock()
	if halted {
		return nil
	}

	window, err := s.venue.FetchCandles(ctx, instrument, s.cfg.Timeframe, s.cfg.CandleCount)
	if err != nil {
		return fmt.Errorf("fetch candles: %w", err)
	}
	snap, err := ComputeSnapshot(window)
	if err != nil {
		// Insufficient window: skip this instrument's cycle, no state change.
		return nil
	}

	price, err := s.venue.GetCurrentPrice(ctx, instrument)
	if err != nil || price <= 0 {
		price = window[len(window)-1].Close
	}
	// The cascade engine mutates the plan outside the lock, so it works
	// on a private copy that is swapped back in via publishPlan. Readers
	// under RLock never observe a plan mid-update.
	s.mu.Lock()
	prev := s.lastPrice[instrument]
	s.lastPrice[instrument] = price
	var plan *domain.ContingencyPlan
	if live := s.plans[instrument]; live != nil {
		plan = clonePlan(live)
	}
	s.mu.Unlock()

	if plan != nil {
		return s.managePlan(ctx, instrument, plan, window, snap, account, prev, price)
	}
	return s.tryEnter(ctx, instrument, window, snap, account)
}

func (s *Scheduler) managePlan(
	ctx context.Context,
	instrument string,
	plan *domain.ContingencyPlan,
	window []domain.Candle,
	snap *domain.IndicatorSnapshot,
	account *domain.AccountSnapshot,
	prev, price float64,
) error {
	done, reason, err := s.cascade.Update(ctx, plan, prev, price)
	if err != nil {
		if errors.Is(err, ErrInvariantViolation) {
			plan.State = domain.PlanHalted
			s.haltInstrument(instrument)
		}
		s.persistPlan(ctx, plan)
		s.publishPlan(plan)
		return err
	}
	if done {
		s.finishPlan(ctx, plan, price, reason)
		return nil
	}

	constraints, err := s.venue.GetInstrumentConstraints(ctx, instrument)
	if err != nil {
		constraints = nil // exit monitor degrades gracefully
	}

	decision := s.exits.Evaluate(ctx, plan, window, snap, account, constraints, price)
	if decision.Close {
		closed, err := s.cascade.ClosePlan(ctx, plan, price, string(decision.Reason))
		if err != nil {
			// Venue rejection: state untouched, retried next cycle.
			s.persistPlan(ctx, plan)
			s.publishPlan(plan)
			return err
		}
		if closed {
			s.finishPlan(ctx, plan, price, string(decision.Reason))
			return nil
		}
	}

	s.persistPlan(ctx, plan)
	s.publishPlan(plan)
	return nil
}

func (s *Scheduler) tryEnter(
	ctx context.Context,
	instrument string,
	window []domain.Candle,
	snap *domain.IndicatorSnapshot,
	account *domain.AccountSnapshot,
) error {
	s.mu.RLock()
	last, seen := s.cooldowns[instrument]
	s.mu.RUnlock()
	if seen && time.Since(last) < s.cfg.Cooldown {
		return nil
	}

	sig := s.strategy.Evaluate(instrument, window, snap)
	if sig.Side == domain.SideNone {
		return nil
	}
	s.metrics.SignalEmitted(sig.Side)
	s.log.Info("signal",
		zap.String("instrument", instrument),
		zap.String("side", string(sig.Side)),
		zap.Float64("price", sig.Price),
		zap.Float64("stop_distance", sig.StopDistance),
		zap.String("reason", sig.Reason))

	constraints, err := s.venue.GetInstrumentConstraints(ctx, instrument)
	if err != nil {
		return fmt.Errorf("instrument constraints: %w", err)
	}
	lot, err := s.sizer.LotSize(instrument, account.Balance, sig.StopDistance, sig.Price, constraints)
	if err != nil {
		// Sizing failed: abort entry, no order placed.
		s.log.Warn("entry aborted, sizing invalid",
			zap.String("instrument", instrument), zap.Error(err))
		return nil
	}

	plan, err := s.cascade.Open(ctx, sig, lot, account)
	if err != nil {
		s.metrics.OrderRejected()
		return fmt.Errorf("open plan: %w", err)
	}

	s.mu.Lock()
	if _, exists := s.plans[instrument]; exists {
		// Double entry would break the one-plan-per-instrument invariant.
		s.mu.Unlock()
		s.haltInstrument(instrument)
		return fmt.Errorf("%w: second plan opened for %s", ErrInvariantViolation, instrument)
	}
	s.plans[instrument] = plan
	s.cooldowns[instrument] = time.Now()
	s.mu.Unlock()

	s.metrics.PlanOpened()
	s.persistPlan(ctx, plan)
	return nil
}

// finishPlan removes a fully closed plan, records history and starts the
// cooldown window.
func (s *Scheduler) finishPlan(ctx context.Context, plan *domain.ContingencyPlan, price float64, reason string) {
	pnl := s.cascade.RealizedPnL(plan, price)

	s.mu.Lock()
	delete(s.plans, plan.Instrument)
	s.mu.Unlock()

	s.metrics.PlanClosed(reason)
	if s.repo != nil {
		if err := s.repo.SavePositionHistory(ctx, &domain.PositionHistory{
			Instrument:  plan.Instrument,
			Side:        plan.Primary.Side,
			LotSize:     plan.Primary.LotSize,
			EntryPrice:  plan.Primary.EntryPrice,
			ExitPrice:   price,
			RealizedPnL: pnl,
			Reason:      reason,
			ClosedAt:    time.Now().UTC(),
		}); err != nil {
			s.log.Warn("history write failed", zap.Error(err))
		}
		if err := s.repo.DeletePlanSnapshot(ctx, plan.Instrument); err != nil {
			s.log.Warn("snapshot delete failed", zap.Error(err))
		}
	}
	s.log.Info("instrument flat",
		zap.String("instrument", plan.Instrument),
		zap.String("reason", reason),
		zap.Float64("realized_pnl", pnl))
}

// publishPlan swaps the updated working copy into the plan map. The
// entry may already be gone when the plan finished during this cycle.
func (s *Scheduler) publishPlan(plan *domain.ContingencyPlan) {
	s.mu.Lock()
	if _, ok := s.plans[plan.Instrument]; ok {
		s.plans[plan.Instrument] = plan
	}
	s.mu.Unlock()
}

func (s *Scheduler) persistPlan(ctx context.Context, plan *domain.ContingencyPlan) {
	if s.repo == nil {
		return
	}
	if err := s.repo.SavePlanSnapshot(ctx, plan); err != nil {
		s.log.Warn("snapshot write failed",
			zap.String("instrument", plan.Instrument), zap.Error(err))
	}
}

func (s *Scheduler) haltInstrument(instrument string) {
	s.mu.Lock()
	s.halted[instrument] = true
	if plan := s.plans[instrument]; plan != nil {
		plan.State = domain.PlanHalted
	}
	s.mu.Unlock()
}

func clonePlan(p *domain.ContingencyPlan) *domain.ContingencyPlan {
	cp := *p
	cp.Legs = append([]domain.ContingencyLeg(nil), p.Legs...)
	return &cp
}

// Plans returns a copy of the active plan set for read-only consumers.
func (s *Scheduler) Plans() []*domain.ContingencyPlan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.ContingencyPlan, 0, len(s.plans))
	for _, p := range s.plans {
		out = append(out, clonePlan(p))
	}
	return out
}

// Plan returns the active plan for one instrument, if any.
func (s *Scheduler) Plan(instrument string) (*domain.ContingencyPlan, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[instrument]
	if !ok {
		return nil, false
	}
	return clonePlan(p), true
}

// LastEntry exposes the cooldown table entry for an instrument.
func (s *Scheduler) LastEntry(instrument string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.cooldowns[instrument]
	return t, ok
}
