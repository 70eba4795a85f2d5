package usecase

import (
	"context"
	"math"

	"github.com/vikar/fx_cascade_trader/internal/domain"
	"go.uber.org/zap"
)

type ExitReason string

const (
	ExitNone         ExitReason = ""
	ExitDrawdown     ExitReason = "DRAWDOWN_KILL_SWITCH"
	ExitProfitTarget ExitReason = "PROFIT_TARGET"
	ExitDivergence   ExitReason = "RSI_DIVERGENCE"
	ExitLevelReturn  ExitReason = "LEVEL_RETURN"
	ExitAdvisor      ExitReason = "ADVISOR"
)

type ExitDecision struct {
	Close  bool
	Reason ExitReason
}

type ExitMonitorConfig struct {
	DrawdownFloor      float64 // fraction of balance-at-open, default 0.80
	ProfitTargetMult   float64 // stop distances of favorable movement, default 2
	DivergenceLookback int     // candles, default 5
	ExtremaWindow      int     // support/resistance local-extrema half window
	LevelTolerancePips float64 // "returned to level" tolerance, default 5
	// Advisor gating: an advisor exit is honored only when enabled and
	// the opinion's confidence reaches MinConfidence.
	AdvisorEnabled       bool
	AdvisorMinConfidence float64
}

func DefaultExitMonitorConfig() ExitMonitorConfig {
	return ExitMonitorConfig{
		DrawdownFloor:      0.80,
		ProfitTargetMult:   2,
		DivergenceLookback: 5,
		ExtremaWindow:      20,
		LevelTolerancePips: 5,
	}
}

// ExitMonitor evaluates close conditions for an active plan once per
// cycle, in fixed priority order: drawdown kill switch, profit target,
// RSI divergence while in profit, support/resistance return, advisor.
// First match wins; the advisor can only add an exit, never veto one.
type ExitMonitor struct {
	cfg     ExitMonitorConfig
	advisor domain.Advisor
	log     *zap.Logger
}

func NewExitMonitor(cfg ExitMonitorConfig, advisor domain.Advisor, log *zap.Logger) *ExitMonitor {
	if cfg.DrawdownFloor <= 0 || cfg.DrawdownFloor >= 1 {
		cfg.DrawdownFloor = 0.80
	}
	if cfg.ProfitTargetMult <= 0 {
		cfg.ProfitTargetMult = 2
	}
	if cfg.DivergenceLookback < 2 {
		cfg.DivergenceLookback = 5
	}
	if cfg.ExtremaWindow <= 0 {
		cfg.ExtremaWindow = 20
	}
	if cfg.LevelTolerancePips <= 0 {
		cfg.LevelTolerancePips = 5
	}
	return &ExitMonitor{cfg: cfg, advisor: advisor, log: log}
}

func (m *ExitMonitor) Evaluate(
	ctx context.Context,
	plan *domain.ContingencyPlan,
	window []domain.Candle,
	snap *domain.IndicatorSnapshot,
	account *domain.AccountSnapshot,
	constraints *domain.InstrumentConstraints,
	price float64,
) ExitDecision {
	primary := plan.Primary

	// 1. Drawdown kill switch, regardless of profitability.
	if account != nil && primary.BalanceAtOpen > 0 &&
		account.Balance <= primary.BalanceAtOpen*m.cfg.DrawdownFloor {
		m.log.Warn("drawdown kill switch",
			zap.String("instrument", plan.Instrument),
			zap.Float64("balance", account.Balance),
			zap.Float64("balance_at_open", primary.BalanceAtOpen))
		return ExitDecision{Close: true, Reason: ExitDrawdown}
	}

	favorable := (price - primary.EntryPrice) * primary.Side.Sign()

	// 2. Profit target: favorable movement of N stop distances.
	if plan.StopDistance > 0 && favorable >= m.cfg.ProfitTargetMult*plan.StopDistance {
		return ExitDecision{Close: true, Reason: ExitProfitTarget}
	}

	// 3. RSI divergence closes a profitable position. Divergence while
	// underwater is informational only.
	div := divergence(Closes(window), m.cfg.DivergenceLookback)
	if div != 0 {
		inProfit := favorable > 0
		closing := (div == -1 && primary.Side == domain.SideBuy) ||
			(div == 1 && primary.Side == domain.SideSell)
		if closing && inProfit {
			return ExitDecision{Close: true, Reason: ExitDivergence}
		}
		if closing {
			m.log.Debug("divergence ignored, position not in profit",
				zap.String("instrument", plan.Instrument),
				zap.Int("divergence", div))
		}
	}

	// 4. Return to the nearest support (buy) or resistance (sell). A level
	// within tolerance of the entry itself is not a return; without this
	// gate a flat market closes the plan on the cycle after it opens.
	if constraints != nil && constraints.PipSize > 0 {
		tolerance := m.cfg.LevelTolerancePips * constraints.PipSize
		levels := DetectLevels(window, m.cfg.ExtremaWindow, tolerance)
		if level, ok := levels.Nearest(price, primary.Side); ok {
			if math.Abs(price-level) <= tolerance &&
				math.Abs(level-primary.EntryPrice) > tolerance {
				return ExitDecision{Close: true, Reason: ExitLevelReturn}
			}
		}
	}

	// 5. Advisory oracle: independently gated extra exit path. Errors
	// mean "no opinion" and never block trading.
	if m.cfg.AdvisorEnabled && m.advisor != nil {
		op, err := m.advisor.ShouldExit(ctx, plan, price, snap)
		if err != nil {
			m.log.Debug("advisor unavailable", zap.Error(err))
		} else if op != nil && op.ShouldExit && op.Confidence >= m.cfg.AdvisorMinConfidence {
			m.log.Info("advisor exit",
				zap.String("instrument", plan.Instrument),
				zap.Float64("confidence", op.Confidence),
				zap.String("reason", op.Reason))
			return ExitDecision{Close: true, Reason: ExitAdvisor}
		}
	}

	return ExitDecision{}
}
