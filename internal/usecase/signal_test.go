package usecase_test

import (
	"testing"

	"github.com/vikar/fx_cascade_trader/internal/domain"
	"github.com/vikar/fx_cascade_trader/internal/usecase"
)

func mustStrategy(t *testing.T, cfg usecase.StrategyConfig) usecase.Strategy {
	t.Helper()
	s, err := usecase.NewStrategy("smacascade", cfg)
	if err != nil {
		t.Fatalf("NewStrategy failed: %v", err)
	}
	return s
}

func mustSnapshot(t *testing.T, window []domain.Candle) *domain.IndicatorSnapshot {
	t.Helper()
	snap, err := usecase.ComputeSnapshot(window)
	if err != nil {
		t.Fatalf("ComputeSnapshot failed: %v", err)
	}
	return snap
}

// buyReversalWindow is a steady uptrend whose last four candles form the
// three-bearish-one-bullish reversal shape. Closes keep rising so the
// trend filters (slow SMA, separation, RSI) stay satisfied.
func buyReversalWindow() []domain.Candle {
	window := risingWindow(260, 1.1000, 0.0005)
	n := len(window)
	for i := n - 4; i < n-1; i++ {
		window[i].Open = window[i].Close + 0.0001
	}
	window[n-1].Open = window[n-1].Close - 0.0001
	return window
}

func fallingWindow(n int, start, step float64) []domain.Candle {
	out := make([]domain.Candle, n)
	price := start
	for i := range out {
		out[i] = domain.Candle{
			Time:  int64(i) * 300,
			Open:  price + step/2,
			High:  price + step,
			Low:   price - step,
			Close: price,
		}
		price -= step
	}
	return out
}

func sellReversalWindow() []domain.Candle {
	window := fallingWindow(260, 1.3000, 0.0005)
	n := len(window)
	for i := n - 4; i < n-1; i++ {
		window[i].Open = window[i].Close - 0.0001
	}
	window[n-1].Open = window[n-1].Close + 0.0001
	return window
}

func TestStrategy_BuySignal(t *testing.T) {
	s := mustStrategy(t, usecase.DefaultStrategyConfig())
	window := buyReversalWindow()
	snap := mustSnapshot(t, window)

	sig := s.Evaluate("EURUSD", window, snap)
	if sig.Side != domain.SideBuy {
		t.Fatalf("Expected BUY, got %q (reason %q)", sig.Side, sig.Reason)
	}
	if sig.Price != window[len(window)-1].Close {
		t.Errorf("Expected signal price %f, got %f", window[len(window)-1].Close, sig.Price)
	}
	if sig.StopDistance <= 0 {
		t.Errorf("Expected positive stop distance, got %f", sig.StopDistance)
	}
}

func TestStrategy_SellSignal(t *testing.T) {
	s := mustStrategy(t, usecase.DefaultStrategyConfig())
	window := sellReversalWindow()
	snap := mustSnapshot(t, window)

	sig := s.Evaluate("EURUSD", window, snap)
	if sig.Side != domain.SideSell {
		t.Fatalf("Expected SELL, got %q (reason %q)", sig.Side, sig.Reason)
	}
}

func TestStrategy_FlatWindowNoSignal(t *testing.T) {
	s := mustStrategy(t, usecase.DefaultStrategyConfig())
	window := flatWindow(260, 1.1000)
	snap := mustSnapshot(t, window)

	sig := s.Evaluate("EURUSD", window, snap)
	if sig.Side != domain.SideNone {
		t.Fatalf("Expected no signal on a flat window, got %q", sig.Side)
	}
}

func TestStrategy_BrokenPatternNoSignal(t *testing.T) {
	s := mustStrategy(t, usecase.DefaultStrategyConfig())
	window := buyReversalWindow()
	n := len(window)
	// One bullish candle inside the down run breaks the pattern.
	window[n-3].Open = window[n-3].Close - 0.0001
	snap := mustSnapshot(t, window)

	sig := s.Evaluate("EURUSD", window, snap)
	if sig.Side != domain.SideNone {
		t.Fatalf("Expected no signal with a broken pattern, got %q", sig.Side)
	}
}

func TestStrategy_DebugModeRelaxesPatternOnly(t *testing.T) {
	cfg := usecase.DefaultStrategyConfig()
	cfg.DebugMode = true
	s := mustStrategy(t, cfg)

	window := buyReversalWindow()
	n := len(window)
	window[n-3].Open = window[n-3].Close - 0.0001
	snap := mustSnapshot(t, window)

	if sig := s.Evaluate("EURUSD", window, snap); sig.Side != domain.SideBuy {
		t.Fatalf("Expected debug mode to waive the pattern, got %q", sig.Side)
	}

	// The trend conditions are still required.
	flat := flatWindow(260, 1.1000)
	flatSnap := mustSnapshot(t, flat)
	if sig := s.Evaluate("EURUSD", flat, flatSnap); sig.Side != domain.SideNone {
		t.Fatalf("Expected no signal on a flat window even in debug mode, got %q", sig.Side)
	}
}

func TestNewStrategy_UnknownName(t *testing.T) {
	if _, err := usecase.NewStrategy("martingale", usecase.DefaultStrategyConfig()); err == nil {
		t.Fatal("Expected an error for an unknown strategy name")
	}
}
