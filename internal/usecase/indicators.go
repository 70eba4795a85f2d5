package usecase

import (
	"errors"

	"github.com/vikar/fx_cascade_trader/internal/domain"
)

const (
	smaFastPeriod = 21
	smaMidPeriod  = 50
	smaSlowPeriod = 200
	rsiPeriod     = 14
)

// ErrInsufficientData is returned while the candle window is shorter than
// the slowest indicator lookback. Callers skip the instrument's cycle.
var ErrInsufficientData = errors.New("insufficient candle data")

// ComputeSnapshot derives the indicator set for the latest candle of the
// window. The window must hold at least 200 candles; a partial snapshot
// is never produced.
func ComputeSnapshot(window []domain.Candle) (*domain.IndicatorSnapshot, error) {
	if len(window) < smaSlowPeriod {
		return nil, ErrInsufficientData
	}
	closes := Closes(window)
	return &domain.IndicatorSnapshot{
		SMAFast: sma(closes, smaFastPeriod),
		SMAMid:  sma(closes, smaMidPeriod),
		SMASlow: sma(closes, smaSlowPeriod),
		RSI:     rsiAt(closes, rsiPeriod, 0),
	}, nil
}

// Closes extracts the close series of a window, oldest first.
func Closes(window []domain.Candle) []float64 {
	out := make([]float64, len(window))
	for i, c := range window {
		out[i] = c.Close
	}
	return out
}

// sma is the arithmetic mean of the last period closes.
func sma(closes []float64, period int) float64 {
	v, _ := smaAt(closes, period, 0)
	return v
}

// smaAt computes the SMA of period closes ending offset candles back from
// the latest (offset 0 = latest candle). Reports false when the series
// does not reach back far enough.
func smaAt(closes []float64, period, offset int) (float64, bool) {
	end := len(closes) - offset
	if period <= 0 || end < period {
		return 0, false
	}
	sum := 0.0
	for _, c := range closes[end-period : end] {
		sum += c
	}
	return sum / float64(period), true
}

// rsiAt computes a Wilder-style RSI over the period deltas ending offset
// candles back. Gains and losses are simple averages of the non-negative
// delta magnitudes; RSI = 100 - 100/(1+RS). When there are no losses the
// value saturates at 100, and a completely flat span reads as neutral 50.
func rsiAt(closes []float64, period, offset int) float64 {
	end := len(closes) - offset
	if end < period+1 {
		return 50
	}
	var gains, losses float64
	for i := end - period; i < end; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// divergence classifies price/RSI divergence over the last lookback
// candles: -1 bearish (price higher, RSI lower), +1 bullish (price lower,
// RSI higher), 0 none.
func divergence(closes []float64, lookback int) int {
	if len(closes) < smaSlowPeriod || lookback < 2 {
		return 0
	}
	priceNow := closes[len(closes)-1]
	pricePast := closes[len(closes)-lookback]
	rsiNow := rsiAt(closes, rsiPeriod, 0)
	rsiPast := rsiAt(closes, rsiPeriod, lookback-1)

	if priceNow > pricePast && rsiNow < rsiPast {
		return -1
	}
	if priceNow < pricePast && rsiNow > rsiPast {
		return 1
	}
	return 0
}
