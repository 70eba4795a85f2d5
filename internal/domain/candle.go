package domain

// Candle is a single OHLC bar. Windows are ordered oldest to newest and
// candles are immutable once produced.
type Candle struct {
	Time  int64   `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

func (c Candle) Bullish() bool { return c.Close > c.Open }
func (c Candle) Bearish() bool { return c.Close < c.Open }

// IndicatorSnapshot holds the indicator values computed for the latest
// candle of a window. Recomputed every cycle, never persisted.
type IndicatorSnapshot struct {
	SMAFast float64 `json:"sma_fast"` // 21-period
	SMAMid  float64 `json:"sma_mid"`  // 50-period
	SMASlow float64 `json:"sma_slow"` // 200-period
	RSI     float64 `json:"rsi"`      // 14-period
}
