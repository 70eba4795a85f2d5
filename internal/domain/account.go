package domain

// AccountSnapshot is the venue account state at a point in time. One
// snapshot per scheduling cycle is the authoritative balance for the
// drawdown kill switch.
type AccountSnapshot struct {
	Balance  float64 `json:"balance"`
	Equity   float64 `json:"equity"`
	Currency string  `json:"currency"`
}

// InstrumentConstraints are the broker trading limits for one instrument.
type InstrumentConstraints struct {
	MinLot          float64
	MaxLot          float64
	LotStep         float64
	PipSize         float64
	MinStopDistance float64
	Digits          int
}
