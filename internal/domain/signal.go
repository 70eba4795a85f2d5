package domain

type Side string

const (
	SideNone Side = ""
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the counter direction, used for hedge legs.
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	}
	return SideNone
}

// Sign returns +1 for buy, -1 for sell, 0 otherwise. Favorable price
// movement for a side is (price - entry) * Sign().
func (s Side) Sign() float64 {
	switch s {
	case SideBuy:
		return 1
	case SideSell:
		return -1
	}
	return 0
}

// Signal is the output of one strategy evaluation. StopDistance is the
// absolute distance from the entry price to the fast SMA at signal time.
// It drives sizing and cascade geometry; no exchange-side stop is placed
// for the primary entry.
type Signal struct {
	Instrument   string
	Side         Side
	Price        float64
	StopDistance float64
	Reason       string
}
