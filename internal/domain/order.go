package domain

type PendingKind string

const (
	BuyStop   PendingKind = "BUY_STOP"
	SellStop  PendingKind = "SELL_STOP"
	BuyLimit  PendingKind = "BUY_LIMIT"
	SellLimit PendingKind = "SELL_LIMIT"
)

// Side returns the direction a pending order trades in once triggered.
func (k PendingKind) Side() Side {
	switch k {
	case BuyStop, BuyLimit:
		return SideBuy
	case SellStop, SellLimit:
		return SideSell
	}
	return SideNone
}

// PendingKindFor picks the stop/limit flavor for a desired side given the
// trigger price relative to the current market price. A buy above market
// is a stop, below market a limit; sells mirror.
func PendingKindFor(side Side, trigger, current float64) PendingKind {
	if side == SideBuy {
		if trigger > current {
			return BuyStop
		}
		return BuyLimit
	}
	if trigger < current {
		return SellStop
	}
	return SellLimit
}

// MarketOrderRequest opens a position at market.
type MarketOrderRequest struct {
	Instrument string
	Side       Side
	LotSize    float64
}

// PendingOrderRequest places a stop or limit order. StopLoss and
// TakeProfit of zero mean "not set".
type PendingOrderRequest struct {
	Instrument string
	Kind       PendingKind
	Price      float64
	LotSize    float64
	StopLoss   float64
	TakeProfit float64
}

type MarketOrderResult struct {
	TicketRef string
	FillPrice float64
}

type PendingOrderResult struct {
	TicketRef string
}

// OpenPosition is a venue-side view of a filled order.
type OpenPosition struct {
	TicketRef  string
	Side       Side
	LotSize    float64
	EntryPrice float64
}

// OpenPendingOrder is a venue-side view of an unfilled pending order.
type OpenPendingOrder struct {
	TicketRef string
	Kind      PendingKind
	Price     float64
	LotSize   float64
}
