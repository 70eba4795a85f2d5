package domain

import "context"

// Venue is the market gateway the engine trades through. Implemented by
// an adapter; every call is expected to return promptly or fail with a
// recoverable error. A rejected call leaves the caller's state untouched.
type Venue interface {
	FetchCandles(ctx context.Context, instrument, timeframe string, count int) ([]Candle, error)
	GetCurrentPrice(ctx context.Context, instrument string) (float64, error)
	GetAccountSnapshot(ctx context.Context) (*AccountSnapshot, error)
	GetInstrumentConstraints(ctx context.Context, instrument string) (*InstrumentConstraints, error)
	PlaceMarketOrder(ctx context.Context, req *MarketOrderRequest) (*MarketOrderResult, error)
	PlacePendingOrder(ctx context.Context, req *PendingOrderRequest) (*PendingOrderResult, error)
	ModifyPosition(ctx context.Context, ticketRef string, stopLoss, takeProfit float64) error
	ClosePosition(ctx context.Context, ticketRef string) error
	CancelPendingOrder(ctx context.Context, ticketRef string) error
	GetOpenPositions(ctx context.Context, instrument string) ([]OpenPosition, error)
	GetOpenPendingOrders(ctx context.Context, instrument string) ([]OpenPendingOrder, error)
}

// TradeRepository persists trade records, closed-cycle history and plan
// snapshots. Snapshots exist so that in-flight plans can be re-verified
// against venue state after a restart.
type TradeRepository interface {
	SaveTrade(ctx context.Context, rec *TradeRecord) error
	ListTrades(ctx context.Context, limit int) ([]*TradeRecord, error)

	SavePositionHistory(ctx context.Context, h *PositionHistory) error
	ListPositionHistory(ctx context.Context, limit int) ([]*PositionHistory, error)

	SavePlanSnapshot(ctx context.Context, plan *ContingencyPlan) error
	ListPlanSnapshots(ctx context.Context) ([]*ContingencyPlan, error)
	DeletePlanSnapshot(ctx context.Context, instrument string) error
}

// AdvisorOpinion is a non-authoritative exit recommendation.
type AdvisorOpinion struct {
	ShouldExit bool    `json:"should_exit"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Advisor is an optional secondary oracle consulted by the exit monitor.
// It can add an exit path but never overrides a rule-based decision, and
// a failed call is treated as "no opinion".
type Advisor interface {
	ShouldExit(ctx context.Context, plan *ContingencyPlan, price float64, snap *IndicatorSnapshot) (*AdvisorOpinion, error)
}
