package tests

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vikar/fx_cascade_trader/internal/domain"
	"github.com/vikar/fx_cascade_trader/internal/usecase"
	"go.uber.org/zap"
)

// MockVenue is the shared scriptable venue for scenario tests.
type MockVenue struct {
	Price       float64
	FillPrice   float64
	Balance     float64
	Candles     []domain.Candle
	Constraints *domain.InstrumentConstraints
	Open        []domain.OpenPosition

	FailClose bool

	MarketOrders  []*domain.MarketOrderRequest
	PendingOrders []*domain.PendingOrderRequest
	Closed        []string
	Cancelled     []string

	tickets int
}

func NewMockVenue() *MockVenue {
	return &MockVenue{
		Price:     1.1000,
		FillPrice: 1.1000,
		Balance:   10000,
		Constraints: &domain.InstrumentConstraints{
			MinLot:  0.01,
			MaxLot:  100,
			LotStep: 0.01,
			PipSize: 0.0001,
			Digits:  5,
		},
	}
}

func (m *MockVenue) nextTicket() string {
	m.tickets++
	return fmt.Sprintf("ticket-%d", m.tickets)
}

func (m *MockVenue) FetchCandles(ctx context.Context, instrument, timeframe string, count int) ([]domain.Candle, error) {
	return m.Candles, nil
}

func (m *MockVenue) GetCurrentPrice(ctx context.Context, instrument string) (float64, error) {
	return m.Price, nil
}

func (m *MockVenue) GetAccountSnapshot(ctx context.Context) (*domain.AccountSnapshot, error) {
	return &domain.AccountSnapshot{Balance: m.Balance, Equity: m.Balance, Currency: "USD"}, nil
}

func (m *MockVenue) GetInstrumentConstraints(ctx context.Context, instrument string) (*domain.InstrumentConstraints, error) {
	return m.Constraints, nil
}

func (m *MockVenue) PlaceMarketOrder(ctx context.Context, req *domain.MarketOrderRequest) (*domain.MarketOrderResult, error) {
	m.MarketOrders = append(m.MarketOrders, req)
	return &domain.MarketOrderResult{TicketRef: m.nextTicket(), FillPrice: m.FillPrice}, nil
}

func (m *MockVenue) PlacePendingOrder(ctx context.Context, req *domain.PendingOrderRequest) (*domain.PendingOrderResult, error) {
	m.PendingOrders = append(m.PendingOrders, req)
	return &domain.PendingOrderResult{TicketRef: m.nextTicket()}, nil
}

func (m *MockVenue) ModifyPosition(ctx context.Context, ticketRef string, stopLoss, takeProfit float64) error {
	return nil
}

func (m *MockVenue) ClosePosition(ctx context.Context, ticketRef string) error {
	if m.FailClose {
		return errors.New("mock: close rejected")
	}
	m.Closed = append(m.Closed, ticketRef)
	return nil
}

func (m *MockVenue) CancelPendingOrder(ctx context.Context, ticketRef string) error {
	m.Cancelled = append(m.Cancelled, ticketRef)
	return nil
}

func (m *MockVenue) GetOpenPositions(ctx context.Context, instrument string) ([]domain.OpenPosition, error) {
	return m.Open, nil
}

func (m *MockVenue) GetOpenPendingOrders(ctx context.Context, instrument string) ([]domain.OpenPendingOrder, error) {
	return nil, nil
}

// MockRepo is an in-memory TradeRepository.
type MockRepo struct {
	Trades    []*domain.TradeRecord
	History   []*domain.PositionHistory
	Snapshots map[string]*domain.ContingencyPlan
}

func NewMockRepo() *MockRepo {
	return &MockRepo{Snapshots: make(map[string]*domain.ContingencyPlan)}
}

func (m *MockRepo) SaveTrade(ctx context.Context, rec *domain.TradeRecord) error {
	m.Trades = append(m.Trades, rec)
	return nil
}

func (m *MockRepo) ListTrades(ctx context.Context, limit int) ([]*domain.TradeRecord, error) {
	return m.Trades, nil
}

func (m *MockRepo) SavePositionHistory(ctx context.Context, h *domain.PositionHistory) error {
	m.History = append(m.History, h)
	return nil
}

func (m *MockRepo) ListPositionHistory(ctx context.Context, limit int) ([]*domain.PositionHistory, error) {
	return m.History, nil
}

func (m *MockRepo) SavePlanSnapshot(ctx context.Context, plan *domain.ContingencyPlan) error {
	m.Snapshots[plan.Instrument] = plan
	return nil
}

func (m *MockRepo) ListPlanSnapshots(ctx context.Context) ([]*domain.ContingencyPlan, error) {
	out := make([]*domain.ContingencyPlan, 0, len(m.Snapshots))
	for _, p := range m.Snapshots {
		out = append(out, p)
	}
	return out, nil
}

func (m *MockRepo) DeletePlanSnapshot(ctx context.Context, instrument string) error {
	delete(m.Snapshots, instrument)
	return nil
}

// buyReversalWindow is a steady uptrend whose last four candles form the
// three-bearish-one-bullish shape the entry strategy looks for.
func buyReversalWindow() []domain.Candle {
	out := make([]domain.Candle, 260)
	price := 1.1000
	for i := range out {
		out[i] = domain.Candle{
			Time:  int64(i) * 300,
			Open:  price - 0.0001,
			High:  price + 0.0005,
			Low:   price - 0.0005,
			Close: price,
		}
		price += 0.0005
	}
	n := len(out)
	for i := n - 4; i < n-1; i++ {
		out[i].Open = out[i].Close + 0.0001
	}
	out[n-1].Open = out[n-1].Close - 0.0001
	return out
}

type testBot struct {
	venue     *MockVenue
	repo      *MockRepo
	scheduler *usecase.Scheduler
}

func newTestBot(venue *MockVenue, repo *MockRepo, instrument string) *testBot {
	log := zap.NewNop()
	trades := usecase.NewTradeLog(repo, nil, log)
	strategy, _ := usecase.NewStrategy("smacascade", usecase.DefaultStrategyConfig())
	cascade := usecase.NewCascadeEngine(venue, trades, log, usecase.DefaultCascadeConfig())
	exits := usecase.NewExitMonitor(usecase.DefaultExitMonitorConfig(), nil, log)
	scheduler := usecase.NewScheduler(venue, strategy, usecase.NewRiskSizer(0.02), cascade, exits,
		repo, usecase.NopMetrics{}, log, usecase.SchedulerConfig{
			Instruments: []string{instrument},
			Timeframe:   "M5",
			CandleCount: 260,
			Cooldown:    time.Hour,
		})
	return &testBot{venue: venue, repo: repo, scheduler: scheduler}
}
