package venue

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vikar/fx_cascade_trader/internal/domain"
)

const historyDepth = 400

// PaperVenue is an in-memory simulated broker. Prices follow a seeded
// random walk per instrument; pending orders trigger the first time a
// simulated tick crosses their price. Closes realize PnL into the
// account balance so the drawdown kill switch is testable end to end.
type PaperVenue struct {
	mu          sync.Mutex
	balance     float64
	currency    string
	rng         *rand.Rand
	instruments map[string]*paperInstrument
}

type paperInstrument struct {
	symbol      string
	price       float64
	candles     []domain.Candle
	lastBarTime time.Time
	constraints domain.InstrumentConstraints
	positions   map[string]*paperPosition
	pendings    map[string]*paperPending
}

type paperPosition struct {
	ticket     string
	side       domain.Side
	lot        float64
	entryPrice float64
	stopLoss   float64
	takeProfit float64
}

type paperPending struct {
	ticket     string
	kind       domain.PendingKind
	price      float64
	lot        float64
	stopLoss   float64
	takeProfit float64
}

func NewPaperVenue(balance float64, currency string, seed int64) *PaperVenue {
	if balance <= 0 {
		balance = 10000
	}
	if currency == "" {
		currency = "USD"
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &PaperVenue{
		balance:     balance,
		currency:    currency,
		rng:         rand.New(rand.NewSource(seed)),
		instruments: make(map[string]*paperInstrument),
	}
}

func isJPYPair(symbol string) bool {
	return strings.Contains(strings.ToUpper(symbol), "JPY")
}

func startPriceFor(symbol string) float64 {
	if isJPYPair(symbol) {
		return 150.0
	}
	return 1.1000
}

func constraintsFor(symbol string) domain.InstrumentConstraints {
	pip := 0.0001
	digits := 5
	if isJPYPair(symbol) {
		pip = 0.01
		digits = 3
	}
	return domain.InstrumentConstraints{
		MinLot:          0.01,
		MaxLot:          100,
		LotStep:         0.01,
		PipSize:         pip,
		MinStopDistance: 2 * pip,
		Digits:          digits,
	}
}

// ensureInstrument seeds history lazily on first access. Caller holds mu.
func (v *PaperVenue) ensureInstrument(symbol string) *paperInstrument {
	if pi, ok := v.instruments[symbol]; ok {
		return pi
	}
	pi := &paperInstrument{
		symbol:      symbol,
		constraints: constraintsFor(symbol),
		positions:   make(map[string]*paperPosition),
		pendings:    make(map[string]*paperPending),
	}
	price := startPriceFor(symbol)
	step := pi.constraints.PipSize * 3
	now := time.Now().Truncate(5 * time.Minute)
	start := now.Add(-time.Duration(historyDepth) * 5 * time.Minute)
	for i := 0; i < historyDepth; i++ {
		open := price
		high := open
		low := open
		for t := 0; t < 4; t++ {
			price += (v.rng.Float64()*2 - 1) * step
			high = math.Max(high, price)
			low = math.Min(low, price)
		}
		pi.candles = append(pi.candles, domain.Candle{
			Time:  start.Add(time.Duration(i) * 5 * time.Minute).Unix(),
			Open:  open,
			High:  high,
			Low:   low,
			Close: price,
		})
	}
	pi.price = price
	pi.lastBarTime = now
	v.instruments[symbol] = pi
	return pi
}

// tick advances one simulated price step and fills any pendings the new
// price crosses. Caller holds mu.
func (v *PaperVenue) tick(pi *paperInstrument) {
	prev := pi.price
	step := pi.constraints.PipSize * 3
	pi.price += (v.rng.Float64()*2 - 1) * step

	for ticket, p := range pi.pendings {
		if !crossed(prev, pi.price, p.price) {
			continue
		}
		pi.positions[ticket] = &paperPosition{
			ticket:     ticket,
			side:       p.kind.Side(),
			lot:        p.lot,
			entryPrice: p.price,
			stopLoss:   p.stopLoss,
			takeProfit: p.takeProfit,
		}
		delete(pi.pendings, ticket)
	}

	now := time.Now()
	tf := 5 * time.Minute
	if now.Sub(pi.lastBarTime) >= tf {
		last := pi.candles[len(pi.candles)-1]
		pi.candles = append(pi.candles, domain.Candle{
			Time:  now.Truncate(tf).Unix(),
			Open:  last.Close,
			High:  math.Max(last.Close, pi.price),
			Low:   math.Min(last.Close, pi.price),
			Close: pi.price,
		})
		if len(pi.candles) > historyDepth*2 {
			pi.candles = pi.candles[len(pi.candles)-historyDepth:]
		}
		pi.lastBarTime = now.Truncate(tf)
	}
}

func crossed(prev, curr, trigger float64) bool {
	return (prev-trigger)*(curr-trigger) <= 0
}

func (v *PaperVenue) FetchCandles(ctx context.Context, instrument, timeframe string, count int) ([]domain.Candle, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	pi := v.ensureInstrument(instrument)
	if count <= 0 || count > len(pi.candles) {
		count = len(pi.candles)
	}
	out := make([]domain.Candle, count)
	copy(out, pi.candles[len(pi.candles)-count:])
	return out, nil
}

func (v *PaperVenue) GetCurrentPrice(ctx context.Context, instrument string) (float64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	pi := v.ensureInstrument(instrument)
	v.tick(pi)
	return pi.price, nil
}

func (v *PaperVenue) GetAccountSnapshot(ctx context.Context) (*domain.AccountSnapshot, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	equity := v.balance
	for _, pi := range v.instruments {
		for _, p := range pi.positions {
			equity += unrealized(p, pi.price)
		}
	}
	return &domain.AccountSnapshot{
		Balance:  v.balance,
		Equity:   equity,
		Currency: v.currency,
	}, nil
}

func unrealized(p *paperPosition, price float64) float64 {
	return (price - p.entryPrice) * p.side.Sign() * p.lot * 100000
}

func (v *PaperVenue) GetInstrumentConstraints(ctx context.Context, instrument string) (*domain.InstrumentConstraints, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	pi := v.ensureInstrument(instrument)
	c := pi.constraints
	return &c, nil
}

func (v *PaperVenue) PlaceMarketOrder(ctx context.Context, req *domain.MarketOrderRequest) (*domain.MarketOrderResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if req.LotSize <= 0 {
		return nil, fmt.Errorf("paper: invalid lot size %v", req.LotSize)
	}
	if req.Side != domain.SideBuy && req.Side != domain.SideSell {
		return nil, fmt.Errorf("paper: invalid side %q", req.Side)
	}
	pi := v.ensureInstrument(req.Instrument)
	ticket := uuid.NewString()
	pi.positions[ticket] = &paperPosition{
		ticket:     ticket,
		side:       req.Side,
		lot:        req.LotSize,
		entryPrice: pi.price,
	}
	return &domain.MarketOrderResult{TicketRef: ticket, FillPrice: pi.price}, nil
}

func (v *PaperVenue) PlacePendingOrder(ctx context.Context, req *domain.PendingOrderRequest) (*domain.PendingOrderResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if req.LotSize <= 0 {
		return nil, fmt.Errorf("paper: invalid lot size %v", req.LotSize)
	}
	pi := v.ensureInstrument(req.Instrument)
	ticket := uuid.NewString()
	pi.pendings[ticket] = &paperPending{
		ticket:     ticket,
		kind:       req.Kind,
		price:      req.Price,
		lot:        req.LotSize,
		stopLoss:   req.StopLoss,
		takeProfit: req.TakeProfit,
	}
	return &domain.PendingOrderResult{TicketRef: ticket}, nil
}

func (v *PaperVenue) ModifyPosition(ctx context.Context, ticketRef string, stopLoss, takeProfit float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, pi := range v.instruments {
		if p, ok := pi.positions[ticketRef]; ok {
			p.stopLoss = stopLoss
			p.takeProfit = takeProfit
			return nil
		}
	}
	return fmt.Errorf("paper: position %s not found", ticketRef)
}

func (v *PaperVenue) ClosePosition(ctx context.Context, ticketRef string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, pi := range v.instruments {
		if p, ok := pi.positions[ticketRef]; ok {
			v.balance += unrealized(p, pi.price)
			delete(pi.positions, ticketRef)
			return nil
		}
	}
	return fmt.Errorf("paper: position %s not found", ticketRef)
}

func (v *PaperVenue) CancelPendingOrder(ctx context.Context, ticketRef string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, pi := range v.instruments {
		if _, ok := pi.pendings[ticketRef]; ok {
			delete(pi.pendings, ticketRef)
			return nil
		}
	}
	return fmt.Errorf("paper: pending order %s not found", ticketRef)
}

func (v *PaperVenue) GetOpenPositions(ctx context.Context, instrument string) ([]domain.OpenPosition, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	pi := v.ensureInstrument(instrument)
	out := make([]domain.OpenPosition, 0, len(pi.positions))
	for _, p := range pi.positions {
		out = append(out, domain.OpenPosition{
			TicketRef:  p.ticket,
			Side:       p.side,
			LotSize:    p.lot,
			EntryPrice: p.entryPrice,
		})
	}
	return out, nil
}

func (v *PaperVenue) GetOpenPendingOrders(ctx context.Context, instrument string) ([]domain.OpenPendingOrder, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	pi := v.ensureInstrument(instrument)
	out := make([]domain.OpenPendingOrder, 0, len(pi.pendings))
	for _, p := range pi.pendings {
		out = append(out, domain.OpenPendingOrder{
			TicketRef: p.ticket,
			Kind:      p.kind,
			Price:     p.price,
			LotSize:   p.lot,
		})
	}
	return out, nil
}
