package venue

import (
	"context"
	"testing"

	"github.com/vikar/fx_cascade_trader/internal/domain"
)

func TestPaperVenue_SeedsHistory(t *testing.T) {
	v := NewPaperVenue(10000, "USD", 1)
	ctx := context.Background()

	candles, err := v.FetchCandles(ctx, "EURUSD", "M5", 260)
	if err != nil {
		t.Fatalf("FetchCandles failed: %v", err)
	}
	if len(candles) != 260 {
		t.Fatalf("Expected 260 candles, got %d", len(candles))
	}
	for i := 1; i < len(candles); i++ {
		if candles[i].Time <= candles[i-1].Time {
			t.Fatalf("Candles out of order at %d", i)
		}
	}
}

func TestPaperVenue_ConstraintsPerQuoteCurrency(t *testing.T) {
	v := NewPaperVenue(10000, "USD", 1)
	ctx := context.Background()

	eur, err := v.GetInstrumentConstraints(ctx, "EURUSD")
	if err != nil {
		t.Fatalf("GetInstrumentConstraints failed: %v", err)
	}
	if eur.PipSize != 0.0001 || eur.Digits != 5 {
		t.Errorf("Unexpected EURUSD constraints: %+v", eur)
	}

	jpy, err := v.GetInstrumentConstraints(ctx, "USDJPY")
	if err != nil {
		t.Fatalf("GetInstrumentConstraints failed: %v", err)
	}
	if jpy.PipSize != 0.01 || jpy.Digits != 3 {
		t.Errorf("Unexpected USDJPY constraints: %+v", jpy)
	}
}

func TestPaperVenue_MarketOrderRoundTrip(t *testing.T) {
	v := NewPaperVenue(10000, "USD", 1)
	ctx := context.Background()

	res, err := v.PlaceMarketOrder(ctx, &domain.MarketOrderRequest{
		Instrument: "EURUSD",
		Side:       domain.SideBuy,
		LotSize:    1,
	})
	if err != nil {
		t.Fatalf("PlaceMarketOrder failed: %v", err)
	}
	if res.TicketRef == "" || res.FillPrice <= 0 {
		t.Fatalf("Bad fill: %+v", res)
	}

	open, err := v.GetOpenPositions(ctx, "EURUSD")
	if err != nil || len(open) != 1 {
		t.Fatalf("Expected 1 open position, got %d (err %v)", len(open), err)
	}

	if err := v.ClosePosition(ctx, res.TicketRef); err != nil {
		t.Fatalf("ClosePosition failed: %v", err)
	}
	open, _ = v.GetOpenPositions(ctx, "EURUSD")
	if len(open) != 0 {
		t.Fatalf("Expected position gone, got %d", len(open))
	}

	if err := v.ClosePosition(ctx, res.TicketRef); err == nil {
		t.Fatal("Expected an error closing an unknown ticket")
	}
}

func TestPaperVenue_PendingTriggersOnCross(t *testing.T) {
	v := NewPaperVenue(10000, "USD", 1)
	ctx := context.Background()

	price, err := v.GetCurrentPrice(ctx, "EURUSD")
	if err != nil {
		t.Fatalf("GetCurrentPrice failed: %v", err)
	}

	// A trigger at the current price is crossed by the very next tick.
	res, err := v.PlacePendingOrder(ctx, &domain.PendingOrderRequest{
		Instrument: "EURUSD",
		Kind:       domain.SellStop,
		Price:      price,
		LotSize:    0.5,
	})
	if err != nil {
		t.Fatalf("PlacePendingOrder failed: %v", err)
	}

	if _, err := v.GetCurrentPrice(ctx, "EURUSD"); err != nil {
		t.Fatalf("GetCurrentPrice failed: %v", err)
	}

	pendings, _ := v.GetOpenPendingOrders(ctx, "EURUSD")
	if len(pendings) != 0 {
		t.Fatalf("Expected the pending order filled, got %d left", len(pendings))
	}
	open, _ := v.GetOpenPositions(ctx, "EURUSD")
	if len(open) != 1 {
		t.Fatalf("Expected 1 position from the fill, got %d", len(open))
	}
	if open[0].Side != domain.SideSell || open[0].LotSize != 0.5 {
		t.Errorf("Unexpected filled position: %+v", open[0])
	}
	if open[0].TicketRef != res.TicketRef {
		t.Errorf("Expected the pending ticket carried to the position")
	}
}

func TestPaperVenue_CancelPending(t *testing.T) {
	v := NewPaperVenue(10000, "USD", 1)
	ctx := context.Background()

	res, err := v.PlacePendingOrder(ctx, &domain.PendingOrderRequest{
		Instrument: "EURUSD",
		Kind:       domain.BuyStop,
		Price:      99, // far away, never triggers
		LotSize:    0.5,
	})
	if err != nil {
		t.Fatalf("PlacePendingOrder failed: %v", err)
	}
	if err := v.CancelPendingOrder(ctx, res.TicketRef); err != nil {
		t.Fatalf("CancelPendingOrder failed: %v", err)
	}
	pendings, _ := v.GetOpenPendingOrders(ctx, "EURUSD")
	if len(pendings) != 0 {
		t.Fatalf("Expected no pendings after cancel, got %d", len(pendings))
	}
}
