package tests

import (
	"context"
	"math"
	"testing"

	"github.com/vikar/fx_cascade_trader/internal/domain"
)

// A full losing cycle: entry signal, hedge leg triggered, escalation leg
// placed back at the original entry, counter take-profit reached on the
// hedge side.
func TestScenario_CascadeLifecycleToCounterTakeProfit(t *testing.T) {
	venue := NewMockVenue()
	venue.Candles = buyReversalWindow()
	last := venue.Candles[len(venue.Candles)-1].Close // 1.2295
	venue.Price = last
	venue.FillPrice = last

	repo := NewMockRepo()
	bot := newTestBot(venue, repo, "EURUSD")
	ctx := context.Background()

	// Cycle 1: the reversal pattern fires and the plan opens.
	bot.scheduler.RunCycle(ctx)

	plan, ok := bot.scheduler.Plan("EURUSD")
	if !ok {
		t.Fatal("Expected a plan after the signal cycle")
	}
	if plan.Primary.Side != domain.SideBuy {
		t.Fatalf("Expected a BUY primary, got %s", plan.Primary.Side)
	}
	if math.Abs(plan.StopDistance-0.0050) > 1e-9 {
		t.Fatalf("Expected stop distance 0.0050 (price to fast SMA), got %f", plan.StopDistance)
	}
	if len(plan.Legs) != 1 || plan.Legs[0].Side != domain.SideSell {
		t.Fatalf("Expected one opposing pending leg, got %+v", plan.Legs)
	}
	if math.Abs(plan.Legs[0].TriggerPrice-(last-0.0050)) > 1e-9 {
		t.Fatalf("Expected leg 1 at the reference level, got %f", plan.Legs[0].TriggerPrice)
	}

	// Cycle 2: price falls to the reference level, the hedge fills and
	// leg 2 is parked back at the original entry.
	venue.Price = last - 0.0051
	bot.scheduler.RunCycle(ctx)

	plan, _ = bot.scheduler.Plan("EURUSD")
	if plan.State != domain.PlanCascade {
		t.Fatalf("Expected CASCADE after the hedge trigger, got %s", plan.State)
	}
	if plan.CurrentLevel != 1 {
		t.Fatalf("Expected level 1, got %d", plan.CurrentLevel)
	}
	if len(plan.Legs) != 2 {
		t.Fatalf("Expected leg 2 placed, got %d legs", len(plan.Legs))
	}
	leg2 := plan.Legs[1]
	if leg2.Side != domain.SideBuy || math.Abs(leg2.TriggerPrice-last) > 1e-9 {
		t.Fatalf("Expected leg 2 BUY at the original entry, got %s at %f", leg2.Side, leg2.TriggerPrice)
	}

	// Cycle 3: the hedge runs two stop distances and everything flattens.
	venue.Price = last - 0.0151
	bot.scheduler.RunCycle(ctx)

	if _, ok := bot.scheduler.Plan("EURUSD"); ok {
		t.Fatal("Expected the plan gone after the counter take-profit")
	}
	if len(venue.Closed) != 2 {
		t.Errorf("Expected the primary and the triggered hedge closed, got %d", len(venue.Closed))
	}
	if len(venue.Cancelled) != 1 {
		t.Errorf("Expected the untriggered leg cancelled, got %d", len(venue.Cancelled))
	}
	if len(repo.History) != 1 {
		t.Fatalf("Expected one history row, got %d", len(repo.History))
	}
	h := repo.History[0]
	if h.Reason != "COUNTER_TAKE_PROFIT" {
		t.Errorf("Expected COUNTER_TAKE_PROFIT, got %q", h.Reason)
	}
	// Primary loses 150 pips on 0.49 lots, the hedge earns 100 on 0.49.
	if math.Abs(h.RealizedPnL-(-245)) > 1 {
		t.Errorf("Expected realized PnL about -245, got %f", h.RealizedPnL)
	}
	if len(repo.Snapshots) != 0 {
		t.Error("Expected no snapshot left after the plan finished")
	}
}

// A 21% balance drop closes everything within the same cycle, profitable
// or not.
func TestScenario_DrawdownKillSwitch(t *testing.T) {
	venue := NewMockVenue()
	venue.Candles = buyReversalWindow()
	last := venue.Candles[len(venue.Candles)-1].Close
	venue.Price = last
	venue.FillPrice = last

	repo := NewMockRepo()
	bot := newTestBot(venue, repo, "EURUSD")
	ctx := context.Background()

	bot.scheduler.RunCycle(ctx)
	if _, ok := bot.scheduler.Plan("EURUSD"); !ok {
		t.Fatal("Expected a plan opened")
	}

	venue.Balance = 7900
	bot.scheduler.RunCycle(ctx)

	if _, ok := bot.scheduler.Plan("EURUSD"); ok {
		t.Fatal("Expected the plan closed in the same cycle as the drawdown")
	}
	if len(repo.History) != 1 || repo.History[0].Reason != "DRAWDOWN_KILL_SWITCH" {
		t.Fatalf("Expected a DRAWDOWN_KILL_SWITCH history row, got %+v", repo.History)
	}
}

// A rejected close leaves the plan pending retry; the next cycle finishes
// the job.
func TestScenario_CloseRejectionRetriedNextCycle(t *testing.T) {
	venue := NewMockVenue()
	venue.Candles = buyReversalWindow()
	last := venue.Candles[len(venue.Candles)-1].Close
	venue.Price = last
	venue.FillPrice = last

	repo := NewMockRepo()
	bot := newTestBot(venue, repo, "EURUSD")
	ctx := context.Background()

	bot.scheduler.RunCycle(ctx)

	// Price hits the primary take-profit but the venue rejects the close.
	venue.Price = last + 0.0101
	venue.FailClose = true
	bot.scheduler.RunCycle(ctx)

	if _, ok := bot.scheduler.Plan("EURUSD"); !ok {
		t.Fatal("Expected the plan kept alive after the rejected close")
	}
	if len(repo.History) != 0 {
		t.Fatal("Expected no history row while the close is unconfirmed")
	}

	venue.FailClose = false
	bot.scheduler.RunCycle(ctx)

	if _, ok := bot.scheduler.Plan("EURUSD"); ok {
		t.Fatal("Expected the plan closed on retry")
	}
	if len(repo.History) != 1 || repo.History[0].Reason != "TAKE_PROFIT" {
		t.Fatalf("Expected a TAKE_PROFIT history row, got %+v", repo.History)
	}
}

// Plans survive a restart: a new scheduler re-verifies the snapshot
// against venue state and keeps managing it.
func TestScenario_RestartResumesPlan(t *testing.T) {
	venue := NewMockVenue()
	venue.Candles = buyReversalWindow()
	last := venue.Candles[len(venue.Candles)-1].Close
	venue.Price = last
	venue.FillPrice = last

	repo := NewMockRepo()
	bot := newTestBot(venue, repo, "EURUSD")
	ctx := context.Background()

	bot.scheduler.RunCycle(ctx)
	orig, _ := bot.scheduler.Plan("EURUSD")

	// "Restart": a fresh scheduler over the same repo and venue. The
	// venue still reports the primary position open.
	venue.Open = []domain.OpenPosition{{
		TicketRef:  orig.Primary.TicketRef,
		Side:       orig.Primary.Side,
		LotSize:    orig.Primary.LotSize,
		EntryPrice: orig.Primary.EntryPrice,
	}}
	bot2 := newTestBot(venue, repo, "EURUSD")
	if err := bot2.scheduler.Restore(ctx); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	plan, ok := bot2.scheduler.Plan("EURUSD")
	if !ok {
		t.Fatal("Expected the plan resumed after restart")
	}
	if len(plan.Legs) != len(orig.Legs) {
		t.Fatalf("Expected legs preserved across restart, got %d vs %d", len(plan.Legs), len(orig.Legs))
	}

	// The resumed plan still reaches its take-profit.
	venue.Price = last + 0.0101
	bot2.scheduler.RunCycle(ctx)

	if _, ok := bot2.scheduler.Plan("EURUSD"); ok {
		t.Fatal("Expected the resumed plan to finish")
	}
	if len(repo.History) != 1 || repo.History[0].Reason != "TAKE_PROFIT" {
		t.Fatalf("Expected a TAKE_PROFIT history row, got %+v", repo.History)
	}
}
