package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/vikar/fx_cascade_trader/internal/infrastructure/venue"
	"github.com/vikar/fx_cascade_trader/internal/usecase"
)

func main() {
	pair := flag.String("pair", "EURUSD", "instrument to evaluate")
	timeframe := flag.String("timeframe", "M5", "candle timeframe")
	count := flag.Int("count", 260, "candles to fetch")
	seed := flag.Int64("seed", 42, "paper venue price seed")
	debug := flag.Bool("debug", false, "relax the reversal pattern requirement")
	flag.Parse()

	fmt.Printf("Evaluating entry signal for %s (%s, %d candles)...\n", *pair, *timeframe, *count)

	mkt := venue.NewPaperVenue(10000, "USD", *seed)
	ctx := context.Background()

	window, err := mkt.FetchCandles(ctx, *pair, *timeframe, *count)
	if err != nil {
		fmt.Printf("Failed to fetch candles: %v\n", err)
		os.Exit(1)
	}

	snap, err := usecase.ComputeSnapshot(window)
	if err != nil {
		fmt.Printf("Failed to compute indicators: %v\n", err)
		os.Exit(1)
	}

	last := window[len(window)-1]
	fmt.Printf("Close:    %.5f\n", last.Close)
	fmt.Printf("SMA(21):  %.5f\n", snap.SMAFast)
	fmt.Printf("SMA(50):  %.5f\n", snap.SMAMid)
	fmt.Printf("SMA(200): %.5f\n", snap.SMASlow)
	fmt.Printf("RSI(14):  %.2f\n", snap.RSI)

	cfg := usecase.DefaultStrategyConfig()
	cfg.DebugMode = *debug
	strategy, err := usecase.NewStrategy("", cfg)
	if err != nil {
		fmt.Printf("Failed to init strategy: %v\n", err)
		os.Exit(1)
	}

	sig := strategy.Evaluate(*pair, window, snap)
	if sig.Side == "" {
		fmt.Println("\nNo signal.")
		return
	}

	fmt.Printf("\nSignal: %s at %.5f (stop distance %.5f)\n", sig.Side, sig.Price, sig.StopDistance)
	fmt.Printf("Reason: %s\n", sig.Reason)
}
