package usecase

import (
	"sort"

	"github.com/vikar/fx_cascade_trader/internal/domain"
)

// PriceLevels are clustered support and resistance levels detected from
// a candle window.
type PriceLevels struct {
	Support    []float64 // ascending
	Resistance []float64 // ascending
}

// DetectLevels locates local extrema over the window (a point is an
// extremum when it is the max/min of extremaWindow candles on each side)
// and clusters extrema within tolerance of each other into single levels.
func DetectLevels(window []domain.Candle, extremaWindow int, tolerance float64) PriceLevels {
	if extremaWindow <= 0 {
		extremaWindow = 20
	}

	var highs, lows []float64
	for i := extremaWindow; i < len(window)-extremaWindow; i++ {
		isMax, isMin := true, true
		for j := i - extremaWindow; j <= i+extremaWindow; j++ {
			if window[j].High > window[i].High {
				isMax = false
			}
			if window[j].Low < window[i].Low {
				isMin = false
			}
			if !isMax && !isMin {
				break
			}
		}
		if isMax {
			highs = append(highs, window[i].High)
		}
		if isMin {
			lows = append(lows, window[i].Low)
		}
	}

	return PriceLevels{
		Support:    clusterLevels(lows, tolerance),
		Resistance: clusterLevels(highs, tolerance),
	}
}

// clusterLevels groups nearby extrema into their average price. Input
// order does not matter; output is ascending.
func clusterLevels(points []float64, tolerance float64) []float64 {
	if len(points) == 0 {
		return nil
	}
	sorted := append([]float64(nil), points...)
	sort.Float64s(sorted)

	var levels []float64
	groupSum := sorted[0]
	groupN := 1
	last := sorted[0]
	for _, p := range sorted[1:] {
		if p-last <= tolerance {
			groupSum += p
			groupN++
		} else {
			levels = append(levels, groupSum/float64(groupN))
			groupSum, groupN = p, 1
		}
		last = p
	}
	levels = append(levels, groupSum/float64(groupN))
	return levels
}

// levelEps keeps float noise from clusterLevels averaging (a few ULPs
// around the inputs) from counting as "below" or "above" the price.
const levelEps = 1e-9

// Nearest returns the level a position of the given direction would
// return to: the highest support below price for a buy, the lowest
// resistance above price for a sell.
func (l PriceLevels) Nearest(price float64, side domain.Side) (float64, bool) {
	switch side {
	case domain.SideBuy:
		best, found := 0.0, false
		for _, s := range l.Support {
			if s < price-levelEps && (!found || s > best) {
				best, found = s, true
			}
		}
		return best, found
	case domain.SideSell:
		best, found := 0.0, false
		for _, r := range l.Resistance {
			if r > price+levelEps && (!found || r < best) {
				best, found = r, true
			}
		}
		return best, found
	}
	return 0, false
}
