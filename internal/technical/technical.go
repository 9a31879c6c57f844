package technical

import (
	"math"

	"callscan/pkg/model"
)

// srLookback is the number of trailing bars (roughly three months of
// sessions) considered for support/resistance levels.
const srLookback = 60

// RSI computes the Relative Strength Index over the full close series using
// Wilder's smoothing: an exponentially weighted average of up and down moves
// with smoothing factor 1/period, recursive (non-adjusted) form, seeded at
// the first price change.
//
// The result has the same length as the input. Index 0 has no prior bar and
// is NaN. The rs ratio keeps plain float semantics: a zero down-average
// yields +Inf (RSI 100), zero on both sides yields NaN. Values are only
// meaningful once at least `period` bars precede them; callers typically use
// the last element.
func RSI(closes []float64, period int) []float64 {
	if len(closes) == 0 || period <= 0 {
		return nil
	}

	rsi := make([]float64, len(closes))
	rsi[0] = math.NaN()

	alpha := 1.0 / float64(period)
	var avgUp, avgDown float64

	for i := 1; i < len(closes); i++ {
		diff := closes[i] - closes[i-1]
		up := math.Max(diff, 0)
		down := math.Max(-diff, 0)

		if i == 1 {
			avgUp = up
			avgDown = down
		} else {
			avgUp = alpha*up + (1-alpha)*avgUp
			avgDown = alpha*down + (1-alpha)*avgDown
		}

		rs := avgUp / avgDown
		rsi[i] = 100 - 100/(1+rs)
	}

	return rsi
}

// LastRSI returns the most recent RSI value, or NaN when the series is
// empty.
func LastRSI(closes []float64, period int) float64 {
	series := RSI(closes, period)
	if len(series) == 0 {
		return math.NaN()
	}
	return series[len(series)-1]
}

// SupportResistance derives the nearest support and resistance levels from
// the trailing window of daily bars. Closes strictly below the current
// price form the support set, closes strictly above form the resistance
// set; a close exactly equal to the price belongs to neither. Support is
// the minimum of the below-set, falling back to the window minimum when no
// close sits below the price; resistance is the maximum of the above-set
// with the symmetric fallback. Works on however many bars are available.
func SupportResistance(bars []model.PriceBar, currentPrice float64) (support, resistance float64) {
	if len(bars) == 0 {
		return 0, 0
	}

	start := len(bars) - srLookback
	if start < 0 {
		start = 0
	}
	window := bars[start:]

	windowMin := window[0].Close
	windowMax := window[0].Close
	belowMin := math.Inf(1)
	aboveMax := math.Inf(-1)
	hasBelow, hasAbove := false, false

	for _, bar := range window {
		c := bar.Close
		if c < windowMin {
			windowMin = c
		}
		if c > windowMax {
			windowMax = c
		}
		if c < currentPrice {
			hasBelow = true
			if c < belowMin {
				belowMin = c
			}
		}
		if c > currentPrice {
			hasAbove = true
			if c > aboveMax {
				aboveMax = c
			}
		}
	}

	support = windowMin
	if hasBelow {
		support = belowMin
	}
	resistance = windowMax
	if hasAbove {
		resistance = aboveMax
	}
	return support, resistance
}
