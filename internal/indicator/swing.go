// Package indicator implements the stateless ICT detector family: swing
// points, order blocks, fair value gaps, breaker blocks, liquidity levels,
// liquidity sweeps, trend recognition, and market structure breaks (§4.4).
// Every detector is a pure function over a candle slice plus parameters;
// none mutate their input or retain state between calls.
package indicator

import "ictengine/internal/core"

// DefaultSwingLookback is the default L used to classify a swing point.
const DefaultSwingLookback = 5

// FindSwingPoints scans candles for local extrema: index i is a swing high
// if candles[i].High is strictly greater than the High of every candle
// within `lookback` positions on both sides, and symmetrically for swing
// lows. Strength is the number of candles on each side over which the
// extremum holds, starting at lookback and capped at 20 (coarse
// confirmation measure).
func FindSwingPoints(candles []core.Candle, lookback int) []core.SwingPoint {
	if lookback < 1 {
		lookback = DefaultSwingLookback
	}
	var swings []core.SwingPoint
	n := len(candles)

	for i := lookback; i < n-lookback; i++ {
		if isSwingHigh(candles, i, lookback) {
			swings = append(swings, core.SwingPoint{
				Kind:        core.SwingHigh,
				Price:       candles[i].High,
				CandleIndex: i,
				Strength:    swingStrength(candles, i, lookback, core.SwingHigh),
				Timestamp:   candles[i].OpenTime,
			})
		}
		if isSwingLow(candles, i, lookback) {
			swings = append(swings, core.SwingPoint{
				Kind:        core.SwingLow,
				Price:       candles[i].Low,
				CandleIndex: i,
				Strength:    swingStrength(candles, i, lookback, core.SwingLow),
				Timestamp:   candles[i].OpenTime,
			})
		}
	}
	return swings
}

func isSwingHigh(candles []core.Candle, i, lookback int) bool {
	pivot := candles[i].High
	for j := i - lookback; j <= i+lookback; j++ {
		if j == i {
			continue
		}
		if candles[j].High.GreaterThanOrEqual(pivot) {
			return false
		}
	}
	return true
}

func isSwingLow(candles []core.Candle, i, lookback int) bool {
	pivot := candles[i].Low
	for j := i - lookback; j <= i+lookback; j++ {
		if j == i {
			continue
		}
		if candles[j].Low.LessThanOrEqual(pivot) {
			return false
		}
	}
	return true
}

// swingStrength extends the lookback outward while the extremum still
// holds, capped at the available candle range; used as a coarse
// confirmation weight by downstream detectors.
func swingStrength(candles []core.Candle, i, lookback int, kind core.SwingKind) int {
	strength := lookback
	n := len(candles)
	for strength < 20 {
		left, right := i-strength-1, i+strength+1
		if left < 0 || right >= n {
			break
		}
		if kind == core.SwingHigh {
			if candles[left].High.GreaterThanOrEqual(candles[i].High) || candles[right].High.GreaterThanOrEqual(candles[i].High) {
				break
			}
		} else {
			if candles[left].Low.LessThanOrEqual(candles[i].Low) || candles[right].Low.LessThanOrEqual(candles[i].Low) {
				break
			}
		}
		strength++
	}
	return strength
}

// LastSwingHigh returns the most recent swing high, if any.
func LastSwingHigh(swings []core.SwingPoint) (core.SwingPoint, bool) {
	for i := len(swings) - 1; i >= 0; i-- {
		if swings[i].Kind == core.SwingHigh {
			return swings[i], true
		}
	}
	return core.SwingPoint{}, false
}

// LastSwingLow returns the most recent swing low, if any.
func LastSwingLow(swings []core.SwingPoint) (core.SwingPoint, bool) {
	for i := len(swings) - 1; i >= 0; i-- {
		if swings[i].Kind == core.SwingLow {
			return swings[i], true
		}
	}
	return core.SwingPoint{}, false
}
