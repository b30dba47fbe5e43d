package indicator

import (
	"fmt"

	"ictengine/internal/core"

	"github.com/shopspring/decimal"
)

// FVGParams configures DetectFVGs.
type FVGParams struct {
	MinGapSize decimal.Decimal // G_min
}

// DefaultFVGParams mirrors the spec's defaults.
func DefaultFVGParams() FVGParams {
	return FVGParams{MinGapSize: decimal.NewFromFloat(0.0)}
}

// DetectFVGs scans a rolling three-candle window for imbalances: a
// BULLISH gap when c3.Low > c1.High, a BEARISH gap when c3.High < c1.Low,
// each tracked with its initial fill state (§4.4).
func DetectFVGs(symbol string, tf core.Timeframe, candles []core.Candle, p FVGParams) []core.FairValueGap {
	var gaps []core.FairValueGap
	for i := 2; i < len(candles); i++ {
		c1, c3 := candles[i-2], candles[i]

		if c3.Low.GreaterThan(c1.High) {
			gapSize := c3.Low.Sub(c1.High)
			if gapSize.GreaterThanOrEqual(p.MinGapSize) {
				gaps = append(gaps, core.FairValueGap{
					ID:        fmt.Sprintf("%s-%s-FVG-%d", symbol, tf, candles[i-1].OpenTime),
					Symbol:    symbol,
					Timeframe: tf,
					Kind:      core.Bullish,
					Top:       c3.Low,
					Bottom:    c1.High,
					C1Time:    c1.OpenTime,
					C2Time:    candles[i-1].OpenTime,
					C3Time:    c3.OpenTime,
					GapSize:   gapSize,
				})
			}
		}

		if c3.High.LessThan(c1.Low) {
			gapSize := c1.Low.Sub(c3.High)
			if gapSize.GreaterThanOrEqual(p.MinGapSize) {
				gaps = append(gaps, core.FairValueGap{
					ID:        fmt.Sprintf("%s-%s-FVG-%d", symbol, tf, candles[i-1].OpenTime),
					Symbol:    symbol,
					Timeframe: tf,
					Kind:      core.Bearish,
					Top:       c1.Low,
					Bottom:    c3.High,
					C1Time:    c1.OpenTime,
					C2Time:    candles[i-1].OpenTime,
					C3Time:    c3.OpenTime,
					GapSize:   gapSize,
				})
			}
		}
	}
	return gaps
}

// UpdateFVGFill recomputes a gap's fill-percent against a new candle and
// reports whether the gap is still active (fill < 100%).
func UpdateFVGFill(fvg *core.FairValueGap, c core.Candle) bool {
	if fvg.GapSize.IsZero() {
		fvg.Filled = true
		fvg.FillPercent = decimal.NewFromInt(100)
		return false
	}

	var tracked decimal.Decimal
	switch fvg.Kind {
	case core.Bullish:
		tracked = minDecimalTracked(fvg, c.Low, true)
		fvg.FillPercent = clampPct(fvg.Top.Sub(tracked).Div(fvg.GapSize))
	case core.Bearish:
		tracked = minDecimalTracked(fvg, c.High, false)
		fvg.FillPercent = clampPct(tracked.Sub(fvg.Bottom).Div(fvg.GapSize))
	}

	if fvg.FillPercent.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		fvg.Filled = true
		return false
	}
	return true
}

// minDecimalTracked updates and returns the gap's tracked extreme: the
// lowest low seen for a bullish gap, the highest high for a bearish one.
func minDecimalTracked(fvg *core.FairValueGap, candidate decimal.Decimal, wantMin bool) decimal.Decimal {
	if !fvg.HasTrackedExtreme() {
		fvg.SetTrackedExtreme(candidate)
		return candidate
	}
	current := fvg.TrackedExtreme()
	if wantMin {
		if candidate.LessThan(current) {
			fvg.SetTrackedExtreme(candidate)
			return candidate
		}
		return current
	}
	if candidate.GreaterThan(current) {
		fvg.SetTrackedExtreme(candidate)
		return candidate
	}
	return current
}

func clampPct(ratio decimal.Decimal) decimal.Decimal {
	pct := ratio.Mul(decimal.NewFromInt(100))
	if pct.LessThan(decimal.Zero) {
		return decimal.Zero
	}
	if pct.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.NewFromInt(100)
	}
	return pct
}
