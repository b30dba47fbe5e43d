package indicator

import (
	"ictengine/internal/core"

	"github.com/shopspring/decimal"
)

// TrendParams configures DetectTrend.
type TrendParams struct {
	SwingStrength            int // S, default 3
	ATRPeriod                int
	NoiseFilterATRMultiple   decimal.Decimal // reject moves < this * ATR
	MinPatternsForConfirm    int             // configurable per §9 open question; default 2
}

// DefaultTrendParams mirrors the spec's defaults.
func DefaultTrendParams() TrendParams {
	return TrendParams{
		SwingStrength:          3,
		ATRPeriod:              14,
		NoiseFilterATRMultiple: decimal.NewFromFloat(0.3),
		MinPatternsForConfirm:  2,
	}
}

// DetectTrend classifies consecutive swing points into HH/HL/LH/LL
// patterns, derives a direction and strength score, and preserves the
// confirmed flag unless the classified direction actually changes
// (§4.4, §4.5 "preserving confirmed flag across unchanged directions").
func DetectTrend(symbol string, tf core.Timeframe, candles []core.Candle, prior core.TrendState, p TrendParams) ([]core.TrendStructure, core.TrendState) {
	swings := FindSwingPoints(candles, p.SwingStrength)
	atr := CalculateATR(candles, p.ATRPeriod)
	minMove := atr.Mul(p.NoiseFilterATRMultiple)

	var structures []core.TrendStructure
	var highs, lows []core.SwingPoint
	for _, sw := range swings {
		if sw.Kind == core.SwingHigh {
			highs = append(highs, sw)
		} else {
			lows = append(lows, sw)
		}
	}

	structures = append(structures, classifySeries(highs, core.HigherHigh, core.LowerHigh, minMove)...)
	structures = append(structures, classifySeries(lows, core.HigherLow, core.LowerLow, minMove)...)
	sortByTimestamp(structures)

	state := core.TrendState{
		Symbol:     symbol,
		Timeframe:  tf,
		StartTime:  prior.StartTime,
		PatternCount: len(structures),
	}
	if state.StartTime == 0 && len(structures) > 0 {
		state.StartTime = structures[0].Timestamp
	}
	if len(structures) > 0 {
		state.LastUpdate = structures[len(structures)-1].Timestamp
	}

	hh, hl, lh, ll := countPatterns(structures)
	direction := classifyDirection(hh, hl, lh, ll, structures)
	state.Direction = direction
	state.Strength = trendStrength(structures, direction, hh, hl, lh, ll)
	state.StrengthLevel = core.StrengthLevelFor(state.Strength)

	consistentPatterns := hh + hl
	if direction == core.Downtrend {
		consistentPatterns = ll + lh
	}
	state.Confirmed = consistentPatterns >= p.MinPatternsForConfirm && state.Strength >= 40
	if direction == prior.Direction {
		state.Confirmed = state.Confirmed || prior.Confirmed
	}

	return structures, state
}

func classifySeries(points []core.SwingPoint, higherPattern, lowerPattern core.TrendPattern, minMove decimal.Decimal) []core.TrendStructure {
	var out []core.TrendStructure
	for i := 1; i < len(points); i++ {
		prev, cur := points[i-1], points[i]
		delta := cur.Price.Sub(prev.Price).Abs()
		if delta.LessThan(minMove) {
			continue
		}
		pattern := lowerPattern
		if cur.Price.GreaterThan(prev.Price) {
			pattern = higherPattern
		}
		pct := decimal.Zero
		if !prev.Price.IsZero() {
			pct = cur.Price.Sub(prev.Price).Div(prev.Price).Mul(decimal.NewFromInt(100))
		}
		out = append(out, core.TrendStructure{
			Pattern:        pattern,
			Price:          cur.Price,
			Timestamp:      cur.Timestamp,
			PreviousSwing:  prev,
			PriceChangePct: pct,
		})
	}
	return out
}

func sortByTimestamp(s []core.TrendStructure) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j].Timestamp < s[j-1].Timestamp; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

func countPatterns(structures []core.TrendStructure) (hh, hl, lh, ll int) {
	for _, s := range structures {
		switch s.Pattern {
		case core.HigherHigh:
			hh++
		case core.HigherLow:
			hl++
		case core.LowerHigh:
			lh++
		case core.LowerLow:
			ll++
		}
	}
	return
}

func classifyDirection(hh, hl, lh, ll int, structures []core.TrendStructure) core.TrendDirection {
	up := hh + hl
	down := lh + ll
	if up == 0 && down == 0 {
		return core.Ranging
	}
	if len(structures) >= 2 {
		last, prev := structures[len(structures)-1].Pattern, structures[len(structures)-2].Pattern
		lastUp := last == core.HigherHigh || last == core.HigherLow
		prevUp := prev == core.HigherHigh || prev == core.HigherLow
		if lastUp != prevUp {
			return core.Transition
		}
	}
	if up > down {
		return core.Uptrend
	}
	if down > up {
		return core.Downtrend
	}
	return core.Ranging
}

// trendStrength combines pattern-consistency (35%), momentum (25%),
// structure-quality (20%), and consecutive-strength (20%) into a 0..100
// score (§4.4).
func trendStrength(structures []core.TrendStructure, direction core.TrendDirection, hh, hl, lh, ll int) float64 {
	total := hh + hl + lh + ll
	if total == 0 {
		return 0
	}

	dominant := hh + hl
	if direction == core.Downtrend {
		dominant = lh + ll
	}
	consistency := float64(dominant) / float64(total)

	momentum := 0.0
	if len(structures) > 0 {
		avg := 0.0
		for _, s := range structures {
			avg += absFloat(s.PriceChangePct.InexactFloat64())
		}
		avg /= float64(len(structures))
		momentum = minFloat(avg/2.0, 1.0)
	}

	structureQuality := minFloat(float64(total)/8.0, 1.0)
	consecutiveStrength := minFloat(float64(dominant)/5.0, 1.0)

	score := 0.35*consistency + 0.25*momentum + 0.20*structureQuality + 0.20*consecutiveStrength
	return minFloat(score*100, 100)
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
