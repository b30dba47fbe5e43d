package indicator

import (
	"fmt"

	"ictengine/internal/core"

	"github.com/shopspring/decimal"
)

// BMSParams configures DetectBreakOfStructure.
type BMSParams struct {
	MinBreakPct        decimal.Decimal // minimum close-beyond distance, default 0.3%
	FollowThroughPct   decimal.Decimal // minimum follow-through distance, default 0.5%
	FollowThroughBars  int             // K, default 3
}

// DefaultBMSParams mirrors the spec's defaults.
func DefaultBMSParams() BMSParams {
	return BMSParams{
		MinBreakPct:       decimal.NewFromFloat(0.3),
		FollowThroughPct:  decimal.NewFromFloat(0.5),
		FollowThroughBars: 3,
	}
}

// DetectBreakOfStructure evaluates whether the latest candles broke a
// structural swing level and, if the break is still pending
// confirmation within the follow-through window, returns it as
// BMSPotential; confirmation requires all four CONFIRMED conditions
// (§4.4): (a) close beyond the swing by >= MinBreakPct, (b) follow-
// through of >= FollowThroughPct within FollowThroughBars candles, (c)
// volume at or above the local average, (d) a new swing formed in the
// break direction.
func DetectBreakOfStructure(symbol string, tf core.Timeframe, candles []core.Candle, swings []core.SwingPoint, avgVolume decimal.Decimal, p BMSParams) []core.BreakOfMarketStructure {
	var results []core.BreakOfMarketStructure
	if len(candles) == 0 || len(swings) == 0 {
		return results
	}

	for _, sw := range swings {
		breakIdx, dir, ok := findBreakCandle(candles, sw, p)
		if !ok {
			continue
		}
		breakCandle := candles[breakIdx]

		followThrough := hasFollowThrough(candles, breakIdx, sw.Price, dir, p)
		volumeOK := breakCandle.Volume.GreaterThanOrEqual(avgVolume)
		newSwingFormed := hasNewSwingInDirection(swings, sw, dir)

		state := core.BMSPotential
		if followThrough && volumeOK && newSwingFormed {
			state = core.BMSConfirmed
		}

		confidence := bmsConfidence(sw, breakCandle, dir, followThrough, volumeOK, newSwingFormed, p)

		kind := core.Bullish
		if dir == core.Downtrend {
			kind = core.Bearish
		}

		results = append(results, core.BreakOfMarketStructure{
			ID:         fmt.Sprintf("%s-%s-BMS-%d", symbol, tf, breakCandle.OpenTime),
			Symbol:     symbol,
			Timeframe:  tf,
			Kind:       kind,
			BreakPrice: breakCandle.Close,
			State:      state,
			Confidence: confidence,
			Timestamp:  breakCandle.OpenTime,
		})
	}
	return results
}

func findBreakCandle(candles []core.Candle, sw core.SwingPoint, p BMSParams) (int, core.TrendDirection, bool) {
	minMove := sw.Price.Mul(p.MinBreakPct).Div(decimal.NewFromInt(100))

	for i := sw.CandleIndex + 1; i < len(candles); i++ {
		c := candles[i]
		switch sw.Kind {
		case core.SwingHigh:
			if c.Close.Sub(sw.Price).GreaterThanOrEqual(minMove) {
				return i, core.Uptrend, true
			}
		case core.SwingLow:
			if sw.Price.Sub(c.Close).GreaterThanOrEqual(minMove) {
				return i, core.Downtrend, true
			}
		}
	}
	return 0, core.Ranging, false
}

func hasFollowThrough(candles []core.Candle, breakIdx int, level decimal.Decimal, dir core.TrendDirection, p BMSParams) bool {
	minMove := level.Mul(p.FollowThroughPct).Div(decimal.NewFromInt(100))
	limit := breakIdx + p.FollowThroughBars
	if limit >= len(candles) {
		limit = len(candles) - 1
	}
	for i := breakIdx; i <= limit; i++ {
		c := candles[i]
		switch dir {
		case core.Uptrend:
			if c.Close.Sub(level).GreaterThanOrEqual(minMove) {
				return true
			}
		case core.Downtrend:
			if level.Sub(c.Close).GreaterThanOrEqual(minMove) {
				return true
			}
		}
	}
	return false
}

func hasNewSwingInDirection(swings []core.SwingPoint, broken core.SwingPoint, dir core.TrendDirection) bool {
	for _, sw := range swings {
		if sw.CandleIndex <= broken.CandleIndex {
			continue
		}
		if dir == core.Uptrend && sw.Kind == core.SwingHigh && sw.Price.GreaterThan(broken.Price) {
			return true
		}
		if dir == core.Downtrend && sw.Kind == core.SwingLow && sw.Price.LessThan(broken.Price) {
			return true
		}
	}
	return false
}

// bmsConfidence weights break distance (25), follow-through (20), volume
// (20), structure quality (20), and trend alignment (15) into a 0..100
// score.
func bmsConfidence(sw core.SwingPoint, breakCandle core.Candle, dir core.TrendDirection, followThrough, volumeOK, newSwingFormed bool, p BMSParams) float64 {
	var breakDistPct float64
	if !sw.Price.IsZero() {
		breakDistPct = breakCandle.Close.Sub(sw.Price).Abs().Div(sw.Price).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}
	breakScore := minFloat(breakDistPct/1.0, 1.0) * 25

	followScore := 0.0
	if followThrough {
		followScore = 20
	}

	volumeScore := 0.0
	if volumeOK {
		volumeScore = 20
	}

	structureScore := minFloat(float64(sw.Strength)/10.0, 1.0) * 20

	alignmentScore := 0.0
	if newSwingFormed {
		alignmentScore = 15
	}

	score := breakScore + followScore + volumeScore + structureScore + alignmentScore
	return minFloat(score, 100)
}
