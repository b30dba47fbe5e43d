package indicator

import (
	"fmt"
	"math"

	"ictengine/internal/core"

	"github.com/shopspring/decimal"
)

// LiquidityParams configures DetectLiquidityLevels.
type LiquidityParams struct {
	SwingLookback   int
	BufferPips      decimal.Decimal
	ExpireAfterN    int // T_liq, candles since last touch before EXPIRED
	VolumeWindow    int
}

// DefaultLiquidityParams mirrors the spec's defaults.
func DefaultLiquidityParams() LiquidityParams {
	return LiquidityParams{
		SwingLookback: DefaultSwingLookback,
		BufferPips:    decimal.NewFromFloat(0.0001),
		ExpireAfterN:  50,
		VolumeWindow:  20,
	}
}

// DetectLiquidityLevels projects BUY_SIDE levels just above swing highs
// and SELL_SIDE levels just below swing lows, with an initial strength
// score (§4.4).
func DetectLiquidityLevels(symbol string, tf core.Timeframe, candles []core.Candle, p LiquidityParams) []core.LiquidityLevel {
	swings := FindSwingPoints(candles, p.SwingLookback)
	var levels []core.LiquidityLevel

	for _, sw := range swings {
		var side core.LiquiditySide
		var price decimal.Decimal
		switch sw.Kind {
		case core.SwingHigh:
			side = core.BuySide
			price = sw.Price.Add(p.BufferPips)
		case core.SwingLow:
			side = core.SellSide
			price = sw.Price.Sub(p.BufferPips)
		}

		avgVol := averageVolume(candles, sw.CandleIndex, p.VolumeWindow)
		volRatio := 1.0
		if avgVol > 0 {
			volRatio = candles[sw.CandleIndex].Volume.InexactFloat64() / avgVol
		}

		levels = append(levels, core.LiquidityLevel{
			ID:            fmt.Sprintf("%s-%s-LIQ-%d", symbol, tf, sw.Timestamp),
			Symbol:        symbol,
			Timeframe:     tf,
			Side:          side,
			Price:         price,
			TouchCount:    0,
			Strength:      liquidityStrength(sw.Strength, 0, volRatio, 0),
			VolumeProfile: decimal.NewFromFloat(avgVol),
			State:         core.LiquidityActive,
			CreatedAt:     sw.Timestamp,
		})
	}
	return levels
}

// liquidityStrength combines swing magnitude (25%), log-scaled touch count
// (35%), volume ratio (25%), and time-decay (15%) into a 0..100 score.
func liquidityStrength(swingMagnitude, touchCount int, volRatio float64, ageCandles int) int {
	base := math.Min(float64(swingMagnitude)/20.0, 1.0) * 25
	touch := math.Min(math.Log1p(float64(touchCount))/math.Log1p(10), 1.0) * 35
	volume := math.Min(volRatio/2.0, 1.0) * 25
	decay := math.Max(1.0-float64(ageCandles)/200.0, 0) * 15
	score := int(base + touch + volume + decay)
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// UpdateLiquidityLevel advances a level's lifecycle against a new candle:
// a touch moves ACTIVE to PARTIAL, a close across moves it to SWEPT, and
// no interaction for ExpireAfterN candles moves it to EXPIRED.
func UpdateLiquidityLevel(level *core.LiquidityLevel, c core.Candle, expireAfterN int) {
	if level.State == core.LiquiditySwept || level.State == core.LiquidityExpired {
		return
	}

	touched := false
	crossed := false
	switch level.Side {
	case core.BuySide:
		touched = c.High.GreaterThanOrEqual(level.Price)
		crossed = c.Close.GreaterThan(level.Price)
	case core.SellSide:
		touched = c.Low.LessThanOrEqual(level.Price)
		crossed = c.Close.LessThan(level.Price)
	}

	if crossed {
		level.State = core.LiquiditySwept
		return
	}
	if touched {
		level.TouchCount++
		level.CandlesSinceTouch = 0
		if level.State == core.LiquidityActive {
			level.State = core.LiquidityPartial
		}
		return
	}

	level.CandlesSinceTouch++
	if expireAfterN > 0 && level.CandlesSinceTouch >= expireAfterN {
		level.State = core.LiquidityExpired
	}
}
