package indicator

import (
	"fmt"

	"ictengine/internal/core"

	"github.com/shopspring/decimal"
)

// SweepParams configures the liquidity sweep state machine.
type SweepParams struct {
	MinBreachPips         decimal.Decimal
	MaxBreachPips         decimal.Decimal
	ReversalConfirmPips   decimal.Decimal
	MaxCandlesToReverse   int // R
}

// DefaultSweepParams mirrors the spec's defaults.
func DefaultSweepParams() SweepParams {
	return SweepParams{
		MinBreachPips:       decimal.NewFromFloat(0.00005),
		MaxBreachPips:       decimal.NewFromFloat(0.005),
		ReversalConfirmPips: decimal.NewFromFloat(0.0003),
		MaxCandlesToReverse: 5,
	}
}

// NewSweepCandidate opens a NO_BREACH candidate against a liquidity level.
func NewSweepCandidate(symbol string, tf core.Timeframe, level core.LiquidityLevel) *core.LiquiditySweep {
	direction := core.Bullish
	if level.Side == core.BuySide {
		direction = core.Bearish
	}
	return &core.LiquiditySweep{
		ID:        fmt.Sprintf("%s-%s-SWEEP-%d", symbol, tf, level.CreatedAt),
		Symbol:    symbol,
		Timeframe: tf,
		Direction: direction,
		Level:     level,
		Phase:     core.SweepNoBreach,
	}
}

// AdvanceSweep feeds one new candle into the sweep state machine,
// returning true exactly when this call completes the sweep
// (SWEEP_COMPLETED), matching "emit LIQUIDITY_SWEEP_DETECTED at
// SWEEP_COMPLETED only" (§4.4).
func AdvanceSweep(sweep *core.LiquiditySweep, c core.Candle, avgVolume float64, p SweepParams) bool {
	switch sweep.Phase {
	case core.SweepNoBreach:
		advanceNoBreach(sweep, c, p)
		return false

	case core.SweepBreached:
		advanceBreached(sweep, c)
		return false

	case core.SweepCloseConfirmed:
		sweep.CandlesSinceBreach++
		if reversed(sweep, c, p) {
			sweep.Phase = core.SweepCompleted
			sweep.ReversalTime = c.OpenTime
			sweep.ReversalStrength = reversalStrength(sweep, c, avgVolume)
			sweep.Valid = true
			return true
		}
		if sweep.CandlesSinceBreach > p.MaxCandlesToReverse {
			sweep.Phase = core.SweepTimedOut
		}
		return false

	default:
		return false
	}
}

func advanceNoBreach(sweep *core.LiquiditySweep, c core.Candle, p SweepParams) {
	level := sweep.Level
	var breachDistance decimal.Decimal
	var breached bool

	switch level.Side {
	case core.BuySide:
		breachDistance = c.High.Sub(level.Price)
		breached = breachDistance.GreaterThanOrEqual(p.MinBreachPips) && breachDistance.LessThanOrEqual(p.MaxBreachPips)
	case core.SellSide:
		breachDistance = level.Price.Sub(c.Low)
		breached = breachDistance.GreaterThanOrEqual(p.MinBreachPips) && breachDistance.LessThanOrEqual(p.MaxBreachPips)
	}

	if !breached {
		return
	}
	sweep.Phase = core.SweepBreached
	sweep.BreachTime = c.OpenTime
	sweep.BreachDistance = breachDistance
}

func advanceBreached(sweep *core.LiquiditySweep, c core.Candle) {
	level := sweep.Level
	var closedBeyond bool
	switch level.Side {
	case core.BuySide:
		closedBeyond = c.Close.GreaterThan(level.Price)
	case core.SellSide:
		closedBeyond = c.Close.LessThan(level.Price)
	}
	if !closedBeyond {
		return
	}
	sweep.Phase = core.SweepCloseConfirmed
	sweep.CloseTime = c.OpenTime
	sweep.CandlesSinceBreach = 0
}

func reversed(sweep *core.LiquiditySweep, c core.Candle, p SweepParams) bool {
	level := sweep.Level
	switch level.Side {
	case core.BuySide:
		return level.Price.Sub(c.Close).GreaterThanOrEqual(p.ReversalConfirmPips)
	case core.SellSide:
		return c.Close.Sub(level.Price).GreaterThanOrEqual(p.ReversalConfirmPips)
	}
	return false
}

// reversalStrength weights distance (30), speed in candles (30), volume
// vs average (25), and breach cleanliness (15) into a 0..100 score.
func reversalStrength(sweep *core.LiquiditySweep, c core.Candle, avgVolume float64) int {
	distance := sweep.Level.Price.Sub(c.Close).Abs().Div(maxDecimal(sweep.Level.Price, decimal.NewFromInt(1))).InexactFloat64()
	distanceScore := minFloat(distance*10000, 1.0) * 30

	speedScore := (1.0 - minFloat(float64(sweep.CandlesSinceBreach)/5.0, 1.0)) * 30

	volRatio := 1.0
	if avgVolume > 0 {
		volRatio = c.Volume.InexactFloat64() / avgVolume
	}
	volumeScore := minFloat(volRatio/2.0, 1.0) * 25

	cleanliness := 1.0 - minFloat(sweep.BreachDistance.Abs().InexactFloat64()*1000, 1.0)
	cleanlinessScore := maxFloat(cleanliness, 0) * 15

	total := int(distanceScore + speedScore + volumeScore + cleanlinessScore)
	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}
	return total
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
