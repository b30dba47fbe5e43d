package indicator

import (
	"testing"

	"ictengine/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func sweepCandle(openTime int64, open, high, low, close, volume float64) core.Candle {
	return core.Candle{
		Symbol:    "BTCUSDT",
		Timeframe: core.M1,
		OpenTime:  openTime,
		Open:      decimal.NewFromFloat(open),
		High:      decimal.NewFromFloat(high),
		Low:       decimal.NewFromFloat(low),
		Close:     decimal.NewFromFloat(close),
		Volume:    decimal.NewFromFloat(volume),
		Closed:    true,
	}
}

func TestAdvanceSweepFullLifecycleBuySide(t *testing.T) {
	level := core.LiquidityLevel{Side: core.BuySide, Price: decimal.NewFromFloat(110)}
	sweep := NewSweepCandidate("BTCUSDT", core.M1, level)
	p := DefaultSweepParams()

	completed := AdvanceSweep(sweep, sweepCandle(0, 109, 110.001, 108.5, 109.5, 10), 10, p)
	require.False(t, completed)
	require.Equal(t, core.SweepBreached, sweep.Phase)

	completed = AdvanceSweep(sweep, sweepCandle(60_000, 109.5, 110.5, 109, 110.3, 10), 10, p)
	require.False(t, completed)
	require.Equal(t, core.SweepCloseConfirmed, sweep.Phase)

	completed = AdvanceSweep(sweep, sweepCandle(120_000, 110, 110.2, 109.5, 109.6, 10), 10, p)
	require.True(t, completed)
	require.Equal(t, core.SweepCompleted, sweep.Phase)
	require.True(t, sweep.Valid)
	require.GreaterOrEqual(t, sweep.ReversalStrength, 0)
}

func TestAdvanceSweepTimesOutWithoutReversal(t *testing.T) {
	level := core.LiquidityLevel{Side: core.SellSide, Price: decimal.NewFromFloat(90)}
	sweep := NewSweepCandidate("BTCUSDT", core.M1, level)
	p := DefaultSweepParams()

	AdvanceSweep(sweep, sweepCandle(0, 91, 91.5, 89.999, 90.5, 10), 10, p)
	require.Equal(t, core.SweepBreached, sweep.Phase)
	AdvanceSweep(sweep, sweepCandle(60_000, 90.5, 91, 89.5, 89.8, 10), 10, p)
	require.Equal(t, core.SweepCloseConfirmed, sweep.Phase)

	for i := 0; i < p.MaxCandlesToReverse+2; i++ {
		AdvanceSweep(sweep, sweepCandle(int64(i+2)*60_000, 89.8, 90, 89.6, 89.8, 10), 10, p)
	}
	require.Equal(t, core.SweepTimedOut, sweep.Phase)
}
