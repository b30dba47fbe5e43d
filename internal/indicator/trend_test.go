package indicator

import (
	"testing"

	"ictengine/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func trendCandle(openTime int64, high, low, close float64) core.Candle {
	return core.Candle{
		Symbol:    "BTCUSDT",
		Timeframe: core.M1,
		OpenTime:  openTime,
		Open:      decimal.NewFromFloat(close),
		High:      decimal.NewFromFloat(high),
		Low:       decimal.NewFromFloat(low),
		Close:     decimal.NewFromFloat(close),
		Volume:    decimal.NewFromInt(10),
		Closed:    true,
	}
}

func buildStairStepUptrend() []core.Candle {
	var candles []core.Candle
	t := int64(0)
	base := 100.0
	for leg := 0; leg < 4; leg++ {
		// dip then rally, each leg higher than the last
		for i := 0; i < 3; i++ {
			candles = append(candles, trendCandle(t, base+2, base-1-float64(i%2), base))
			t += 60_000
		}
		base += 10
		for i := 0; i < 3; i++ {
			candles = append(candles, trendCandle(t, base+2+float64(i%2), base-1, base))
			t += 60_000
		}
		base -= 5
	}
	return candles
}

func TestDetectTrendIdentifiesUptrend(t *testing.T) {
	candles := buildStairStepUptrend()
	p := DefaultTrendParams()
	p.SwingStrength = 2
	structures, state := DetectTrend("BTCUSDT", core.M1, candles, core.TrendState{}, p)

	require.NotEmpty(t, structures)
	require.Equal(t, core.Uptrend, state.Direction)
	require.GreaterOrEqual(t, state.Strength, 0.0)
	require.LessOrEqual(t, state.Strength, 100.0)
}

func TestDetectTrendRangingWithNoStructures(t *testing.T) {
	var candles []core.Candle
	for i := int64(0); i < 10; i++ {
		candles = append(candles, trendCandle(i*60_000, 100.1, 99.9, 100))
	}
	_, state := DetectTrend("BTCUSDT", core.M1, candles, core.TrendState{}, DefaultTrendParams())
	require.Equal(t, core.Ranging, state.Direction)
	require.False(t, state.Confirmed)
}

func TestDetectTrendPreservesConfirmedWhenDirectionUnchanged(t *testing.T) {
	candles := buildStairStepUptrend()
	p := DefaultTrendParams()
	p.SwingStrength = 2

	_, first := DetectTrend("BTCUSDT", core.M1, candles, core.TrendState{}, p)
	_, second := DetectTrend("BTCUSDT", core.M1, candles, first, p)

	if first.Direction == second.Direction && first.Confirmed {
		require.True(t, second.Confirmed)
	}
}
