package indicator

import (
	"testing"

	"ictengine/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func liqCandle(openTime int64, open, high, low, close, volume float64) core.Candle {
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

func buildSwingCandles() []core.Candle {
	var candles []core.Candle
	t := int64(0)
	for i := 0; i < 5; i++ {
		candles = append(candles, liqCandle(t, 100, 100.5, 99.5, 100, 10))
		t += 60_000
	}
	candles = append(candles, liqCandle(t, 100, 110, 99.5, 105, 15))
	t += 60_000
	for i := 0; i < 5; i++ {
		candles = append(candles, liqCandle(t, 100, 100.5, 99.5, 100, 10))
		t += 60_000
	}
	return candles
}

func TestDetectLiquidityLevelsProjectsAboveSwingHigh(t *testing.T) {
	candles := buildSwingCandles()
	levels := DetectLiquidityLevels("BTCUSDT", core.M1, candles, DefaultLiquidityParams())
	require.NotEmpty(t, levels)
	found := false
	for _, lvl := range levels {
		if lvl.Side == core.BuySide {
			found = true
			require.True(t, lvl.Price.GreaterThan(decimal.NewFromFloat(110)))
			require.Equal(t, core.LiquidityActive, lvl.State)
		}
	}
	require.True(t, found)
}

func TestUpdateLiquidityLevelTouchThenSweep(t *testing.T) {
	level := core.LiquidityLevel{Side: core.BuySide, Price: decimal.NewFromFloat(110), State: core.LiquidityActive}

	UpdateLiquidityLevel(&level, liqCandle(0, 109, 110.05, 108, 109.5, 10), 50)
	require.Equal(t, core.LiquidityPartial, level.State)
	require.Equal(t, 1, level.TouchCount)

	UpdateLiquidityLevel(&level, liqCandle(60_000, 109, 111, 108.5, 110.5, 10), 50)
	require.Equal(t, core.LiquiditySwept, level.State)
}

func TestUpdateLiquidityLevelExpiresAfterNCandles(t *testing.T) {
	level := core.LiquidityLevel{Side: core.SellSide, Price: decimal.NewFromFloat(90), State: core.LiquidityActive}
	for i := 0; i < 3; i++ {
		UpdateLiquidityLevel(&level, liqCandle(int64(i)*60_000, 100, 101, 99, 100, 10), 3)
	}
	require.Equal(t, core.LiquidityExpired, level.State)
}
