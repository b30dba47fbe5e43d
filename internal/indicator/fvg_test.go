package indicator

import (
	"testing"

	"ictengine/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func fvgCandle(openTime int64, open, high, low, close float64) core.Candle {
	return core.Candle{
		Symbol:    "BTCUSDT",
		Timeframe: core.M1,
		OpenTime:  openTime,
		Open:      decimal.NewFromFloat(open),
		High:      decimal.NewFromFloat(high),
		Low:       decimal.NewFromFloat(low),
		Close:     decimal.NewFromFloat(close),
		Volume:    decimal.NewFromInt(10),
		Closed:    true,
	}
}

func TestDetectFVGsFindsBullishGap(t *testing.T) {
	candles := []core.Candle{
		fvgCandle(0, 100, 101, 99, 100.5),
		fvgCandle(60_000, 102, 104, 101.5, 103),
		fvgCandle(120_000, 105, 106, 104.5, 105.5),
	}
	gaps := DetectFVGs("BTCUSDT", core.M1, candles, DefaultFVGParams())
	require.Len(t, gaps, 1)
	require.Equal(t, core.Bullish, gaps[0].Kind)
	require.True(t, gaps[0].Bottom.Equal(decimal.NewFromFloat(101)))
	require.True(t, gaps[0].Top.Equal(decimal.NewFromFloat(104.5)))
}

func TestDetectFVGsFindsBearishGap(t *testing.T) {
	candles := []core.Candle{
		fvgCandle(0, 105, 106, 104, 105.5),
		fvgCandle(60_000, 103, 103.5, 101, 102),
		fvgCandle(120_000, 100, 100.5, 99, 99.8),
	}
	gaps := DetectFVGs("BTCUSDT", core.M1, candles, DefaultFVGParams())
	require.Len(t, gaps, 1)
	require.Equal(t, core.Bearish, gaps[0].Kind)
}

func TestUpdateFVGFillTracksPartialThenFull(t *testing.T) {
	gap := core.FairValueGap{
		Kind:    core.Bullish,
		Top:     decimal.NewFromFloat(104.5),
		Bottom:  decimal.NewFromFloat(101),
		GapSize: decimal.NewFromFloat(3.5),
	}

	active := UpdateFVGFill(&gap, fvgCandle(180_000, 104, 104.2, 103, 103.5))
	require.True(t, active)
	require.False(t, gap.Filled)
	require.True(t, gap.FillPercent.GreaterThan(decimal.Zero))

	active = UpdateFVGFill(&gap, fvgCandle(240_000, 102, 102.5, 100.5, 101))
	require.False(t, active)
	require.True(t, gap.Filled)
	require.True(t, gap.FillPercent.Equal(decimal.NewFromInt(100)))
}

func TestUpdateFVGFillZeroGapIsImmediatelyFilled(t *testing.T) {
	gap := core.FairValueGap{Kind: core.Bullish, GapSize: decimal.Zero}
	active := UpdateFVGFill(&gap, fvgCandle(0, 100, 101, 99, 100))
	require.False(t, active)
	require.True(t, gap.Filled)
}
