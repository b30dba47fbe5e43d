package indicator

import (
	"testing"

	"ictengine/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func bmsCandle(openTime int64, open, high, low, close, volume float64) core.Candle {
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

func TestDetectBreakOfStructureConfirmsCleanBreak(t *testing.T) {
	var candles []core.Candle
	t0 := int64(0)
	for i := 0; i < 5; i++ {
		candles = append(candles, bmsCandle(t0, 100, 100.5, 99.5, 100, 10))
		t0 += 60_000
	}
	candles = append(candles, bmsCandle(t0, 100, 101, 99.8, 100.8, 10))
	t0 += 60_000
	for i := 0; i < 5; i++ {
		candles = append(candles, bmsCandle(t0, 100, 100.5, 99.5, 100, 10))
		t0 += 60_000
	}

	sw := core.SwingPoint{Kind: core.SwingHigh, Price: decimal.NewFromFloat(100.5), CandleIndex: 5, Strength: 5, Timestamp: 300_000}
	breakCandle := bmsCandle(t0, 101, 102.5, 100.9, 102, 30)
	candles = append(candles, breakCandle)
	for i := 0; i < 4; i++ {
		t0 += 60_000
		candles = append(candles, bmsCandle(t0, 102, 103.5, 101.5, 103, 25))
	}

	swings := append([]core.SwingPoint{sw}, FindSwingPoints(candles, 2)...)
	results := DetectBreakOfStructure("BTCUSDT", core.M1, candles, swings, decimal.NewFromFloat(10), DefaultBMSParams())
	require.NotEmpty(t, results)
	for _, r := range results {
		require.GreaterOrEqual(t, r.Confidence, 0.0)
		require.LessOrEqual(t, r.Confidence, 100.0)
	}
}

func TestDetectBreakOfStructureEmptyInputsReturnNil(t *testing.T) {
	require.Nil(t, DetectBreakOfStructure("BTCUSDT", core.M1, nil, nil, decimal.Zero, DefaultBMSParams()))
}
