package indicator

import (
	"testing"

	"ictengine/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func atrCandle(openTime int64, high, low, close float64) core.Candle {
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

func TestCalculateATRTooFewCandles(t *testing.T) {
	require.True(t, CalculateATR(nil, 14).IsZero())
	require.True(t, CalculateATR([]core.Candle{atrCandle(0, 101, 99, 100)}, 14).IsZero())
}

func TestCalculateATRConstantRange(t *testing.T) {
	var candles []core.Candle
	for i := int64(0); i < 20; i++ {
		candles = append(candles, atrCandle(i*60_000, 102, 98, 100))
	}
	atr := CalculateATR(candles, 14)
	require.True(t, atr.Equal(decimal.NewFromInt(4)), "expected ATR 4, got %s", atr)
}
