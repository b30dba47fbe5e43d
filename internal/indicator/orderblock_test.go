package indicator

import (
	"testing"

	"ictengine/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func obCandle(openTime int64, open, high, low, close, volume float64) core.Candle {
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

func buildImpulseSequence() []core.Candle {
	var candles []core.Candle
	t := int64(0)
	for i := 0; i < 6; i++ {
		candles = append(candles, obCandle(t, 100, 101, 99, 100, 10))
		t += 60_000
	}
	// bearish candle (down body) just before the impulsive rally: the
	// order block anchor.
	candles = append(candles, obCandle(t, 100, 100.2, 97, 97.5, 10))
	t += 60_000
	for i := 0; i < 6; i++ {
		candles = append(candles, obCandle(t, 98+float64(i), 99+float64(i)*1.5, 97.5+float64(i), 98.8+float64(i)*1.5, 10))
		t += 60_000
	}
	for i := 0; i < 6; i++ {
		candles = append(candles, obCandle(t, 105, 105.5, 104.5, 105, 10))
		t += 60_000
	}
	return candles
}

func TestDetectOrderBlocksFindsBullishAnchor(t *testing.T) {
	candles := buildImpulseSequence()
	blocks := DetectOrderBlocks("BTCUSDT", core.M1, candles, DefaultOrderBlockParams())
	require.NotEmpty(t, blocks)
	for _, ob := range blocks {
		require.GreaterOrEqual(t, ob.Strength, 1)
		require.LessOrEqual(t, ob.Strength, 10)
	}
}

func TestCheckBreakerMarksMitigatedAndEmitsBreaker(t *testing.T) {
	ob := &core.OrderBlock{
		ID:     "test-ob",
		Kind:   core.Bullish,
		Top:    decimal.NewFromInt(100),
		Bottom: decimal.NewFromInt(98),
	}
	candles := []core.Candle{obCandle(60_000, 99, 99.5, 96, 96.5, 10)}

	breakers := CheckBreaker("BTCUSDT", core.M1, candles, []*core.OrderBlock{ob})
	require.Len(t, breakers, 1)
	require.True(t, ob.Mitigated)
	require.Equal(t, core.Bullish, breakers[0].OriginalKind)
}

func TestCheckBreakerSkipsAlreadyMitigated(t *testing.T) {
	ob := &core.OrderBlock{Kind: core.Bullish, Top: decimal.NewFromInt(100), Bottom: decimal.NewFromInt(98), Mitigated: true}
	candles := []core.Candle{obCandle(60_000, 99, 99.5, 96, 96.5, 10)}
	breakers := CheckBreaker("BTCUSDT", core.M1, candles, []*core.OrderBlock{ob})
	require.Empty(t, breakers)
}
