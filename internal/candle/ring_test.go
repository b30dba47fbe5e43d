package candle

import (
	"testing"

	"ictengine/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCandle(openTime int64, close float64) core.Candle {
	c := decimal.NewFromFloat(close)
	return core.Candle{
		Symbol:    "BTCUSDT",
		Timeframe: core.M1,
		OpenTime:  openTime,
		Open:      c,
		High:      c.Add(decimal.NewFromFloat(1)),
		Low:       c.Sub(decimal.NewFromFloat(1)),
		Close:     c,
		Volume:    decimal.NewFromFloat(10),
		Closed:    true,
	}
}

func TestRingAppendStrictlyIncreasing(t *testing.T) {
	r := NewRing(10)
	require.NoError(t, r.Append(sampleCandle(60_000, 100)))
	require.NoError(t, r.Append(sampleCandle(120_000, 101)))
	assert.Equal(t, 2, r.Len())

	err := r.Append(sampleCandle(60_000-1, 99))
	assert.Error(t, err)
	assert.Equal(t, 2, r.Len())
}

func TestRingReplacesTailOnEqualOpenTime(t *testing.T) {
	r := NewRing(10)
	require.NoError(t, r.Append(sampleCandle(60_000, 100)))
	require.NoError(t, r.Append(sampleCandle(60_000, 105)))
	assert.Equal(t, 1, r.Len())
	tail, ok := r.Tail()
	require.True(t, ok)
	assert.True(t, tail.Close.Equal(decimal.NewFromFloat(105)))
}

func TestRingEvictsOldestOnOverflow(t *testing.T) {
	r := NewRing(2)
	require.NoError(t, r.Append(sampleCandle(60_000, 100)))
	require.NoError(t, r.Append(sampleCandle(120_000, 101)))
	require.NoError(t, r.Append(sampleCandle(180_000, 102)))

	assert.Equal(t, 2, r.Len())
	snap := r.Snapshot()
	assert.Equal(t, int64(120_000), snap[0].OpenTime)
	assert.Equal(t, int64(180_000), snap[1].OpenTime)
}

func TestRingRejectsInvalidCandle(t *testing.T) {
	r := NewRing(10)
	bad := sampleCandle(60_000, 100)
	bad.Low = decimal.NewFromFloat(1000) // low > min(open,close)
	err := r.Append(bad)
	assert.Error(t, err)
	assert.Equal(t, 0, r.Len())
}
