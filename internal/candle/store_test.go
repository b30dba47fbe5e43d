package candle

import (
	"testing"

	"ictengine/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreAddSymbolMergeVsReplace(t *testing.T) {
	s := NewStore(500)
	s.AddSymbol("btcusdt", []core.Timeframe{core.M1}, Merge)
	s.AddSymbol("BTCUSDT", []core.Timeframe{core.M15}, Merge)

	cfg, ok := s.GetConfig("btcusdt")
	require.True(t, ok)
	assert.True(t, cfg.Timeframes[core.M1])
	assert.True(t, cfg.Timeframes[core.M15])

	s.AddSymbol("BTCUSDT", []core.Timeframe{core.H1}, Replace)
	cfg, ok = s.GetConfig("BTCUSDT")
	require.True(t, ok)
	assert.False(t, cfg.Timeframes[core.M1])
	assert.True(t, cfg.Timeframes[core.H1])
}

func TestStoreRemoveSymbolClearsData(t *testing.T) {
	s := NewStore(500)
	s.AddSymbol("ETHUSDT", []core.Timeframe{core.M1}, Merge)
	require.NoError(t, s.Ring("ETHUSDT", core.M1).Append(sampleCandle(60_000, 100)))

	s.RemoveSymbol("ETHUSDT", true)
	_, ok := s.GetConfig("ETHUSDT")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Ring("ETHUSDT", core.M1).Len())
}

func TestStoreSnapshotIsIndependentCopy(t *testing.T) {
	s := NewStore(500)
	ring := s.Ring("BTCUSDT", core.M1)
	require.NoError(t, ring.Append(sampleCandle(60_000, 100)))

	snap := s.Snapshot("BTCUSDT", core.M1)
	require.NoError(t, ring.Append(sampleCandle(120_000, 101)))

	assert.Len(t, snap, 1)
	assert.Equal(t, 2, ring.Len())
}
