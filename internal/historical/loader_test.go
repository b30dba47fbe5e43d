package historical

import (
	"context"
	"testing"
	"time"

	"ictengine/internal/candle"
	"ictengine/internal/core"
	"ictengine/internal/eventbus"
	apperrors "ictengine/pkg/errors"
	"ictengine/pkg/logging"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	candles   []core.Candle
	failTimes int
	calls     int
}

func (f *fakeFetcher) GetHistoricalCandles(ctx context.Context, symbol string, tf core.Timeframe, limit int) ([]core.Candle, error) {
	f.calls++
	if f.calls <= f.failTimes {
		return nil, apperrors.ErrNetwork
	}
	return f.candles, nil
}

func mkCandle(openTime int64) core.Candle {
	c := decimal.NewFromFloat(100)
	return core.Candle{
		Symbol: "BTCUSDT", Timeframe: core.M1, OpenTime: openTime,
		Open: c, High: c.Add(decimal.NewFromInt(1)), Low: c.Sub(decimal.NewFromInt(1)), Close: c,
		Volume: decimal.NewFromInt(1), Closed: true,
	}
}

func newTestLoader(t *testing.T, fetcher Fetcher) (*Loader, *candle.Store, *eventbus.Bus) {
	t.Helper()
	store := candle.NewStore(500)
	bus := eventbus.New(1, 10, logging.NewZapLogger("ERROR"))
	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(func() { bus.Stop(time.Second) })
	loader := NewLoader(fetcher, store, bus, 1200, 5, logging.NewZapLogger("ERROR"))
	return loader, store, bus
}

func TestLoaderBackfillWritesRing(t *testing.T) {
	fetcher := &fakeFetcher{candles: []core.Candle{mkCandle(60_000), mkCandle(120_000), mkCandle(180_000)}}
	loader, store, _ := newTestLoader(t, fetcher)

	require.NoError(t, loader.Backfill(context.Background(), "BTCUSDT", core.M1, 3))
	assert.Equal(t, 3, store.Ring("BTCUSDT", core.M1).Len())
}

func TestLoaderRetriesOnTransientError(t *testing.T) {
	fetcher := &fakeFetcher{candles: []core.Candle{mkCandle(60_000)}, failTimes: 2}
	loader, store, _ := newTestLoader(t, fetcher)
	loader.policy.InitialBackoff = time.Millisecond
	loader.policy.MaxBackoff = time.Millisecond

	require.NoError(t, loader.Backfill(context.Background(), "BTCUSDT", core.M1, 1))
	assert.Equal(t, 3, fetcher.calls)
	assert.Equal(t, 1, store.Ring("BTCUSDT", core.M1).Len())
}

func TestValidateOrderingDetectsGapsAndDuplicates(t *testing.T) {
	candles := []core.Candle{mkCandle(60_000), mkCandle(60_000), mkCandle(240_000)}
	gaps, dups := validateOrdering(candles, core.M1)
	assert.Equal(t, 1, gaps)
	assert.Equal(t, 1, dups)
}
