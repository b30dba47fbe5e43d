package candle

import (
	"context"
	"testing"
	"time"

	"ictengine/internal/core"
	"ictengine/internal/eventbus"
	"ictengine/pkg/logging"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) *eventbus.Bus {
	t.Helper()
	bus := eventbus.New(2, 100, logging.NewZapLogger("ERROR"))
	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(func() { bus.Stop(time.Second) })
	return bus
}

func TestRealtimeProcessorClosesAndAppendsCandle(t *testing.T) {
	bus := newTestBus(t)
	store := NewStore(500)
	proc := NewRealtimeProcessor(store, bus, 0.5, logging.NewZapLogger("ERROR"))

	closedCh := make(chan struct{}, 1)
	bus.Subscribe(eventbus.CandleClosed, func(ctx context.Context, evt core.Event) error {
		closedCh <- struct{}{}
		return nil
	})

	err := proc.Process(context.Background(), KlineUpdate{
		Symbol: "BTCUSDT", Timeframe: core.M1, OpenTime: 60_000,
		Open: decimal.NewFromFloat(100), High: decimal.NewFromFloat(101),
		Low: decimal.NewFromFloat(99), Close: decimal.NewFromFloat(100.5),
		Volume: decimal.NewFromFloat(10), Closed: true,
	})
	require.NoError(t, err)

	select {
	case <-closedCh:
	case <-time.After(time.Second):
		t.Fatal("expected CANDLE_CLOSED event")
	}
	assert.Equal(t, 1, store.Ring("BTCUSDT", core.M1).Len())
}

func TestRealtimeProcessorUpdatesTailWithoutClosing(t *testing.T) {
	bus := newTestBus(t)
	store := NewStore(500)
	proc := NewRealtimeProcessor(store, bus, 0.5, logging.NewZapLogger("ERROR"))

	base := KlineUpdate{
		Symbol: "BTCUSDT", Timeframe: core.M1, OpenTime: 60_000,
		Open: decimal.NewFromFloat(100), High: decimal.NewFromFloat(101),
		Low: decimal.NewFromFloat(99), Close: decimal.NewFromFloat(100.5),
		Volume: decimal.NewFromFloat(10), Closed: true,
	}
	require.NoError(t, proc.Process(context.Background(), base))

	live := base
	live.Closed = false
	live.High = decimal.NewFromFloat(102)
	require.NoError(t, proc.Process(context.Background(), live))

	assert.Equal(t, 1, store.Ring("BTCUSDT", core.M1).Len())
	tail, ok := store.Ring("BTCUSDT", core.M1).Tail()
	require.True(t, ok)
	assert.True(t, tail.High.Equal(decimal.NewFromFloat(102)))
}

func TestRealtimeProcessorRejectsOutlier(t *testing.T) {
	bus := newTestBus(t)
	store := NewStore(500)
	proc := NewRealtimeProcessor(store, bus, 0.1, logging.NewZapLogger("ERROR"))

	require.NoError(t, proc.Process(context.Background(), KlineUpdate{
		Symbol: "BTCUSDT", Timeframe: core.M1, OpenTime: 60_000,
		Open: decimal.NewFromFloat(100), High: decimal.NewFromFloat(101),
		Low: decimal.NewFromFloat(99), Close: decimal.NewFromFloat(100),
		Volume: decimal.NewFromFloat(10), Closed: true,
	}))

	require.NoError(t, proc.Process(context.Background(), KlineUpdate{
		Symbol: "BTCUSDT", Timeframe: core.M1, OpenTime: 120_000,
		Open: decimal.NewFromFloat(500), High: decimal.NewFromFloat(501),
		Low: decimal.NewFromFloat(499), Close: decimal.NewFromFloat(500),
		Volume: decimal.NewFromFloat(10), Closed: true,
	}))

	assert.Equal(t, 1, store.Ring("BTCUSDT", core.M1).Len())
	outliers, _, _ := proc.Counters()
	assert.Equal(t, int64(1), outliers)
}
