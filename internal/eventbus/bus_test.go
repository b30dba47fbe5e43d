package eventbus

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"ictengine/internal/core"
	"ictengine/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logging.ZapLogger {
	return logging.NewZapLogger("ERROR")
}

func TestBusPublishDeliversToSubscriber(t *testing.T) {
	bus := New(2, 10, testLogger())
	require.NoError(t, bus.Start(context.Background()))
	defer bus.Stop(time.Second)

	var received int64
	done := make(chan struct{}, 1)
	bus.Subscribe(CandleClosed, func(ctx context.Context, evt core.Event) error {
		atomic.AddInt64(&received, 1)
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	})

	evt := New(CandleClosed, "BTCUSDT", 1000, PrioCandleClosed, nil)
	require.NoError(t, bus.Publish(context.Background(), evt))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
	assert.Equal(t, int64(1), atomic.LoadInt64(&received))
}

func TestBusDropsWhenQueueFull(t *testing.T) {
	bus := New(0, 1, testLogger())
	// not started: publish should still enqueue up to capacity without a
	// worker draining it, then drop on overflow.
	atomic.StoreInt32(&bus.running, 1)

	evt1 := New(CandleReceived, "BTCUSDT", 1, PrioCandleReceived, nil)
	evt2 := New(CandleReceived, "BTCUSDT", 2, PrioCandleReceived, nil)

	require.NoError(t, bus.Publish(context.Background(), evt1))
	require.NoError(t, bus.Publish(context.Background(), evt2))

	stats := bus.Stats()
	assert.Equal(t, int64(1), stats.Dropped)
}

func TestBusStopIdempotent(t *testing.T) {
	bus := New(1, 10, testLogger())
	require.NoError(t, bus.Start(context.Background()))
	require.NoError(t, bus.Stop(time.Second))
	require.NoError(t, bus.Stop(time.Second))
}

func TestBusStartIdempotent(t *testing.T) {
	bus := New(1, 10, testLogger())
	require.NoError(t, bus.Start(context.Background()))
	require.NoError(t, bus.Start(context.Background()))
	bus.Stop(time.Second)
}
