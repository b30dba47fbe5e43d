package strategy

import (
	"context"
	"testing"
	"time"

	"ictengine/internal/candle"
	"ictengine/internal/core"
	"ictengine/internal/eventbus"
	"ictengine/internal/mtf"
	"ictengine/pkg/logging"

	"github.com/stretchr/testify/require"
)

func pipelineBus(t *testing.T) *eventbus.Bus {
	t.Helper()
	bus := eventbus.New(1, 16, logging.NewZapLogger("ERROR"))
	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(func() { _ = bus.Stop(time.Second) })
	return bus
}

func TestPipelineIgnoresNonM1Updates(t *testing.T) {
	bus := pipelineBus(t)
	store := candle.NewStore(100)
	engine := mtf.NewEngine(store, bus, []core.Timeframe{core.M1, core.M15, core.H1}, mtf.DefaultParams(), logging.NewZapLogger("ERROR"))
	pipeline := NewPipeline(engine, store, bus, logging.NewZapLogger("ERROR"))
	stop := pipeline.Start()
	defer stop()

	received := make(chan struct{}, 1)
	unsub := bus.Subscribe(eventbus.SignalGenerated, func(ctx context.Context, evt core.Event) error {
		received <- struct{}{}
		return nil
	})
	defer unsub()

	evt := eventbus.New(eventbus.IndicatorsUpdated, "BTCUSDT", 0, eventbus.PrioIndicatorsUpdated, mtf.IndicatorsUpdatedPayload{
		Snapshot: mtf.Snapshot{Symbol: "BTCUSDT", Timeframe: core.H1},
	})
	require.NoError(t, bus.Publish(context.Background(), evt))

	select {
	case <-received:
		t.Fatal("pipeline should not react to non-M1 updates")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPipelineSkipsWhenNoM1CandleSeeded(t *testing.T) {
	bus := pipelineBus(t)
	store := candle.NewStore(100)
	engine := mtf.NewEngine(store, bus, []core.Timeframe{core.M1, core.M15, core.H1}, mtf.DefaultParams(), logging.NewZapLogger("ERROR"))
	pipeline := NewPipeline(engine, store, bus, logging.NewZapLogger("ERROR"))
	stop := pipeline.Start()
	defer stop()

	evt := eventbus.New(eventbus.IndicatorsUpdated, "BTCUSDT", 0, eventbus.PrioIndicatorsUpdated, mtf.IndicatorsUpdatedPayload{
		Snapshot: mtf.Snapshot{Symbol: "BTCUSDT", Timeframe: core.M1},
	})
	require.NoError(t, bus.Publish(context.Background(), evt))
	time.Sleep(50 * time.Millisecond)
}
