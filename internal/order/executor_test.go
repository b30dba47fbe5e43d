package order

import (
	"context"
	"testing"
	"time"

	"ictengine/internal/core"
	"ictengine/internal/eventbus"
	"ictengine/internal/exchange"
	apperrors "ictengine/pkg/errors"
	"ictengine/pkg/logging"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func execLogger() core.ILogger { return logging.NewZapLogger("ERROR") }

func execBus(t *testing.T) *eventbus.Bus {
	t.Helper()
	bus := eventbus.New(1, 16, execLogger())
	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(func() { _ = bus.Stop(time.Second) })
	return bus
}

func TestExecutorPlacesValidOrder(t *testing.T) {
	ex := exchange.NewMockExchange("mock")
	executor := NewExecutor(ex, execBus(t), DefaultRetryManager(), nil, execLogger())

	order := &core.Order{ClientID: "c1", Symbol: "BTCUSDT", Quantity: decimal.NewFromInt(1), Type: core.Market}
	placed, err := executor.Execute(context.Background(), order)
	require.NoError(t, err)
	require.Equal(t, core.OrderPlaced, placed.Status)
}

func TestExecutorRejectsInvalidQuantity(t *testing.T) {
	ex := exchange.NewMockExchange("mock")
	executor := NewExecutor(ex, execBus(t), DefaultRetryManager(), nil, execLogger())

	order := &core.Order{ClientID: "c2", Symbol: "BTCUSDT", Quantity: decimal.Zero}
	_, err := executor.Execute(context.Background(), order)
	require.Error(t, err)
}

func TestRetryManagerExponentialDelayGrows(t *testing.T) {
	rm := &RetryManager{Strategy: Exponential, Base: 100 * time.Millisecond, Cap: time.Second}
	d0 := rm.Delay(0)
	d3 := rm.Delay(3)
	require.True(t, d3 > d0)
}

func TestRetryManagerCustomUsesSchedule(t *testing.T) {
	rm := &RetryManager{Strategy: Custom, CustomDelays: []time.Duration{time.Second, 2 * time.Second}}
	d := rm.Delay(0)
	require.True(t, d >= time.Second && d < 2*time.Second)
}

func TestClassifyMapsKnownErrors(t *testing.T) {
	require.Equal(t, Retryable, Classify(apperrors.ErrNetwork))
	require.Equal(t, Special, Classify(apperrors.ErrTimestampOutOfBounds))
	require.Equal(t, NonRetryable, Classify(apperrors.ErrInsufficientFunds))
}

func TestTrackerTransitionsToHistoryOnTerminal(t *testing.T) {
	tracker := NewTracker(10, execLogger())
	o := &core.Order{ClientID: "c3", Symbol: "BTCUSDT", Status: core.OrderPlaced}
	tracker.Track(o)

	tracker.ApplyUpdate("c3", core.OrderFilled, time.Now(), decimal.NewFromInt(1), decimal.NewFromInt(100), "")
	require.Empty(t, tracker.Active())
	require.Len(t, tracker.History(), 1)
}

func TestTrackerIgnoresRegressiveTransition(t *testing.T) {
	tracker := NewTracker(10, execLogger())
	o := &core.Order{ClientID: "c4", Symbol: "BTCUSDT", Status: core.OrderFilled}
	tracker.Track(o)

	tracker.ApplyUpdate("c4", core.OrderPlaced, time.Now(), decimal.Zero, decimal.Zero, "")
	fetched, ok := tracker.Get("c4")
	require.True(t, ok)
	require.Equal(t, core.OrderFilled, fetched.Status)
}

func TestMapStreamStatusKnownAndUnknown(t *testing.T) {
	status, ok := MapStreamStatus("FILLED")
	require.True(t, ok)
	require.Equal(t, core.OrderFilled, status)

	_, ok = MapStreamStatus("BOGUS")
	require.False(t, ok)
}
