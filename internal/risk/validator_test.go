package risk

import (
	"context"
	"testing"
	"time"

	"ictengine/internal/core"
	"ictengine/internal/eventbus"
	"ictengine/pkg/logging"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testLogger() core.ILogger {
	return logging.NewZapLogger("ERROR")
}

func testBus(t *testing.T) *eventbus.Bus {
	t.Helper()
	bus := eventbus.New(1, 16, testLogger())
	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(func() { _ = bus.Stop(time.Second) })
	return bus
}

func longSignal() core.Signal {
	return core.Signal{
		StrategyID: "conservative",
		Symbol:     "BTCUSDT",
		Direction:  core.Long,
		Entry:      decimal.NewFromInt(100),
		Stop:       decimal.NewFromFloat(99),
		TakeProfit: decimal.NewFromFloat(103),
		RiskReward: decimal.NewFromFloat(3),
		Timestamp:  1000,
	}
}

func TestValidatorPassesCleanSignal(t *testing.T) {
	bus := testBus(t)
	monitor := NewDailyLossMonitor(decimal.NewFromFloat(DailyLossLimitPct), bus, testLogger())
	monitor.StartSession(decimal.NewFromInt(10000), time.Now())

	v := NewValidator(DefaultParams(), monitor, bus, testLogger())
	err := v.Validate(context.Background(), longSignal(), decimal.NewFromInt(10000), nil)
	require.NoError(t, err)
}

func TestValidatorRejectsWhenEntryBlocked(t *testing.T) {
	bus := testBus(t)
	monitor := NewDailyLossMonitor(decimal.NewFromFloat(DailyLossLimitPct), bus, testLogger())
	monitor.StartSession(decimal.NewFromInt(10000), time.Now())
	monitor.SetManualBlock(true)

	v := NewValidator(DefaultParams(), monitor, bus, testLogger())
	err := v.Validate(context.Background(), longSignal(), decimal.NewFromInt(10000), nil)
	require.Error(t, err)
}

func TestValidatorRejectsStopOnWrongSide(t *testing.T) {
	v := NewValidator(DefaultParams(), nil, nil, testLogger())
	sig := longSignal()
	sig.Stop = decimal.NewFromInt(101) // above entry on a long, invalid
	err := v.Validate(context.Background(), sig, decimal.NewFromInt(10000), nil)
	require.Error(t, err)
}

func TestValidatorRejectsRROutsideRange(t *testing.T) {
	v := NewValidator(DefaultParams(), nil, nil, testLogger())
	sig := longSignal()
	sig.TakeProfit = decimal.NewFromFloat(100.5) // RR well under 1.5
	err := v.Validate(context.Background(), sig, decimal.NewFromInt(10000), nil)
	require.Error(t, err)
}

func TestValidatorWithSizeFlagsDeviation(t *testing.T) {
	v := NewValidator(DefaultParams(), nil, nil, testLogger())
	sig := longSignal()
	// reference size = floor((10000*0.02)/1*5) = 1000
	violations, err := v.ValidateWithSize(context.Background(), sig, decimal.NewFromInt(2000), decimal.NewFromInt(10000))
	require.Error(t, err)
	require.NotEmpty(t, violations)
}

func TestValidatorWithSizeAcceptsWithinTolerance(t *testing.T) {
	v := NewValidator(DefaultParams(), nil, nil, testLogger())
	sig := longSignal()
	violations, err := v.ValidateWithSize(context.Background(), sig, decimal.NewFromInt(1000), decimal.NewFromInt(10000))
	require.NoError(t, err)
	require.Empty(t, violations)
}

func TestDailyLossMonitorTripsAtLimit(t *testing.T) {
	bus := testBus(t)
	monitor := NewDailyLossMonitor(decimal.NewFromFloat(6.0), bus, testLogger())
	now := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	monitor.StartSession(decimal.NewFromInt(10000), now)
	require.False(t, monitor.EntryBlocked())

	monitor.OnBalanceUpdate(context.Background(), decimal.NewFromInt(9300), now.Add(time.Minute))
	require.True(t, monitor.EntryBlocked())
}

func TestDailyLossMonitorRolloverResetsBlock(t *testing.T) {
	bus := testBus(t)
	monitor := NewDailyLossMonitor(decimal.NewFromFloat(6.0), bus, testLogger())
	day1 := time.Date(2026, 7, 31, 23, 0, 0, 0, time.UTC)
	monitor.StartSession(decimal.NewFromInt(10000), day1)
	monitor.OnBalanceUpdate(context.Background(), decimal.NewFromInt(9000), day1)
	require.True(t, monitor.EntryBlocked())

	day2 := time.Date(2026, 8, 1, 0, 5, 0, 0, time.UTC)
	monitor.OnBalanceUpdate(context.Background(), decimal.NewFromInt(9000), day2)
	require.False(t, monitor.EntryBlocked())
}

func TestDailyLossMonitorManualBlockSurvivesReset(t *testing.T) {
	monitor := NewDailyLossMonitor(decimal.NewFromFloat(6.0), nil, testLogger())
	monitor.StartSession(decimal.NewFromInt(10000), time.Now())
	monitor.SetManualBlock(true)
	monitor.Reset()
	require.True(t, monitor.EntryBlocked())
}
