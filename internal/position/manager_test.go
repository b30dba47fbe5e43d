package position

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

func posLogger() core.ILogger { return logging.NewZapLogger("ERROR") }

func posBus(t *testing.T) *eventbus.Bus {
	t.Helper()
	bus := eventbus.New(1, 16, posLogger())
	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(func() { _ = bus.Stop(time.Second) })
	return bus
}

func TestManagerOpenThenDuplicateSideRejected(t *testing.T) {
	mgr := NewManager(posBus(t), nil, posLogger())
	p := core.Position{Symbol: "BTCUSDT", Side: core.Long, Size: decimal.NewFromInt(1), EntryPrice: decimal.NewFromInt(100), Leverage: 5}
	require.NoError(t, mgr.Open(context.Background(), p))

	err := mgr.Open(context.Background(), p)
	require.Error(t, err)
}

func TestManagerOnPriceUpdateRecalculatesPnL(t *testing.T) {
	mgr := NewManager(posBus(t), nil, posLogger())
	p := core.Position{Symbol: "BTCUSDT", Side: core.Long, Size: decimal.NewFromInt(1), EntryPrice: decimal.NewFromInt(100), Leverage: 1}
	require.NoError(t, mgr.Open(context.Background(), p))

	mgr.OnPriceUpdate("BTCUSDT", decimal.NewFromInt(110))
	open := mgr.OpenPositions()
	require.Len(t, open, 1)
	require.True(t, open[0].UnrealizedPnL.Equal(decimal.NewFromInt(10)))
}

func TestManagerCloseRealizesPnLAndRemovesFromOpenIndex(t *testing.T) {
	mgr := NewManager(posBus(t), nil, posLogger())
	p := core.Position{Symbol: "BTCUSDT", Side: core.Long, Size: decimal.NewFromInt(1), EntryPrice: decimal.NewFromInt(100), Leverage: 1}
	require.NoError(t, mgr.Open(context.Background(), p))

	open := mgr.OpenPositions()
	closed, err := mgr.Close(context.Background(), open[0].ID, decimal.NewFromInt(120), core.ExitTakeProfit)
	require.NoError(t, err)
	require.Equal(t, core.PositionClosed, closed.Status)
	require.True(t, closed.RealizedPnL.Equal(decimal.NewFromInt(20)))
	require.Empty(t, mgr.OpenPositions())
}

func TestMonitorRecoversUntrackedPosition(t *testing.T) {
	mgr := NewManager(posBus(t), nil, posLogger())
	source := &stubSource{positions: map[string][]*core.Position{
		"BTCUSDT": {{Symbol: "BTCUSDT", Side: core.Long, Size: decimal.NewFromInt(2), EntryPrice: decimal.NewFromInt(100)}},
	}}
	monitor := NewMonitor(mgr, source, []string{"BTCUSDT"}, posBus(t), posLogger())

	conflicts, err := monitor.Recover(context.Background())
	require.NoError(t, err)
	require.Empty(t, conflicts)
	require.Len(t, mgr.OpenPositions(), 1)
}

func TestMonitorFlagsConflictOnSizeMismatch(t *testing.T) {
	mgr := NewManager(posBus(t), nil, posLogger())
	require.NoError(t, mgr.Open(context.Background(), core.Position{
		Symbol: "BTCUSDT", Side: core.Long, Size: decimal.NewFromInt(1), EntryPrice: decimal.NewFromInt(100),
	}))
	source := &stubSource{positions: map[string][]*core.Position{
		"BTCUSDT": {{Symbol: "BTCUSDT", Side: core.Long, Size: decimal.NewFromInt(5), EntryPrice: decimal.NewFromInt(100)}},
	}}
	monitor := NewMonitor(mgr, source, []string{"BTCUSDT"}, posBus(t), posLogger())

	conflicts, err := monitor.Sync(context.Background())
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
}

type stubSource struct {
	positions map[string][]*core.Position
}

func (s *stubSource) GetPositions(ctx context.Context, symbol string) ([]*core.Position, error) {
	return s.positions[symbol], nil
}

type stubExecutor struct {
	fillPrice decimal.Decimal
}

func (s *stubExecutor) Execute(ctx context.Context, order *core.Order) (*core.Order, error) {
	clone := *order
	clone.AvgFillPrice = s.fillPrice
	clone.Status = core.OrderFilled
	return &clone, nil
}

type stubBlocker struct {
	blocked bool
}

func (s *stubBlocker) SetManualBlock(blocked bool) { s.blocked = blocked }

func TestEmergencyManagerLiquidatesAllOpenPositions(t *testing.T) {
	mgr := NewManager(posBus(t), nil, posLogger())
	require.NoError(t, mgr.Open(context.Background(), core.Position{
		Symbol: "BTCUSDT", Side: core.Long, Size: decimal.NewFromInt(1), EntryPrice: decimal.NewFromInt(100),
	}))
	executor := &stubExecutor{fillPrice: decimal.NewFromInt(90)}
	blocker := &stubBlocker{}
	em := NewEmergencyManager(mgr, executor, blocker, posBus(t), posLogger())

	require.NoError(t, em.LiquidateAll(context.Background(), "test"))
	require.True(t, blocker.blocked)
	require.Equal(t, SystemPaused, em.Status())
	require.Empty(t, mgr.OpenPositions())

	closedPositions := mgr.List()
	require.Len(t, closedPositions, 1)
	require.Equal(t, core.ExitEmergency, closedPositions[0].ExitReason)
}

func TestEmergencyManagerRejectsConcurrentInvocation(t *testing.T) {
	mgr := NewManager(posBus(t), nil, posLogger())
	executor := &stubExecutor{fillPrice: decimal.NewFromInt(90)}
	em := NewEmergencyManager(mgr, executor, &stubBlocker{}, posBus(t), posLogger())

	em.mu.Lock()
	em.liquidating = 1
	em.mu.Unlock()

	err := em.LiquidateAll(context.Background(), "test")
	require.Error(t, err)
}
