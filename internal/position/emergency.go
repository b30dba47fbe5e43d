package position

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"ictengine/internal/core"
	"ictengine/internal/eventbus"
	apperrors "ictengine/pkg/errors"
)

// SystemStatus is the Emergency Manager's lifecycle state (§4.12).
type SystemStatus int

const (
	SystemRunning SystemStatus = iota
	SystemLiquidating
	SystemPaused
)

// BlockSetter flips the entry-blocked flag that the risk validator
// consults; satisfied by risk.DailyLossMonitor.SetManualBlock.
type BlockSetter interface {
	SetManualBlock(blocked bool)
}

// ReduceOnlyExecutor is the subset of the order executor the Emergency
// Manager needs to flatten positions.
type ReduceOnlyExecutor interface {
	Execute(ctx context.Context, order *core.Order) (*core.Order, error)
}

// EmergencyManager implements emergency_liquidate_all: it blocks new
// entries, issues a reduce-only market close for every open position, and
// transitions to PAUSED once every closing order has been placed (§4.12).
// Liquidation is guarded against concurrent invocation by an atomic flag.
type EmergencyManager struct {
	manager  *Manager
	executor ReduceOnlyExecutor
	blocker  BlockSetter
	bus      *eventbus.Bus
	logger   core.ILogger

	mu         sync.Mutex
	status     SystemStatus
	liquidating int32
}

// NewEmergencyManager wires an EmergencyManager to the position manager,
// order executor and entry-block flag it coordinates.
func NewEmergencyManager(manager *Manager, executor ReduceOnlyExecutor, blocker BlockSetter, bus *eventbus.Bus, logger core.ILogger) *EmergencyManager {
	return &EmergencyManager{manager: manager, executor: executor, blocker: blocker, bus: bus, logger: logger, status: SystemRunning}
}

// Status returns the current lifecycle state.
func (e *EmergencyManager) Status() SystemStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// LiquidateAll sets status=LIQUIDATING, blocks new entries, emits
// SYSTEM_STOP, and issues a reduce-only MARKET close in the opposite
// direction for every open position. Each fill closes the position with
// exit-reason=EMERGENCY. On completion status becomes PAUSED.
func (e *EmergencyManager) LiquidateAll(ctx context.Context, reason string) error {
	if !atomic.CompareAndSwapInt32(&e.liquidating, 0, 1) {
		return apperrors.ErrAlreadyLiquidating
	}
	defer atomic.StoreInt32(&e.liquidating, 0)

	e.mu.Lock()
	e.status = SystemLiquidating
	e.mu.Unlock()

	if e.blocker != nil {
		e.blocker.SetManualBlock(true)
	}
	e.publishSystemStop(ctx, reason)

	open := e.manager.OpenPositions()
	for _, p := range open {
		closeOrder := buildCloseOrder(p)
		filled, err := e.executor.Execute(ctx, closeOrder)
		if err != nil {
			if e.logger != nil {
				e.logger.Error("emergency manager: failed to close position", "position", p.ID, "error", err)
			}
			continue
		}
		exitPrice := filled.AvgFillPrice
		if exitPrice.IsZero() {
			exitPrice = p.CurrentPrice
		}
		if _, err := e.manager.Close(ctx, p.ID, exitPrice, core.ExitEmergency); err != nil && e.logger != nil {
			e.logger.Error("emergency manager: failed to record closed position", "position", p.ID, "error", err)
		}
	}

	e.mu.Lock()
	e.status = SystemPaused
	e.mu.Unlock()
	return nil
}

// Resume clears the entry block and returns to RUNNING; it has no effect
// while liquidation is in progress.
func (e *EmergencyManager) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status == SystemLiquidating {
		return
	}
	e.status = SystemRunning
	if e.blocker != nil {
		e.blocker.SetManualBlock(false)
	}
}

func buildCloseOrder(p core.Position) *core.Order {
	side := core.OrderSell
	if p.Side == core.Short {
		side = core.OrderBuy
	}
	return &core.Order{
		ClientID:     "emergency-" + p.ID,
		Symbol:       p.Symbol,
		Side:         side,
		Type:         core.Market,
		Quantity:     p.Size,
		ReduceOnly:   true,
		PositionSide: p.Side,
		CreatedAt:    time.Now(),
	}
}

func (e *EmergencyManager) publishSystemStop(ctx context.Context, reason string) {
	if e.bus == nil {
		return
	}
	evt := eventbus.New(eventbus.SystemStop, "", time.Now().UnixMilli(), eventbus.PrioSystemStop, struct {
		Reason string
	}{Reason: reason})
	if err := e.bus.Publish(ctx, evt); err != nil && e.logger != nil {
		e.logger.Warn("emergency manager: failed to publish system stop", "error", err)
	}
}
