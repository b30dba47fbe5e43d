package orchestrator

import (
	"context"
	"time"

	"ictengine/internal/core"
	"ictengine/internal/eventbus"
	"ictengine/internal/order"
	"ictengine/internal/position"
	"ictengine/internal/risk"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExecutionPipeline subscribes to SIGNAL_GENERATED and drives a signal
// through risk validation, order execution, and position opening — the
// glue between the strategy layer and the trading layer that §4.13
// assigns to the orchestrator rather than to any single component.
type ExecutionPipeline struct {
	bus        *eventbus.Bus
	validator  *risk.Validator
	executor   *order.Executor
	posManager *position.Manager
	balance    func() decimal.Decimal
	logger     core.ILogger
}

// NewExecutionPipeline wires a signal-to-position pipeline. balance
// reports the account balance used for sizing and risk checks.
func NewExecutionPipeline(bus *eventbus.Bus, validator *risk.Validator, executor *order.Executor, posManager *position.Manager, balance func() decimal.Decimal, logger core.ILogger) *ExecutionPipeline {
	return &ExecutionPipeline{bus: bus, validator: validator, executor: executor, posManager: posManager, balance: balance, logger: logger}
}

// Start subscribes to SIGNAL_GENERATED and returns the unsubscribe func.
func (e *ExecutionPipeline) Start() func() {
	return e.bus.Subscribe(eventbus.SignalGenerated, e.handleSignal)
}

func (e *ExecutionPipeline) handleSignal(ctx context.Context, evt core.Event) error {
	base, ok := evt.(eventbus.BaseEvent)
	if !ok {
		return nil
	}
	signal, ok := base.Payload.(core.Signal)
	if !ok {
		return nil
	}

	balance := e.balance()
	violations, err := e.validator.ValidateWithSize(ctx, signal, signal.Size, balance)
	if err != nil {
		e.logger.Warn("risk validation error", "symbol", signal.Symbol, "error", err)
		return nil
	}
	if len(violations) > 0 {
		e.logger.Info("signal rejected by risk validator", "symbol", signal.Symbol, "violations", len(violations))
		return nil
	}

	side := core.OrderBuy
	if signal.Direction == core.Short {
		side = core.OrderSell
	}
	ord := &core.Order{
		ClientID:     uuid.NewString(),
		Symbol:       signal.Symbol,
		Side:         side,
		Type:         core.Market,
		Quantity:     signal.Size,
		PositionSide: signal.Direction,
		TimeInForce:  core.GTC,
		Status:       core.OrderPending,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	filled, err := e.executor.Execute(ctx, ord)
	if err != nil {
		e.logger.Warn("order execution failed", "symbol", signal.Symbol, "error", err)
		return nil
	}

	pos := core.Position{
		Symbol:     signal.Symbol,
		StrategyID: signal.StrategyID,
		Side:       signal.Direction,
		Size:       filled.FilledQty,
		EntryPrice: filled.AvgFillPrice,
		Leverage:   e.validator.Params().Leverage,
		StopLoss:   signal.Stop,
		TakeProfit: signal.TakeProfit,
	}
	if err := e.posManager.Open(ctx, pos); err != nil {
		e.logger.Warn("position open rejected", "symbol", signal.Symbol, "error", err)
	}
	return nil
}
