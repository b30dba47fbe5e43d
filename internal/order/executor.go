// Package order implements the order executor and order tracker: retrying,
// classified order placement against an exchange, and the guarded status
// state machine that keeps the engine's view of each order consistent
// with the venue's (§4.10, §4.11).
package order

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"ictengine/internal/core"
	"ictengine/internal/eventbus"
	apperrors "ictengine/pkg/errors"
	"ictengine/pkg/telemetry"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrorClass buckets an exchange error by retry policy (§4.10).
type ErrorClass int

const (
	Retryable ErrorClass = iota
	NonRetryable
	Special
)

// Classify maps a raised error to its retry class.
func Classify(err error) ErrorClass {
	switch {
	case err == apperrors.ErrTimestampOutOfBounds:
		return Special
	case err == apperrors.ErrNetwork, err == apperrors.ErrRateLimitExceeded:
		return Retryable
	default:
		return NonRetryable
	}
}

// BackoffStrategy is a pluggable attempt-delay function (§4.10).
type BackoffStrategy int

const (
	Fixed BackoffStrategy = iota
	Linear
	Exponential
	Custom
)

// RetryManager computes per-attempt delays and attempt caps for the order
// executor. CustomDelays is consulted when Strategy == Custom, and for
// order placement whenever it is non-empty; with an empty CustomDelays the
// Custom strategy falls back to Base.
type RetryManager struct {
	Strategy       BackoffStrategy
	Base           time.Duration
	Cap            time.Duration
	CustomDelays   []time.Duration
	MaxOrderAttempts int
	MaxOtherAttempts int
}

// DefaultRetryManager mirrors §4.10's defaults: exponential base 1s cap
// 30s for general operations, and the [1s,2s,5s] custom schedule for
// orders specifically, selected by the caller via OperationKind.
func DefaultRetryManager() *RetryManager {
	return &RetryManager{
		Strategy:         Exponential,
		Base:             time.Second,
		Cap:              30 * time.Second,
		CustomDelays:     []time.Duration{time.Second, 2 * time.Second, 5 * time.Second},
		MaxOrderAttempts: 3,
		MaxOtherAttempts: 5,
	}
}

// Delay returns the backoff before attempt (0-indexed), with up to 20%
// jitter, per the configured strategy.
func (r *RetryManager) Delay(attempt int) time.Duration {
	var base time.Duration
	switch r.Strategy {
	case Fixed:
		base = r.Base
	case Linear:
		base = r.Base * time.Duration(attempt+1)
	case Exponential:
		base = time.Duration(float64(r.Base) * math.Pow(2, float64(attempt)))
	case Custom:
		if attempt < len(r.CustomDelays) {
			base = r.CustomDelays[attempt]
		} else if len(r.CustomDelays) > 0 {
			base = r.CustomDelays[len(r.CustomDelays)-1]
		} else {
			base = r.Base
		}
	}
	if r.Cap > 0 && base > r.Cap {
		base = r.Cap
	}
	jitter := time.Duration(rand.Int63n(int64(base)/5 + 1))
	return base + jitter
}

// OperationKind distinguishes order placement (3 attempts) from other
// operations (cancel/fetch, 5 attempts) per §4.10.
type OperationKind int

const (
	OrderOperation OperationKind = iota
	OtherOperation
)

func (r *RetryManager) maxAttempts(kind OperationKind) int {
	if kind == OrderOperation {
		return r.MaxOrderAttempts
	}
	return r.MaxOtherAttempts
}

// AttemptRecord captures one execution attempt for diagnostics (§4.10).
type AttemptRecord struct {
	Attempt       int
	ExceptionType string
	Delay         time.Duration
	Timestamp     time.Time
}

// ResyncHandler re-synchronizes server time after a SPECIAL classified
// error, before the next retry attempt.
type ResyncHandler func(ctx context.Context) error

// Executor implements core.IOrderExecutor with validation, classified
// retry, and lifecycle event publication (§4.10).
type Executor struct {
	exchange core.IExchange
	bus      *eventbus.Bus
	logger   core.ILogger
	retry    *RetryManager
	resync   ResyncHandler
}

// NewExecutor constructs an Executor against exchange, publishing
// lifecycle events on bus.
func NewExecutor(exchange core.IExchange, bus *eventbus.Bus, retry *RetryManager, resync ResyncHandler, logger core.ILogger) *Executor {
	if retry == nil {
		retry = DefaultRetryManager()
	}
	return &Executor{exchange: exchange, bus: bus, retry: retry, resync: resync, logger: logger}
}

// Execute validates and places order, retrying per classification, and
// satisfies core.IOrderExecutor.
func (e *Executor) Execute(ctx context.Context, order *core.Order) (*core.Order, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	if err := validateConsistency(order); err != nil {
		return nil, err
	}

	placed, attempts, err := e.runWithRetry(ctx, OrderOperation, func() (*core.Order, error) {
		return e.exchange.PlaceOrder(ctx, order)
	})
	symbolAttr := metric.WithAttributes(attribute.String("symbol", order.Symbol))
	if err != nil {
		telemetry.GetGlobalMetrics().OrdersRejectedTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("symbol", order.Symbol),
			attribute.String("stage", "exchange"),
		))
		e.publish(ctx, eventbus.OrderFailed, eventbus.PrioOrderFailed, order.Symbol, order.CreatedAt.UnixMilli(), failurePayload(order, attempts, err))
		return nil, err
	}

	telemetry.GetGlobalMetrics().OrdersPlacedTotal.Add(ctx, 1, symbolAttr)
	e.publish(ctx, eventbus.OrderPlaced, eventbus.PrioOrderPlaced, placed.Symbol, placed.CreatedAt.UnixMilli(), placed)
	return placed, nil
}

// Cancel cancels an order by exchange ID, retrying per classification.
func (e *Executor) Cancel(ctx context.Context, symbol, exchangeID string) error {
	_, _, err := e.runWithRetry(ctx, OtherOperation, func() (*core.Order, error) {
		return nil, e.exchange.CancelOrder(ctx, symbol, exchangeID)
	})
	if err != nil {
		return err
	}
	e.publish(ctx, eventbus.OrderCancelled, eventbus.PrioOrderCancelled, symbol, time.Now().UnixMilli(), struct {
		Symbol     string
		ExchangeID string
	}{symbol, exchangeID})
	return nil
}

// Fetch retrieves the current state of an order from the exchange,
// retrying per classification.
func (e *Executor) Fetch(ctx context.Context, symbol, exchangeID string) (*core.Order, error) {
	got, _, err := e.runWithRetry(ctx, OtherOperation, func() (*core.Order, error) {
		return e.exchange.GetOrder(ctx, symbol, exchangeID)
	})
	return got, err
}

func (e *Executor) runWithRetry(ctx context.Context, kind OperationKind, fn func() (*core.Order, error)) (*core.Order, []AttemptRecord, error) {
	max := e.retry.maxAttempts(kind)
	var records []AttemptRecord
	var lastErr error

	for attempt := 0; attempt < max; attempt++ {
		result, err := fn()
		if err == nil {
			return result, records, nil
		}
		lastErr = err
		records = append(records, AttemptRecord{Attempt: attempt, ExceptionType: fmt.Sprintf("%T", err), Timestamp: time.Now()})

		class := Classify(err)
		if class == NonRetryable {
			return nil, records, err
		}
		if class == Special && e.resync != nil {
			if resyncErr := e.resync(ctx); resyncErr != nil && e.logger != nil {
				e.logger.Warn("order executor: resync failed", "error", resyncErr)
			}
		}
		if attempt == max-1 {
			break
		}
		schedule := *e.retry
		if kind == OrderOperation && len(schedule.CustomDelays) > 0 {
			schedule.Strategy = Custom
		}
		delay := schedule.Delay(attempt)
		records[len(records)-1].Delay = delay
		telemetry.GetGlobalMetrics().OrderRetriesTotal.Add(ctx, 1)
		select {
		case <-ctx.Done():
			return nil, records, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, records, lastErr
}

func validateConsistency(order *core.Order) error {
	if order.ReduceOnly && order.Quantity.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("reduce-only order requires a positive quantity")
	}
	return nil
}

func (e *Executor) publish(ctx context.Context, kind string, prio int, symbol string, ts int64, payload interface{}) {
	if e.bus == nil {
		return
	}
	if err := e.bus.Publish(ctx, eventbus.New(kind, symbol, ts, prio, payload)); err != nil && e.logger != nil {
		e.logger.Warn("order executor: failed to publish lifecycle event", "kind", kind, "error", err)
	}
}

func failurePayload(order *core.Order, attempts []AttemptRecord, err error) interface{} {
	return struct {
		Order    *core.Order
		Attempts []AttemptRecord
		Error    string
	}{Order: order, Attempts: attempts, Error: err.Error()}
}
