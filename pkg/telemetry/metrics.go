package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names exported by the engine.
const (
	MetricSignalsGeneratedTotal = "ictengine_signals_generated_total"
	MetricSignalsFilteredTotal  = "ictengine_signals_filtered_total"
	MetricOrdersPlacedTotal     = "ictengine_orders_placed_total"
	MetricOrdersFilledTotal     = "ictengine_orders_filled_total"
	MetricOrdersRejectedTotal   = "ictengine_orders_rejected_total"
	MetricOrderRetriesTotal     = "ictengine_order_retries_total"
	MetricPositionsOpen         = "ictengine_positions_open"
	MetricPnLRealizedTotal      = "ictengine_pnl_realized_total"
	MetricPnLUnrealized         = "ictengine_pnl_unrealized"
	MetricEventBusQueueDepth    = "ictengine_eventbus_queue_depth"
	MetricEventBusDroppedTotal  = "ictengine_eventbus_dropped_total"
	MetricDailyLossTriggered    = "ictengine_daily_loss_triggered"
	MetricLatencyExchange       = "ictengine_latency_exchange_ms"
)

// MetricsHolder holds initialized instruments and the per-symbol state
// backing the observable gauges.
type MetricsHolder struct {
	SignalsGeneratedTotal metric.Int64Counter
	SignalsFilteredTotal  metric.Int64Counter
	OrdersPlacedTotal     metric.Int64Counter
	OrdersFilledTotal     metric.Int64Counter
	OrdersRejectedTotal   metric.Int64Counter
	OrderRetriesTotal     metric.Int64Counter
	PositionsOpen         metric.Int64ObservableGauge
	PnLRealizedTotal      metric.Float64Counter
	PnLUnrealized         metric.Float64ObservableGauge
	EventBusQueueDepth    metric.Int64ObservableGauge
	EventBusDroppedTotal  metric.Int64Counter
	DailyLossTriggered    metric.Int64ObservableGauge
	LatencyExchange       metric.Float64Histogram

	mu                  sync.RWMutex
	positionsOpenMap    map[string]int64
	unrealizedPnLMap    map[string]float64
	queueDepth          int64
	dailyLossTriggerMap map[string]int64
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the process-wide metrics holder singleton.
// GetGlobalMetrics returns the process-wide metrics holder, initialized
// against the default no-op meter provider on first use so instruments are
// always safe to call even before Setup registers the real exporter.
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{
			positionsOpenMap:    make(map[string]int64),
			unrealizedPnLMap:    make(map[string]float64),
			dailyLossTriggerMap: make(map[string]int64),
		}
		if err := globalMetrics.InitMetrics(otel.GetMeterProvider().Meter("ictengine")); err != nil {
			panic("telemetry: default meter init failed: " + err.Error())
		}
	})
	return globalMetrics
}

// InitMetrics initializes instruments against the given meter.
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	if m.SignalsGeneratedTotal, err = meter.Int64Counter(MetricSignalsGeneratedTotal, metric.WithDescription("Signals generated by strategy")); err != nil {
		return err
	}
	if m.SignalsFilteredTotal, err = meter.Int64Counter(MetricSignalsFilteredTotal, metric.WithDescription("Signals removed by the duplicate filter or priority selector")); err != nil {
		return err
	}
	if m.OrdersPlacedTotal, err = meter.Int64Counter(MetricOrdersPlacedTotal, metric.WithDescription("Orders placed")); err != nil {
		return err
	}
	if m.OrdersFilledTotal, err = meter.Int64Counter(MetricOrdersFilledTotal, metric.WithDescription("Orders filled")); err != nil {
		return err
	}
	if m.OrdersRejectedTotal, err = meter.Int64Counter(MetricOrdersRejectedTotal, metric.WithDescription("Orders rejected by risk validation or the exchange")); err != nil {
		return err
	}
	if m.OrderRetriesTotal, err = meter.Int64Counter(MetricOrderRetriesTotal, metric.WithDescription("Order placement retry attempts")); err != nil {
		return err
	}
	if m.PnLRealizedTotal, err = meter.Float64Counter(MetricPnLRealizedTotal, metric.WithDescription("Cumulative realized profit/loss")); err != nil {
		return err
	}
	if m.EventBusDroppedTotal, err = meter.Int64Counter(MetricEventBusDroppedTotal, metric.WithDescription("Events dropped due to a full queue")); err != nil {
		return err
	}
	if m.LatencyExchange, err = meter.Float64Histogram(MetricLatencyExchange, metric.WithDescription("Exchange API call latency"), metric.WithUnit("ms")); err != nil {
		return err
	}

	m.PositionsOpen, err = meter.Int64ObservableGauge(MetricPositionsOpen, metric.WithDescription("Currently open positions per symbol"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for sym, val := range m.positionsOpenMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("symbol", sym)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	m.PnLUnrealized, err = meter.Float64ObservableGauge(MetricPnLUnrealized, metric.WithDescription("Current unrealized PnL per symbol"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for sym, val := range m.unrealizedPnLMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("symbol", sym)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	m.EventBusQueueDepth, err = meter.Int64ObservableGauge(MetricEventBusQueueDepth, metric.WithDescription("Event bus queue depth"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			obs.Observe(m.queueDepth)
			return nil
		}))
	if err != nil {
		return err
	}

	m.DailyLossTriggered, err = meter.Int64ObservableGauge(MetricDailyLossTriggered, metric.WithDescription("Daily loss monitor triggered state (1=blocked, 0=normal)"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for sym, val := range m.dailyLossTriggerMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("account", sym)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	return nil
}

func (m *MetricsHolder) SetPositionsOpen(symbol string, count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positionsOpenMap[symbol] = count
}

func (m *MetricsHolder) SetUnrealizedPnL(symbol string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unrealizedPnLMap[symbol] = value
}

func (m *MetricsHolder) SetQueueDepth(depth int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueDepth = depth
}

func (m *MetricsHolder) SetDailyLossTriggered(account string, triggered bool) {
	val := int64(0)
	if triggered {
		val = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dailyLossTriggerMap[account] = val
}
