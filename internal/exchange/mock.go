package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ictengine/internal/core"

	"github.com/shopspring/decimal"
)

// MockExchange implements core.IExchange entirely in memory: orders are
// acknowledged synchronously, balances and historical candles are seeded
// by the caller, and streams replay whatever the test feeds in through
// PushCandle/PushOrderUpdate.
type MockExchange struct {
	name string

	mu             sync.RWMutex
	orderSeq       int64
	ordersByClient map[string]*core.Order
	positions      map[string][]*core.Position
	balances       map[string]decimal.Decimal
	historical     map[string][]core.Candle

	candleCallbacks []func(core.Candle)
	orderCallbacks  []func(*core.Order)
}

// NewMockExchange constructs an empty mock exchange under the given name.
func NewMockExchange(name string) *MockExchange {
	return &MockExchange{
		name:           name,
		ordersByClient: make(map[string]*core.Order),
		positions:      make(map[string][]*core.Position),
		balances:       make(map[string]decimal.Decimal),
		historical:     make(map[string][]core.Candle),
	}
}

// SetBalance seeds the balance returned for asset.
func (m *MockExchange) SetBalance(asset string, balance decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[asset] = balance
}

// SetHistoricalCandles seeds the candles GetHistoricalCandles returns for
// symbol, most recent last.
func (m *MockExchange) SetHistoricalCandles(symbol string, candles []core.Candle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.historical[symbol] = candles
}

// Name satisfies core.IExchange.
func (m *MockExchange) Name() string { return m.name }

// PlaceOrder records the order under a generated exchange ID and marks it
// PLACED, mimicking immediate exchange acknowledgement.
func (m *MockExchange) PlaceOrder(ctx context.Context, order *core.Order) (*core.Order, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orderSeq++
	clone := *order
	clone.ExchangeID = fmt.Sprintf("mock-%d", m.orderSeq)
	clone.CreatedAt = time.Now()
	clone.ApplyTransition(core.OrderPlaced, clone.CreatedAt, decimal.Zero, decimal.Zero, "")
	m.ordersByClient[clone.ClientID] = &clone
	return &clone, nil
}

// CancelOrder transitions a tracked order to CANCELLED.
func (m *MockExchange) CancelOrder(ctx context.Context, symbol, exchangeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.ordersByClient {
		if o.Symbol == symbol && o.ExchangeID == exchangeID {
			o.ApplyTransition(core.OrderCancelled, time.Now(), o.FilledQty, o.AvgFillPrice, "")
			return nil
		}
	}
	return fmt.Errorf("mock exchange: order %s/%s not found", symbol, exchangeID)
}

// GetOrder returns the tracked order matching symbol and exchange ID.
func (m *MockExchange) GetOrder(ctx context.Context, symbol, exchangeID string) (*core.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.ordersByClient {
		if o.Symbol == symbol && o.ExchangeID == exchangeID {
			clone := *o
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("mock exchange: order %s/%s not found", symbol, exchangeID)
}

// GetOpenOrders returns every non-terminal order for symbol.
func (m *MockExchange) GetOpenOrders(ctx context.Context, symbol string) ([]*core.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var open []*core.Order
	for _, o := range m.ordersByClient {
		if o.Symbol == symbol && !o.Status.Terminal() {
			clone := *o
			open = append(open, &clone)
		}
	}
	return open, nil
}

// GetPositions returns the seeded positions for symbol.
func (m *MockExchange) GetPositions(ctx context.Context, symbol string) ([]*core.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.positions[symbol], nil
}

// SetPositions seeds the positions GetPositions returns for symbol, used by
// position-monitor recovery tests.
func (m *MockExchange) SetPositions(symbol string, positions []*core.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[symbol] = positions
}

// GetBalance returns the seeded balance for asset, or zero if unset.
func (m *MockExchange) GetBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[asset], nil
}

// GetLatestPrice returns the close of the most recent historical candle for
// symbol, or an error if none are seeded.
func (m *MockExchange) GetLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	candles := m.historical[symbol]
	if len(candles) == 0 {
		return decimal.Zero, fmt.Errorf("mock exchange: no price data for %s", symbol)
	}
	return candles[len(candles)-1].Close, nil
}

// GetHistoricalCandles returns up to limit seeded candles for symbol/tf,
// most recent last.
func (m *MockExchange) GetHistoricalCandles(ctx context.Context, symbol string, tf core.Timeframe, limit int) ([]core.Candle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []core.Candle
	for _, c := range m.historical[symbol] {
		if c.Timeframe == tf {
			matched = append(matched, c)
		}
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched, nil
}

// StreamCandles registers callback to receive candles pushed via
// PushCandle for the given symbols/timeframe; it returns once ctx is done.
func (m *MockExchange) StreamCandles(ctx context.Context, symbols []string, tf core.Timeframe, callback func(core.Candle)) error {
	m.mu.Lock()
	m.candleCallbacks = append(m.candleCallbacks, func(c core.Candle) {
		if c.Timeframe != tf {
			return
		}
		for _, s := range symbols {
			if s == c.Symbol {
				callback(c)
				return
			}
		}
	})
	m.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

// StreamOrderUpdates registers callback to receive orders pushed via
// PushOrderUpdate; it returns once ctx is done.
func (m *MockExchange) StreamOrderUpdates(ctx context.Context, callback func(*core.Order)) error {
	m.mu.Lock()
	m.orderCallbacks = append(m.orderCallbacks, callback)
	m.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

// PushCandle delivers c to every registered candle stream callback.
func (m *MockExchange) PushCandle(c core.Candle) {
	m.mu.RLock()
	callbacks := append([]func(core.Candle){}, m.candleCallbacks...)
	m.mu.RUnlock()
	for _, cb := range callbacks {
		cb(c)
	}
}

// PushOrderUpdate delivers order to every registered order stream callback.
func (m *MockExchange) PushOrderUpdate(order *core.Order) {
	m.mu.RLock()
	callbacks := append([]func(*core.Order){}, m.orderCallbacks...)
	m.mu.RUnlock()
	for _, cb := range callbacks {
		cb(order)
	}
}
