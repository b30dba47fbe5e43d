package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ILogger is the logging contract every component depends on; the
// concrete implementation lives outside this package so core stays
// dependency-free.
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}

// Event is the envelope every event bus message satisfies (§2.1).
type Event interface {
	EventType() string
	EventSymbol() string
	EventTimestamp() int64
	Priority() int
}

// IEventBus is the publish/subscribe contract of the event bus (§2).
type IEventBus interface {
	Publish(ctx context.Context, evt Event) error
	Subscribe(eventType string, handler func(ctx context.Context, evt Event) error) (unsubscribe func())
	SubscribeAll(handler func(ctx context.Context, evt Event) error) (unsubscribe func())
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
	Stats() BusStats
}

// BusStats is the event bus's introspection snapshot.
type BusStats struct {
	Published int64
	Delivered int64
	Dropped   int64
	QueueLen  int
	QueueCap  int
}

// IExchange is the venue abstraction that lets the engine run against a
// live exchange or the in-memory mock interchangeably (§6).
type IExchange interface {
	Name() string
	PlaceOrder(ctx context.Context, order *Order) (*Order, error)
	CancelOrder(ctx context.Context, symbol, exchangeID string) error
	GetOrder(ctx context.Context, symbol, exchangeID string) (*Order, error)
	GetOpenOrders(ctx context.Context, symbol string) ([]*Order, error)
	GetPositions(ctx context.Context, symbol string) ([]*Position, error)
	GetBalance(ctx context.Context, asset string) (decimal.Decimal, error)
	GetLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	GetHistoricalCandles(ctx context.Context, symbol string, tf Timeframe, limit int) ([]Candle, error)
	StreamCandles(ctx context.Context, symbols []string, tf Timeframe, callback func(Candle)) error
	StreamOrderUpdates(ctx context.Context, callback func(*Order)) error
}

// IIndicatorDetector is satisfied by each of the seven stateless detector
// families (§4.4); window is the read-only ring slice it scans.
type IIndicatorDetector interface {
	Name() string
	Detect(symbol string, tf Timeframe, window []Candle) []Event
}

// IStrategy is satisfied by each of the three signal generators (§4.7).
type IStrategy interface {
	ID() string
	GenerateSignal(state MarketState, trend TrendState, window []Candle) (*Signal, bool)
}

// IRiskValidator gates a proposed signal against account/position/session
// risk constraints before it reaches the order executor (§4.9).
type IRiskValidator interface {
	Validate(ctx context.Context, signal Signal, balance decimal.Decimal, openPositions []Position) error
}

// IOrderExecutor places and cancels orders against an exchange with
// retry/backoff and rate limiting (§4.10).
type IOrderExecutor interface {
	Execute(ctx context.Context, order *Order) (*Order, error)
	Cancel(ctx context.Context, symbol, exchangeID string) error
}

// IPositionManager owns the authoritative open-position set (§4.12).
type IPositionManager interface {
	Open(ctx context.Context, position Position) error
	Close(ctx context.Context, id string, exitPrice decimal.Decimal, reason ExitReason) (Position, error)
	Get(id string) (Position, bool)
	List() []Position
	OnPriceUpdate(symbol string, price decimal.Decimal)
}

// Runner is satisfied by every long-running engine component the
// orchestrator starts and stops in dependency order (§4.13).
type Runner interface {
	Run(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
