package candle

import (
	"context"

	"ictengine/internal/core"
	"ictengine/internal/eventbus"

	"github.com/shopspring/decimal"
)

// KlineUpdate is the raw exchange frame the realtime processor consumes.
type KlineUpdate struct {
	Symbol    string
	Timeframe core.Timeframe
	OpenTime  int64
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	Closed    bool
}

// RealtimeProcessor classifies incoming kline updates and writes them into
// the Store, publishing CANDLE_RECEIVED/CANDLE_CLOSED/GAP_DETECTED
// events (§4.2).
type RealtimeProcessor struct {
	store  *Store
	bus    *eventbus.Bus
	logger core.ILogger

	outlierFraction decimal.Decimal

	outlierCount int64
	gapCount     int64
	dupCount     int64
}

// NewRealtimeProcessor constructs a processor bound to a store and bus.
func NewRealtimeProcessor(store *Store, bus *eventbus.Bus, outlierFraction float64, logger core.ILogger) *RealtimeProcessor {
	if outlierFraction <= 0 {
		outlierFraction = 0.5
	}
	return &RealtimeProcessor{
		store:           store,
		bus:             bus,
		logger:          logger.WithField("component", "realtime_processor"),
		outlierFraction: decimal.NewFromFloat(outlierFraction),
	}
}

// Process classifies and applies one kline update (§4.2 rules).
func (p *RealtimeProcessor) Process(ctx context.Context, upd KlineUpdate) error {
	ring := p.store.Ring(upd.Symbol, upd.Timeframe)

	candle := core.Candle{
		Symbol:    upd.Symbol,
		Timeframe: upd.Timeframe,
		OpenTime:  upd.OpenTime,
		Open:      upd.Open,
		High:      upd.High,
		Low:       upd.Low,
		Close:     upd.Close,
		Volume:    upd.Volume,
		Closed:    upd.Closed,
	}

	tail, hasTail := ring.Tail()

	if hasTail && p.isOutlier(tail, candle) {
		p.outlierCount++
		p.logger.Warn("rejected outlier candle", "symbol", upd.Symbol, "tail_close", tail.Close, "new_open", upd.Open)
		return nil
	}

	switch {
	case hasTail && upd.OpenTime == tail.OpenTime && !upd.Closed:
		if err := ring.UpdateTail(candle); err != nil {
			return err
		}
		return p.bus.Publish(ctx, eventbus.New(eventbus.CandleReceived, upd.Symbol, upd.OpenTime, eventbus.PrioCandleReceived, candle))

	case hasTail && upd.OpenTime == tail.OpenTime && upd.Closed:
		if err := ring.Append(candle); err != nil {
			return err
		}
		if err := p.bus.Publish(ctx, eventbus.New(eventbus.CandleClosed, upd.Symbol, upd.OpenTime, eventbus.PrioCandleClosed, candle)); err != nil {
			return err
		}
		return p.bus.Publish(ctx, eventbus.New(eventbus.CandleReceived, upd.Symbol, upd.OpenTime, eventbus.PrioCandleReceived, candle))

	case hasTail && upd.OpenTime > tail.OpenTime:
		expected := tail.OpenTime + upd.Timeframe.DurationMs()
		if upd.OpenTime > expected {
			p.gapCount++
			if err := p.bus.Publish(ctx, eventbus.New(eventbus.GapDetected, upd.Symbol, upd.OpenTime, eventbus.PrioGapDetected, GapInfo{
				Symbol: upd.Symbol, Timeframe: upd.Timeframe, ExpectedOpenTime: expected, ActualOpenTime: upd.OpenTime,
			})); err != nil {
				return err
			}
		}
		if err := ring.Append(candle); err != nil {
			return err
		}
		if upd.Closed {
			if err := p.bus.Publish(ctx, eventbus.New(eventbus.CandleClosed, upd.Symbol, upd.OpenTime, eventbus.PrioCandleClosed, candle)); err != nil {
				return err
			}
		}
		return p.bus.Publish(ctx, eventbus.New(eventbus.CandleReceived, upd.Symbol, upd.OpenTime, eventbus.PrioCandleReceived, candle))

	case !hasTail:
		if err := ring.Append(candle); err != nil {
			return err
		}
		if upd.Closed {
			if err := p.bus.Publish(ctx, eventbus.New(eventbus.CandleClosed, upd.Symbol, upd.OpenTime, eventbus.PrioCandleClosed, candle)); err != nil {
				return err
			}
		}
		return p.bus.Publish(ctx, eventbus.New(eventbus.CandleReceived, upd.Symbol, upd.OpenTime, eventbus.PrioCandleReceived, candle))

	default:
		p.dupCount++
		p.logger.Debug("rejected stale/duplicate candle", "symbol", upd.Symbol, "open_time", upd.OpenTime, "tail_open_time", tail.OpenTime)
		return nil
	}
}

// isOutlier rejects a new open price that jumps too far from the prior
// close, guarding against corrupted exchange frames.
func (p *RealtimeProcessor) isOutlier(tail, next core.Candle) bool {
	if tail.Close.IsZero() {
		return false
	}
	diff := tail.Close.Sub(next.Open).Abs().Div(tail.Close)
	return diff.GreaterThan(p.outlierFraction)
}

// GapInfo is the GAP_DETECTED diagnostic payload.
type GapInfo struct {
	Symbol           string
	Timeframe        core.Timeframe
	ExpectedOpenTime int64
	ActualOpenTime   int64
}

// Counters returns the processor's diagnostic counters.
func (p *RealtimeProcessor) Counters() (outliers, gaps, duplicates int64) {
	return p.outlierCount, p.gapCount, p.dupCount
}
