// Package candle implements the per-(symbol,timeframe) candle ring store
// and the realtime kline processor that feeds it (§4.2).
package candle

import (
	"fmt"
	"sync"

	"ictengine/internal/core"
)

// Ring is a bounded, strictly time-ordered sequence of closed candles for
// one (symbol,timeframe). It owns its storage exclusively; detectors only
// ever receive read snapshots (§3 ownership note).
type Ring struct {
	mu       sync.RWMutex
	capacity int
	candles  []core.Candle
}

// NewRing constructs a Ring with the given capacity (N, default 500).
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 500
	}
	return &Ring{capacity: capacity, candles: make([]core.Candle, 0, capacity)}
}

// Append adds a new closed candle. Its open-time must be strictly greater
// than the tail's; an equal open-time replaces the tail (live update close),
// an earlier open-time is rejected. Overflow evicts the oldest candle.
func (r *Ring) Append(c core.Candle) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid candle: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.candles) == 0 {
		r.candles = append(r.candles, c)
		return nil
	}

	tail := r.candles[len(r.candles)-1]
	switch {
	case c.OpenTime == tail.OpenTime:
		r.candles[len(r.candles)-1] = c
	case c.OpenTime > tail.OpenTime:
		r.candles = append(r.candles, c)
		if len(r.candles) > r.capacity {
			r.candles = r.candles[1:]
		}
	default:
		return fmt.Errorf("rejected out-of-order candle: open_time %d precedes tail %d", c.OpenTime, tail.OpenTime)
	}
	return nil
}

// UpdateTail mutates the live (non-closed) tail candle's OHLCV fields in
// place, used for CANDLE_RECEIVED updates that do not close a candle.
func (r *Ring) UpdateTail(c core.Candle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.candles) == 0 {
		return fmt.Errorf("cannot update tail of an empty ring")
	}
	tail := &r.candles[len(r.candles)-1]
	if c.OpenTime != tail.OpenTime {
		return fmt.Errorf("update open_time %d does not match tail %d", c.OpenTime, tail.OpenTime)
	}
	tail.Open, tail.High, tail.Low, tail.Close, tail.Volume = c.Open, c.High, c.Low, c.Close, c.Volume
	return nil
}

// Tail returns the most recent candle, if any.
func (r *Ring) Tail() (core.Candle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.candles) == 0 {
		return core.Candle{}, false
	}
	return r.candles[len(r.candles)-1], true
}

// Snapshot returns a value-copied slice of all candles currently held.
func (r *Ring) Snapshot() []core.Candle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Candle, len(r.candles))
	copy(out, r.candles)
	return out
}

// Len returns the number of candles currently held.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.candles)
}
