package order

import (
	"sync"
	"time"

	"ictengine/internal/core"

	"github.com/shopspring/decimal"
)

const defaultHistoryCapacity = 1000

// streamStatusMap translates exchange stream status words to the
// engine's OrderStatus enum (§4.11); unmapped words are ignored.
var streamStatusMap = map[string]core.OrderStatus{
	"NEW":              core.OrderPlaced,
	"PARTIALLY_FILLED": core.OrderPartiallyFilled,
	"FILLED":           core.OrderFilled,
	"CANCELED":         core.OrderCancelled,
	"REJECTED":         core.OrderFailed,
	"EXPIRED":          core.OrderExpired,
}

// MapStreamStatus translates a raw exchange status word to an
// OrderStatus, reporting false for unrecognized words.
func MapStreamStatus(raw string) (core.OrderStatus, bool) {
	status, ok := streamStatusMap[raw]
	return status, ok
}

// Tracker maintains the active order map and a bounded terminal-order
// history (§4.11).
type Tracker struct {
	mu              sync.RWMutex
	active          map[string]*core.Order // clientID -> order
	history         []*core.Order
	historyCapacity int
	logger          core.ILogger
}

// NewTracker constructs a Tracker with the given bounded history capacity
// (default 1000 if non-positive).
func NewTracker(historyCapacity int, logger core.ILogger) *Tracker {
	if historyCapacity <= 0 {
		historyCapacity = defaultHistoryCapacity
	}
	return &Tracker{
		active:          make(map[string]*core.Order),
		historyCapacity: historyCapacity,
		logger:          logger,
	}
}

// Track registers a newly placed order under its client ID.
func (t *Tracker) Track(o *core.Order) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active[o.ClientID] = o
}

// Get returns the active or historical order for clientID.
func (t *Tracker) Get(clientID string) (*core.Order, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if o, ok := t.active[clientID]; ok {
		return o, true
	}
	for _, o := range t.history {
		if o.ClientID == clientID {
			return o, true
		}
	}
	return nil, false
}

// ApplyUpdate applies a status transition to the tracked order for
// clientID, from either a REST response or a stream message. On reaching
// a terminal state, the order migrates from the active map to history.
// An out-of-order (regressive) transition is recorded in the order's
// history but does not change its state (§4.11, guarded by
// core.Order.ApplyTransition).
func (t *Tracker) ApplyUpdate(clientID string, to core.OrderStatus, at time.Time, filledQty, fillPrice decimal.Decimal, errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	o, ok := t.active[clientID]
	if !ok {
		if t.logger != nil {
			t.logger.Warn("order tracker: update for unknown active order", "clientID", clientID)
		}
		return
	}
	o.ApplyTransition(to, at, filledQty, fillPrice, errMsg)
	if o.Status.Terminal() {
		delete(t.active, clientID)
		t.history = append(t.history, o)
		if len(t.history) > t.historyCapacity {
			t.history = t.history[len(t.history)-t.historyCapacity:]
		}
	}
}

// ApplyStreamStatus maps a raw exchange stream status word and applies it
// via ApplyUpdate; unknown words are logged and ignored (§4.11).
func (t *Tracker) ApplyStreamStatus(clientID, rawStatus string, at time.Time, filledQty, fillPrice decimal.Decimal) {
	status, ok := MapStreamStatus(rawStatus)
	if !ok {
		if t.logger != nil {
			t.logger.Warn("order tracker: unknown stream status", "status", rawStatus)
		}
		return
	}
	t.ApplyUpdate(clientID, status, at, filledQty, fillPrice, "")
}

// Active returns a snapshot of every currently active order.
func (t *Tracker) Active() []*core.Order {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*core.Order, 0, len(t.active))
	for _, o := range t.active {
		out = append(out, o)
	}
	return out
}

// History returns a snapshot of the bounded terminal-order history.
func (t *Tracker) History() []*core.Order {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*core.Order, len(t.history))
	copy(out, t.history)
	return out
}
