// Package position owns the authoritative open-position set: the
// position manager itself, the recovery/periodic-sync monitor, and the
// emergency liquidation path (§4.12).
package position

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ictengine/internal/core"
	"ictengine/internal/eventbus"
	apperrors "ictengine/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store persists the position book; SQLiteStore satisfies it for
// durability across restarts, and it is optional (a Manager with a nil
// store is purely in-memory).
type Store interface {
	SavePosition(ctx context.Context, p core.Position) error
	LoadOpenPositions(ctx context.Context) ([]core.Position, error)
}

// Manager implements core.IPositionManager: open/update/close plus PnL
// recalculation on every price tick, broadcasting lifecycle events and
// optionally persisting through Store (§4.12).
type Manager struct {
	mu         sync.RWMutex
	positions  map[string]*core.Position // id -> position
	bySymbol   map[string][]string       // symbol -> ids of OPEN positions
	bus        *eventbus.Bus
	store      Store
	logger     core.ILogger
	updateSubs []func(core.Position)
}

// NewManager constructs a Manager; store may be nil for pure in-memory use.
func NewManager(bus *eventbus.Bus, store Store, logger core.ILogger) *Manager {
	return &Manager{
		positions: make(map[string]*core.Position),
		bySymbol:  make(map[string][]string),
		bus:       bus,
		store:     store,
		logger:    logger,
	}
}

// Open creates a new position record. Opening the same symbol+side while
// an OPEN record already exists is disallowed; merging multiple fills
// into one position is out of scope (§4.12 design decision).
func (m *Manager) Open(ctx context.Context, p core.Position) error {
	m.mu.Lock()
	for _, id := range m.bySymbol[p.Symbol] {
		existing := m.positions[id]
		if existing.Status == core.PositionOpen && existing.Side == p.Side {
			m.mu.Unlock()
			return fmt.Errorf("%w: %s %v already open", apperrors.ErrPositionExists, p.Symbol, p.Side)
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Status = core.PositionOpen
	if p.OpenedAt.IsZero() {
		p.OpenedAt = time.Now()
	}
	clone := p
	m.positions[clone.ID] = &clone
	m.bySymbol[clone.Symbol] = append(m.bySymbol[clone.Symbol], clone.ID)
	m.mu.Unlock()

	m.persist(ctx, clone)
	m.publish(ctx, eventbus.PositionOpened, eventbus.PrioPositionOpened, clone)
	m.notify(clone)
	return nil
}

// OnPriceUpdate recalculates unrealized PnL for every open position on
// symbol against the new mark price and emits POSITION_UPDATED,
// satisfying core.IPositionManager.
func (m *Manager) OnPriceUpdate(symbol string, price decimal.Decimal) {
	m.mu.Lock()
	var updated []core.Position
	for _, id := range m.bySymbol[symbol] {
		p := m.positions[id]
		if p.Status != core.PositionOpen {
			continue
		}
		p.RecalculatePnL(price)
		updated = append(updated, *p)
	}
	m.mu.Unlock()

	for _, p := range updated {
		m.publish(context.Background(), eventbus.PositionUpdated, eventbus.PrioPositionUpdated, p)
		m.notify(p)
	}
}

// Close realizes PnL against exitPrice, marks the position CLOSED, and
// migrates it out of the open index.
func (m *Manager) Close(ctx context.Context, id string, exitPrice decimal.Decimal, reason core.ExitReason) (core.Position, error) {
	m.mu.Lock()
	p, ok := m.positions[id]
	if !ok {
		m.mu.Unlock()
		return core.Position{}, fmt.Errorf("%w: %s", apperrors.ErrOrderNotFound, id)
	}
	if p.Status != core.PositionOpen {
		m.mu.Unlock()
		return core.Position{}, fmt.Errorf("%w: position %s is not open", apperrors.ErrStateConflict, id)
	}
	p.RecalculatePnL(exitPrice)
	p.RealizedPnL = p.UnrealizedPnL.Sub(p.Fees)
	p.ExitPrice = exitPrice
	p.ExitReason = reason
	p.ClosedAt = time.Now()
	p.Status = core.PositionClosed
	m.removeFromOpenIndex(p.Symbol, id)
	clone := *p
	m.mu.Unlock()

	m.persist(ctx, clone)
	m.publish(ctx, eventbus.PositionClosed, eventbus.PrioPositionClosed, clone)
	m.notify(clone)
	return clone, nil
}

// CloseWithFees is Close with exit fees applied before PnL realization.
func (m *Manager) CloseWithFees(ctx context.Context, id string, exitPrice, fees decimal.Decimal, reason core.ExitReason) (core.Position, error) {
	m.mu.Lock()
	if p, ok := m.positions[id]; ok {
		p.Fees = p.Fees.Add(fees)
	}
	m.mu.Unlock()
	return m.Close(ctx, id, exitPrice, reason)
}

// Get returns the position for id, open or closed.
func (m *Manager) Get(id string) (core.Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.positions[id]
	if !ok {
		return core.Position{}, false
	}
	return *p, true
}

// List returns every tracked position, open and closed.
func (m *Manager) List() []core.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, *p)
	}
	return out
}

// OpenPositions returns every currently open position.
func (m *Manager) OpenPositions() []core.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []core.Position
	for _, p := range m.positions {
		if p.Status == core.PositionOpen {
			out = append(out, *p)
		}
	}
	return out
}

// adoptRecovered installs a position discovered on the exchange with no
// local record, used by the Position Monitor's recovery pass.
func (m *Manager) adoptRecovered(p core.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	clone := p
	m.positions[clone.ID] = &clone
	m.bySymbol[clone.Symbol] = append(m.bySymbol[clone.Symbol], clone.ID)
}

func (m *Manager) removeFromOpenIndex(symbol, id string) {
	ids := m.bySymbol[symbol]
	for i, existing := range ids {
		if existing == id {
			m.bySymbol[symbol] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

// OnUpdate registers a callback invoked on every open/update/close.
func (m *Manager) OnUpdate(cb func(core.Position)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateSubs = append(m.updateSubs, cb)
}

func (m *Manager) notify(p core.Position) {
	m.mu.RLock()
	subs := append([]func(core.Position){}, m.updateSubs...)
	m.mu.RUnlock()
	for _, cb := range subs {
		cb(p)
	}
}

func (m *Manager) publish(ctx context.Context, kind string, prio int, p core.Position) {
	if m.bus == nil {
		return
	}
	ts := p.OpenedAt.UnixMilli()
	if err := m.bus.Publish(ctx, eventbus.New(kind, p.Symbol, ts, prio, p)); err != nil && m.logger != nil {
		m.logger.Warn("position manager: failed to publish lifecycle event", "kind", kind, "error", err)
	}
}

func (m *Manager) persist(ctx context.Context, p core.Position) {
	if m.store == nil {
		return
	}
	if err := m.store.SavePosition(ctx, p); err != nil && m.logger != nil {
		m.logger.Warn("position manager: failed to persist position", "error", err)
	}
}
