package position

import (
	"context"
	"time"

	"ictengine/internal/core"
	"ictengine/internal/eventbus"

	"github.com/shopspring/decimal"
)

const defaultSyncInterval = 60 * time.Second

// conflictTolerancePct is the maximum relative deviation between a local
// and exchange-reported size/entry-price before a CONFLICT is raised
// (§4.12).
var conflictTolerancePct = decimal.NewFromFloat(0.01)

// PositionSource is the subset of the exchange contract the monitor reads
// to reconcile local state.
type PositionSource interface {
	GetPositions(ctx context.Context, symbol string) ([]*core.Position, error)
}

// Conflict records a reconciliation mismatch between the local and
// exchange-reported view of a position.
type Conflict struct {
	Symbol       string
	LocalSize    decimal.Decimal
	ExchangeSize decimal.Decimal
	LocalEntry   decimal.Decimal
	ExchangeEntry decimal.Decimal
}

// Monitor runs recovery on startup and periodic reconciliation against
// the exchange's reported position set (§4.12).
type Monitor struct {
	manager  *Manager
	source   PositionSource
	symbols  []string
	interval time.Duration
	bus      *eventbus.Bus
	logger   core.ILogger
}

// NewMonitor constructs a Monitor watching the given symbols at the
// default 60s interval.
func NewMonitor(manager *Manager, source PositionSource, symbols []string, bus *eventbus.Bus, logger core.ILogger) *Monitor {
	return &Monitor{manager: manager, source: source, symbols: symbols, interval: defaultSyncInterval, bus: bus, logger: logger}
}

// Recover fetches exchange positions for every watched symbol on
// startup: positions with no local OPEN record are adopted under a new ID
// (no recovery marker is stored on the adopted position), and
// size/entry-price deviations beyond 1% are surfaced as conflicts (§4.12).
func (m *Monitor) Recover(ctx context.Context) ([]Conflict, error) {
	return m.reconcile(ctx, true)
}

// Sync runs one reconciliation pass and emits POSITION_UPDATED with
// current prices for every open position; intended to be called on the
// configured interval by Run.
func (m *Monitor) Sync(ctx context.Context) ([]Conflict, error) {
	return m.reconcile(ctx, false)
}

// Run performs an initial Recover then loops Sync every interval until
// ctx is cancelled, satisfying core.Runner's Run half.
func (m *Monitor) Run(ctx context.Context) error {
	if _, err := m.Recover(ctx); err != nil {
		return err
	}
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := m.Sync(ctx); err != nil && m.logger != nil {
				m.logger.Warn("position monitor: sync failed", "error", err)
			}
		}
	}
}

// Shutdown is a no-op; Run exits cleanly when ctx is cancelled.
func (m *Monitor) Shutdown(ctx context.Context) error { return nil }

func (m *Monitor) reconcile(ctx context.Context, recovering bool) ([]Conflict, error) {
	var conflicts []Conflict
	for _, symbol := range m.symbols {
		exchangePositions, err := m.source.GetPositions(ctx, symbol)
		if err != nil {
			return conflicts, err
		}
		for _, ep := range exchangePositions {
			local := m.findLocalOpen(symbol, ep.Side)
			if local == nil {
				if recovering {
					recovered := *ep
					recovered.ID = ""
					m.manager.adoptRecovered(recovered)
					if m.logger != nil {
						m.logger.Info("position monitor: recovered untracked position", "symbol", symbol)
					}
				}
				continue
			}
			if conflict, has := compare(symbol, *local, *ep); has {
				conflicts = append(conflicts, conflict)
				m.publishConflict(ctx, conflict)
			}
			if !ep.CurrentPrice.IsZero() {
				m.manager.OnPriceUpdate(symbol, ep.CurrentPrice)
			}
		}
	}
	return conflicts, nil
}

func (m *Monitor) findLocalOpen(symbol string, side core.SignalDirection) *core.Position {
	for _, p := range m.manager.OpenPositions() {
		if p.Symbol == symbol && p.Side == side {
			pp := p
			return &pp
		}
	}
	return nil
}

func compare(symbol string, local, exchange core.Position) (Conflict, bool) {
	sizeDelta := relativeDelta(local.Size, exchange.Size)
	entryDelta := relativeDelta(local.EntryPrice, exchange.EntryPrice)
	if sizeDelta.GreaterThan(conflictTolerancePct) || entryDelta.GreaterThan(conflictTolerancePct) {
		return Conflict{
			Symbol:        symbol,
			LocalSize:     local.Size,
			ExchangeSize:  exchange.Size,
			LocalEntry:    local.EntryPrice,
			ExchangeEntry: exchange.EntryPrice,
		}, true
	}
	return Conflict{}, false
}

func relativeDelta(a, b decimal.Decimal) decimal.Decimal {
	if a.IsZero() {
		if b.IsZero() {
			return decimal.Zero
		}
		return decimal.NewFromInt(1)
	}
	return a.Sub(b).Abs().Div(a)
}

func (m *Monitor) publishConflict(ctx context.Context, c Conflict) {
	if m.bus == nil {
		return
	}
	evt := eventbus.New(eventbus.PositionUpdated, c.Symbol, time.Now().UnixMilli(), eventbus.PrioPositionUpdated, c)
	if err := m.bus.Publish(ctx, evt); err != nil && m.logger != nil {
		m.logger.Warn("position monitor: failed to publish conflict", "error", err)
	}
}
