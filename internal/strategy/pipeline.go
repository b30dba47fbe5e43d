package strategy

import (
	"context"

	"ictengine/internal/candle"
	"ictengine/internal/core"
	"ictengine/internal/eventbus"
	"ictengine/internal/mtf"
)

// Pipeline wires the three strategy generators to the multi-timeframe
// engine: on every M1 INDICATORS_UPDATED it assembles the H1/M15/M1 view
// each generator needs, runs all three, drops duplicates, picks the
// single highest-priority candidate, and publishes SIGNAL_GENERATED
// (§4.7, §4.8).
type Pipeline struct {
	engine       *mtf.Engine
	store        *candle.Store
	bus          *eventbus.Bus
	logger       core.ILogger
	conservative *Conservative
	aggressive   *Aggressive
	hybrid       *Hybrid
	duplicates   *DuplicateFilter
	selector     *PrioritySelector
}

// NewPipeline wires a Pipeline with the default strategy parameters.
func NewPipeline(engine *mtf.Engine, store *candle.Store, bus *eventbus.Bus, logger core.ILogger) *Pipeline {
	return &Pipeline{
		engine:       engine,
		store:        store,
		bus:          bus,
		logger:       logger,
		conservative: NewConservative(DefaultConservativeParams()),
		aggressive:   NewAggressive(DefaultAggressiveParams()),
		hybrid:       NewHybrid(DefaultHybridParams()),
		duplicates:   NewDuplicateFilter(0),
		selector:     NewPrioritySelector(),
	}
}

// Start subscribes to INDICATORS_UPDATED and returns the unsubscribe func.
func (p *Pipeline) Start() func() {
	return p.bus.Subscribe(eventbus.IndicatorsUpdated, p.handleIndicatorsUpdated)
}

func (p *Pipeline) handleIndicatorsUpdated(ctx context.Context, evt core.Event) error {
	base, ok := evt.(eventbus.BaseEvent)
	if !ok {
		return nil
	}
	payload, ok := base.Payload.(mtf.IndicatorsUpdatedPayload)
	if !ok || payload.Snapshot.Timeframe != core.M1 {
		return nil
	}
	symbol := base.Symbol

	h1 := p.engine.SnapshotFor(symbol, core.H1)
	m15 := p.engine.SnapshotFor(symbol, core.M15)
	m1 := payload.Snapshot

	m1Last, ok := p.lastCandle(symbol, core.M1)
	if !ok {
		return nil
	}
	m15Last, hasM15 := p.lastCandle(symbol, core.M15)

	var candidates []core.Signal
	if sig, ok := p.conservative.GenerateSignal(ConservativeInputs{Symbol: symbol, H1: h1, M15: m15, M1: m1, M1Last: m1Last}); ok {
		candidates = append(candidates, *sig)
	}
	if hasM15 {
		if sig, ok := p.aggressive.GenerateSignal(AggressiveInputs{Symbol: symbol, M15: m15, M15Last: m15Last}); ok {
			candidates = append(candidates, *sig)
		}
		if sig, ok := p.hybrid.GenerateSignal(HybridInputs{Symbol: symbol, H1: h1, M15: m15, M15Last: m15Last}); ok {
			candidates = append(candidates, *sig)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	var accepted []core.Signal
	for _, sig := range candidates {
		if p.duplicates.Accept(sig) {
			accepted = append(accepted, sig)
		}
	}
	if len(accepted) == 0 {
		return nil
	}

	winner, ok := p.selector.Select(accepted)
	if !ok {
		return nil
	}
	return p.bus.Publish(ctx, eventbus.New(eventbus.SignalGenerated, symbol, winner.Timestamp, eventbus.PrioSignalGenerated, winner))
}

func (p *Pipeline) lastCandle(symbol string, tf core.Timeframe) (core.Candle, bool) {
	return p.store.Ring(symbol, tf).Tail()
}
