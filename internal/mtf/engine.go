package mtf

import (
	"context"
	"fmt"
	"sync"

	"ictengine/internal/candle"
	"ictengine/internal/core"
	"ictengine/internal/eventbus"
	"ictengine/internal/indicator"

	"github.com/shopspring/decimal"
)

// Params bundles every detector family's tunables for one timeframe set.
type Params struct {
	Swing     int
	OrderBlock indicator.OrderBlockParams
	FVG        indicator.FVGParams
	Liquidity  indicator.LiquidityParams
	Sweep      indicator.SweepParams
	Trend      indicator.TrendParams
	BMS        indicator.BMSParams
}

// DefaultParams mirrors every detector's spec defaults.
func DefaultParams() Params {
	return Params{
		Swing:      indicator.DefaultSwingLookback,
		OrderBlock: indicator.DefaultOrderBlockParams(),
		FVG:        indicator.DefaultFVGParams(),
		Liquidity:  indicator.DefaultLiquidityParams(),
		Sweep:      indicator.DefaultSweepParams(),
		Trend:      indicator.DefaultTrendParams(),
		BMS:        indicator.DefaultBMSParams(),
	}
}

// timeframeState is the MTF engine's per-(symbol,timeframe) indicator
// collection, mutated only by the engine goroutine handling CANDLE_CLOSED.
type timeframeState struct {
	orderBlocks     []*core.OrderBlock
	breakers        []core.BreakerBlock
	fvgs            []core.FairValueGap
	liquidity       []core.LiquidityLevel
	sweeps          []*core.LiquiditySweep
	completedSweeps []completedSweep // retained briefly for Strategy B's within-N-candles check
	candlesSeen     int
	trend           core.TrendState
	bms             []core.BreakOfMarketStructure
}

// completedSweep pairs a SWEEP_COMPLETED sweep with the candle count at
// which it completed, so it can be pruned after recentSweepWindow candles.
type completedSweep struct {
	sweep      core.LiquiditySweep
	completedAt int
}

// recentSweepWindow caps how many closed candles a completed sweep stays
// visible to strategies before it is pruned.
const recentSweepWindow = 20

// Snapshot is the read-only view published in INDICATORS_UPDATED payloads
// (§4.5); strategies consume this, never the engine's live state.
type Snapshot struct {
	Symbol          string
	Timeframe       core.Timeframe
	OrderBlocks     []core.OrderBlock
	Breakers        []core.BreakerBlock
	FVGs            []core.FairValueGap
	Liquidity       []core.LiquidityLevel
	Sweeps          []core.LiquiditySweep
	CompletedSweeps []core.LiquiditySweep
	Trend           core.TrendState
	BMS             []core.BreakOfMarketStructure
}

// IndicatorsUpdatedPayload is the event body for INDICATORS_UPDATED.
type IndicatorsUpdatedPayload struct {
	Snapshot       Snapshot
	OrderBlockCount int
	FVGCount        int
	LiquidityCount  int
	SweepCount      int
}

// Engine owns a detector set per configured timeframe and recomputes it on
// every CANDLE_CLOSED event (§4.5).
type Engine struct {
	store      *candle.Store
	bus        *eventbus.Bus
	logger     core.ILogger
	tracker    *Tracker
	timeframes []core.Timeframe
	params     Params

	stateMu sync.Mutex
	state   map[string]map[core.Timeframe]*timeframeState
}

// NewEngine constructs an Engine over the given store/bus with the default
// timeframe set {M1, M15, H1} unless overridden.
func NewEngine(store *candle.Store, bus *eventbus.Bus, timeframes []core.Timeframe, params Params, logger core.ILogger) *Engine {
	if len(timeframes) == 0 {
		timeframes = []core.Timeframe{core.M1, core.M15, core.H1}
	}
	return &Engine{
		store:      store,
		bus:        bus,
		logger:     logger.WithField("component", "mtf_engine"),
		tracker:    NewTracker(),
		timeframes: timeframes,
		params:     params,
		state:      make(map[string]map[core.Timeframe]*timeframeState),
	}
}

// Start subscribes the engine to CANDLE_CLOSED.
func (e *Engine) Start() func() {
	return e.bus.Subscribe(eventbus.CandleClosed, e.handleCandleClosed)
}

func (e *Engine) handleCandleClosed(ctx context.Context, evt core.Event) error {
	tf, candles, ok := e.closedCandleContext(evt)
	if !ok {
		return nil
	}
	if !e.tracksTimeframe(tf) {
		return nil
	}

	symbol := evt.EventSymbol()

	e.stateMu.Lock()
	st := e.stateFor(symbol, tf)
	e.runDetectors(symbol, tf, candles, st)

	liquidityAlignment := 0.0
	if len(st.liquidity) > 0 {
		liquidityAlignment = 100.0
	}
	marketState, publish := e.tracker.Evaluate(symbol, st.trend, st.bms, liquidityAlignment)

	snapshot := Snapshot{
		Symbol:      symbol,
		Timeframe:   tf,
		OrderBlocks: dereferenceOrderBlocks(st.orderBlocks),
		Breakers:    st.breakers,
		FVGs:        st.fvgs,
		Liquidity:   st.liquidity,
		Sweeps:          dereferenceSweeps(st.sweeps),
		CompletedSweeps: completedSweepValues(st.completedSweeps),
		Trend:           st.trend,
		BMS:             st.bms,
	}

	payload := IndicatorsUpdatedPayload{
		Snapshot:        snapshot,
		OrderBlockCount: len(st.orderBlocks),
		FVGCount:        len(st.fvgs),
		LiquidityCount:  len(st.liquidity),
		SweepCount:      len(st.sweeps),
	}
	e.stateMu.Unlock()

	if err := e.bus.Publish(ctx, eventbus.New(eventbus.IndicatorsUpdated, symbol, evt.EventTimestamp(), eventbus.PrioIndicatorsUpdated, payload)); err != nil {
		e.logger.Warn("failed to publish indicators_updated", "error", err)
	}

	if publish {
		if err := e.bus.Publish(ctx, eventbus.New(eventbus.MarketStateChanged, symbol, evt.EventTimestamp(), eventbus.PrioMarketStateChanged, marketState)); err != nil {
			e.logger.Warn("failed to publish market_state_changed", "error", err)
		}
	}
	return nil
}

// SnapshotFor returns the current indicator snapshot for (symbol,timeframe),
// used by strategy generators that need a cross-timeframe view outside the
// INDICATORS_UPDATED event stream.
func (e *Engine) SnapshotFor(symbol string, tf core.Timeframe) Snapshot {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	bySymbol, ok := e.state[symbol]
	if !ok {
		return Snapshot{Symbol: symbol, Timeframe: tf}
	}
	st, ok := bySymbol[tf]
	if !ok {
		return Snapshot{Symbol: symbol, Timeframe: tf}
	}
	return Snapshot{
		Symbol:      symbol,
		Timeframe:   tf,
		OrderBlocks: dereferenceOrderBlocks(st.orderBlocks),
		Breakers:    st.breakers,
		FVGs:        st.fvgs,
		Liquidity:   st.liquidity,
		Sweeps:          dereferenceSweeps(st.sweeps),
		CompletedSweeps: completedSweepValues(st.completedSweeps),
		Trend:           st.trend,
		BMS:             st.bms,
	}
}

func (e *Engine) closedCandleContext(evt core.Event) (core.Timeframe, []core.Candle, bool) {
	base, ok := evt.(eventbus.BaseEvent)
	if !ok {
		return 0, nil, false
	}
	c, ok := base.Payload.(core.Candle)
	if !ok {
		return 0, nil, false
	}
	candles := e.store.Snapshot(evt.EventSymbol(), c.Timeframe)
	if len(candles) == 0 {
		return 0, nil, false
	}
	return c.Timeframe, candles, true
}

func (e *Engine) tracksTimeframe(tf core.Timeframe) bool {
	for _, t := range e.timeframes {
		if t == tf {
			return true
		}
	}
	return false
}

func (e *Engine) stateFor(symbol string, tf core.Timeframe) *timeframeState {
	bySymbol, ok := e.state[symbol]
	if !ok {
		bySymbol = make(map[core.Timeframe]*timeframeState)
		e.state[symbol] = bySymbol
	}
	st, ok := bySymbol[tf]
	if !ok {
		st = &timeframeState{}
		bySymbol[tf] = st
	}
	return st
}

// runDetectors runs every detector family in declared order, mutating the
// timeframe's indicator collections in place (§4.5).
func (e *Engine) runDetectors(symbol string, tf core.Timeframe, candles []core.Candle, st *timeframeState) {
	st.candlesSeen++
	pruned := st.completedSweeps[:0]
	for _, cs := range st.completedSweeps {
		if st.candlesSeen-cs.completedAt < recentSweepWindow {
			pruned = append(pruned, cs)
		}
	}
	st.completedSweeps = pruned

	newBlocks := indicator.DetectOrderBlocks(symbol, tf, candles, e.params.OrderBlock)
	for i := range newBlocks {
		st.orderBlocks = append(st.orderBlocks, &newBlocks[i])
	}
	st.breakers = append(st.breakers, indicator.CheckBreaker(symbol, tf, candles, st.orderBlocks)...)

	newGaps := indicator.DetectFVGs(symbol, tf, candles, e.params.FVG)
	st.fvgs = mergeFVGs(st.fvgs, newGaps)
	if len(candles) > 0 {
		last := candles[len(candles)-1]
		active := st.fvgs[:0]
		for i := range st.fvgs {
			if indicator.UpdateFVGFill(&st.fvgs[i], last) {
				active = append(active, st.fvgs[i])
			}
		}
		st.fvgs = active
	}

	newLevels := indicator.DetectLiquidityLevels(symbol, tf, candles, e.params.Liquidity)
	st.liquidity = mergeLiquidity(st.liquidity, newLevels)
	if len(candles) > 0 {
		last := candles[len(candles)-1]
		avgVol := 0.0
		n := len(candles)
		if n > 20 {
			sum := decimal.Zero
			for i := n - 20; i < n; i++ {
				sum = sum.Add(candles[i].Volume)
			}
			avgVol = sum.Div(decimal.NewFromInt(20)).InexactFloat64()
		}
		for i := range st.liquidity {
			indicator.UpdateLiquidityLevel(&st.liquidity[i], last, e.params.Liquidity.ExpireAfterN)
		}
		e.advanceSweeps(symbol, tf, st, last, avgVol)
	}

	swings := indicator.FindSwingPoints(candles, e.params.Swing)
	_, trendState := indicator.DetectTrend(symbol, tf, candles, st.trend, e.params.Trend)
	st.trend = trendState

	avgVolume := decimal.Zero
	if len(candles) > 20 {
		sum := decimal.Zero
		for i := len(candles) - 20; i < len(candles); i++ {
			sum = sum.Add(candles[i].Volume)
		}
		avgVolume = sum.Div(decimal.NewFromInt(20))
	}
	st.bms = indicator.DetectBreakOfStructure(symbol, tf, candles, swings, avgVolume, e.params.BMS)
}

func (e *Engine) advanceSweeps(symbol string, tf core.Timeframe, st *timeframeState, last core.Candle, avgVol float64) {
	for _, lvl := range st.liquidity {
		if lvl.State != core.LiquidityActive && lvl.State != core.LiquidityPartial {
			continue
		}
		if !e.hasOpenSweepFor(st, lvl) {
			st.sweeps = append(st.sweeps, indicator.NewSweepCandidate(symbol, tf, lvl))
		}
	}

	var stillOpen []*core.LiquiditySweep
	for _, sw := range st.sweeps {
		completed := indicator.AdvanceSweep(sw, last, avgVol, e.params.Sweep)
		if completed {
			e.logger.Info("liquidity sweep detected", "symbol", symbol, "timeframe", tf.String(), "direction", fmt.Sprintf("%d", sw.Direction))
			st.completedSweeps = append(st.completedSweeps, completedSweep{sweep: *sw, completedAt: st.candlesSeen})
		}
		if sw.Phase != core.SweepTimedOut && sw.Phase != core.SweepCompleted {
			stillOpen = append(stillOpen, sw)
		}
	}
	st.sweeps = stillOpen
}

func (e *Engine) hasOpenSweepFor(st *timeframeState, lvl core.LiquidityLevel) bool {
	for _, sw := range st.sweeps {
		if sw.Level.ID == lvl.ID {
			return true
		}
	}
	return false
}

func mergeFVGs(existing, fresh []core.FairValueGap) []core.FairValueGap {
	seen := make(map[string]bool, len(existing))
	for _, g := range existing {
		seen[g.ID] = true
	}
	for _, g := range fresh {
		if !seen[g.ID] {
			existing = append(existing, g)
			seen[g.ID] = true
		}
	}
	return existing
}

func mergeLiquidity(existing, fresh []core.LiquidityLevel) []core.LiquidityLevel {
	seen := make(map[string]bool, len(existing))
	for _, l := range existing {
		seen[l.ID] = true
	}
	for _, l := range fresh {
		if !seen[l.ID] {
			existing = append(existing, l)
			seen[l.ID] = true
		}
	}
	return existing
}

func dereferenceOrderBlocks(blocks []*core.OrderBlock) []core.OrderBlock {
	out := make([]core.OrderBlock, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, *b)
	}
	return out
}

func dereferenceSweeps(sweeps []*core.LiquiditySweep) []core.LiquiditySweep {
	out := make([]core.LiquiditySweep, 0, len(sweeps))
	for _, s := range sweeps {
		out = append(out, *s)
	}
	return out
}

func completedSweepValues(completed []completedSweep) []core.LiquiditySweep {
	out := make([]core.LiquiditySweep, 0, len(completed))
	for _, cs := range completed {
		out = append(out, cs.sweep)
	}
	return out
}
