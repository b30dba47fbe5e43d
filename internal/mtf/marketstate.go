// Package mtf owns the per-timeframe detector sets, the cross-timeframe
// alignment queries, and the Market-State Tracker that fuses trend, break
// of structure, and liquidity signals into one regime per symbol (§4.5,
// §4.6).
package mtf

import (
	"math"

	"ictengine/internal/core"

	"github.com/shopspring/decimal"
)

// Tracker evaluates the 5-rule cascade and publishes MARKET_STATE_CHANGED
// only when confidence and delta thresholds are both met (§4.6).
type Tracker struct {
	prior map[string]core.MarketState
}

// NewTracker constructs an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{prior: make(map[string]core.MarketState)}
}

// Evaluate runs the rule cascade for one symbol's latest snapshot and
// reports whether the result should be published as MARKET_STATE_CHANGED.
func (t *Tracker) Evaluate(symbol string, trend core.TrendState, bms []core.BreakOfMarketStructure, liquidityAlignmentPct float64) (core.MarketState, bool) {
	state := classify(trend, bms)
	confidence := confidenceFor(trend, bms, state, liquidityAlignmentPct)
	state.Symbol = symbol
	state.Confidence = confidence
	state.Timestamp = trend.LastUpdate

	prior, hasPrior := t.prior[symbol]
	publish := confidence >= 60 && (!hasPrior || math.Abs(confidence-prior.Confidence) >= 30) && (!hasPrior || state.State != prior.State)
	t.prior[symbol] = state
	return state, publish
}

func classify(trend core.TrendState, bms []core.BreakOfMarketStructure) core.MarketState {
	if !trend.Confirmed || trend.Strength < 40 {
		return core.MarketState{State: core.StateRanging}
	}
	if trend.Direction == core.Transition {
		return core.MarketState{State: core.StateTransitioning}
	}
	if trend.Direction == core.Uptrend && hasConfirmedBMS(bms, core.Bullish) {
		return core.MarketState{State: core.StateBullish}
	}
	if trend.Direction == core.Downtrend && hasConfirmedBMS(bms, core.Bearish) {
		return core.MarketState{State: core.StateBearish}
	}
	return core.MarketState{State: core.StateRanging}
}

func hasConfirmedBMS(bms []core.BreakOfMarketStructure, kind core.Direction) bool {
	for _, b := range bms {
		if b.State == core.BMSConfirmed && b.Kind == kind {
			return true
		}
	}
	return false
}

// confidenceFor combines trend-confidence (40%), BMS-confidence (35%), and
// liquidity-alignment (25%) into a 0..100 score.
func confidenceFor(trend core.TrendState, bms []core.BreakOfMarketStructure, state core.MarketState, liquidityAlignmentPct float64) float64 {
	bmsConfidence := 0.0
	for _, b := range bms {
		if b.Confidence > bmsConfidence {
			bmsConfidence = b.Confidence
		}
	}
	score := 0.40*trend.Strength + 0.35*bmsConfidence + 0.25*liquidityAlignmentPct
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// TrendAlignment returns the fraction of the given trend states agreeing
// on direction with the majority (§4.5).
func TrendAlignment(states []core.TrendState) float64 {
	if len(states) == 0 {
		return 0
	}
	counts := make(map[core.TrendDirection]int)
	for _, s := range states {
		counts[s.Direction]++
	}
	best := 0
	for _, c := range counts {
		if c > best {
			best = c
		}
	}
	return float64(best) / float64(len(states))
}

// BMSAlignment counts timeframes with a CONFIRMED break in the same
// direction (§4.5).
func BMSAlignment(bmsPerTimeframe [][]core.BreakOfMarketStructure, kind core.Direction) int {
	count := 0
	for _, list := range bmsPerTimeframe {
		if hasConfirmedBMS(list, kind) {
			count++
		}
	}
	return count
}

// LiquidityCluster reports whether at least two of the given levels sit
// within epsilonPct of each other's price; each level in turn serves as
// the reference price for the percentage (§4.5).
func LiquidityCluster(levels []core.LiquidityLevel, epsilonPct float64) bool {
	for i := 0; i < len(levels); i++ {
		count := 1
		for j := 0; j < len(levels); j++ {
			if i == j {
				continue
			}
			if priceWithin(levels[i], levels[j], epsilonPct) {
				count++
			}
		}
		if count >= 2 {
			return true
		}
	}
	return false
}

func priceWithin(a, b core.LiquidityLevel, epsilonPct float64) bool {
	if a.Price.IsZero() {
		return false
	}
	diffPct := a.Price.Sub(b.Price).Abs().Div(a.Price).Mul(decimal.NewFromInt(100)).InexactFloat64()
	return diffPct <= epsilonPct
}
