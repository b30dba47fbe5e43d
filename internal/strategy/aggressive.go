package strategy

import (
	"ictengine/internal/core"
	"ictengine/internal/mtf"

	"github.com/shopspring/decimal"
)

// AggressiveParams configures Strategy B.
type AggressiveParams struct {
	MinConfidence float64
	MinRR         decimal.Decimal
}

// DefaultAggressiveParams mirrors the spec's defaults.
func DefaultAggressiveParams() AggressiveParams {
	return AggressiveParams{
		MinConfidence: 0.60,
		MinRR:         decimal.NewFromFloat(3.0),
	}
}

// Aggressive is Strategy B: emits immediately on a completed M15 liquidity
// sweep paired with an unfilled FVG on the same side (§4.7).
type Aggressive struct {
	params AggressiveParams
}

// NewAggressive constructs Strategy B with the given parameters.
func NewAggressive(p AggressiveParams) *Aggressive {
	return &Aggressive{params: p}
}

// ID satisfies core.IStrategy.
func (s *Aggressive) ID() string { return "aggressive" }

// AggressiveInputs bundles the single-timeframe snapshot Strategy B reads.
type AggressiveInputs struct {
	Symbol string
	M15    mtf.Snapshot
	M15Last core.Candle
}

// GenerateSignal implements Strategy B's sweep+FVG confluence check.
func (s *Aggressive) GenerateSignal(in AggressiveInputs) (*core.Signal, bool) {
	sweep, ok := latestCompletedSweep(in.M15.CompletedSweeps)
	if !ok {
		return nil, false
	}

	fvg, ok := matchingFVG(in.M15.FVGs, sweep.Direction)
	if !ok {
		return nil, false
	}

	entry := in.M15Last.Close
	stop := sweepExtremeStop(sweep)
	var takeProfit decimal.Decimal
	if sweep.Direction == core.Bullish {
		takeProfit = fvg.Top
	} else {
		takeProfit = fvg.Bottom
	}

	rr := core.RR(entry, stop, takeProfit)
	if rr.LessThan(s.params.MinRR) {
		return nil, false
	}

	confidence := 0.60
	if confidence < s.params.MinConfidence {
		return nil, false
	}

	sig := &core.Signal{
		StrategyID: s.ID(),
		Symbol:     in.Symbol,
		Direction:  directionFromTrend(sweep.Direction),
		Entry:      entry,
		Stop:       stop,
		TakeProfit: takeProfit,
		Confidence: confidence,
		Timestamp:  in.M15Last.OpenTime,
		Timeframe:  core.M15,
		Rationale:  "completed M15 liquidity sweep with aligned unfilled FVG",
		RiskReward: rr,
	}
	if !sig.DirectionalityValid() {
		return nil, false
	}
	return sig, true
}

func latestCompletedSweep(sweeps []core.LiquiditySweep) (core.LiquiditySweep, bool) {
	var best core.LiquiditySweep
	found := false
	for _, sw := range sweeps {
		if !sw.Valid {
			continue
		}
		if !found || sw.ReversalTime > best.ReversalTime {
			best = sw
			found = true
		}
	}
	return best, found
}

func matchingFVG(fvgs []core.FairValueGap, direction core.Direction) (core.FairValueGap, bool) {
	for _, f := range fvgs {
		if f.Kind == direction && !f.Filled {
			return f, true
		}
	}
	return core.FairValueGap{}, false
}

func sweepExtremeStop(sweep core.LiquiditySweep) decimal.Decimal {
	buffer := sweep.BreachDistance.Abs()
	if sweep.Direction == core.Bullish {
		return sweep.Level.Price.Sub(buffer)
	}
	return sweep.Level.Price.Add(buffer)
}
