package strategy

import (
	"ictengine/internal/core"
	"ictengine/internal/mtf"

	"github.com/shopspring/decimal"
)

// HybridParams configures Strategy C.
type HybridParams struct {
	MinConfidence float64
	MinRR         decimal.Decimal
}

// DefaultHybridParams mirrors the spec's defaults.
func DefaultHybridParams() HybridParams {
	return HybridParams{
		MinConfidence: 0.70,
		MinRR:         decimal.NewFromFloat(1.5),
	}
}

// Hybrid is Strategy C: a weighted score over H1 trend (40%), M15 pattern
// confluence (35%), and liquidity proximity (25%) (§4.7).
type Hybrid struct {
	params HybridParams
}

// NewHybrid constructs Strategy C with the given parameters.
func NewHybrid(p HybridParams) *Hybrid {
	return &Hybrid{params: p}
}

// ID satisfies core.IStrategy.
func (s *Hybrid) ID() string { return "hybrid" }

// HybridInputs bundles the two-timeframe snapshot Strategy C reads.
type HybridInputs struct {
	Symbol  string
	H1      mtf.Snapshot
	M15     mtf.Snapshot
	M15Last core.Candle
}

// GenerateSignal implements Strategy C's weighted confluence score.
func (s *Hybrid) GenerateSignal(in HybridInputs) (*core.Signal, bool) {
	direction, trendScore, ok := h1TrendScore(in.H1.Trend)
	if !ok {
		return nil, false
	}

	zone, hasZone := findAlignedM15Zone(in.M15, direction)
	if !hasZone {
		return nil, false
	}
	patternScore := m15PatternScore(in.M15, direction)
	liquidityScore := liquidityProximityScore(in.M15.Liquidity, in.M15Last.Close, direction)

	confidence := 0.40*trendScore + 0.35*patternScore + 0.25*liquidityScore
	if confidence < s.params.MinConfidence {
		return nil, false
	}

	entry := in.M15Last.Close
	stop := stopBeyondZone(zone, direction, decimal.NewFromFloat(0.2))
	takeProfit, ok := nearestOppositeLiquidity(in.M15.Liquidity, entry, direction, stop, s.params.MinRR)
	if !ok {
		return nil, false
	}

	rr := core.RR(entry, stop, takeProfit)
	if rr.LessThan(s.params.MinRR) {
		return nil, false
	}

	sig := &core.Signal{
		StrategyID: s.ID(),
		Symbol:     in.Symbol,
		Direction:  directionFromTrend(direction),
		Entry:      entry,
		Stop:       stop,
		TakeProfit: takeProfit,
		Confidence: confidence,
		Timestamp:  in.M15Last.OpenTime,
		Timeframe:  core.M15,
		Rationale:  "weighted H1 trend + M15 pattern + liquidity proximity confluence",
		RiskReward: rr,
	}
	if !sig.DirectionalityValid() {
		return nil, false
	}
	return sig, true
}

func h1TrendScore(trend core.TrendState) (core.Direction, float64, bool) {
	switch trend.Direction {
	case core.Uptrend:
		return core.Bullish, trend.Strength / 100.0, true
	case core.Downtrend:
		return core.Bearish, trend.Strength / 100.0, true
	default:
		return 0, 0, false
	}
}

func m15PatternScore(m15 mtf.Snapshot, direction core.Direction) float64 {
	score := 0.0
	for _, ob := range m15.OrderBlocks {
		if ob.Kind == direction && !ob.Mitigated {
			score += 0.5
			break
		}
	}
	for _, f := range m15.FVGs {
		if f.Kind == direction && !f.Filled {
			score += 0.5
			break
		}
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func liquidityProximityScore(levels []core.LiquidityLevel, price decimal.Decimal, direction core.Direction) float64 {
	wantSide := core.SellSide
	if direction == core.Bearish {
		wantSide = core.BuySide
	}
	best := -1.0
	for _, lvl := range levels {
		if lvl.Side != wantSide || lvl.State == core.LiquiditySwept || lvl.State == core.LiquidityExpired {
			continue
		}
		if price.IsZero() {
			continue
		}
		distPct := lvl.Price.Sub(price).Abs().Div(price).Mul(decimal.NewFromInt(100)).InexactFloat64()
		proximity := 1.0 - minFloatLocal(distPct/2.0, 1.0)
		if proximity > best {
			best = proximity
		}
	}
	if best < 0 {
		return 0
	}
	return best
}

func minFloatLocal(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
