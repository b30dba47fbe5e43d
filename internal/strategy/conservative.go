// Package strategy implements the three signal generators and the
// downstream signal pipeline (duplicate filter + priority selector) that
// turn indicator snapshots into at most one actionable Signal per
// evaluation batch (§4.7, §4.8).
package strategy

import (
	"ictengine/internal/core"
	"ictengine/internal/mtf"

	"github.com/shopspring/decimal"
)

// ConservativeParams configures Strategy A.
type ConservativeParams struct {
	MinConfidence  float64
	MinRR          decimal.Decimal
	ZoneTolerancePct decimal.Decimal // stop tolerance beyond the M15 zone, 0.1-0.3%
}

// DefaultConservativeParams mirrors the spec's defaults.
func DefaultConservativeParams() ConservativeParams {
	return ConservativeParams{
		MinConfidence:    0.80,
		MinRR:            decimal.NewFromFloat(2.0),
		ZoneTolerancePct: decimal.NewFromFloat(0.2),
	}
}

// Conservative is Strategy A: requires a CONFIRMED H1 break of structure,
// an aligned M15 zone (order block or unfilled FVG), and an M1 entry
// trigger before emitting a signal (§4.7).
type Conservative struct {
	params ConservativeParams
}

// NewConservative constructs Strategy A with the given parameters.
func NewConservative(p ConservativeParams) *Conservative {
	return &Conservative{params: p}
}

// ID satisfies core.IStrategy.
func (s *Conservative) ID() string { return "conservative" }

// ConservativeInputs bundles the three-timeframe snapshot Strategy A reads.
type ConservativeInputs struct {
	Symbol string
	H1     mtf.Snapshot
	M15    mtf.Snapshot
	M1     mtf.Snapshot
	M1Last core.Candle
}

// GenerateSignal implements Strategy A's three-stage cascade.
func (s *Conservative) GenerateSignal(in ConservativeInputs) (*core.Signal, bool) {
	direction, ok := h1ConfirmedDirection(in.H1)
	if !ok {
		return nil, false
	}

	zone, ok := findAlignedM15Zone(in.M15, direction)
	if !ok {
		return nil, false
	}

	if !m1EntryTrigger(in.M1Last, zone, direction) {
		return nil, false
	}

	entry := in.M1Last.Close
	stop := stopBeyondZone(zone, direction, s.params.ZoneTolerancePct)
	takeProfit, ok := nearestOppositeLiquidity(in.M15.Liquidity, entry, direction, stop, s.params.MinRR)
	if !ok {
		return nil, false
	}

	rr := core.RR(entry, stop, takeProfit)
	if rr.LessThan(s.params.MinRR) {
		return nil, false
	}

	confidence := 0.80
	if confidence < s.params.MinConfidence {
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
		Timestamp:  in.M1Last.OpenTime,
		Timeframe:  core.M1,
		Rationale:  "H1 confirmed BMS + M15 aligned zone + M1 entry trigger",
		RiskReward: rr,
	}
	if !sig.DirectionalityValid() {
		return nil, false
	}
	return sig, true
}

func h1ConfirmedDirection(h1 mtf.Snapshot) (core.Direction, bool) {
	for _, b := range h1.BMS {
		if b.State == core.BMSConfirmed {
			return b.Kind, true
		}
	}
	return 0, false
}

type alignedZone struct {
	top    decimal.Decimal
	bottom decimal.Decimal
}

func findAlignedM15Zone(m15 mtf.Snapshot, direction core.Direction) (alignedZone, bool) {
	for _, ob := range m15.OrderBlocks {
		if ob.Kind == direction && !ob.Mitigated {
			return alignedZone{top: ob.Top, bottom: ob.Bottom}, true
		}
	}
	for _, fvg := range m15.FVGs {
		if fvg.Kind == direction && !fvg.Filled {
			return alignedZone{top: fvg.Top, bottom: fvg.Bottom}, true
		}
	}
	return alignedZone{}, false
}

// m1EntryTrigger fires when price re-enters the M15 zone (§4.7).
func m1EntryTrigger(c core.Candle, zone alignedZone, direction core.Direction) bool {
	return c.Low.LessThanOrEqual(zone.top) && c.High.GreaterThanOrEqual(zone.bottom)
}

func stopBeyondZone(zone alignedZone, direction core.Direction, tolerancePct decimal.Decimal) decimal.Decimal {
	tolerance := decimal.NewFromInt(1).Add(tolerancePct.Div(decimal.NewFromInt(100)))
	if direction == core.Bullish {
		return zone.bottom.Div(tolerance)
	}
	return zone.top.Mul(tolerance)
}

func nearestOppositeLiquidity(levels []core.LiquidityLevel, entry decimal.Decimal, direction core.Direction, stop decimal.Decimal, minRR decimal.Decimal) (decimal.Decimal, bool) {
	wantSide := core.BuySide
	if direction == core.Bearish {
		wantSide = core.SellSide
	}

	var best decimal.Decimal
	found := false
	for _, lvl := range levels {
		if lvl.Side != wantSide || lvl.State == core.LiquiditySwept || lvl.State == core.LiquidityExpired {
			continue
		}
		if direction == core.Bullish && lvl.Price.LessThanOrEqual(entry) {
			continue
		}
		if direction == core.Bearish && lvl.Price.GreaterThanOrEqual(entry) {
			continue
		}
		rr := core.RR(entry, stop, lvl.Price)
		if rr.LessThan(minRR) {
			continue
		}
		if !found || (direction == core.Bullish && lvl.Price.LessThan(best)) || (direction == core.Bearish && lvl.Price.GreaterThan(best)) {
			best = lvl.Price
			found = true
		}
	}
	return best, found
}

func directionFromTrend(d core.Direction) core.SignalDirection {
	if d == core.Bullish {
		return core.Long
	}
	return core.Short
}
