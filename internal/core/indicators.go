package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// SwingKind distinguishes a swing high from a swing low.
type SwingKind int

const (
	SwingHigh SwingKind = iota
	SwingLow
)

// SwingPoint is derived from a candle ring on demand; it is never stored
// long-term, only recomputed by detectors that need it.
type SwingPoint struct {
	Kind        SwingKind
	Price       decimal.Decimal
	CandleIndex int
	Strength    int
	Timestamp   int64
}

// Direction is the bullish/bearish polarity shared by order blocks,
// breaker blocks, fair value gaps, and sweeps.
type Direction int

const (
	Bullish Direction = iota
	Bearish
)

// OrderBlock is the last opposing candle before a directional move.
type OrderBlock struct {
	ID          string
	Symbol      string
	Timeframe   Timeframe
	Kind        Direction
	Top         decimal.Decimal
	Bottom      decimal.Decimal
	LeftTime    int64
	RightTime   int64
	Strength    int // 1..10
	Mitigated   bool
	TouchCount  int
	CreatedAt   int64
}

// Expired reports whether the order block has exceeded its lifetime: T_ob
// hours old, touched 3+ times, or already mitigated into a breaker block.
func (ob OrderBlock) Expired(nowMs int64, ttl time.Duration) bool {
	if ob.Mitigated {
		return true
	}
	if ob.TouchCount >= 3 {
		return true
	}
	age := time.Duration(nowMs-ob.CreatedAt) * time.Millisecond
	return age >= ttl
}

// FairValueGap is the imbalance interval between candle 1 and candle 3 of
// a three-candle window.
type FairValueGap struct {
	ID           string
	Symbol       string
	Timeframe    Timeframe
	Kind         Direction
	Top          decimal.Decimal
	Bottom       decimal.Decimal
	C1Time       int64
	C2Time       int64
	C3Time       int64
	GapSize      decimal.Decimal
	Filled       bool
	FillPercent  decimal.Decimal
	trackedExtreme    decimal.Decimal // internal fill tracking, not exported to events
	trackedExtremeSet bool
}

// TrackedExtreme returns the fill tracker's current extreme price.
func (f *FairValueGap) TrackedExtreme() decimal.Decimal {
	return f.trackedExtreme
}

// SetTrackedExtreme records a new fill-tracking extreme.
func (f *FairValueGap) SetTrackedExtreme(v decimal.Decimal) {
	f.trackedExtreme = v
	f.trackedExtremeSet = true
}

// HasTrackedExtreme reports whether a fill-tracking extreme has been set.
func (f *FairValueGap) HasTrackedExtreme() bool {
	return f.trackedExtremeSet
}

// BreakerBlock is an OrderBlock re-interpreted in the opposite role after
// its boundary was closed through.
type BreakerBlock struct {
	ID           string
	Symbol       string
	Timeframe    Timeframe
	OriginalKind Direction
	Top          decimal.Decimal
	Bottom       decimal.Decimal
	LeftTime     int64
	RightTime    int64
	BreakTime    int64
	BreakPrice   decimal.Decimal
}

// LiquiditySide distinguishes resting buy-side liquidity (above swing
// highs) from sell-side liquidity (below swing lows).
type LiquiditySide int

const (
	BuySide LiquiditySide = iota
	SellSide
)

// LiquidityState tracks a level's lifecycle: ACTIVE -> PARTIAL -> SWEPT,
// or EXPIRED after T_liq candles with no interaction.
type LiquidityState int

const (
	LiquidityActive LiquidityState = iota
	LiquidityPartial
	LiquiditySwept
	LiquidityExpired
)

// LiquidityLevel is a price where resting stops/limits are expected to
// accumulate, typically just beyond a swing high/low.
type LiquidityLevel struct {
	ID            string
	Symbol        string
	Timeframe     Timeframe
	Side          LiquiditySide
	Price         decimal.Decimal
	TouchCount    int
	Strength      int // 0..100
	VolumeProfile decimal.Decimal
	State         LiquidityState
	CreatedAt     int64
	CandlesSinceTouch int
}

// SweepPhase is the liquidity sweep state machine's current stage.
type SweepPhase int

const (
	SweepNoBreach SweepPhase = iota
	SweepBreached
	SweepCloseConfirmed
	SweepCompleted
	SweepTimedOut
)

// LiquiditySweep is a quick breach of a liquidity level followed by a
// close beyond it and a reversal back across.
type LiquiditySweep struct {
	ID               string
	Symbol           string
	Timeframe        Timeframe
	Direction        Direction
	Level            LiquidityLevel
	Phase            SweepPhase
	BreachTime       int64
	CloseTime        int64
	ReversalTime     int64
	BreachDistance   decimal.Decimal
	ReversalStrength int // 0..100
	CandlesSinceBreach int
	Valid            bool
}

// TrendPattern is one of the four elementary structural patterns.
type TrendPattern int

const (
	HigherHigh TrendPattern = iota
	HigherLow
	LowerHigh
	LowerLow
)

// TrendStructure records one classified swing-to-swing transition.
type TrendStructure struct {
	Pattern        TrendPattern
	Price          decimal.Decimal
	Timestamp      int64
	PreviousSwing  SwingPoint
	PriceChangePct decimal.Decimal
}

// TrendDirection is the per-(symbol,timeframe) trend classification.
type TrendDirection int

const (
	Uptrend TrendDirection = iota
	Downtrend
	Ranging
	Transition
)

// StrengthLevel buckets a numeric trend strength into a qualitative label.
type StrengthLevel int

const (
	VeryWeak StrengthLevel = iota
	Weak
	Moderate
	Strong
	VeryStrong
)

// StrengthLevelFor maps a 0..100 strength score to a qualitative bucket.
func StrengthLevelFor(strength float64) StrengthLevel {
	switch {
	case strength < 20:
		return VeryWeak
	case strength < 40:
		return Weak
	case strength < 60:
		return Moderate
	case strength < 80:
		return Strong
	default:
		return VeryStrong
	}
}

// TrendState is the per-(symbol,timeframe) trend tracker's current state.
type TrendState struct {
	Symbol        string
	Timeframe     Timeframe
	Direction     TrendDirection
	Strength      float64 // 0..100
	StrengthLevel StrengthLevel
	PatternCount  int
	Confirmed     bool
	StartTime     int64
	LastUpdate    int64
}

// BMSState is the lifecycle state of a Break of Market Structure.
type BMSState int

const (
	BMSPotential BMSState = iota
	BMSConfirmed
	BMSInvalidated
	BMSEstablished
)

// BreakOfMarketStructure is a confirmed close through a structural swing.
type BreakOfMarketStructure struct {
	ID         string
	Symbol     string
	Timeframe  Timeframe
	Kind       Direction
	Level      LiquidityLevel
	BreakPrice decimal.Decimal
	State      BMSState
	Confidence float64 // 0..100
	Timestamp  int64
}

// MarketStateKind is the fused market regime.
type MarketStateKind int

const (
	StateBullish MarketStateKind = iota
	StateBearish
	StateRanging
	StateTransitioning
)

// MarketState is the Market-State Tracker's fused output.
type MarketState struct {
	Symbol     string
	State      MarketStateKind
	Confidence float64 // 0..100
	Timestamp  int64
}
