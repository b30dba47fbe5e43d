package core

import "github.com/shopspring/decimal"

// SignalDirection is the trade direction a Signal proposes.
type SignalDirection int

const (
	Long SignalDirection = iota
	Short
)

// Signal is immutable once produced by a strategy generator (§3, §4.7).
type Signal struct {
	StrategyID   string
	Symbol       string
	Direction    SignalDirection
	Entry        decimal.Decimal
	Stop         decimal.Decimal
	TakeProfit   decimal.Decimal
	Size         decimal.Decimal
	Confidence   float64 // 0..1
	Timestamp    int64
	Timeframe    Timeframe
	Rationale    string
	RiskReward   decimal.Decimal
}

// RR computes |take_profit - entry| / |entry - stop|, the risk-reward
// ratio referenced throughout §4.7-§4.9.
func RR(entry, stop, takeProfit decimal.Decimal) decimal.Decimal {
	denom := entry.Sub(stop).Abs()
	if denom.IsZero() {
		return decimal.Zero
	}
	return takeProfit.Sub(entry).Abs().Div(denom)
}

// DirectionalityValid checks the directionality rule for a signal's side:
// for LONG, stop < entry < take-profit; for SHORT, the reverse.
func (s Signal) DirectionalityValid() bool {
	switch s.Direction {
	case Long:
		return s.Stop.LessThan(s.Entry) && s.TakeProfit.GreaterThan(s.Entry)
	case Short:
		return s.Stop.GreaterThan(s.Entry) && s.TakeProfit.LessThan(s.Entry)
	default:
		return false
	}
}
