package core

import "github.com/shopspring/decimal"

// SessionLoss is the daily-loss monitor's running account snapshot
// (§4.9). LossPct is negative-signed: -5.0 means a 5% drawdown.
type SessionLoss struct {
	StartingBalance decimal.Decimal
	CurrentBalance  decimal.Decimal
	RealizedPnL     decimal.Decimal
	UnrealizedPnL   decimal.Decimal
	LossPct         decimal.Decimal
	LimitReached    bool
}

// Recompute derives CurrentBalance and LossPct from the starting balance
// and the realized/unrealized components, and flags LimitReached against
// limitPct (a positive percentage, e.g. 5 for "5% max daily loss").
func (s *SessionLoss) Recompute(limitPct decimal.Decimal) {
	s.CurrentBalance = s.StartingBalance.Add(s.RealizedPnL).Add(s.UnrealizedPnL)
	if s.StartingBalance.IsZero() {
		s.LossPct = decimal.Zero
		return
	}
	total := s.RealizedPnL.Add(s.UnrealizedPnL)
	s.LossPct = total.Div(s.StartingBalance).Mul(decimal.NewFromInt(100))
	s.LimitReached = s.LossPct.LessThanOrEqual(limitPct.Neg())
}
