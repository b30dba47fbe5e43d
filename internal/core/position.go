package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionStatus is the position lifecycle.
type PositionStatus int

const (
	PositionOpen PositionStatus = iota
	PositionClosed
	PositionLiquidated
)

func (s PositionStatus) String() string {
	switch s {
	case PositionOpen:
		return "OPEN"
	case PositionClosed:
		return "CLOSED"
	case PositionLiquidated:
		return "LIQUIDATED"
	default:
		return "UNKNOWN"
	}
}

// ExitReason records why a position was closed, for the trade journal.
type ExitReason int

const (
	ExitNone ExitReason = iota
	ExitTakeProfit
	ExitStopLoss
	ExitManual
	ExitEmergency
	ExitLiquidation
)

// Position is the engine's record of an open or closed futures position
// (§3, §4.12). CurrentPrice/UnrealizedPnL/ROI are refreshed by the
// position manager's OnPriceUpdate, which the position monitor calls on
// each sync pass; they are not persisted fields of truth,
// Size/EntryPrice/Leverage are.
type Position struct {
	ID            string
	Symbol        string
	StrategyID    string
	Side          SignalDirection
	Size          decimal.Decimal
	EntryPrice    decimal.Decimal
	CurrentPrice  decimal.Decimal
	Leverage      int
	Status        PositionStatus
	UnrealizedPnL decimal.Decimal
	RealizedPnL   decimal.Decimal
	ROI           decimal.Decimal // percent
	StopLoss      decimal.Decimal
	TakeProfit    decimal.Decimal
	OpenedAt      time.Time
	ClosedAt      time.Time
	ExitPrice     decimal.Decimal
	ExitReason    ExitReason
	Fees          decimal.Decimal
}

// Notional returns size * entry price, the position's notional exposure.
func (p Position) Notional() decimal.Decimal {
	return p.Size.Mul(p.EntryPrice)
}

// RecalculatePnL refreshes CurrentPrice, UnrealizedPnL and ROI from a new
// mark price. LONG profits as price rises, SHORT profits as price falls.
func (p *Position) RecalculatePnL(markPrice decimal.Decimal) {
	p.CurrentPrice = markPrice
	diff := markPrice.Sub(p.EntryPrice)
	if p.Side == Short {
		diff = diff.Neg()
	}
	p.UnrealizedPnL = diff.Mul(p.Size)
	notional := p.Notional()
	if notional.IsZero() {
		p.ROI = decimal.Zero
		return
	}
	p.ROI = p.UnrealizedPnL.Div(notional).Mul(decimal.NewFromInt(100)).Mul(decimal.NewFromInt(int64(maxInt(p.Leverage, 1))))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// StopLossBreached reports whether the mark price has crossed the
// position's stop-loss level.
func (p Position) StopLossBreached(markPrice decimal.Decimal) bool {
	if p.StopLoss.IsZero() {
		return false
	}
	if p.Side == Long {
		return markPrice.LessThanOrEqual(p.StopLoss)
	}
	return markPrice.GreaterThanOrEqual(p.StopLoss)
}

// TakeProfitReached reports whether the mark price has crossed the
// position's take-profit level.
func (p Position) TakeProfitReached(markPrice decimal.Decimal) bool {
	if p.TakeProfit.IsZero() {
		return false
	}
	if p.Side == Long {
		return markPrice.GreaterThanOrEqual(p.TakeProfit)
	}
	return markPrice.LessThanOrEqual(p.TakeProfit)
}
