package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Candle is immutable once Closed is true. It is never mutated in place
// after close; the candle ring only replaces or evicts whole entries.
type Candle struct {
	Symbol    string
	Timeframe Timeframe
	OpenTime  int64 // ms since epoch, UTC
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	Closed    bool
}

// Validate checks the universal candle invariants from §3/§8:
// low <= min(open,close), high >= max(open,close), volume >= 0, and
// open-time alignment to the timeframe.
func (c Candle) Validate() error {
	minOC := decimal.Min(c.Open, c.Close)
	maxOC := decimal.Max(c.Open, c.Close)

	if c.Low.GreaterThan(minOC) {
		return fmt.Errorf("candle low %s exceeds min(open,close) %s", c.Low, minOC)
	}
	if c.High.LessThan(maxOC) {
		return fmt.Errorf("candle high %s below max(open,close) %s", c.High, maxOC)
	}
	if c.Volume.IsNegative() {
		return fmt.Errorf("candle volume %s is negative", c.Volume)
	}
	if c.Closed && !c.Timeframe.AlignedOpenTime(c.OpenTime) {
		return fmt.Errorf("candle open-time %d is not aligned to %s", c.OpenTime, c.Timeframe)
	}
	return nil
}

// Clone returns a value copy of the candle; all event payloads are
// value-copied at publication per §3.
func (c Candle) Clone() Candle {
	return c
}
