package indicator

import (
	"ictengine/internal/core"

	"github.com/shopspring/decimal"
)

// CalculateATR computes the Average True Range over the trailing `period`
// candles using the classic True-Range/SMA formula (mirrors the teacher's
// rolling-ATR math, generalized from a single stream to arbitrary
// candle windows).
func CalculateATR(candles []core.Candle, period int) decimal.Decimal {
	if period < 1 {
		period = 14
	}
	if len(candles) < 2 {
		return decimal.Zero
	}
	start := len(candles) - period
	if start < 1 {
		start = 1
	}

	sum := decimal.Zero
	count := 0
	for i := start; i < len(candles); i++ {
		sum = sum.Add(trueRange(candles[i], candles[i-1]))
		count++
	}
	if count == 0 {
		return decimal.Zero
	}
	return sum.Div(decimal.NewFromInt(int64(count)))
}

func trueRange(cur, prev core.Candle) decimal.Decimal {
	highLow := cur.High.Sub(cur.Low).Abs()
	highPrevClose := cur.High.Sub(prev.Close).Abs()
	lowPrevClose := cur.Low.Sub(prev.Close).Abs()

	tr := highLow
	if highPrevClose.GreaterThan(tr) {
		tr = highPrevClose
	}
	if lowPrevClose.GreaterThan(tr) {
		tr = lowPrevClose
	}
	return tr
}
