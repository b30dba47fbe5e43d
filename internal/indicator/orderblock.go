package indicator

import (
	"fmt"

	"ictengine/internal/core"

	"github.com/shopspring/decimal"
)

// OrderBlockParams configures DetectOrderBlocks.
type OrderBlockParams struct {
	SwingLookback  int
	WalkbackLimit  int             // max candles to walk back from the swing, default 5
	MinBodyPct     decimal.Decimal // B_min, body size as a fraction of price
}

// DefaultOrderBlockParams mirrors the spec's defaults.
func DefaultOrderBlockParams() OrderBlockParams {
	return OrderBlockParams{
		SwingLookback: DefaultSwingLookback,
		WalkbackLimit: 5,
		MinBodyPct:    decimal.NewFromFloat(0.0005),
	}
}

// DetectOrderBlocks identifies swing points, then walks back from each
// swing to the last opposing candle whose body exceeds MinBodyPct,
// producing the order block it anchors (§4.4).
func DetectOrderBlocks(symbol string, tf core.Timeframe, candles []core.Candle, p OrderBlockParams) []core.OrderBlock {
	swings := FindSwingPoints(candles, p.SwingLookback)
	var blocks []core.OrderBlock

	for _, sw := range swings {
		switch sw.Kind {
		case core.SwingLow:
			if ob, ok := walkbackOrderBlock(symbol, tf, candles, sw, core.Bullish, p); ok {
				blocks = append(blocks, ob)
			}
		case core.SwingHigh:
			if ob, ok := walkbackOrderBlock(symbol, tf, candles, sw, core.Bearish, p); ok {
				blocks = append(blocks, ob)
			}
		}
	}
	return blocks
}

// walkbackOrderBlock walks back from a swing index to the last candle
// opposing the swing's direction (bearish before a swing low, bullish
// before a swing high) whose body exceeds MinBodyPct.
func walkbackOrderBlock(symbol string, tf core.Timeframe, candles []core.Candle, sw core.SwingPoint, kind core.Direction, p OrderBlockParams) (core.OrderBlock, bool) {
	limit := p.WalkbackLimit
	if limit <= 0 {
		limit = 5
	}

	for back := 0; back <= limit; back++ {
		idx := sw.CandleIndex - back
		if idx < 0 {
			break
		}
		c := candles[idx]
		isOpposing := (kind == core.Bullish && c.Close.LessThan(c.Open)) || (kind == core.Bearish && c.Close.GreaterThan(c.Open))
		if !isOpposing {
			continue
		}
		body := c.Close.Sub(c.Open).Abs()
		if c.Open.IsZero() {
			continue
		}
		bodyPct := body.Div(c.Open)
		if bodyPct.LessThan(p.MinBodyPct) {
			continue
		}

		return core.OrderBlock{
			ID:         fmt.Sprintf("%s-%s-OB-%d", symbol, tf, c.OpenTime),
			Symbol:     symbol,
			Timeframe:  tf,
			Kind:       kind,
			Top:        c.High,
			Bottom:     c.Low,
			LeftTime:   c.OpenTime,
			RightTime:  c.OpenTime,
			Strength:   orderBlockStrength(candles, idx, sw.CandleIndex),
			CreatedAt:  c.OpenTime,
		}, true
	}
	return core.OrderBlock{}, false
}

// orderBlockStrength is a weighted sum of price-range %, volume, and the
// candle-count between anchor and swing, normalised to [1,10].
func orderBlockStrength(candles []core.Candle, anchorIdx, swingIdx int) int {
	anchor := candles[anchorIdx]
	rangePct := anchor.High.Sub(anchor.Low).Div(maxDecimal(anchor.Low, decimal.NewFromInt(1))).InexactFloat64()

	avgVol := averageVolume(candles, anchorIdx, 20)
	volRatio := 1.0
	if avgVol > 0 {
		volRatio = anchor.Volume.InexactFloat64() / avgVol
	}

	candleCount := swingIdx - anchorIdx
	countScore := 1.0 / float64(candleCount+1)

	raw := 0.4*rangePct*100 + 0.4*volRatio + 0.2*countScore*10
	score := int(raw)
	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}
	return score
}

func averageVolume(candles []core.Candle, idx, window int) float64 {
	start := idx - window
	if start < 0 {
		start = 0
	}
	if idx <= start {
		return 0
	}
	sum := decimal.Zero
	count := 0
	for i := start; i < idx; i++ {
		sum = sum.Add(candles[i].Volume)
		count++
	}
	if count == 0 {
		return 0
	}
	return sum.Div(decimal.NewFromInt(int64(count))).InexactFloat64()
}

func maxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// CheckBreaker scans open order blocks for a close-through and marks the
// mitigated parent, returning any new breaker blocks (§4.4).
func CheckBreaker(symbol string, tf core.Timeframe, candles []core.Candle, blocks []*core.OrderBlock) []core.BreakerBlock {
	var breakers []core.BreakerBlock
	if len(candles) == 0 {
		return breakers
	}
	last := candles[len(candles)-1]

	for _, ob := range blocks {
		if ob.Mitigated {
			continue
		}
		var broken bool
		switch ob.Kind {
		case core.Bullish:
			broken = last.Close.LessThan(ob.Bottom)
		case core.Bearish:
			broken = last.Close.GreaterThan(ob.Top)
		}
		if !broken {
			continue
		}
		ob.Mitigated = true
		breakers = append(breakers, core.BreakerBlock{
			ID:           fmt.Sprintf("%s-%s-BB-%d", symbol, tf, last.OpenTime),
			Symbol:       symbol,
			Timeframe:    tf,
			OriginalKind: ob.Kind,
			Top:          ob.Top,
			Bottom:       ob.Bottom,
			LeftTime:     ob.LeftTime,
			RightTime:    ob.RightTime,
			BreakTime:    last.OpenTime,
			BreakPrice:   last.Close,
		})
	}
	return breakers
}
