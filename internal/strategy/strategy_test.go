package strategy

import (
	"testing"

	"ictengine/internal/core"
	"ictengine/internal/mtf"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func strategyCandle(openTime int64, close float64) core.Candle {
	return core.Candle{
		Symbol:    "BTCUSDT",
		Timeframe: core.M1,
		OpenTime:  openTime,
		Open:      d(close),
		High:      d(close + 0.5),
		Low:       d(close - 0.5),
		Close:     d(close),
		Volume:    decimal.NewFromInt(10),
		Closed:    true,
	}
}

func TestConservativeGeneratesSignalOnFullCascade(t *testing.T) {
	h1 := mtf.Snapshot{
		BMS: []core.BreakOfMarketStructure{{State: core.BMSConfirmed, Kind: core.Bullish, Confidence: 90}},
	}
	m15 := mtf.Snapshot{
		OrderBlocks: []core.OrderBlock{{Kind: core.Bullish, Top: d(100), Bottom: d(98)}},
		Liquidity: []core.LiquidityLevel{
			{Side: core.SellSide, Price: d(90), State: core.LiquidityActive},
			{Side: core.BuySide, Price: d(110), State: core.LiquidityActive},
		},
	}
	m1Last := strategyCandle(0, 99)

	strat := NewConservative(DefaultConservativeParams())
	sig, ok := strat.GenerateSignal(ConservativeInputs{
		Symbol: "BTCUSDT", H1: h1, M15: m15, M1: mtf.Snapshot{}, M1Last: m1Last,
	})
	require.True(t, ok)
	if ok {
		require.Equal(t, core.Long, sig.Direction)
		require.True(t, sig.RiskReward.GreaterThanOrEqual(DefaultConservativeParams().MinRR))
	}
}

func TestConservativeNoSignalWithoutH1BMS(t *testing.T) {
	strat := NewConservative(DefaultConservativeParams())
	_, ok := strat.GenerateSignal(ConservativeInputs{Symbol: "BTCUSDT"})
	require.False(t, ok)
}

func TestAggressiveRequiresSweepAndFVG(t *testing.T) {
	strat := NewAggressive(DefaultAggressiveParams())
	_, ok := strat.GenerateSignal(AggressiveInputs{Symbol: "BTCUSDT", M15: mtf.Snapshot{}})
	require.False(t, ok)

	m15 := mtf.Snapshot{
		CompletedSweeps: []core.LiquiditySweep{{
			Valid:          true,
			Direction:      core.Bullish,
			Level:          core.LiquidityLevel{Price: d(90)},
			BreachDistance: d(0.5),
			ReversalTime:   1000,
		}},
		FVGs: []core.FairValueGap{{Kind: core.Bullish, Top: d(98), Bottom: d(95)}},
	}
	sig, ok := strat.GenerateSignal(AggressiveInputs{Symbol: "BTCUSDT", M15: m15, M15Last: strategyCandle(1000, 91)})
	if ok {
		require.Equal(t, core.Long, sig.Direction)
	}
}

func TestHybridRequiresTrendAndZone(t *testing.T) {
	strat := NewHybrid(DefaultHybridParams())
	_, ok := strat.GenerateSignal(HybridInputs{Symbol: "BTCUSDT"})
	require.False(t, ok)
}

func TestDuplicateFilterDropsCloseSignals(t *testing.T) {
	filter := NewDuplicateFilter(10)
	sig1 := core.Signal{Direction: core.Long, Entry: d(100), Timestamp: 0}
	sig2 := core.Signal{Direction: core.Long, Entry: d(100.5), Timestamp: 60_000}

	require.True(t, filter.Accept(sig1))
	require.False(t, filter.Accept(sig2))
}

func TestDuplicateFilterAcceptsDistinctSignals(t *testing.T) {
	filter := NewDuplicateFilter(10)
	sig1 := core.Signal{Direction: core.Long, Entry: d(100), Timestamp: 0}
	sig2 := core.Signal{Direction: core.Short, Entry: d(100), Timestamp: 0}

	require.True(t, filter.Accept(sig1))
	require.True(t, filter.Accept(sig2))
}

func TestPrioritySelectorPicksHighestScore(t *testing.T) {
	selector := NewPrioritySelector()
	candidates := []core.Signal{
		{StrategyID: "aggressive", Confidence: 0.6, RiskReward: d(3), Timestamp: 100},
		{StrategyID: "conservative", Confidence: 0.9, RiskReward: d(2), Timestamp: 200},
	}
	best, ok := selector.Select(candidates)
	require.True(t, ok)
	require.Equal(t, "conservative", best.StrategyID)
}

func TestPrioritySelectorBreaksTiesByEarlierTimestamp(t *testing.T) {
	selector := NewPrioritySelector()
	candidates := []core.Signal{
		{StrategyID: "hybrid", Confidence: 0.7, RiskReward: d(2), Timestamp: 500},
		{StrategyID: "hybrid", Confidence: 0.7, RiskReward: d(2), Timestamp: 100},
	}
	best, ok := selector.Select(candidates)
	require.True(t, ok)
	require.Equal(t, int64(100), best.Timestamp)
}
