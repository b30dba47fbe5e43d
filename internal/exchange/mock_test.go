package exchange

import (
	"context"
	"testing"
	"time"

	"ictengine/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestMockExchangePlaceAndCancelOrder(t *testing.T) {
	ex := NewMockExchange("mock")
	order := &core.Order{
		ClientID: "c1",
		Symbol:   "BTCUSDT",
		Side:     core.OrderBuy,
		Type:     core.Market,
		Quantity: decimal.NewFromInt(1),
	}
	placed, err := ex.PlaceOrder(context.Background(), order)
	require.NoError(t, err)
	require.Equal(t, core.OrderPlaced, placed.Status)
	require.NotEmpty(t, placed.ExchangeID)

	require.NoError(t, ex.CancelOrder(context.Background(), "BTCUSDT", placed.ExchangeID))
	fetched, err := ex.GetOrder(context.Background(), "BTCUSDT", placed.ExchangeID)
	require.NoError(t, err)
	require.Equal(t, core.OrderCancelled, fetched.Status)
}

func TestMockExchangeRejectsInvalidOrder(t *testing.T) {
	ex := NewMockExchange("mock")
	order := &core.Order{ClientID: "c2", Symbol: "BTCUSDT", Quantity: decimal.Zero}
	_, err := ex.PlaceOrder(context.Background(), order)
	require.Error(t, err)
}

func TestMockExchangeBalanceAndHistoricalCandles(t *testing.T) {
	ex := NewMockExchange("mock")
	ex.SetBalance("USDT", decimal.NewFromInt(5000))
	balance, err := ex.GetBalance(context.Background(), "USDT")
	require.NoError(t, err)
	require.True(t, balance.Equal(decimal.NewFromInt(5000)))

	candles := []core.Candle{
		{Symbol: "BTCUSDT", Timeframe: core.M1, OpenTime: 0, Close: decimal.NewFromInt(100)},
		{Symbol: "BTCUSDT", Timeframe: core.M1, OpenTime: 60000, Close: decimal.NewFromInt(101)},
	}
	ex.SetHistoricalCandles("BTCUSDT", candles)
	got, err := ex.GetHistoricalCandles(context.Background(), "BTCUSDT", core.M1, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.True(t, got[0].Close.Equal(decimal.NewFromInt(101)))

	price, err := ex.GetLatestPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.True(t, price.Equal(decimal.NewFromInt(101)))
}

func TestMockExchangeStreamCandlesDeliversPushed(t *testing.T) {
	ex := NewMockExchange("mock")
	ctx, cancel := context.WithCancel(context.Background())
	received := make(chan core.Candle, 1)

	go func() {
		_ = ex.StreamCandles(ctx, []string{"BTCUSDT"}, core.M1, func(c core.Candle) {
			received <- c
		})
	}()
	time.Sleep(10 * time.Millisecond)

	ex.PushCandle(core.Candle{Symbol: "BTCUSDT", Timeframe: core.M1, Close: decimal.NewFromInt(42)})

	select {
	case c := <-received:
		require.True(t, c.Close.Equal(decimal.NewFromInt(42)))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for pushed candle")
	}
	cancel()
}
