package trader

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/hyperlev/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRoundPrice(t *testing.T) {
	btc := domain.Instrument{Symbol: "BTC", SizeDecimals: 5}
	eth := domain.Instrument{Symbol: "ETH", SizeDecimals: 4}
	pepe := domain.Instrument{Symbol: "kPEPE", SizeDecimals: 0}
	sol := domain.Instrument{Symbol: "SOL", SizeDecimals: 2}

	tests := []struct {
		name string
		px   string
		inst domain.Instrument
		want string
	}{
		{"five significant figures", "65432.123", btc, "65432"},
		{"capped by size decimals", "3210.456", eth, "3210.5"},
		{"small price", "0.0012345678", pepe, "0.001235"},
		{"unit price", "1.23456", sol, "1.2346"},
		{"already round", "100.5", sol, "100.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := roundPrice(dec(tt.px), tt.inst)
			assert.True(t, dec(tt.want).Equal(got), "want %s, got %s", tt.want, got)
		})
	}
	assert.True(t, roundPrice(decimal.Zero, btc).IsZero())
}

func TestRoundSize(t *testing.T) {
	assert.Equal(t, "0.12345", roundSize(dec("0.123456789"), domain.Instrument{SizeDecimals: 5}).String())
	assert.Equal(t, "1.9", roundSize(dec("1.99"), domain.Instrument{SizeDecimals: 1}).String(), "truncated, not rounded")
	assert.True(t, roundSize(dec("0.4"), domain.Instrument{SizeDecimals: 0}).IsZero())
}

func TestMarketLimitPrice(t *testing.T) {
	slippage := dec("0.005")
	assert.True(t, dec("100.5").Equal(marketLimitPrice(dec("100"), slippage, domain.SideBuy)))
	assert.True(t, dec("99.5").Equal(marketLimitPrice(dec("100"), slippage, domain.SideSell)))
}

func TestBuildAction(t *testing.T) {
	inst := domain.Instrument{Symbol: "ETH", SizeDecimals: 4, MaxLeverage: 25, AssetIndex: 1}
	draft := domain.NewOrderDraft("ETH", domain.SideBuy)
	draft.TakeProfit = dec("3300.123")
	draft.StopLoss = dec("2900")

	action := buildAction(orderPlan{
		instrument: inst,
		draft:      draft,
		size:       dec("0.5"),
		limitPx:    dec("3015"),
		tif:        TifIoc,
	}, "attempt-1")

	assert.Equal(t, "order", action.Type)
	assert.Equal(t, GroupingNormalTpsl, action.Grouping)
	require.Len(t, action.Orders, 3)

	main := action.Orders[0]
	assert.Equal(t, 1, main.Asset)
	assert.True(t, main.IsBuy)
	assert.Equal(t, "3015", main.LimitPx)
	assert.Equal(t, "0.5", main.Size)
	assert.False(t, main.ReduceOnly)
	require.NotNil(t, main.OrderType.Limit)
	assert.Equal(t, TifIoc, main.OrderType.Limit.Tif)
	require.NotNil(t, main.Cloid)
	assert.Len(t, *main.Cloid, 34)
	assert.Equal(t, cloidFromID("attempt-1"), *main.Cloid)

	tp := action.Orders[1]
	assert.False(t, tp.IsBuy, "protective orders close the position")
	assert.True(t, tp.ReduceOnly)
	require.NotNil(t, tp.OrderType.Trigger)
	assert.Equal(t, TpslTakeProfit, tp.OrderType.Trigger.Tpsl)
	assert.Equal(t, "3300.1", tp.OrderType.Trigger.TriggerPx)
	assert.True(t, tp.OrderType.Trigger.IsMarket)
	assert.Nil(t, tp.Cloid)

	sl := action.Orders[2]
	assert.Equal(t, TpslStopLoss, sl.OrderType.Trigger.Tpsl)
	assert.Equal(t, "2900", sl.OrderType.Trigger.TriggerPx)
}

func TestBuildAction_Single(t *testing.T) {
	action := buildAction(orderPlan{
		instrument: domain.Instrument{Symbol: "BTC", SizeDecimals: 5},
		draft:      domain.NewOrderDraft("BTC", domain.SideSell),
		size:       dec("0.001"),
		limitPx:    dec("64000"),
		tif:        TifGtc,
	}, "x")
	assert.Equal(t, GroupingNone, action.Grouping)
	require.Len(t, action.Orders, 1)
	assert.False(t, action.Orders[0].IsBuy)
	assert.Equal(t, TifGtc, action.Orders[0].OrderType.Limit.Tif)
	assert.Nil(t, action.Orders[0].OrderType.Trigger)
}

func TestCloidFromID(t *testing.T) {
	id := "2f1c6e1e-6b1e-4d8f-9a57-0c3f4b2f9d10"
	assert.Equal(t, "0x276b31e14f1f1f4302fff09c099893cf", cloidFromID(id))
	assert.Equal(t, cloidFromID(id), cloidFromID(id))
	assert.NotEqual(t, cloidFromID(id), cloidFromID("2f1c6e1e-6b1e-4d8f-9a57-0c3f4b2f9d11"))
}
