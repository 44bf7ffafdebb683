package trader

import (
	"crypto/sha256"
	"encoding/hex"
	"math"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/hyperlev/internal/domain"
)

const (
	TifGtc = "Gtc"
	TifIoc = "Ioc"

	GroupingNone       = "na"
	GroupingNormalTpsl = "normalTpsl"

	TpslTakeProfit = "tp"
	TpslStopLoss   = "sl"

	priceSignificantFigures = 5
)

// LimitOrderType limit parameters of an order.
type LimitOrderType struct {
	Tif string `json:"tif" msgpack:"tif"`
}

// TriggerOrderType trigger (TP/SL) parameters of an order.
type TriggerOrderType struct {
	IsMarket  bool   `json:"isMarket" msgpack:"isMarket"`
	TriggerPx string `json:"triggerPx" msgpack:"triggerPx"`
	Tpsl      string `json:"tpsl" msgpack:"tpsl"`
}

// OrderTypeWire exactly one of Limit or Trigger is set.
type OrderTypeWire struct {
	Limit   *LimitOrderType   `json:"limit,omitempty" msgpack:"limit,omitempty"`
	Trigger *TriggerOrderType `json:"trigger,omitempty" msgpack:"trigger,omitempty"`
}

// OrderWire single order in exchange wire format. Field order matters: the
// msgpack encoding of the action is hashed for the signature.
type OrderWire struct {
	Asset      int           `json:"a" msgpack:"a"`
	IsBuy      bool          `json:"b" msgpack:"b"`
	LimitPx    string        `json:"p" msgpack:"p"`
	Size       string        `json:"s" msgpack:"s"`
	ReduceOnly bool          `json:"r" msgpack:"r"`
	OrderType  OrderTypeWire `json:"t" msgpack:"t"`
	Cloid      *string       `json:"c,omitempty" msgpack:"c,omitempty"`
}

// OrderAction the signed "order" action.
type OrderAction struct {
	Type     string      `json:"type" msgpack:"type"`
	Orders   []OrderWire `json:"orders" msgpack:"orders"`
	Grouping string      `json:"grouping" msgpack:"grouping"`
}

// orderPlan validated, exchange-ready figures of a draft.
type orderPlan struct {
	instrument domain.Instrument
	draft      domain.OrderDraft
	size       decimal.Decimal
	refPrice   decimal.Decimal
	limitPx    decimal.Decimal
	tif        string
}

// cloidFromID client order id of an attempt: 0x + first 16 bytes of sha256(attemptID).
func cloidFromID(attemptID string) string {
	sum := sha256.Sum256([]byte(attemptID))
	return "0x" + hex.EncodeToString(sum[:16])
}

func buildAction(plan orderPlan, attemptID string) OrderAction {
	isBuy := plan.draft.Side.IsBuy()
	size := plan.size.String()
	cloid := cloidFromID(attemptID)

	orders := []OrderWire{{
		Asset:      plan.instrument.AssetIndex,
		IsBuy:      isBuy,
		LimitPx:    plan.limitPx.String(),
		Size:       size,
		ReduceOnly: false,
		OrderType:  OrderTypeWire{Limit: &LimitOrderType{Tif: plan.tif}},
		Cloid:      &cloid,
	}}

	// protective orders close the position: opposite side, reduce-only
	addTrigger := func(px decimal.Decimal, tpsl string) {
		triggerPx := roundPrice(px, plan.instrument).String()
		orders = append(orders, OrderWire{
			Asset:      plan.instrument.AssetIndex,
			IsBuy:      !isBuy,
			LimitPx:    triggerPx,
			Size:       size,
			ReduceOnly: true,
			OrderType: OrderTypeWire{Trigger: &TriggerOrderType{
				IsMarket:  true,
				TriggerPx: triggerPx,
				Tpsl:      tpsl,
			}},
		})
	}
	if plan.draft.HasTakeProfit() {
		addTrigger(plan.draft.TakeProfit, TpslTakeProfit)
	}
	if plan.draft.HasStopLoss() {
		addTrigger(plan.draft.StopLoss, TpslStopLoss)
	}

	grouping := GroupingNone
	if len(orders) > 1 {
		grouping = GroupingNormalTpsl
	}

	return OrderAction{Type: "order", Orders: orders, Grouping: grouping}
}

// roundPrice rounds px to 5 significant figures and to the number of decimals
// the instrument allows.
func roundPrice(px decimal.Decimal, inst domain.Instrument) decimal.Decimal {
	if !px.IsPositive() {
		return decimal.Zero
	}
	f, _ := px.Float64()
	exp := int32(math.Floor(math.Log10(f)))
	places := priceSignificantFigures - 1 - exp
	if max := inst.MaxPriceDecimals(); places > max {
		places = max
	}
	return px.Round(places)
}

// roundSize truncates size to the instrument size decimals.
func roundSize(size decimal.Decimal, inst domain.Instrument) decimal.Decimal {
	return size.Truncate(int32(inst.SizeDecimals))
}

// marketLimitPrice emulates a market order with a marketable limit price.
func marketLimitPrice(mid, slippage decimal.Decimal, side domain.Side) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if side.IsBuy() {
		return mid.Mul(one.Add(slippage))
	}
	return mid.Mul(one.Sub(slippage))
}
