package risk

import (
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/hyperlev/internal/domain"
)

// Preview figures shown in the order sheet.
type Preview struct {
	ReferencePrice   decimal.Decimal `json:"referencePrice"`
	Size             decimal.Decimal `json:"size"`
	Notional         decimal.Decimal `json:"notional"`
	RequiredMargin   decimal.Decimal `json:"requiredMargin"`
	EstimatedFee     decimal.Decimal `json:"estimatedFee"`
	LiquidationPrice decimal.Decimal `json:"liquidationPrice"`
	LiquidationKnown bool            `json:"liquidationKnown"`
}

// ReferencePrice price an order is expected to fill at: the limit price of a
// limit order, the mid otherwise.
func ReferencePrice(d domain.OrderDraft, mid decimal.Decimal) decimal.Decimal {
	if d.Kind == domain.OrderKindLimit && d.LimitPrice.IsPositive() {
		return d.LimitPrice
	}
	return mid
}

// SyncDraft re-derives the mirror amount of d from its source of truth.
func SyncDraft(d domain.OrderDraft, mid, leverage decimal.Decimal) domain.OrderDraft {
	price := ReferencePrice(d, mid)
	switch d.Unit {
	case domain.SizingUnitBase:
		if d.BaseSize.IsPositive() && price.IsPositive() {
			d.Notional = NotionalFromSize(d.BaseSize, price, leverage)
		} else {
			d.Notional = decimal.Zero
		}
	default:
		if d.Notional.IsPositive() && price.IsPositive() {
			d.BaseSize = SizeFromNotional(d.Notional, price, leverage)
		} else {
			d.BaseSize = decimal.Zero
		}
	}
	return d
}

// Quote computes the preview of d at mid and leverage.
func Quote(d domain.OrderDraft, mid, leverage, feeRate decimal.Decimal) Preview {
	d = SyncDraft(d, mid, leverage)
	price := ReferencePrice(d, mid)

	p := Preview{
		ReferencePrice: price,
		Size:           d.BaseSize,
		Notional:       d.Notional,
		RequiredMargin: RequiredMargin(d.Notional, leverage),
		EstimatedFee:   EstimatedFee(d.Notional, feeRate),
	}
	if d.BaseSize.IsPositive() {
		p.LiquidationPrice, p.LiquidationKnown = LiquidationPrice(price, leverage, d.Side)
	}
	return p
}
