// Package risk derives margin, fee, liquidation and size figures. Every function
// is pure: no I/O and no hidden state.
package risk

import (
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/hyperlev/internal/domain"
)

// DefaultFeeRate taker fee applied to order notional.
var DefaultFeeRate = decimal.RequireFromString("0.0003")

var one = decimal.NewFromInt(1)

// RequiredMargin margin locked by an order: notional / leverage.
func RequiredMargin(notional, leverage decimal.Decimal) decimal.Decimal {
	if leverage.LessThan(one) {
		return notional
	}
	return notional.Div(leverage)
}

// EstimatedFee fee of an order: notional * feeRate.
func EstimatedFee(notional, feeRate decimal.Decimal) decimal.Decimal {
	return notional.Mul(feeRate)
}

// LiquidationPrice price at which the margin of a position opened at entry is
// exhausted: entry*(1-1/lev) for longs, entry*(1+1/lev) for shorts.
// ok is false while the entry price is not known.
func LiquidationPrice(entry, leverage decimal.Decimal, side domain.Side) (decimal.Decimal, bool) {
	if !entry.IsPositive() || leverage.LessThan(one) {
		return decimal.Zero, false
	}
	move := one.Div(leverage)
	if side == domain.SideSell {
		return entry.Mul(one.Add(move)), true
	}
	return entry.Mul(one.Sub(move)), true
}

// SizeFromNotional base size bought with notional at price and leverage:
// (notional / price) * leverage. Zero when price is not positive.
func SizeFromNotional(notional, price, leverage decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() {
		return decimal.Zero
	}
	return notional.Div(price).Mul(leverage)
}

// NotionalFromSize inverse of SizeFromNotional: (size * price) / leverage.
func NotionalFromSize(size, price, leverage decimal.Decimal) decimal.Decimal {
	if !leverage.IsPositive() {
		return decimal.Zero
	}
	return size.Mul(price).Div(leverage)
}

// ClampLeverage bounds leverage to [1, max]. max <= 0 means unbounded.
func ClampLeverage(leverage decimal.Decimal, max int) decimal.Decimal {
	if leverage.LessThan(one) {
		return one
	}
	if max > 0 {
		m := decimal.NewFromInt(int64(max))
		if leverage.GreaterThan(m) {
			return m
		}
	}
	return leverage
}

// Band coarse leverage risk level.
type Band string

const (
	BandLow    Band = "low"
	BandMedium Band = "medium"
	BandHigh   Band = "high"
)

// LeverageBand classifies leverage: up to 5x low, up to 20x medium, above high.
func LeverageBand(leverage decimal.Decimal) Band {
	switch {
	case leverage.LessThanOrEqual(decimal.NewFromInt(5)):
		return BandLow
	case leverage.LessThanOrEqual(decimal.NewFromInt(20)):
		return BandMedium
	default:
		return BandHigh
	}
}

// AmountFromPercent share of balance, pct in [0, 1], rounded to cents.
func AmountFromPercent(balance, pct decimal.Decimal) decimal.Decimal {
	if pct.IsNegative() {
		pct = decimal.Zero
	}
	if pct.GreaterThan(one) {
		pct = one
	}
	return balance.Mul(pct).Round(2)
}
