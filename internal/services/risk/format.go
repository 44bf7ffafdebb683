package risk

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

const noPrice = "---"

var (
	thousand = decimal.NewFromInt(1000)
	cent     = decimal.RequireFromString("0.01")
	hundred  = decimal.NewFromInt(100)
)

// FormatPrice renders a price with tiered precision:
// >= 1000 two decimals with thousands separators, >= 1 two to four decimals,
// >= 0.01 four decimals, below that six decimals.
func FormatPrice(p decimal.Decimal) string {
	switch {
	case !p.IsPositive():
		return noPrice
	case p.GreaterThanOrEqual(thousand):
		return withThousands(p.Round(2))
	case p.GreaterThanOrEqual(one):
		return trimTo(p.StringFixed(4), 2)
	case p.GreaterThanOrEqual(cent):
		return p.StringFixed(4)
	default:
		return p.StringFixed(6)
	}
}

// FormatChange renders a percent change as "+1.23%".
func FormatChange(pct decimal.Decimal) string {
	return signed(pct.StringFixed(2), pct) + "%"
}

// FormatFundingRate renders a funding rate as a signed percent with four decimals.
func FormatFundingRate(rate decimal.Decimal) string {
	pct := rate.Mul(hundred)
	return signed(pct.StringFixed(4), pct) + "%"
}

func signed(s string, v decimal.Decimal) string {
	if v.IsNegative() {
		return s
	}
	return "+" + s
}

func withThousands(p decimal.Decimal) string {
	fixed := p.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")
	return humanize.Comma(decimal.RequireFromString(intPart).IntPart()) + "." + frac
}

// trimTo drops trailing zeros of a fixed-point string, keeping at least min decimals.
func trimTo(s string, min int) string {
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return s
	}
	end := len(s)
	for end > dot+1+min && s[end-1] == '0' {
		end--
	}
	return s[:end]
}
