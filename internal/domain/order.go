package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Side order direction.
type Side string

const (
	// SideBuy buy / long.
	SideBuy Side = "buy"
	// SideSell sell / short.
	SideSell Side = "sell"
)

// IsBuy reports whether the side is a buy.
func (s Side) IsBuy() bool { return s == SideBuy }

// IsValid checks if the Side value is valid.
func (s Side) IsValid() bool { return s == SideBuy || s == SideSell }

// OrderKind market or limit.
type OrderKind string

const (
	OrderKindMarket OrderKind = "market"
	OrderKindLimit  OrderKind = "limit"
)

// IsValid checks if the OrderKind value is valid.
func (k OrderKind) IsValid() bool { return k == OrderKindMarket || k == OrderKindLimit }

// MarginMode isolated or cross margin.
type MarginMode string

const (
	// MarginModeIsolated margin ring-fenced per position.
	MarginModeIsolated MarginMode = "isolated"
	// MarginModeCross margin shared across the account.
	MarginModeCross MarginMode = "cross"
)

// IsValid checks if the MarginMode value is valid.
func (m MarginMode) IsValid() bool { return m == MarginModeIsolated || m == MarginModeCross }

// IsCross reports whether the mode is cross margin.
func (m MarginMode) IsCross() bool { return m == MarginModeCross }

// SizingUnit selects which amount field of a draft is edited by the user.
type SizingUnit string

const (
	// SizingUnitQuote amount entered in USDC (notional).
	SizingUnitQuote SizingUnit = "quote"
	// SizingUnitBase amount entered in the base coin.
	SizingUnitBase SizingUnit = "base"
)

// IsValid checks if the SizingUnit value is valid.
func (u SizingUnit) IsValid() bool { return u == SizingUnitQuote || u == SizingUnitBase }

// ParseSide parses "buy"/"sell" (also "long"/"short").
func ParseSide(s string) (Side, error) {
	switch s {
	case "buy", "long":
		return SideBuy, nil
	case "sell", "short":
		return SideSell, nil
	default:
		return "", fmt.Errorf("unknown side %q", s)
	}
}

// OrderDraft transient order being edited in the order sheet.
//
// Unit names the source of truth: Notional for SizingUnitQuote, BaseSize for
// SizingUnitBase. The other field is a derived mirror and is overwritten on
// every resync.
type OrderDraft struct {
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	Kind       OrderKind       `json:"kind"`
	LimitPrice decimal.Decimal `json:"limitPrice"`
	Unit       SizingUnit      `json:"unit"`
	Notional   decimal.Decimal `json:"notional"`
	BaseSize   decimal.Decimal `json:"baseSize"`
	MarginMode MarginMode      `json:"marginMode"`
	TakeProfit decimal.Decimal `json:"takeProfit"`
	StopLoss   decimal.Decimal `json:"stopLoss"`
}

// NewOrderDraft returns a draft with the order sheet defaults.
func NewOrderDraft(symbol string, side Side) OrderDraft {
	return OrderDraft{
		Symbol:     symbol,
		Side:       side,
		Kind:       OrderKindMarket,
		Unit:       SizingUnitQuote,
		MarginMode: MarginModeIsolated,
	}
}

// Amount returns the value of the source-of-truth field.
func (d OrderDraft) Amount() decimal.Decimal {
	if d.Unit == SizingUnitBase {
		return d.BaseSize
	}
	return d.Notional
}

// HasTakeProfit reports whether a take-profit trigger is set.
func (d OrderDraft) HasTakeProfit() bool { return d.TakeProfit.IsPositive() }

// HasStopLoss reports whether a stop-loss trigger is set.
func (d OrderDraft) HasStopLoss() bool { return d.StopLoss.IsPositive() }

// SignHints text shown by the wallet while asking the user to sign.
type SignHints struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ButtonText  string `json:"buttonText"`
}
