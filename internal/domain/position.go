package domain

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// PositionSide represents the direction of a trading position
type PositionSide int

const (
	// PositionSideLong represents a long position (buy to open)
	PositionSideLong PositionSide = iota
	// PositionSideShort represents a short position (sell to open)
	PositionSideShort
)

// String returns the string representation.
func (s PositionSide) String() string {
	if s == PositionSideShort {
		return "short"
	}
	return "long"
}

// MarshalText encodes the side as "long" or "short".
func (s PositionSide) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// PositionSideFromOrder maps an order side to the position it opens.
func PositionSideFromOrder(side Side) PositionSide {
	if side == SideSell {
		return PositionSideShort
	}
	return PositionSideLong
}

// Position open perpetual position reported by the exchange.
type Position struct {
	Symbol           string          `json:"symbol"`
	Size             decimal.Decimal `json:"size"`
	Side             PositionSide    `json:"side"`
	EntryPrice       decimal.Decimal `json:"entryPrice"`
	UnrealizedPnl    decimal.Decimal `json:"unrealizedPnl"`
	LiquidationPrice decimal.Decimal `json:"liquidationPrice"`
	Leverage         decimal.Decimal `json:"leverage"`
}

// NewPositionFromSigned builds a position from the exchange signed size (szi):
// positive is long, negative is short.
func NewPositionFromSigned(symbol string, szi, entryPrice decimal.Decimal) (Position, error) {
	if szi.IsZero() {
		return Position{}, errors.New("position size must not be zero")
	}
	if entryPrice.LessThanOrEqual(decimal.Zero) {
		return Position{}, errors.New("entry price must be greater than zero")
	}

	side := PositionSideLong
	if szi.IsNegative() {
		side = PositionSideShort
	}

	return Position{
		Symbol:     symbol,
		Size:       szi.Abs(),
		Side:       side,
		EntryPrice: entryPrice,
	}, nil
}

// IsOpen returns true if the position has a positive size and a known entry.
func (p Position) IsOpen() bool {
	return p.Size.IsPositive() && p.EntryPrice.IsPositive()
}

// PnL calculates profit and loss for the given market price.
func (p Position) PnL(currentPrice decimal.Decimal) decimal.Decimal {
	// for long positions: PnL = (currentPrice - entryPrice) * size
	// for short positions: PnL = (entryPrice - currentPrice) * size
	if p.Side == PositionSideShort {
		return p.EntryPrice.Sub(currentPrice).Mul(p.Size)
	}
	return currentPrice.Sub(p.EntryPrice).Mul(p.Size)
}

// PositionLines price levels drawn over the chart for an open position.
type PositionLines struct {
	Symbol     string          `json:"symbol"`
	Side       PositionSide    `json:"side"`
	Entry      decimal.Decimal `json:"entry"`
	TakeProfit decimal.Decimal `json:"takeProfit"`
	StopLoss   decimal.Decimal `json:"stopLoss"`
}
