package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountSnapshot margin summary of the active wallet.
// The zero value means "no wallet".
type AccountSnapshot struct {
	Address       string          `json:"address"`
	Equity        decimal.Decimal `json:"equity"`
	MarginUsed    decimal.Decimal `json:"marginUsed"`
	UnrealizedPnl decimal.Decimal `json:"unrealizedPnl"`
	Withdrawable  decimal.Decimal `json:"withdrawable"`
	Positions     []Position      `json:"positions,omitempty"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// IsZero reports whether the snapshot carries no account data.
func (s AccountSnapshot) IsZero() bool {
	return s.Address == "" &&
		s.Equity.IsZero() &&
		s.MarginUsed.IsZero() &&
		s.UnrealizedPnl.IsZero() &&
		s.Withdrawable.IsZero() &&
		len(s.Positions) == 0
}

// Position returns the open position for symbol.
func (s AccountSnapshot) Position(symbol string) (Position, bool) {
	for _, p := range s.Positions {
		if p.Symbol == symbol && p.IsOpen() {
			return p, true
		}
	}
	return Position{}, false
}

// Clone returns a deep copy.
func (s AccountSnapshot) Clone() AccountSnapshot {
	out := s
	if s.Positions != nil {
		out.Positions = append([]Position(nil), s.Positions...)
	}
	return out
}
