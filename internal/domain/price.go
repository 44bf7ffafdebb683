package domain

import (
	"sync"

	"github.com/shopspring/decimal"
)

// PriceSnapshot mid price per symbol.
type PriceSnapshot map[string]decimal.Decimal

// Clone returns a copy safe to hand out to readers.
func (s PriceSnapshot) Clone() PriceSnapshot {
	out := make(PriceSnapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Baseline reference prices used for the 24h change column.
//
// The values are SYNTHETIC: on first sight of a symbol the current price is
// perturbed by a random factor in [-5%, +5%). This is a placeholder until a
// historical price source is wired in; it is not real 24h data.
type Baseline struct {
	mu       sync.RWMutex
	prices   map[string]decimal.Decimal
	captured map[string]bool
	random   func() float64
}

// NewBaseline creates an empty baseline. random must return values in [0, 1).
func NewBaseline(random func() float64) *Baseline {
	return &Baseline{
		prices:   make(map[string]decimal.Decimal),
		captured: make(map[string]bool),
		random:   random,
	}
}

// Capture records a baseline for symbol unless one was already captured.
// Returns true when a new baseline was stored.
func (b *Baseline) Capture(symbol string, current decimal.Decimal) bool {
	if !current.IsPositive() {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.captured[symbol] {
		return false
	}

	variation := decimal.NewFromFloat(b.random()*0.1 - 0.05)
	b.prices[symbol] = current.Mul(decimal.NewFromInt(1).Sub(variation))
	b.captured[symbol] = true
	return true
}

// Get returns the baseline for symbol.
func (b *Baseline) Get(symbol string) (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.prices[symbol]
	return p, ok
}

// Captured reports whether a baseline exists for symbol.
func (b *Baseline) Captured(symbol string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.captured[symbol]
}

// Len number of captured symbols.
func (b *Baseline) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.captured)
}
