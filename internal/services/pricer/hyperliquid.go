// Package pricer polls mid prices of all instruments.
package pricer

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/hyperlev/internal/domain"
)

type midsFetcher interface {
	AllMids(ctx context.Context) (map[string]string, error)
}

type symbolSet interface {
	Has(symbol string) bool
}

var hundred = decimal.NewFromInt(100)

// Feed mid prices from the Hyperliquid public Info API.
type Feed struct {
	api      midsFetcher
	symbols  symbolSet
	baseline *domain.Baseline
	logger   *zap.Logger

	mu        sync.RWMutex
	prices    domain.PriceSnapshot
	updatedAt time.Time
}

// NewFeed creates a feed. Baselines are captured only for symbols in symbols.
func NewFeed(api midsFetcher, symbols symbolSet, baseline *domain.Baseline, logger *zap.Logger) *Feed {
	return &Feed{
		api:      api,
		symbols:  symbols,
		baseline: baseline,
		logger:   logger,
		prices:   make(domain.PriceSnapshot),
	}
}

// PollOnce fetches all mids and replaces the snapshot. On error the previous
// snapshot is left untouched.
func (f *Feed) PollOnce(ctx context.Context) (domain.PriceSnapshot, error) {
	mids, err := f.api.AllMids(ctx)
	if err != nil {
		f.logger.Warn("failed to fetch prices, keeping previous", zap.Error(err))
		return nil, err
	}

	snapshot := make(domain.PriceSnapshot, len(mids))
	for coin, mid := range mids {
		if mid == "" {
			continue
		}
		px, err := decimal.NewFromString(mid)
		if err != nil {
			f.logger.Debug("skip unparsable mid", zap.String("coin", coin), zap.String("mid", mid))
			continue
		}
		snapshot[coin] = px
	}

	// a poll cancelled mid-flight must not overwrite a newer snapshot
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.prices = snapshot
	f.updatedAt = time.Now()
	f.mu.Unlock()

	captured := 0
	for coin, px := range snapshot {
		if f.symbols != nil && !f.symbols.Has(coin) {
			continue
		}
		if f.baseline.Capture(coin, px) {
			captured++
		}
	}
	if captured > 0 {
		f.logger.Info("captured synthetic baseline prices", zap.Int("count", captured))
	}

	return snapshot.Clone(), nil
}

// Snapshot returns a copy of the latest prices.
func (f *Feed) Snapshot() domain.PriceSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.prices.Clone()
}

// UpdatedAt time of the last successful poll.
func (f *Feed) UpdatedAt() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.updatedAt
}

// Price returns the latest mid of symbol.
func (f *Feed) Price(symbol string) (decimal.Decimal, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	px, ok := f.prices[symbol]
	return px, ok
}

// Change returns the percent change of symbol against its baseline.
func (f *Feed) Change(symbol string) (decimal.Decimal, bool) {
	px, ok := f.Price(symbol)
	if !ok {
		return decimal.Zero, false
	}
	base, ok := f.baseline.Get(symbol)
	if !ok || !base.IsPositive() {
		return decimal.Zero, false
	}
	return px.Sub(base).Div(base).Mul(hundred), true
}

// Changes returns the percent change of every symbol with a baseline.
func (f *Feed) Changes() map[string]decimal.Decimal {
	prices := f.Snapshot()
	out := make(map[string]decimal.Decimal, len(prices))
	for coin, px := range prices {
		base, ok := f.baseline.Get(coin)
		if !ok || !base.IsPositive() {
			continue
		}
		out[coin] = px.Sub(base).Div(base).Mul(hundred)
	}
	return out
}
