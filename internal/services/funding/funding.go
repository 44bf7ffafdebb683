// Package funding tracks the funding rate of the selected instrument and the
// countdown to the next funding payment.
package funding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/hyperlev/internal/clients"
	"github.com/vadiminshakov/hyperlev/internal/domain"
)

// ZeroAddress placeholder user for metaAndAssetCtxs, funding data is public.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

type assetCtxFetcher interface {
	MetaAndAssetCtxs(ctx context.Context, user string) (*clients.Meta, []clients.AssetCtx, error)
}

// Tracker owns the FundingState.
type Tracker struct {
	api    assetCtxFetcher
	logger *zap.Logger

	mu         sync.RWMutex
	generation uint64
	state      domain.FundingState
}

func NewTracker(api assetCtxFetcher, logger *zap.Logger) *Tracker {
	return &Tracker{api: api, logger: logger}
}

// SetSymbol switches the tracked instrument. The rate of the previous symbol is
// dropped immediately and any in-flight poll for it is discarded on arrival.
func (t *Tracker) SetSymbol(symbol string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Symbol == symbol {
		return
	}
	t.generation++
	t.state.Symbol = symbol
	t.state.Rate = decimal.Zero
}

// PollOnce fetches the funding rate of symbol. Errors leave the previous rate untouched.
func (t *Tracker) PollOnce(ctx context.Context, symbol string) (decimal.Decimal, error) {
	t.mu.RLock()
	gen := t.generation
	active := t.state.Symbol
	t.mu.RUnlock()
	if active != symbol {
		return decimal.Zero, errors.Wrapf(domain.ErrStaleResponse, "symbol %s is not selected", symbol)
	}

	meta, ctxs, err := t.api.MetaAndAssetCtxs(ctx, ZeroAddress)
	if err != nil {
		t.logger.Warn("failed to fetch funding rate", zap.String("symbol", symbol), zap.Error(err))
		return decimal.Zero, err
	}

	rate, err := fundingOf(meta, ctxs, symbol)
	if err != nil {
		t.logger.Warn("funding rate unavailable", zap.String("symbol", symbol), zap.Error(err))
		return decimal.Zero, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.generation != gen || t.state.Symbol != symbol || ctx.Err() != nil {
		return decimal.Zero, errors.Wrapf(domain.ErrStaleResponse, "funding response for %s", symbol)
	}
	t.state.Rate = rate
	return rate, nil
}

// Tick recomputes the next funding time. It performs no I/O.
func (t *Tracker) Tick(now time.Time) domain.FundingState {
	next := domain.NextFundingAt(now)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.NextFundingAt = next
	return t.state
}

// State returns the current funding state.
func (t *Tracker) State() domain.FundingState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

func fundingOf(meta *clients.Meta, ctxs []clients.AssetCtx, symbol string) (decimal.Decimal, error) {
	if meta == nil {
		return decimal.Zero, domain.NewParseError("metaAndAssetCtxs", errors.New("missing meta"))
	}
	for i, asset := range meta.Universe {
		if asset.Name != symbol {
			continue
		}
		if i >= len(ctxs) {
			return decimal.Zero, domain.NewParseError("metaAndAssetCtxs", fmt.Errorf("no asset context for %s at %d", symbol, i))
		}
		rate, err := decimal.NewFromString(ctxs[i].Funding)
		if err != nil {
			return decimal.Zero, domain.NewParseError("metaAndAssetCtxs", errors.Wrapf(err, "funding of %s", symbol))
		}
		return rate, nil
	}
	return decimal.Zero, fmt.Errorf("symbol %s not in universe", symbol)
}
