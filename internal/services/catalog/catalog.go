// Package catalog loads the tradable perpetual instruments.
package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/vadiminshakov/hyperlev/internal/clients"
	"github.com/vadiminshakov/hyperlev/internal/domain"
)

type metaFetcher interface {
	Meta(ctx context.Context) (*clients.Meta, error)
}

// Catalog set of listed instruments, replaced wholesale on every successful load.
type Catalog struct {
	api    metaFetcher
	logger *zap.Logger

	mu          sync.RWMutex
	instruments []domain.Instrument
	bySymbol    map[string]domain.Instrument
}

func New(api metaFetcher, logger *zap.Logger) *Catalog {
	return &Catalog{
		api:      api,
		logger:   logger,
		bySymbol: make(map[string]domain.Instrument),
	}
}

// Load fetches the universe and replaces the catalog with its listed instruments.
// On failure the previous set is kept and a *domain.CatalogError is returned.
func (c *Catalog) Load(ctx context.Context) ([]domain.Instrument, error) {
	meta, err := c.api.Meta(ctx)
	if err != nil {
		c.logger.Error("failed to load markets, keeping previous catalog", zap.Error(err), zap.Int("kept", c.Len()))
		return nil, &domain.CatalogError{Err: err}
	}

	instruments := make([]domain.Instrument, 0, len(meta.Universe))
	bySymbol := make(map[string]domain.Instrument, len(meta.Universe))
	for i, asset := range meta.Universe {
		if asset.IsDelisted || asset.Name == "" {
			continue
		}
		inst := domain.Instrument{
			Symbol:       asset.Name,
			SizeDecimals: asset.SzDecimals,
			MaxLeverage:  asset.MaxLeverage,
			AssetIndex:   i,
		}
		instruments = append(instruments, inst)
		bySymbol[inst.Symbol] = inst
	}

	c.mu.Lock()
	c.instruments = instruments
	c.bySymbol = bySymbol
	c.mu.Unlock()

	c.logger.Info("markets loaded", zap.Int("count", len(instruments)), zap.Int("universe", len(meta.Universe)))
	return append([]domain.Instrument(nil), instruments...), nil
}

// Instruments returns a copy of the listed instruments in exchange order.
func (c *Catalog) Instruments() []domain.Instrument {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Instrument(nil), c.instruments...)
}

// Len number of listed instruments.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.instruments)
}

// First returns the first listed instrument.
func (c *Catalog) First() (domain.Instrument, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.instruments) == 0 {
		return domain.Instrument{}, false
	}
	return c.instruments[0], true
}

// Lookup finds an instrument by symbol.
func (c *Catalog) Lookup(symbol string) (domain.Instrument, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	inst, ok := c.bySymbol[symbol]
	return inst, ok
}

// Has reports whether symbol is listed.
func (c *Catalog) Has(symbol string) bool {
	_, ok := c.Lookup(symbol)
	return ok
}

// AssetIndex resolves the exchange asset index of symbol.
func (c *Catalog) AssetIndex(symbol string) (int, bool) {
	inst, ok := c.Lookup(symbol)
	if !ok {
		return -1, false
	}
	return inst.AssetIndex, true
}

// Search returns instruments whose symbol contains query, case-insensitive.
func (c *Catalog) Search(query string) []domain.Instrument {
	q := strings.ToLower(strings.TrimSpace(query))
	all := c.Instruments()
	if q == "" {
		return all
	}
	out := make([]domain.Instrument, 0, len(all))
	for _, inst := range all {
		if strings.Contains(strings.ToLower(inst.Symbol), q) {
			out = append(out, inst)
		}
	}
	return out
}

// SortMode ordering of the market list.
type SortMode string

const (
	SortDefault SortMode = "default"
	SortGainers SortMode = "gainers"
	SortLosers  SortMode = "losers"
)

// Sort orders instruments by change (percent, keyed by symbol). SortDefault keeps
// exchange order. Instruments without a change sort as 0.
func Sort(instruments []domain.Instrument, mode SortMode, change func(symbol string) float64) []domain.Instrument {
	out := append([]domain.Instrument(nil), instruments...)
	switch mode {
	case SortGainers:
		sort.SliceStable(out, func(i, j int) bool { return change(out[i].Symbol) > change(out[j].Symbol) })
	case SortLosers:
		sort.SliceStable(out, func(i, j int) bool { return change(out[i].Symbol) < change(out[j].Symbol) })
	}
	return out
}
