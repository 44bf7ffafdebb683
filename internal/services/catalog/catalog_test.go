package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/hyperlev/internal/clients"
	"github.com/vadiminshakov/hyperlev/internal/domain"
)

type fakeMeta struct {
	meta *clients.Meta
	err  error
}

func (f *fakeMeta) Meta(context.Context) (*clients.Meta, error) { return f.meta, f.err }

func universe() *clients.Meta {
	return &clients.Meta{Universe: []clients.UniverseAsset{
		{Name: "BTC", SzDecimals: 5, MaxLeverage: 50},
		{Name: "ETH", SzDecimals: 4, MaxLeverage: 25},
		{Name: "LUNA", SzDecimals: 1, MaxLeverage: 3, IsDelisted: true},
		{Name: "SOL", SzDecimals: 2, MaxLeverage: 20},
	}}
}

func TestCatalog_Load(t *testing.T) {
	c := New(&fakeMeta{meta: universe()}, zap.NewNop())

	list, err := c.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3, "delisted assets are skipped")
	assert.Equal(t, []string{"BTC", "ETH", "SOL"}, symbols(list))

	idx, ok := c.AssetIndex("SOL")
	require.True(t, ok)
	assert.Equal(t, 3, idx, "asset index is the universe position")

	first, ok := c.First()
	require.True(t, ok)
	assert.Equal(t, "BTC", first.Symbol)

	assert.True(t, c.Has("ETH"))
	assert.False(t, c.Has("LUNA"))
	_, ok = c.AssetIndex("LUNA")
	assert.False(t, ok)
}

func TestCatalog_LoadFailureKeepsPrevious(t *testing.T) {
	api := &fakeMeta{meta: universe()}
	c := New(api, zap.NewNop())
	_, err := c.Load(context.Background())
	require.NoError(t, err)

	api.err = domain.NewTransportError("meta", errors.New("connection refused"))
	_, err = c.Load(context.Background())

	var catErr *domain.CatalogError
	require.ErrorAs(t, err, &catErr)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Equal(t, 3, c.Len())
}

func TestCatalog_Empty(t *testing.T) {
	c := New(&fakeMeta{meta: &clients.Meta{Universe: []clients.UniverseAsset{}}}, zap.NewNop())
	list, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
	_, ok := c.First()
	assert.False(t, ok)
}

func TestCatalog_Search(t *testing.T) {
	c := New(&fakeMeta{meta: universe()}, zap.NewNop())
	_, err := c.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"ETH"}, symbols(c.Search("et")))
	assert.Equal(t, []string{"BTC"}, symbols(c.Search(" btc ")))
	assert.Len(t, c.Search(""), 3)
	assert.Empty(t, c.Search("doge"))
}

func TestSort(t *testing.T) {
	list := []domain.Instrument{{Symbol: "A"}, {Symbol: "B"}, {Symbol: "C"}, {Symbol: "D"}}
	change := map[string]float64{"A": 1.5, "B": -3, "C": 4}
	fn := func(s string) float64 { return change[s] }

	assert.Equal(t, []string{"A", "B", "C", "D"}, symbols(Sort(list, SortDefault, fn)))
	assert.Equal(t, []string{"C", "A", "D", "B"}, symbols(Sort(list, SortGainers, fn)))
	assert.Equal(t, []string{"B", "D", "A", "C"}, symbols(Sort(list, SortLosers, fn)))
	assert.Equal(t, "A", list[0].Symbol, "input is not reordered")
}

func symbols(list []domain.Instrument) []string {
	out := make([]string, 0, len(list))
	for _, inst := range list {
		out = append(out, inst.Symbol)
	}
	return out
}
