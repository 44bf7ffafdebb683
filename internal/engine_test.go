package internal

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/hyperlev/internal/clients"
	"github.com/vadiminshakov/hyperlev/internal/domain"
	"github.com/vadiminshakov/hyperlev/internal/services/catalog"
	"github.com/vadiminshakov/hyperlev/internal/services/signer"
	"github.com/vadiminshakov/hyperlev/internal/services/trader"
	"github.com/vadiminshakov/hyperlev/internal/storage/orderjournal"
)

const (
	testKeyHex  = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

type fakeAPI struct {
	mu       sync.Mutex
	meta     *clients.Meta
	metaErr  error
	mids     map[string]string
	state    *clients.ClearinghouseState
	exchange *clients.ExchangeResponse
	posted   int

	fundingErr   error
	fundingCalls int
	stateCalls   int
}

func (f *fakeAPI) setUniverse(assets ...clients.UniverseAsset) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meta = &clients.Meta{Universe: assets}
}

func (f *fakeAPI) calls() (funding, state int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fundingCalls, f.stateCalls
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		meta: &clients.Meta{Universe: []clients.UniverseAsset{
			{Name: "BTC", SzDecimals: 5, MaxLeverage: 50},
			{Name: "ETH", SzDecimals: 4, MaxLeverage: 25},
		}},
		mids: map[string]string{"BTC": "60000", "ETH": "100"},
		state: &clients.ClearinghouseState{
			MarginSummary: clients.MarginSummary{AccountValue: "1000", TotalMarginUsed: "0"},
			Withdrawable:  "800",
		},
		exchange: &clients.ExchangeResponse{
			Status:   "ok",
			Response: json.RawMessage(`{"type":"order","data":{"statuses":[{"filled":{"oid":1,"totalSz":"5","avgPx":"100"}}]}}`),
		},
	}
}

func (f *fakeAPI) Meta(context.Context) (*clients.Meta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meta, f.metaErr
}

func (f *fakeAPI) AllMids(context.Context) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.mids))
	for k, v := range f.mids {
		out[k] = v
	}
	return out, nil
}

func (f *fakeAPI) MetaAndAssetCtxs(context.Context, string) (*clients.Meta, []clients.AssetCtx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fundingCalls++
	if f.fundingErr != nil {
		return nil, nil, f.fundingErr
	}
	ctxs := make([]clients.AssetCtx, len(f.meta.Universe))
	for i := range ctxs {
		ctxs[i].Funding = "0.0000125"
	}
	return f.meta, ctxs, nil
}

func (f *fakeAPI) ClearinghouseState(context.Context, string) (*clients.ClearinghouseState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stateCalls++
	return f.state, nil
}

func (f *fakeAPI) CandleSnapshot(context.Context, string, string, int64, int64) ([]clients.Candle, error) {
	return []clients.Candle{{TimeOpen: 1, TimeClose: 2, Open: "1", High: "1", Low: "1", Close: "1", Volume: "1"}}, nil
}

func (f *fakeAPI) L2Book(_ context.Context, coin string) (*clients.L2Book, error) {
	return &clients.L2Book{Coin: coin, Levels: [][]clients.L2Level{{{Px: "99", Sz: "1", N: 1}}, {{Px: "101", Sz: "1", N: 1}}}}, nil
}

func (f *fakeAPI) PostExchange(context.Context, any) (*clients.ExchangeResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posted++
	return f.exchange, nil
}

type memJournal struct {
	mu      sync.Mutex
	records []orderjournal.Record
}

func (j *memJournal) Append(rec orderjournal.Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, rec)
	return nil
}

func (j *memJournal) all() []orderjournal.Record {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]orderjournal.Record(nil), j.records...)
}

func testSigner(t *testing.T) trader.Signer {
	t.Helper()
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	return signer.NewKeySigner(key, zap.NewNop())
}

func newTestEngine(t *testing.T, api *fakeAPI, cfg EngineConfig, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithRandom(func() float64 { return 0.5 })}, opts...)
	return NewEngine(api, testSigner(t), cfg, zap.NewNop(), opts...)
}

func TestEngine_DefaultSelection(t *testing.T) {
	e := newTestEngine(t, newFakeAPI(), DefaultEngineConfig())
	require.NoError(t, e.ReloadCatalog(context.Background()))

	st := e.State()
	require.NotNil(t, st.Selected)
	assert.Equal(t, "BTC", st.Selected.Symbol, "first listed market")
	assert.Len(t, st.Instruments, 2)

	cfg := DefaultEngineConfig()
	cfg.DefaultSymbol = "ETH"
	e = newTestEngine(t, newFakeAPI(), cfg)
	require.NoError(t, e.ReloadCatalog(context.Background()))
	assert.Equal(t, "ETH", e.State().Selected.Symbol)

	cfg.DefaultSymbol = "DOGE"
	e = newTestEngine(t, newFakeAPI(), cfg)
	require.NoError(t, e.ReloadCatalog(context.Background()))
	assert.Equal(t, "BTC", e.State().Selected.Symbol, "unknown default falls back to the first market")
}

func TestEngine_CatalogFailure(t *testing.T) {
	api := newFakeAPI()
	api.metaErr = domain.NewTransportError("meta", errors.New("connection refused"))
	e := newTestEngine(t, api, DefaultEngineConfig())

	err := e.ReloadCatalog(context.Background())
	assert.ErrorIs(t, err, domain.ErrTransport)

	st := e.State()
	assert.NotEmpty(t, st.CatalogError)
	assert.Nil(t, st.Selected)
	assert.Empty(t, st.Instruments)

	api.mu.Lock()
	api.metaErr = nil
	api.mu.Unlock()
	require.NoError(t, e.ReloadCatalog(context.Background()), "manual retry")
	assert.Empty(t, e.State().CatalogError)
}

func TestEngine_LeverageClampedOnSwitch(t *testing.T) {
	e := newTestEngine(t, newFakeAPI(), DefaultEngineConfig())
	require.NoError(t, e.ReloadCatalog(context.Background()))

	applied := e.SetLeverage(40)
	assert.True(t, decimal.NewFromInt(40).Equal(applied))

	require.NoError(t, e.SelectInstrument("ETH"))
	assert.True(t, decimal.NewFromInt(25).Equal(e.State().Leverage), "clamped to ETH max")

	require.NoError(t, e.SelectInstrument("BTC"))
	assert.True(t, decimal.NewFromInt(25).Equal(e.State().Leverage), "not restored")

	assert.True(t, decimal.NewFromInt(50).Equal(e.SetLeverage(80)))
	assert.True(t, decimal.NewFromInt(1).Equal(e.SetLeverage(0)))

	assert.ErrorIs(t, e.SelectInstrument("DOGE"), domain.ErrValidation)
}

func TestEngine_ReloadClampsLeverageToNewMax(t *testing.T) {
	api := newFakeAPI()
	e := newTestEngine(t, api, DefaultEngineConfig())
	ctx := context.Background()
	require.NoError(t, e.ReloadCatalog(ctx))
	require.NoError(t, e.RefreshPrices(ctx))
	e.SetLeverage(40)

	api.setUniverse(
		clients.UniverseAsset{Name: "BTC", SzDecimals: 5, MaxLeverage: 20},
		clients.UniverseAsset{Name: "ETH", SzDecimals: 4, MaxLeverage: 25},
	)
	require.NoError(t, e.ReloadCatalog(ctx))

	st := e.State()
	require.NotNil(t, st.Selected)
	assert.Equal(t, "BTC", st.Selected.Symbol)
	assert.Equal(t, 20, st.Selected.MaxLeverage)
	assert.True(t, decimal.NewFromInt(20).Equal(st.Leverage), "got %s", st.Leverage)

	e.SetAddress(testAddress)
	require.NoError(t, e.OpenOrderSheet(domain.SideBuy))
	e.UpdateDraft(func(d *domain.OrderDraft) { d.Notional = decimal.NewFromInt(100) })
	_, err := e.SubmitOrder(ctx)
	require.NoError(t, err, "order passes the exchange maximum after reload")
}

func TestEngine_ReloadDropsDelistedSelection(t *testing.T) {
	api := newFakeAPI()
	e := newTestEngine(t, api, DefaultEngineConfig())
	ctx := context.Background()
	require.NoError(t, e.ReloadCatalog(ctx))
	require.NoError(t, e.OpenOrderSheet(domain.SideBuy))
	e.SetLeverage(40)

	api.setUniverse(
		clients.UniverseAsset{Name: "BTC", SzDecimals: 5, MaxLeverage: 50, IsDelisted: true},
		clients.UniverseAsset{Name: "ETH", SzDecimals: 4, MaxLeverage: 25},
	)
	require.NoError(t, e.ReloadCatalog(ctx))

	st := e.State()
	require.Len(t, st.Instruments, 1)
	require.NotNil(t, st.Selected)
	assert.Equal(t, "ETH", st.Selected.Symbol, "falls back to the first listed market")
	assert.Equal(t, "ETH", st.Draft.Symbol)
	assert.False(t, st.SheetOpen)
	assert.True(t, decimal.NewFromInt(25).Equal(st.Leverage))
	assert.Equal(t, "ETH", st.Funding.Symbol)
	assert.Equal(t, "ETH", st.OrderBook.Symbol)

	api.setUniverse()
	require.NoError(t, e.ReloadCatalog(ctx))
	assert.Nil(t, e.State().Selected, "nothing left to select")
}

func TestEngine_PreviewFromDraft(t *testing.T) {
	e := newTestEngine(t, newFakeAPI(), DefaultEngineConfig())
	ctx := context.Background()
	require.NoError(t, e.ReloadCatalog(ctx))
	require.NoError(t, e.SelectInstrument("ETH"))
	require.NoError(t, e.RefreshPrices(ctx))
	e.SetLeverage(10)

	require.NoError(t, e.OpenOrderSheet(domain.SideBuy))
	d := e.UpdateDraft(func(d *domain.OrderDraft) { d.Notional = decimal.NewFromInt(50) })
	assert.True(t, decimal.NewFromInt(5).Equal(d.BaseSize))

	st := e.State()
	assert.True(t, st.SheetOpen)
	assert.Equal(t, "ETH", st.Draft.Symbol)
	assert.True(t, decimal.NewFromInt(100).Equal(st.MidPrice))
	assert.Equal(t, "100.00", st.MidPriceText)
	assert.True(t, decimal.NewFromInt(5).Equal(st.Preview.Size))
	assert.True(t, decimal.NewFromInt(5).Equal(st.Preview.RequiredMargin))
	assert.True(t, decimal.NewFromInt(90).Equal(st.Preview.LiquidationPrice))
	assert.True(t, st.BaselineSynthetic)
	assert.Equal(t, "+0.00%", st.ChangeText)
}

func TestEngine_SubmitOrder(t *testing.T) {
	api := newFakeAPI()
	journal := &memJournal{}
	e := newTestEngine(t, api, DefaultEngineConfig(), WithJournal(journal))
	ctx := context.Background()

	require.NoError(t, e.ReloadCatalog(ctx))
	require.NoError(t, e.SelectInstrument("ETH"))
	require.NoError(t, e.RefreshPrices(ctx))
	e.SetAddress(testAddress)
	e.SetLeverage(10)
	require.NoError(t, e.OpenOrderSheet(domain.SideBuy))
	e.UpdateDraft(func(d *domain.OrderDraft) { d.Notional = decimal.NewFromInt(50) })

	receipt, err := e.SubmitOrder(ctx)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.Equal(t, "5", receipt.Request.Action.Orders[0].Size)

	st := e.State()
	assert.False(t, st.SheetOpen, "sheet closes on success")
	assert.True(t, st.Draft.Notional.IsZero())
	assert.Equal(t, trader.StateConfirmed, st.Order.State)
	assert.Equal(t, receipt.AttemptID, st.Order.AttemptID)

	records := journal.all()
	require.Len(t, records, 1)
	assert.Equal(t, "confirmed", records[0].State)
	assert.Equal(t, testAddress, records[0].Address)
	assert.Equal(t, "ETH", records[0].Symbol)
	assert.True(t, decimal.NewFromInt(10).Equal(records[0].Leverage))
}

func TestEngine_SubmitOrderRejectedKeepsSheetOpen(t *testing.T) {
	api := newFakeAPI()
	api.exchange = &clients.ExchangeResponse{Status: "err", Response: json.RawMessage(`"insufficient margin"`)}
	journal := &memJournal{}
	e := newTestEngine(t, api, DefaultEngineConfig(), WithJournal(journal))
	ctx := context.Background()

	require.NoError(t, e.ReloadCatalog(ctx))
	require.NoError(t, e.SelectInstrument("ETH"))
	require.NoError(t, e.RefreshPrices(ctx))
	e.SetAddress(testAddress)
	require.NoError(t, e.OpenOrderSheet(domain.SideSell))
	e.UpdateDraft(func(d *domain.OrderDraft) { d.Notional = decimal.NewFromInt(50) })

	_, err := e.SubmitOrder(ctx)
	assert.ErrorIs(t, err, domain.ErrExchangeRejected)

	st := e.State()
	assert.True(t, st.SheetOpen)
	assert.True(t, decimal.NewFromInt(50).Equal(st.Draft.Notional), "draft kept for another try")
	assert.Equal(t, trader.StateFailed, st.Order.State)
	assert.Equal(t, domain.OrderErrorExchangeRejected, st.Order.ErrorKind)
	assert.Equal(t, "insufficient margin", st.Order.Message)

	records := journal.all()
	require.Len(t, records, 1)
	assert.Equal(t, "failed", records[0].State)
	assert.Equal(t, "exchange_rejected", records[0].ErrorKind)

	// reopening the sheet clears the previous failure
	require.NoError(t, e.OpenOrderSheet(domain.SideSell))
	assert.Equal(t, trader.StateIdle, e.State().Order.State)
}

func TestEngine_SubmitWithoutWallet(t *testing.T) {
	api := newFakeAPI()
	e := newTestEngine(t, api, DefaultEngineConfig())
	ctx := context.Background()

	require.NoError(t, e.ReloadCatalog(ctx))
	require.NoError(t, e.RefreshPrices(ctx))
	require.NoError(t, e.OpenOrderSheet(domain.SideBuy))
	e.UpdateDraft(func(d *domain.OrderDraft) { d.Notional = decimal.NewFromInt(500) })

	_, err := e.SubmitOrder(ctx)
	assert.ErrorIs(t, err, domain.ErrValidation)
	api.mu.Lock()
	assert.Zero(t, api.posted)
	api.mu.Unlock()
	assert.Equal(t, "wallet not connected", e.State().Order.Message)
}

func TestEngine_OpenSheetWithoutMarket(t *testing.T) {
	e := newTestEngine(t, newFakeAPI(), DefaultEngineConfig())
	assert.ErrorIs(t, e.OpenOrderSheet(domain.SideBuy), domain.ErrValidation)

	_, err := e.SubmitOrder(context.Background())
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestEngine_AccountAndDisconnect(t *testing.T) {
	e := newTestEngine(t, newFakeAPI(), DefaultEngineConfig())
	ctx := context.Background()
	require.NoError(t, e.ReloadCatalog(ctx))

	e.SetAddress(testAddress)
	snap, err := e.RefreshAccount(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1000).Equal(snap.Equity))
	assert.True(t, e.State().Connected)

	d := e.SetAmountPercent(decimal.RequireFromString("0.25"))
	assert.True(t, decimal.NewFromInt(200).Equal(d.Notional), "25%% of withdrawable, got %s", d.Notional)

	e.SetAddress("")
	st := e.State()
	assert.False(t, st.Connected)
	assert.True(t, st.Account.IsZero(), "cleared before SetAddress returns")
}

func TestEngine_Markets(t *testing.T) {
	e := newTestEngine(t, newFakeAPI(), DefaultEngineConfig())
	ctx := context.Background()
	require.NoError(t, e.ReloadCatalog(ctx))
	require.NoError(t, e.RefreshPrices(ctx))

	rows := e.Markets("", catalog.SortDefault)
	require.Len(t, rows, 2)
	assert.Equal(t, "BTC", rows[0].Instrument.Symbol)
	assert.Equal(t, "60,000.00", rows[0].PriceText)
	assert.True(t, rows[0].HasChange)

	rows = e.Markets("et", catalog.SortDefault)
	require.Len(t, rows, 1)
	assert.Equal(t, "ETH", rows[0].Instrument.Symbol)
}

func TestEngine_Candles(t *testing.T) {
	e := newTestEngine(t, newFakeAPI(), DefaultEngineConfig())
	ctx := context.Background()
	require.NoError(t, e.ReloadCatalog(ctx))

	candles, err := e.Candles(ctx, "", "15m")
	require.NoError(t, err, "selected market by default")
	assert.Len(t, candles, 1)

	_, err = e.Candles(ctx, "DOGE", "15m")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestEngine_Subscribe(t *testing.T) {
	e := newTestEngine(t, newFakeAPI(), DefaultEngineConfig())
	ch := e.Subscribe()
	defer e.Unsubscribe(ch)

	require.NoError(t, e.ReloadCatalog(context.Background()))

	select {
	case st := <-ch:
		require.NotNil(t, st.Selected)
		assert.Equal(t, "BTC", st.Selected.Symbol)
	case <-time.After(time.Second):
		t.Fatal("no state published")
	}
}

func TestEngine_Run(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.PriceInterval = 10 * time.Millisecond
	cfg.AccountInterval = 10 * time.Millisecond
	cfg.FundingInterval = 10 * time.Millisecond
	cfg.BookInterval = 10 * time.Millisecond
	cfg.ClockInterval = 10 * time.Millisecond

	e := newTestEngine(t, newFakeAPI(), cfg)
	e.SetAddress(testAddress)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	assert.Eventually(t, func() bool {
		st := e.State()
		return st.MidPrice.IsPositive() &&
			!st.Account.Equity.IsZero() &&
			!st.Funding.Rate.IsZero() &&
			len(st.OrderBook.Bids) > 0 &&
			!st.Funding.NextFundingAt.IsZero()
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, e.SelectInstrument("ETH"))
	assert.Eventually(t, func() bool {
		st := e.State()
		return st.Funding.Symbol == "ETH" && !st.Funding.Rate.IsZero() && st.OrderBook.Symbol == "ETH"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}

	assert.Error(t, e.Run(context.Background()), "an engine runs once")
}

func fastConfig() EngineConfig {
	cfg := DefaultEngineConfig()
	cfg.PriceInterval = 10 * time.Millisecond
	cfg.AccountInterval = 10 * time.Millisecond
	cfg.FundingInterval = 10 * time.Millisecond
	cfg.BookInterval = 10 * time.Millisecond
	cfg.ClockInterval = 10 * time.Millisecond
	return cfg
}

func TestEngine_FundingOutageLeavesOtherLoopsRunning(t *testing.T) {
	api := newFakeAPI()
	api.fundingErr = domain.NewTransportError("metaAndAssetCtxs", errors.New("HTTP 502"))
	e := newTestEngine(t, api, fastConfig())
	e.SetAddress(testAddress)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	assert.Eventually(t, func() bool {
		funding, state := api.calls()
		st := e.State()
		return funding >= 3 && state >= 3 &&
			st.MidPrice.IsPositive() &&
			len(st.OrderBook.Bids) > 0 &&
			!st.Account.Equity.IsZero()
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, e.State().Funding.Rate.IsZero())

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}
}

func TestEngine_SubmitAfterRunStartsNoRefresh(t *testing.T) {
	api := newFakeAPI()
	e := newTestEngine(t, api, fastConfig())
	e.SetAddress(testAddress)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	assert.Eventually(t, func() bool { return e.State().MidPrice.IsPositive() }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}

	_, before := api.calls()
	require.NoError(t, e.OpenOrderSheet(domain.SideBuy))
	e.UpdateDraft(func(d *domain.OrderDraft) { d.Notional = decimal.NewFromInt(100) })
	_, err := e.SubmitOrder(context.Background())
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	_, after := api.calls()
	assert.Equal(t, before, after, "no account refresh once the engine stopped")
}
