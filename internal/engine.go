// Package internal wires the market, account and order services into a single
// trading session and publishes its state.
package internal

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/hyperlev/internal/clients"
	"github.com/vadiminshakov/hyperlev/internal/domain"
	"github.com/vadiminshakov/hyperlev/internal/events"
	"github.com/vadiminshakov/hyperlev/internal/metrics"
	"github.com/vadiminshakov/hyperlev/internal/services/account"
	"github.com/vadiminshakov/hyperlev/internal/services/catalog"
	"github.com/vadiminshakov/hyperlev/internal/services/funding"
	"github.com/vadiminshakov/hyperlev/internal/services/market"
	"github.com/vadiminshakov/hyperlev/internal/services/overlay"
	"github.com/vadiminshakov/hyperlev/internal/services/pricer"
	"github.com/vadiminshakov/hyperlev/internal/services/risk"
	"github.com/vadiminshakov/hyperlev/internal/services/trader"
	"github.com/vadiminshakov/hyperlev/internal/storage/orderjournal"
)

// API exchange endpoints used by the engine.
type API interface {
	Meta(ctx context.Context) (*clients.Meta, error)
	AllMids(ctx context.Context) (map[string]string, error)
	MetaAndAssetCtxs(ctx context.Context, user string) (*clients.Meta, []clients.AssetCtx, error)
	ClearinghouseState(ctx context.Context, user string) (*clients.ClearinghouseState, error)
	CandleSnapshot(ctx context.Context, coin, interval string, startMs, endMs int64) ([]clients.Candle, error)
	L2Book(ctx context.Context, coin string) (*clients.L2Book, error)
	PostExchange(ctx context.Context, payload any) (*clients.ExchangeResponse, error)
}

// OrderJournal records terminal order attempts.
type OrderJournal interface {
	Append(rec orderjournal.Record) error
}

// EngineConfig session parameters.
type EngineConfig struct {
	Network         string
	Source          string
	DefaultSymbol   string
	DefaultLeverage int
	FeeRate         decimal.Decimal
	Slippage        decimal.Decimal
	SigningTimeout  time.Duration

	PriceInterval   time.Duration
	AccountInterval time.Duration
	FundingInterval time.Duration
	ClockInterval   time.Duration
	BookInterval    time.Duration
	// CatalogRefreshInterval zero loads the catalog once.
	CatalogRefreshInterval time.Duration
}

// DefaultEngineConfig mainnet session with the standard polling cadence.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Network:         "mainnet",
		Source:          trader.SourceMainnet,
		DefaultLeverage: 10,
		FeeRate:         risk.DefaultFeeRate,
		Slippage:        trader.DefaultSlippage,
		SigningTimeout:  trader.DefaultSigningTimeout,
		PriceInterval:   2 * time.Second,
		AccountInterval: 5 * time.Second,
		FundingInterval: 10 * time.Second,
		ClockInterval:   time.Second,
		BookInterval:    time.Second,
	}
}

// Option configures the Engine.
type Option func(*Engine)

// WithJournal records every terminal order attempt in j.
func WithJournal(j OrderJournal) Option {
	return func(e *Engine) { e.journal = j }
}

// WithLeverageSyncer applies leverage and margin mode on the exchange before each order.
func WithLeverageSyncer(s trader.LeverageSyncer) Option {
	return func(e *Engine) { e.builder.SetLeverageSyncer(s) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRandom overrides the random source of the synthetic baseline.
func WithRandom(random func() float64) Option {
	return func(e *Engine) { e.baseline = domain.NewBaseline(random) }
}

// Engine owns the trading session: selection, leverage, wallet address and
// order draft. Each polling loop runs in its own goroutine and is restarted
// whenever its precondition changes.
type Engine struct {
	cfg    EngineConfig
	api    API
	logger *zap.Logger
	now    func() time.Time

	catalog  *catalog.Catalog
	baseline *domain.Baseline
	prices   *pricer.Feed
	account  *account.Tracker
	funding  *funding.Tracker
	book     *market.BookTracker
	candles  *market.CandleProvider
	builder  *trader.Builder
	journal  OrderJournal
	updates  *events.Broadcaster[TradingViewState]

	// runMu guards stopped; wg.Add happens under it so nothing joins the
	// group once Run is waiting for it.
	runMu   sync.Mutex
	stopped bool
	wg      sync.WaitGroup

	mu            sync.RWMutex
	runCtx        context.Context
	pricesStarted bool
	symbolCancel  context.CancelFunc
	accountCancel context.CancelFunc
	catalogErr    string
	selected      *domain.Instrument
	leverage      decimal.Decimal
	draft         domain.OrderDraft
	sheetOpen     bool
	order         OrderStatus
	pending       trader.Request
}

func NewEngine(api API, signer trader.Signer, cfg EngineConfig, logger *zap.Logger, opts ...Option) *Engine {
	if cfg.FeeRate.IsZero() {
		cfg.FeeRate = risk.DefaultFeeRate
	}
	if cfg.DefaultLeverage < 1 {
		cfg.DefaultLeverage = 1
	}

	e := &Engine{
		cfg:      cfg,
		api:      api,
		logger:   logger,
		now:      time.Now,
		baseline: domain.NewBaseline(rand.Float64),
		leverage: decimal.NewFromInt(int64(cfg.DefaultLeverage)),
		draft:    domain.NewOrderDraft("", domain.SideBuy),
		order:    OrderStatus{State: trader.StateIdle},
		updates:  events.NewBroadcaster[TradingViewState](16),
	}
	e.catalog = catalog.New(api, logger.Named("catalog"))
	e.account = account.NewTracker(api, logger.Named("account"))
	e.funding = funding.NewTracker(api, logger.Named("funding"))
	e.book = market.NewBookTracker(api, logger.Named("orderbook"))
	e.candles = market.NewCandleProvider(api)
	e.builder = trader.NewBuilder(api, e.catalog, signer, trader.Config{
		Source:         cfg.Source,
		Slippage:       cfg.Slippage,
		SigningTimeout: cfg.SigningTimeout,
	}, logger.Named("orders"))

	for _, opt := range opts {
		opt(e)
	}

	e.prices = pricer.NewFeed(api, e.catalog, e.baseline, logger.Named("prices"))
	e.builder.SetObserver(e.onTransition)
	return e
}

// Run starts the polling loops and blocks until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.runCtx != nil {
		e.mu.Unlock()
		return errors.New("engine is already running")
	}
	e.runCtx = ctx
	if e.selected != nil {
		e.startSymbolLoopsLocked(e.selected.Symbol)
	}
	if addr := e.account.Address(); addr != "" {
		e.startAccountLoopLocked(addr)
	}
	e.mu.Unlock()

	e.logger.Info("starting engine", zap.String("network", e.cfg.Network))

	e.goLoop(ctx, "clock", e.cfg.ClockInterval, true, e.tickClock)

	if err := e.ReloadCatalog(ctx); err != nil {
		e.logger.Error("initial market load failed", zap.Error(err))
	}
	if e.cfg.CatalogRefreshInterval > 0 {
		e.goLoop(ctx, "catalog", e.cfg.CatalogRefreshInterval, false, e.ReloadCatalog)
	}

	<-ctx.Done()
	e.logger.Info("context done, stopping engine")

	e.mu.Lock()
	e.stopSymbolLoopsLocked()
	e.stopAccountLoopLocked()
	e.mu.Unlock()

	e.runMu.Lock()
	e.stopped = true
	e.runMu.Unlock()

	e.wg.Wait()
	return ctx.Err()
}

// ReloadCatalog loads the instrument catalog. The first non-empty load starts
// the price loop and selects a default instrument when none is selected. The
// selected instrument is refreshed from the new catalog and leverage clamped to
// its current maximum; a selection that is no longer listed falls back to the
// default instrument.
func (e *Engine) ReloadCatalog(ctx context.Context) error {
	instruments, err := e.catalog.Load(ctx)

	e.mu.Lock()
	if err != nil {
		e.catalogErr = err.Error()
		e.mu.Unlock()
		e.publish()
		return err
	}
	e.catalogErr = ""

	if e.selected != nil {
		if inst, ok := e.catalog.Lookup(e.selected.Symbol); ok {
			e.selected = &inst
			e.leverage = risk.ClampLeverage(e.leverage, inst.MaxLeverage)
			e.resyncDraftLocked()
		} else {
			e.deselectLocked()
		}
	}
	if e.selected == nil {
		if inst, ok := e.defaultInstrument(); ok {
			e.selectLocked(inst)
		}
	}

	var startPrices bool
	if len(instruments) > 0 && !e.pricesStarted && e.runCtx != nil {
		e.pricesStarted = true
		startPrices = true
	}
	runCtx := e.runCtx
	e.mu.Unlock()

	if startPrices {
		e.goLoop(runCtx, "prices", e.cfg.PriceInterval, true, e.RefreshPrices)
	}
	e.publish()
	return nil
}

// SelectInstrument switches the selected market. Leverage is clamped to the
// new maximum once, at the switch.
func (e *Engine) SelectInstrument(symbol string) error {
	inst, ok := e.catalog.Lookup(symbol)
	if !ok {
		return errors.Wrapf(domain.ErrValidation, "market %s not found", symbol)
	}

	e.mu.Lock()
	changed := e.selectLocked(inst)
	e.mu.Unlock()

	if changed {
		e.publish()
	}
	return nil
}

// SetLeverage sets leverage bounded by [1, max leverage of the selected market]
// and returns the applied value.
func (e *Engine) SetLeverage(leverage int) decimal.Decimal {
	e.mu.Lock()
	maxLev := 0
	if e.selected != nil {
		maxLev = e.selected.MaxLeverage
	}
	e.leverage = risk.ClampLeverage(decimal.NewFromInt(int64(leverage)), maxLev)
	e.resyncDraftLocked()
	applied := e.leverage
	e.mu.Unlock()

	e.publish()
	return applied
}

// SetAddress connects (or with an empty addr disconnects) a wallet. Account
// data of the previous address is gone when this returns.
func (e *Engine) SetAddress(addr string) {
	addr = strings.TrimSpace(addr)

	e.mu.Lock()
	changed := e.account.SetAddress(addr)
	if changed {
		e.startAccountLoopLocked(addr)
	}
	e.mu.Unlock()

	if changed {
		e.publish()
	}
}

// OpenOrderSheet starts editing an order on side for the selected market.
func (e *Engine) OpenOrderSheet(side domain.Side) error {
	if !side.IsValid() {
		return errors.Wrapf(domain.ErrValidation, "invalid side %q", side)
	}

	e.mu.Lock()
	if e.selected == nil {
		e.mu.Unlock()
		return errors.Wrap(domain.ErrValidation, "no market selected")
	}
	e.draft.Side = side
	e.draft.Symbol = e.selected.Symbol
	e.sheetOpen = true
	if !e.order.InFlight() {
		e.order = OrderStatus{State: trader.StateIdle}
	}
	e.resyncDraftLocked()
	e.mu.Unlock()

	e.publish()
	return nil
}

// CloseOrderSheet hides the order sheet; the draft is kept.
func (e *Engine) CloseOrderSheet() {
	e.mu.Lock()
	e.sheetOpen = false
	e.mu.Unlock()
	e.publish()
}

// UpdateDraft applies mutate to the draft and re-derives its mirror amount.
func (e *Engine) UpdateDraft(mutate func(d *domain.OrderDraft)) domain.OrderDraft {
	e.mu.Lock()
	d := e.draft
	mutate(&d)
	if e.selected != nil {
		d.Symbol = e.selected.Symbol
	}
	e.draft = d
	e.resyncDraftLocked()
	out := e.draft
	e.mu.Unlock()

	e.publish()
	return out
}

// SetAmountPercent sizes the draft as pct (0..1) of the available balance.
func (e *Engine) SetAmountPercent(pct decimal.Decimal) domain.OrderDraft {
	snapshot := e.account.Snapshot()
	balance := snapshot.Withdrawable
	if !balance.IsPositive() {
		balance = snapshot.Equity
	}
	amount := risk.AmountFromPercent(balance, pct)

	return e.UpdateDraft(func(d *domain.OrderDraft) {
		d.Unit = domain.SizingUnitQuote
		d.Notional = amount
	})
}

// SubmitOrder signs and submits the current draft. The sheet closes on
// success and stays open with the error otherwise.
func (e *Engine) SubmitOrder(ctx context.Context) (*trader.Receipt, error) {
	e.mu.Lock()
	if e.order.InFlight() {
		e.mu.Unlock()
		return nil, domain.NewValidationError("an order is already being submitted")
	}
	req := trader.Request{
		Draft:    e.draft,
		Address:  e.account.Address(),
		MidPrice: e.midLocked(),
		Leverage: e.leverage,
	}
	if e.selected == nil {
		e.mu.Unlock()
		return nil, domain.NewValidationError("no market selected")
	}
	e.pending = req
	e.order = OrderStatus{State: trader.StateValidating, UpdatedAt: e.now()}
	e.mu.Unlock()

	receipt, err := e.builder.Submit(ctx, req)

	if err == nil {
		e.mu.Lock()
		e.sheetOpen = false
		e.draft.Notional = decimal.Zero
		e.draft.BaseSize = decimal.Zero
		e.draft.TakeProfit = decimal.Zero
		e.draft.StopLoss = decimal.Zero
		runCtx := e.runCtx
		e.mu.Unlock()

		if runCtx != nil && req.Address != "" {
			e.spawn(runCtx, func() {
				if _, err := e.RefreshAccount(runCtx); err != nil {
					e.logger.Debug("post-trade account refresh failed", zap.Error(err))
				}
			})
		}
		e.publish()
	}

	return receipt, err
}

// Candles loads chart candles of symbol (the selected market when empty).
func (e *Engine) Candles(ctx context.Context, symbol, timeframe string) ([]domain.MarketCandle, error) {
	if symbol == "" {
		e.mu.RLock()
		if e.selected != nil {
			symbol = e.selected.Symbol
		}
		e.mu.RUnlock()
	}
	if !e.catalog.Has(symbol) {
		return nil, errors.Wrapf(domain.ErrValidation, "market %q not found", symbol)
	}
	return e.candles.Candles(ctx, symbol, timeframe)
}

// Markets market list filtered by query and ordered by mode.
func (e *Engine) Markets(query string, mode catalog.SortMode) []MarketRow {
	changes := e.prices.Changes()
	prices := e.prices.Snapshot()

	list := catalog.Sort(e.catalog.Search(query), mode, func(symbol string) float64 {
		f, _ := changes[symbol].Float64()
		return f
	})

	rows := make([]MarketRow, 0, len(list))
	for _, inst := range list {
		row := MarketRow{Instrument: inst, Price: prices[inst.Symbol]}
		row.PriceText = risk.FormatPrice(row.Price)
		if ch, ok := changes[inst.Symbol]; ok {
			row.Change = ch
			row.ChangeText = risk.FormatChange(ch)
			row.HasChange = true
		}
		rows = append(rows, row)
	}
	return rows
}

// State returns a copy of the whole session state.
func (e *Engine) State() TradingViewState {
	e.mu.RLock()
	defer e.mu.RUnlock()

	now := e.now()
	st := TradingViewState{
		Network:           e.cfg.Network,
		Instruments:       e.catalog.Instruments(),
		CatalogError:      e.catalogErr,
		Prices:            e.prices.Snapshot(),
		PricesUpdatedAt:   e.prices.UpdatedAt(),
		BaselineSynthetic: true,
		Leverage:          e.leverage,
		LeverageBand:      risk.LeverageBand(e.leverage),
		Address:           e.account.Address(),
		Account:           e.account.Snapshot(),
		Funding:           e.funding.State(),
		OrderBook:         e.book.Book(),
		SheetOpen:         e.sheetOpen,
		Draft:             e.draft,
		Order:             e.order,
		UpdatedAt:         now,
	}
	st.Connected = st.Address != ""
	st.FundingRateText = risk.FormatFundingRate(st.Funding.Rate)
	st.FundingCountdown = st.Funding.Countdown(now)

	if e.selected != nil {
		sel := *e.selected
		st.Selected = &sel
		st.MidPrice = e.midLocked()
		if ch, ok := e.prices.Change(sel.Symbol); ok {
			st.Change = ch
			st.ChangeText = risk.FormatChange(ch)
		}
		st.Lines = overlay.Compute(st.Account, sel.Symbol)
	}
	st.MidPriceText = risk.FormatPrice(st.MidPrice)
	st.Preview = risk.Quote(e.draft, st.MidPrice, e.leverage, e.cfg.FeeRate)

	return st
}

// Subscribe returns a channel receiving the state after every change.
func (e *Engine) Subscribe() chan TradingViewState {
	return e.updates.Subscribe()
}

// Unsubscribe stops and closes a channel returned by Subscribe.
func (e *Engine) Unsubscribe(ch chan TradingViewState) {
	e.updates.Unsubscribe(ch)
}

func (e *Engine) publish() {
	if e.updates.Len() == 0 {
		return
	}
	e.updates.Publish(e.State())
}

func (e *Engine) defaultInstrument() (domain.Instrument, bool) {
	if e.cfg.DefaultSymbol != "" {
		if inst, ok := e.catalog.Lookup(e.cfg.DefaultSymbol); ok {
			return inst, true
		}
	}
	return e.catalog.First()
}

func (e *Engine) selectLocked(inst domain.Instrument) bool {
	if e.selected != nil && e.selected.Symbol == inst.Symbol {
		return false
	}
	e.selected = &inst
	e.leverage = risk.ClampLeverage(e.leverage, inst.MaxLeverage)

	e.draft.Symbol = inst.Symbol
	e.draft.LimitPrice = decimal.Zero
	e.draft.TakeProfit = decimal.Zero
	e.draft.StopLoss = decimal.Zero
	e.resyncDraftLocked()

	e.startSymbolLoopsLocked(inst.Symbol)
	e.logger.Info("market selected", zap.String("symbol", inst.Symbol), zap.String("leverage", e.leverage.String()))
	return true
}

// deselectLocked drops a selection that left the catalog.
func (e *Engine) deselectLocked() {
	e.logger.Warn("selected market is no longer listed", zap.String("symbol", e.selected.Symbol))
	e.selected = nil
	e.stopSymbolLoopsLocked()
	e.funding.SetSymbol("")
	e.book.SetSymbol("")
	e.sheetOpen = false
	e.draft.Symbol = ""
	e.draft.LimitPrice = decimal.Zero
	e.draft.TakeProfit = decimal.Zero
	e.draft.StopLoss = decimal.Zero
}

func (e *Engine) midLocked() decimal.Decimal {
	if e.selected == nil {
		return decimal.Zero
	}
	mid, _ := e.prices.Price(e.selected.Symbol)
	return mid
}

func (e *Engine) resyncDraftLocked() {
	e.draft = risk.SyncDraft(e.draft, e.midLocked(), e.leverage)
}

func (e *Engine) startSymbolLoopsLocked(symbol string) {
	e.stopSymbolLoopsLocked()
	e.funding.SetSymbol(symbol)
	e.book.SetSymbol(symbol)
	if e.runCtx == nil {
		return
	}

	ctx, cancel := context.WithCancel(e.runCtx)
	e.symbolCancel = cancel

	e.goLoop(ctx, "funding", e.cfg.FundingInterval, true, func(ctx context.Context) error {
		if _, err := e.funding.PollOnce(ctx, symbol); err != nil {
			return err
		}
		e.publish()
		return nil
	})
	e.goLoop(ctx, "orderbook", e.cfg.BookInterval, true, func(ctx context.Context) error {
		if _, err := e.book.PollOnce(ctx, symbol); err != nil {
			return err
		}
		e.publish()
		return nil
	})
}

func (e *Engine) stopSymbolLoopsLocked() {
	if e.symbolCancel != nil {
		e.symbolCancel()
		e.symbolCancel = nil
	}
}

func (e *Engine) startAccountLoopLocked(addr string) {
	e.stopAccountLoopLocked()
	if addr == "" || e.runCtx == nil {
		return
	}

	ctx, cancel := context.WithCancel(e.runCtx)
	e.accountCancel = cancel

	e.goLoop(ctx, "account", e.cfg.AccountInterval, true, func(ctx context.Context) error {
		if _, err := e.account.PollOnce(ctx, addr); err != nil {
			return err
		}
		e.publish()
		return nil
	})
}

func (e *Engine) stopAccountLoopLocked() {
	if e.accountCancel != nil {
		e.accountCancel()
		e.accountCancel = nil
	}
}

// RefreshAccount polls the active wallet once.
func (e *Engine) RefreshAccount(ctx context.Context) (domain.AccountSnapshot, error) {
	snapshot, err := e.account.PollOnce(ctx, e.account.Address())
	if err != nil {
		return domain.AccountSnapshot{}, err
	}
	e.publish()
	return snapshot, nil
}

// RefreshPrices polls mid prices once and re-derives the draft.
func (e *Engine) RefreshPrices(ctx context.Context) error {
	if _, err := e.prices.PollOnce(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	e.resyncDraftLocked()
	e.mu.Unlock()

	e.publish()
	return nil
}

func (e *Engine) tickClock(context.Context) error {
	e.funding.Tick(e.now())
	e.publish()
	return nil
}

// goLoop runs fn every interval until ctx is done. Ticks of one loop never overlap.
func (e *Engine) goLoop(ctx context.Context, name string, interval time.Duration, immediate bool, fn func(context.Context) error) {
	if interval <= 0 {
		e.logger.Debug("loop disabled", zap.String("loop", name))
		return
	}

	e.spawn(ctx, func() {
		metrics.ActiveLoops.Inc()
		defer metrics.ActiveLoops.Dec()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		if immediate {
			e.runTick(ctx, name, fn)
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.runTick(ctx, name, fn)
			}
		}
	})
}

// spawn runs fn in the run group. It reports false and does nothing once ctx
// is done or Run has started waiting for the group.
func (e *Engine) spawn(ctx context.Context, fn func()) bool {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.stopped || ctx.Err() != nil {
		return false
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn()
	}()
	return true
}

func (e *Engine) runTick(ctx context.Context, name string, fn func(context.Context) error) {
	if ctx.Err() != nil {
		return
	}
	err := fn(ctx)
	switch {
	case err == nil:
		metrics.PollTotal.WithLabelValues(name, "ok").Inc()
	case errors.Is(err, domain.ErrStaleResponse) || ctx.Err() != nil:
		metrics.PollTotal.WithLabelValues(name, "stale").Inc()
		e.logger.Debug("stale tick discarded", zap.String("loop", name), zap.Error(err))
	default:
		metrics.PollTotal.WithLabelValues(name, "error").Inc()
		e.logger.Warn("poll failed", zap.String("loop", name), zap.Error(err))
	}
}

func (e *Engine) onTransition(tr trader.Transition) {
	status := OrderStatus{AttemptID: tr.AttemptID, State: tr.State, UpdatedAt: tr.At}
	if tr.Err != nil {
		status.ErrorKind = tr.Err.Kind
		status.Message = tr.Err.Message
	}

	e.mu.Lock()
	e.order = status
	req := e.pending
	e.mu.Unlock()

	if tr.State.IsTerminal() {
		outcome := string(tr.State)
		if tr.Err != nil {
			outcome = string(tr.Err.Kind)
		}
		metrics.OrderAttempts.WithLabelValues(outcome).Inc()
		e.record(tr, req, status)
	}

	e.publish()
}

func (e *Engine) record(tr trader.Transition, req trader.Request, status OrderStatus) {
	if e.journal == nil {
		return
	}
	rec := orderjournal.Record{
		AttemptID: tr.AttemptID,
		Address:   req.Address,
		Symbol:    tr.Draft.Symbol,
		Side:      string(tr.Draft.Side),
		Kind:      string(tr.Draft.Kind),
		Size:      tr.Size,
		Price:     tr.Price,
		Leverage:  req.Leverage,
		Nonce:     tr.Nonce,
		State:     string(tr.State),
		ErrorKind: string(status.ErrorKind),
		Message:   status.Message,
		At:        tr.At,
	}
	if err := e.journal.Append(rec); err != nil {
		e.logger.Error("failed to journal order attempt", zap.String("attempt", tr.AttemptID), zap.Error(err))
	}
}
