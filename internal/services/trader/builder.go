// Package trader builds, signs and submits orders.
package trader

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/hyperlev/internal/clients"
	"github.com/vadiminshakov/hyperlev/internal/domain"
	"github.com/vadiminshakov/hyperlev/internal/services/risk"
)

const (
	DefaultSigningTimeout = 15 * time.Second
)

// DefaultSlippage distance from mid of the limit price used for market orders.
var DefaultSlippage = decimal.RequireFromString("0.005")

// Signer wallet capability that signs EIP-712 typed data. It returns a 65-byte
// hex signature, or an error matching domain.ErrSigningRejected when the user
// declines.
type Signer interface {
	SignTypedData(ctx context.Context, data apitypes.TypedData, hints domain.SignHints) (string, error)
}

type exchangePoster interface {
	PostExchange(ctx context.Context, payload any) (*clients.ExchangeResponse, error)
}

type instrumentResolver interface {
	Lookup(symbol string) (domain.Instrument, bool)
}

// LeverageSyncer applies leverage and margin mode on the exchange before an
// order is signed. Only available when the key is held locally.
type LeverageSyncer interface {
	UpdateLeverage(ctx context.Context, coin string, leverage int, cross bool) error
}

// State step of an order attempt.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateSigning    State = "signing"
	StateSubmitting State = "submitting"
	StateConfirmed  State = "confirmed"
	StateFailed     State = "failed"
)

// IsTerminal reports whether no further transition follows.
func (s State) IsTerminal() bool { return s == StateConfirmed || s == StateFailed }

// Transition reported to the observer on every state change of an attempt.
type Transition struct {
	AttemptID string
	State     State
	Draft     domain.OrderDraft
	Nonce     uint64
	Size      decimal.Decimal
	Price     decimal.Decimal
	Err       *domain.OrderError
	At        time.Time
}

// Observer receives transitions synchronously, in order.
type Observer func(Transition)

// Request input of one attempt.
type Request struct {
	Draft    domain.OrderDraft
	Address  string
	MidPrice decimal.Decimal
	Leverage decimal.Decimal
}

// OrderStatus outcome of a single order inside an accepted action.
type OrderStatus struct {
	Status  string `json:"status"`
	OrderID int64  `json:"oid,omitempty"`
	AvgPx   string `json:"avgPx,omitempty"`
	TotalSz string `json:"totalSz,omitempty"`
}

// Receipt result of a confirmed attempt.
type Receipt struct {
	AttemptID string
	Request   SignedOrderRequest
	Statuses  []OrderStatus
}

// Config parameters of the builder.
type Config struct {
	Source         string
	Slippage       decimal.Decimal
	SigningTimeout time.Duration
}

// Builder runs order attempts: Idle -> Validating -> Signing -> Submitting ->
// Confirmed | Failed. Attempts are never retried; each one signs a fresh nonce.
type Builder struct {
	api         exchangePoster
	instruments instrumentResolver
	signer      Signer
	logger      *zap.Logger
	cfg         Config
	leverage    LeverageSyncer
	now         func() time.Time
	typedData   func(action OrderAction, nonce uint64, source string) (apitypes.TypedData, error)

	mu        sync.Mutex
	lastNonce uint64
	observer  Observer
}

func NewBuilder(api exchangePoster, instruments instrumentResolver, signer Signer, cfg Config, logger *zap.Logger) *Builder {
	if cfg.Source == "" {
		cfg.Source = SourceMainnet
	}
	if !cfg.Slippage.IsPositive() {
		cfg.Slippage = DefaultSlippage
	}
	if cfg.SigningTimeout <= 0 {
		cfg.SigningTimeout = DefaultSigningTimeout
	}
	return &Builder{
		api:         api,
		instruments: instruments,
		signer:      signer,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
		typedData:   typedDataForAction,
	}
}

// SetObserver registers the transition observer.
func (b *Builder) SetObserver(o Observer) {
	b.mu.Lock()
	b.observer = o
	b.mu.Unlock()
}

// SetLeverageSyncer enables syncing leverage and margin mode before each order.
func (b *Builder) SetLeverageSyncer(s LeverageSyncer) {
	b.mu.Lock()
	b.leverage = s
	b.mu.Unlock()
}

// SetSigner swaps the wallet signer, e.g. after a wallet reconnect.
func (b *Builder) SetSigner(s Signer) {
	b.mu.Lock()
	b.signer = s
	b.mu.Unlock()
}

// Submit runs one attempt. Every failure is returned as *domain.OrderError.
func (b *Builder) Submit(ctx context.Context, req Request) (*Receipt, error) {
	attempt := uuid.New().String()
	tr := Transition{AttemptID: attempt, Draft: req.Draft}
	logger := b.logger.With(zap.String("attempt", attempt), zap.String("symbol", req.Draft.Symbol), zap.String("side", string(req.Draft.Side)))

	fail := func(err *domain.OrderError) (*Receipt, error) {
		tr.Err = err
		b.emit(&tr, StateFailed)
		logger.Warn("order attempt failed", zap.String("kind", string(err.Kind)), zap.String("message", err.Message))
		return nil, err
	}

	b.emit(&tr, StateValidating)
	plan, verr := b.validate(req)
	if verr != nil {
		return fail(verr)
	}
	tr.Size, tr.Price = plan.size, plan.limitPx

	signer := b.currentSigner()
	if signer == nil {
		return fail(domain.NewValidationError("no wallet signer available"))
	}

	if syncer := b.leverageSyncer(); syncer != nil {
		lev := int(req.Leverage.IntPart())
		if err := syncer.UpdateLeverage(ctx, plan.instrument.Symbol, lev, plan.draft.MarginMode.IsCross()); err != nil {
			return fail(&domain.OrderError{Kind: domain.OrderErrorTransport, Message: "could not set leverage", Err: err})
		}
	}

	action := buildAction(plan, attempt)
	nonce := b.nextNonce()
	tr.Nonce = nonce

	b.emit(&tr, StateSigning)
	typed, err := b.typedData(action, nonce, b.cfg.Source)
	if err != nil {
		return fail(&domain.OrderError{Kind: domain.OrderErrorEncoding, Message: "could not encode order", Err: err})
	}
	hints := domain.SignHints{
		Title:       fmt.Sprintf("%s %s", strings.ToUpper(string(plan.draft.Side)), plan.instrument.Symbol),
		Description: fmt.Sprintf("Placing %s order for %s %s", plan.draft.Kind, plan.size.String(), plan.instrument.Symbol),
		ButtonText:  "Sign Order",
	}
	rawSig, oerr := b.sign(ctx, signer, typed, hints)
	if oerr != nil {
		return fail(oerr)
	}
	sig, err := SplitSignature(rawSig)
	if err != nil {
		return fail(&domain.OrderError{Kind: domain.OrderErrorSigningRejected, Message: "wallet returned a malformed signature", Err: err})
	}

	signed := SignedOrderRequest{
		Action:       action,
		Nonce:        nonce,
		Signature:    sig,
		VaultAddress: nil,
	}

	b.emit(&tr, StateSubmitting)
	resp, err := b.api.PostExchange(ctx, signed)
	if err != nil {
		return fail(&domain.OrderError{Kind: domain.OrderErrorTransport, Message: "order submission failed", Err: err})
	}

	statuses, oerr := interpretResponse(resp)
	if oerr != nil {
		return fail(oerr)
	}

	b.emit(&tr, StateConfirmed)
	logger.Info("order accepted", zap.Uint64("nonce", nonce), zap.String("size", plan.size.String()), zap.String("px", plan.limitPx.String()))
	return &Receipt{AttemptID: attempt, Request: signed, Statuses: statuses}, nil
}

func (b *Builder) validate(req Request) (orderPlan, *domain.OrderError) {
	d := req.Draft
	if strings.TrimSpace(req.Address) == "" {
		return orderPlan{}, domain.NewValidationError("wallet not connected")
	}
	if !d.Side.IsValid() {
		return orderPlan{}, domain.NewValidationError("invalid side %q", d.Side)
	}
	if !d.Kind.IsValid() {
		return orderPlan{}, domain.NewValidationError("invalid order type %q", d.Kind)
	}
	if !d.Amount().IsPositive() {
		return orderPlan{}, domain.NewValidationError("amount must be greater than zero")
	}
	inst, ok := b.instruments.Lookup(d.Symbol)
	if !ok {
		return orderPlan{}, domain.NewValidationError("market %s not found", d.Symbol)
	}
	if d.Kind == domain.OrderKindLimit && !d.LimitPrice.IsPositive() {
		return orderPlan{}, domain.NewValidationError("limit price must be greater than zero")
	}
	if req.Leverage.LessThan(decimal.NewFromInt(1)) {
		return orderPlan{}, domain.NewValidationError("leverage must be at least 1x")
	}
	if inst.MaxLeverage > 0 && req.Leverage.GreaterThan(decimal.NewFromInt(int64(inst.MaxLeverage))) {
		return orderPlan{}, domain.NewValidationError("leverage %sx exceeds %dx allowed for %s", req.Leverage, inst.MaxLeverage, inst.Symbol)
	}

	refPrice := risk.ReferencePrice(d, req.MidPrice)
	if !refPrice.IsPositive() {
		return orderPlan{}, domain.NewValidationError("price of %s is not available yet", d.Symbol)
	}

	size := d.BaseSize
	if d.Unit != domain.SizingUnitBase {
		size = risk.SizeFromNotional(d.Notional, refPrice, req.Leverage)
	}
	size = roundSize(size, inst)
	if !size.IsPositive() {
		return orderPlan{}, domain.NewValidationError("order size rounds to zero at %d decimals", inst.SizeDecimals)
	}

	if d.HasTakeProfit() {
		if (d.Side.IsBuy() && d.TakeProfit.LessThanOrEqual(refPrice)) || (!d.Side.IsBuy() && d.TakeProfit.GreaterThanOrEqual(refPrice)) {
			return orderPlan{}, domain.NewValidationError("take profit %s is on the wrong side of %s", d.TakeProfit, refPrice)
		}
	}
	if d.HasStopLoss() {
		if (d.Side.IsBuy() && d.StopLoss.GreaterThanOrEqual(refPrice)) || (!d.Side.IsBuy() && d.StopLoss.LessThanOrEqual(refPrice)) {
			return orderPlan{}, domain.NewValidationError("stop loss %s is on the wrong side of %s", d.StopLoss, refPrice)
		}
	}

	plan := orderPlan{
		instrument: inst,
		draft:      d,
		size:       size,
		refPrice:   refPrice,
		tif:        TifGtc,
	}
	if d.Kind == domain.OrderKindMarket {
		plan.tif = TifIoc
		plan.limitPx = roundPrice(marketLimitPrice(refPrice, b.cfg.Slippage, d.Side), inst)
	} else {
		plan.limitPx = roundPrice(d.LimitPrice, inst)
	}
	return plan, nil
}

// sign asks the wallet for a signature, bounded by the signing timeout.
func (b *Builder) sign(ctx context.Context, signer Signer, data apitypes.TypedData, hints domain.SignHints) (string, *domain.OrderError) {
	sctx, cancel := context.WithTimeout(ctx, b.cfg.SigningTimeout)
	defer cancel()

	type result struct {
		sig string
		err error
	}
	done := make(chan result, 1)
	go func() {
		sig, err := signer.SignTypedData(sctx, data, hints)
		done <- result{sig: sig, err: err}
	}()

	timedOut := func() bool {
		return ctx.Err() == nil && errors.Is(sctx.Err(), context.DeadlineExceeded)
	}

	select {
	case r := <-done:
		if r.err == nil {
			return r.sig, nil
		}
		if timedOut() {
			return "", &domain.OrderError{Kind: domain.OrderErrorTimeout, Message: fmt.Sprintf("wallet did not sign within %s", b.cfg.SigningTimeout), Err: r.err}
		}
		return "", &domain.OrderError{Kind: domain.OrderErrorSigningRejected, Message: "signature request was rejected", Err: r.err}
	case <-sctx.Done():
		if timedOut() {
			return "", &domain.OrderError{Kind: domain.OrderErrorTimeout, Message: fmt.Sprintf("wallet did not sign within %s", b.cfg.SigningTimeout), Err: sctx.Err()}
		}
		return "", &domain.OrderError{Kind: domain.OrderErrorSigningRejected, Message: "signature request was cancelled", Err: ctx.Err()}
	}
}

func (b *Builder) nextNonce() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := uint64(b.now().UnixMilli())
	if n <= b.lastNonce {
		n = b.lastNonce + 1
	}
	b.lastNonce = n
	return n
}

func (b *Builder) currentSigner() Signer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.signer
}

func (b *Builder) leverageSyncer() LeverageSyncer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.leverage
}

func (b *Builder) emit(tr *Transition, s State) {
	tr.State = s
	tr.At = b.now()

	b.mu.Lock()
	o := b.observer
	b.mu.Unlock()
	if o != nil {
		o(*tr)
	}
}

type orderResponseData struct {
	Type string `json:"type"`
	Data struct {
		Statuses []json.RawMessage `json:"statuses"`
	} `json:"data"`
}

type statusEntry struct {
	Resting *struct {
		Oid int64 `json:"oid"`
	} `json:"resting"`
	Filled *struct {
		Oid     int64  `json:"oid"`
		TotalSz string `json:"totalSz"`
		AvgPx   string `json:"avgPx"`
	} `json:"filled"`
	Error *string `json:"error"`
}

// interpretResponse maps the exchange reply to order statuses; a non-ok status
// or an error in any order status is an ExchangeRejected failure.
func interpretResponse(resp *clients.ExchangeResponse) ([]OrderStatus, *domain.OrderError) {
	if resp == nil {
		return nil, &domain.OrderError{Kind: domain.OrderErrorTransport, Message: "empty exchange response"}
	}
	if resp.Status != "ok" {
		return nil, &domain.OrderError{Kind: domain.OrderErrorExchangeRejected, Message: rejectionMessage(resp.Response)}
	}

	var data orderResponseData
	if len(resp.Response) == 0 || json.Unmarshal(resp.Response, &data) != nil {
		return nil, nil
	}

	statuses := make([]OrderStatus, 0, len(data.Data.Statuses))
	for _, raw := range data.Data.Statuses {
		var plain string
		if json.Unmarshal(raw, &plain) == nil {
			statuses = append(statuses, OrderStatus{Status: plain})
			continue
		}
		var e statusEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			continue
		}
		switch {
		case e.Error != nil:
			return nil, &domain.OrderError{Kind: domain.OrderErrorExchangeRejected, Message: *e.Error}
		case e.Filled != nil:
			statuses = append(statuses, OrderStatus{Status: "filled", OrderID: e.Filled.Oid, AvgPx: e.Filled.AvgPx, TotalSz: e.Filled.TotalSz})
		case e.Resting != nil:
			statuses = append(statuses, OrderStatus{Status: "resting", OrderID: e.Resting.Oid})
		}
	}
	return statuses, nil
}

func rejectionMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "Unknown error"
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s
	}
	return string(raw)
}
