package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/vadiminshakov/hyperlev/internal/domain"
	"github.com/vadiminshakov/hyperlev/internal/metrics"
)

const (
	MainnetAPIURL = "https://api.hyperliquid.xyz"
	TestnetAPIURL = "https://api.hyperliquid-testnet.xyz"

	infoEndpoint     = "/info"
	exchangeEndpoint = "/exchange"

	defaultTimeout           = 10 * time.Second
	defaultRequestsPerSecond = 10
)

// HyperliquidAPI JSON-over-HTTP client of the Hyperliquid info and exchange endpoints.
// It never retries: a failed request is reported and the caller decides what to do.
type HyperliquidAPI struct {
	http    *resty.Client
	limiter *rate.Limiter
}

// APIOption configures HyperliquidAPI.
type APIOption func(*HyperliquidAPI)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) APIOption {
	return func(a *HyperliquidAPI) {
		a.http.SetTimeout(d)
	}
}

// WithRateLimit limits outgoing requests per second; rps <= 0 disables the limit.
func WithRateLimit(rps float64) APIOption {
	return func(a *HyperliquidAPI) {
		if rps <= 0 {
			a.limiter = nil
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewHyperliquidAPI creates a client for baseURL (e.g. https://api.hyperliquid.xyz).
func NewHyperliquidAPI(baseURL string, opts ...APIOption) *HyperliquidAPI {
	baseURL = strings.TrimSuffix(baseURL, "/")

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(defaultTimeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	a := &HyperliquidAPI{
		http:    client,
		limiter: rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), defaultRequestsPerSecond),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// UniverseAsset single entry of the meta universe.
type UniverseAsset struct {
	Name        string `json:"name"`
	SzDecimals  int    `json:"szDecimals"`
	MaxLeverage int    `json:"maxLeverage"`
	IsDelisted  bool   `json:"isDelisted,omitempty"`
}

// Meta response of {type:"meta"}.
type Meta struct {
	Universe []UniverseAsset `json:"universe"`
}

// AssetCtx per-asset context returned by metaAndAssetCtxs, same order as the universe.
type AssetCtx struct {
	Funding      string  `json:"funding"`
	OpenInterest string  `json:"openInterest"`
	PrevDayPx    string  `json:"prevDayPx"`
	DayNtlVlm    string  `json:"dayNtlVlm"`
	Premium      *string `json:"premium"`
	OraclePx     string  `json:"oraclePx"`
	MarkPx       string  `json:"markPx"`
	MidPx        *string `json:"midPx"`
}

// MarginSummary account level margin figures.
type MarginSummary struct {
	AccountValue    string `json:"accountValue"`
	TotalNtlPos     string `json:"totalNtlPos"`
	TotalRawUsd     string `json:"totalRawUsd"`
	TotalMarginUsed string `json:"totalMarginUsed"`
}

// PositionLeverage leverage setting of a position.
type PositionLeverage struct {
	Type  string `json:"type"`
	Value int    `json:"value"`
}

// AssetPositionData position details inside clearinghouseState.
type AssetPositionData struct {
	Coin           string           `json:"coin"`
	Szi            string           `json:"szi"`
	EntryPx        *string          `json:"entryPx"`
	PositionValue  string           `json:"positionValue"`
	UnrealizedPnl  string           `json:"unrealizedPnl"`
	ReturnOnEquity string           `json:"returnOnEquity"`
	LiquidationPx  *string          `json:"liquidationPx"`
	MarginUsed     string           `json:"marginUsed"`
	Leverage       PositionLeverage `json:"leverage"`
}

// AssetPosition wrapper of an open position.
type AssetPosition struct {
	Type     string            `json:"type"`
	Position AssetPositionData `json:"position"`
}

// ClearinghouseState response of {type:"clearinghouseState", user}.
type ClearinghouseState struct {
	MarginSummary      MarginSummary   `json:"marginSummary"`
	CrossMarginSummary MarginSummary   `json:"crossMarginSummary"`
	Withdrawable       string          `json:"withdrawable"`
	AssetPositions     []AssetPosition `json:"assetPositions"`
	Time               int64           `json:"time"`
}

// Candle element of candleSnapshot.
type Candle struct {
	TimeOpen  int64  `json:"t"`
	TimeClose int64  `json:"T"`
	Symbol    string `json:"s"`
	Interval  string `json:"i"`
	Open      string `json:"o"`
	Close     string `json:"c"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Volume    string `json:"v"`
	Trades    int    `json:"n"`
}

// L2Level aggregated book level.
type L2Level struct {
	Px string `json:"px"`
	Sz string `json:"sz"`
	N  int    `json:"n"`
}

// L2Book response of {type:"l2Book", coin}; Levels[0] bids, Levels[1] asks.
type L2Book struct {
	Coin   string      `json:"coin"`
	Time   int64       `json:"time"`
	Levels [][]L2Level `json:"levels"`
}

// ExchangeResponse reply of the order endpoint.
type ExchangeResponse struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

// Meta loads the perpetuals universe.
func (a *HyperliquidAPI) Meta(ctx context.Context) (*Meta, error) {
	var out Meta
	if err := a.info(ctx, "meta", map[string]any{"type": "meta"}, &out); err != nil {
		return nil, err
	}
	if out.Universe == nil {
		return nil, domain.NewParseError("meta", errors.New("response has no universe"))
	}
	return &out, nil
}

// AllMids returns mid prices keyed by coin.
func (a *HyperliquidAPI) AllMids(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string)
	if err := a.info(ctx, "allMids", map[string]any{"type": "allMids"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MetaAndAssetCtxs returns the universe together with per-asset contexts.
func (a *HyperliquidAPI) MetaAndAssetCtxs(ctx context.Context, user string) (*Meta, []AssetCtx, error) {
	body := map[string]any{"type": "metaAndAssetCtxs"}
	if user != "" {
		body["user"] = user
	}

	var raw []json.RawMessage
	if err := a.info(ctx, "metaAndAssetCtxs", body, &raw); err != nil {
		return nil, nil, err
	}
	if len(raw) < 2 {
		return nil, nil, domain.NewParseError("metaAndAssetCtxs", fmt.Errorf("expected [meta, assetCtxs], got %d elements", len(raw)))
	}

	var meta Meta
	if err := json.Unmarshal(raw[0], &meta); err != nil {
		return nil, nil, domain.NewParseError("metaAndAssetCtxs", errors.Wrap(err, "decode meta"))
	}
	var ctxs []AssetCtx
	if err := json.Unmarshal(raw[1], &ctxs); err != nil {
		return nil, nil, domain.NewParseError("metaAndAssetCtxs", errors.Wrap(err, "decode asset contexts"))
	}
	return &meta, ctxs, nil
}

// ClearinghouseState returns margin summary and open positions of user.
func (a *HyperliquidAPI) ClearinghouseState(ctx context.Context, user string) (*ClearinghouseState, error) {
	var out ClearinghouseState
	body := map[string]any{"type": "clearinghouseState", "user": user}
	if err := a.info(ctx, "clearinghouseState", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CandleSnapshot returns candles of coin between startMs and endMs.
func (a *HyperliquidAPI) CandleSnapshot(ctx context.Context, coin, interval string, startMs, endMs int64) ([]Candle, error) {
	body := map[string]any{
		"type": "candleSnapshot",
		"req": map[string]any{
			"coin":      coin,
			"interval":  interval,
			"startTime": startMs,
			"endTime":   endMs,
		},
	}
	var out []Candle
	if err := a.info(ctx, "candleSnapshot", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// L2Book returns the aggregated order book of coin.
func (a *HyperliquidAPI) L2Book(ctx context.Context, coin string) (*L2Book, error) {
	var out L2Book
	if err := a.info(ctx, "l2Book", map[string]any{"type": "l2Book", "coin": coin}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PostExchange sends a signed action to the exchange endpoint.
// A non-ok status is returned as is; interpreting it is up to the caller.
func (a *HyperliquidAPI) PostExchange(ctx context.Context, payload any) (*ExchangeResponse, error) {
	var out ExchangeResponse
	if err := a.post(ctx, exchangeEndpoint, "order", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *HyperliquidAPI) info(ctx context.Context, typ string, body, out any) error {
	return a.post(ctx, infoEndpoint, typ, body, out)
}

func (a *HyperliquidAPI) post(ctx context.Context, endpoint, typ string, body, out any) error {
	start := time.Now()
	err := a.do(ctx, endpoint, typ, body, out)
	metrics.APIRequestLatency.WithLabelValues(endpoint, typ).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.APIRequestErrors.WithLabelValues(endpoint, typ).Inc()
	}
	return err
}

func (a *HyperliquidAPI) do(ctx context.Context, endpoint, typ string, body, out any) error {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return domain.NewTransportError(typ, errors.Wrap(err, "rate limiter"))
		}
	}

	resp, err := a.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(endpoint)
	if err != nil {
		return domain.NewTransportError(typ, err)
	}
	if resp.IsError() {
		return domain.NewTransportError(typ, fmt.Errorf("HTTP %d: %s", resp.StatusCode(), strings.TrimSpace(string(resp.Body()))))
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return domain.NewParseError(typ, err)
	}
	return nil
}
