// Package market serves chart and order book data of a single instrument.
package market

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/hyperlev/internal/clients"
	"github.com/vadiminshakov/hyperlev/internal/domain"
)

// CandleWindow history requested for the chart.
const CandleWindow = 7 * 24 * time.Hour

// Timeframes chart timeframes in display order.
var Timeframes = []string{"1m", "5m", "15m", "1H", "4H", "1D"}

var timeframeIntervals = map[string]string{
	"1m":  "1m",
	"5m":  "5m",
	"15m": "15m",
	"1H":  "1h",
	"4H":  "4h",
	"1D":  "1d",
}

// IntervalOf maps a chart timeframe to the exchange candle interval.
// Exchange intervals are accepted as is.
func IntervalOf(timeframe string) (string, error) {
	if iv, ok := timeframeIntervals[timeframe]; ok {
		return iv, nil
	}
	for _, iv := range timeframeIntervals {
		if iv == timeframe {
			return iv, nil
		}
	}
	return "", fmt.Errorf("unsupported timeframe %q", timeframe)
}

type candleFetcher interface {
	CandleSnapshot(ctx context.Context, coin, interval string, startMs, endMs int64) ([]clients.Candle, error)
}

// CandleProvider loads candles on demand.
type CandleProvider struct {
	api candleFetcher
	now func() time.Time
}

func NewCandleProvider(api candleFetcher) *CandleProvider {
	return &CandleProvider{api: api, now: time.Now}
}

// Candles returns the candles of symbol over the last CandleWindow.
func (p *CandleProvider) Candles(ctx context.Context, symbol, timeframe string) ([]domain.MarketCandle, error) {
	interval, err := IntervalOf(timeframe)
	if err != nil {
		return nil, err
	}

	endMs := p.now().UnixMilli()
	startMs := endMs - CandleWindow.Milliseconds()

	coin := strings.ToUpper(symbol)
	candles, err := p.api.CandleSnapshot(ctx, coin, interval, startMs, endMs)
	if err != nil {
		return nil, err
	}

	out := make([]domain.MarketCandle, 0, len(candles))
	for i, c := range candles {
		mc, err := toMarketCandle(c)
		if err != nil {
			return nil, domain.NewParseError("candleSnapshot", errors.Wrapf(err, "candle %d of %s", i, coin))
		}
		out = append(out, mc)
	}

	return out, nil
}

func toMarketCandle(c clients.Candle) (domain.MarketCandle, error) {
	open, err := decimal.NewFromString(c.Open)
	if err != nil {
		return domain.MarketCandle{}, errors.Wrap(err, "parse open")
	}
	high, err := decimal.NewFromString(c.High)
	if err != nil {
		return domain.MarketCandle{}, errors.Wrap(err, "parse high")
	}
	low, err := decimal.NewFromString(c.Low)
	if err != nil {
		return domain.MarketCandle{}, errors.Wrap(err, "parse low")
	}
	closeP, err := decimal.NewFromString(c.Close)
	if err != nil {
		return domain.MarketCandle{}, errors.Wrap(err, "parse close")
	}
	volume, err := decimal.NewFromString(c.Volume)
	if err != nil {
		return domain.MarketCandle{}, errors.Wrap(err, "parse volume")
	}

	return domain.MarketCandle{
		OpenTime:  time.UnixMilli(c.TimeOpen),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closeP,
		Volume:    volume,
		CloseTime: time.UnixMilli(c.TimeClose),
	}, nil
}
