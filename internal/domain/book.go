package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookLevel aggregated order book level.
type BookLevel struct {
	Price  decimal.Decimal `json:"px"`
	Size   decimal.Decimal `json:"sz"`
	Orders int             `json:"n"`
}

// OrderBook top of the L2 book for one instrument.
type OrderBook struct {
	Symbol string      `json:"symbol"`
	Bids   []BookLevel `json:"bids"`
	Asks   []BookLevel `json:"asks"`
	Time   time.Time   `json:"time"`
}

// Spread returns best ask minus best bid.
func (b OrderBook) Spread() (decimal.Decimal, bool) {
	if len(b.Bids) == 0 || len(b.Asks) == 0 {
		return decimal.Zero, false
	}
	return b.Asks[0].Price.Sub(b.Bids[0].Price), true
}

// MarketCandle single OHLCV candlestick.
type MarketCandle struct {
	OpenTime  time.Time       `json:"openTime"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
	CloseTime time.Time       `json:"closeTime"`
}
