package internal

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/hyperlev/internal/domain"
	"github.com/vadiminshakov/hyperlev/internal/services/risk"
	"github.com/vadiminshakov/hyperlev/internal/services/trader"
)

// MarketRow entry of the market list.
type MarketRow struct {
	Instrument domain.Instrument `json:"instrument"`
	Price      decimal.Decimal   `json:"price"`
	PriceText  string            `json:"priceText"`
	Change     decimal.Decimal   `json:"change"`
	ChangeText string            `json:"changeText"`
	HasChange  bool              `json:"hasChange"`
}

// OrderStatus progress of the latest order attempt.
type OrderStatus struct {
	AttemptID string                `json:"attemptId,omitempty"`
	State     trader.State          `json:"state"`
	ErrorKind domain.OrderErrorKind `json:"errorKind,omitempty"`
	Message   string                `json:"message,omitempty"`
	UpdatedAt time.Time             `json:"updatedAt,omitempty"`
}

// InFlight reports whether an attempt is between Validating and a terminal state.
func (s OrderStatus) InFlight() bool {
	return s.State != "" && s.State != trader.StateIdle && !s.State.IsTerminal()
}

// TradingViewState everything the presentation layer renders. It is a value:
// every field is a copy and nothing in it is shared with the engine.
type TradingViewState struct {
	Network string `json:"network"`

	Instruments  []domain.Instrument `json:"instruments"`
	CatalogError string              `json:"catalogError,omitempty"`
	Selected     *domain.Instrument  `json:"selected,omitempty"`

	Prices            domain.PriceSnapshot `json:"prices"`
	PricesUpdatedAt   time.Time            `json:"pricesUpdatedAt"`
	MidPrice          decimal.Decimal      `json:"midPrice"`
	MidPriceText      string               `json:"midPriceText"`
	Change            decimal.Decimal      `json:"change"`
	ChangeText        string               `json:"changeText"`
	BaselineSynthetic bool                 `json:"baselineSynthetic"`

	Leverage     decimal.Decimal `json:"leverage"`
	LeverageBand risk.Band       `json:"leverageBand"`

	Address   string                 `json:"address"`
	Connected bool                   `json:"connected"`
	Account   domain.AccountSnapshot `json:"account"`

	Funding          domain.FundingState `json:"funding"`
	FundingRateText  string              `json:"fundingRateText"`
	FundingCountdown string              `json:"fundingCountdown"`

	OrderBook domain.OrderBook `json:"orderBook"`

	SheetOpen bool              `json:"sheetOpen"`
	Draft     domain.OrderDraft `json:"draft"`
	Preview   risk.Preview      `json:"preview"`
	Order     OrderStatus       `json:"order"`

	Lines *domain.PositionLines `json:"lines,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}
