// Package overlay derives the price lines drawn over the chart for an open position.
package overlay

import (
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/hyperlev/internal/domain"
)

var (
	takeProfitOffset = decimal.RequireFromString("0.02")
	stopLossOffset   = decimal.RequireFromString("0.01")
	one              = decimal.NewFromInt(1)
)

// Compute returns entry, take-profit and stop-loss levels of the open position in
// symbol, or nil when there is none. TP sits 2% in the position's favour, SL 1%
// against it.
func Compute(account domain.AccountSnapshot, symbol string) *domain.PositionLines {
	if symbol == "" {
		return nil
	}
	pos, ok := account.Position(symbol)
	if !ok {
		return nil
	}

	tp, sl := takeProfitOffset, stopLossOffset.Neg()
	if pos.Side == domain.PositionSideShort {
		tp, sl = tp.Neg(), sl.Neg()
	}

	return &domain.PositionLines{
		Symbol:     symbol,
		Side:       pos.Side,
		Entry:      pos.EntryPrice,
		TakeProfit: pos.EntryPrice.Mul(one.Add(tp)),
		StopLoss:   pos.EntryPrice.Mul(one.Add(sl)),
	}
}
