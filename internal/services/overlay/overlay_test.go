package overlay

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/hyperlev/internal/domain"
)

func account(side domain.PositionSide) domain.AccountSnapshot {
	return domain.AccountSnapshot{
		Address: "0xabc",
		Positions: []domain.Position{{
			Symbol:     "ETH",
			Side:       side,
			Size:       decimal.NewFromInt(1),
			EntryPrice: decimal.NewFromInt(100),
		}},
	}
}

func TestCompute_Long(t *testing.T) {
	lines := Compute(account(domain.PositionSideLong), "ETH")
	require.NotNil(t, lines)
	assert.True(t, decimal.NewFromInt(100).Equal(lines.Entry))
	assert.True(t, decimal.NewFromInt(102).Equal(lines.TakeProfit), "got %s", lines.TakeProfit)
	assert.True(t, decimal.NewFromInt(99).Equal(lines.StopLoss), "got %s", lines.StopLoss)
}

func TestCompute_Short(t *testing.T) {
	lines := Compute(account(domain.PositionSideShort), "ETH")
	require.NotNil(t, lines)
	assert.Equal(t, domain.PositionSideShort, lines.Side)
	assert.True(t, decimal.NewFromInt(98).Equal(lines.TakeProfit), "got %s", lines.TakeProfit)
	assert.True(t, decimal.NewFromInt(101).Equal(lines.StopLoss), "got %s", lines.StopLoss)
}

func TestCompute_NoPosition(t *testing.T) {
	assert.Nil(t, Compute(account(domain.PositionSideLong), "BTC"))
	assert.Nil(t, Compute(account(domain.PositionSideLong), ""))
	assert.Nil(t, Compute(domain.AccountSnapshot{}, "ETH"))
}
