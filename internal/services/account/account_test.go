package account

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/hyperlev/internal/clients"
	"github.com/vadiminshakov/hyperlev/internal/domain"
)

type fakeClearinghouse struct {
	calls  int
	state  *clients.ClearinghouseState
	err    error
	during func()
}

func (f *fakeClearinghouse) ClearinghouseState(_ context.Context, _ string) (*clients.ClearinghouseState, error) {
	f.calls++
	if f.during != nil {
		f.during()
	}
	return f.state, f.err
}

func strPtr(s string) *string { return &s }

func sampleState() *clients.ClearinghouseState {
	return &clients.ClearinghouseState{
		MarginSummary: clients.MarginSummary{AccountValue: "1000", TotalMarginUsed: "150"},
		Withdrawable:  "850",
		AssetPositions: []clients.AssetPosition{
			{Position: clients.AssetPositionData{Coin: "BTC", Szi: "0.01", EntryPx: strPtr("60000"), UnrealizedPnl: "12.5", LiquidationPx: strPtr("55000"), Leverage: clients.PositionLeverage{Value: 10}}},
			{Position: clients.AssetPositionData{Coin: "ETH", Szi: "-2", EntryPx: strPtr("3000"), UnrealizedPnl: "-2.5"}},
			{Position: clients.AssetPositionData{Coin: "SOL", Szi: "0"}},
		},
	}
}

func TestTracker_PollOnce(t *testing.T) {
	api := &fakeClearinghouse{state: sampleState()}
	tr := NewTracker(api, zap.NewNop())
	require.True(t, tr.SetAddress("0xAbC"))

	snap, err := tr.PollOnce(context.Background(), "0xAbC")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1000).Equal(snap.Equity))
	assert.True(t, decimal.NewFromInt(150).Equal(snap.MarginUsed))
	assert.True(t, decimal.NewFromInt(850).Equal(snap.Withdrawable))
	assert.True(t, decimal.NewFromInt(10).Equal(snap.UnrealizedPnl), "sum of position pnl, got %s", snap.UnrealizedPnl)
	require.Len(t, snap.Positions, 2, "flat positions are skipped")

	eth, ok := snap.Position("ETH")
	require.True(t, ok)
	assert.Equal(t, domain.PositionSideShort, eth.Side)
	assert.True(t, decimal.NewFromInt(2).Equal(eth.Size))

	assert.True(t, snap.Equity.Equal(tr.Snapshot().Equity))
}

func TestTracker_NoAddressNoRequest(t *testing.T) {
	api := &fakeClearinghouse{state: sampleState()}
	tr := NewTracker(api, zap.NewNop())

	snap, err := tr.PollOnce(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, snap.IsZero())
	assert.Zero(t, api.calls)
}

func TestTracker_DisconnectClearsSynchronously(t *testing.T) {
	api := &fakeClearinghouse{state: sampleState()}
	tr := NewTracker(api, zap.NewNop())
	tr.SetAddress("0xabc")
	_, err := tr.PollOnce(context.Background(), "0xabc")
	require.NoError(t, err)
	require.False(t, tr.Snapshot().IsZero())

	assert.True(t, tr.SetAddress(""))
	assert.True(t, tr.Snapshot().IsZero())
	assert.False(t, tr.SetAddress(""), "same address is a no-op")
}

func TestTracker_StaleResponseDiscarded(t *testing.T) {
	api := &fakeClearinghouse{state: sampleState()}
	tr := NewTracker(api, zap.NewNop())
	tr.SetAddress("0xold")

	// the wallet switches while the request is in flight
	api.during = func() { tr.SetAddress("0xnew") }

	_, err := tr.PollOnce(context.Background(), "0xold")
	assert.ErrorIs(t, err, domain.ErrStaleResponse)
	assert.True(t, tr.Snapshot().IsZero())
	assert.Equal(t, "0xnew", tr.Address())
}

func TestTracker_InactiveAddress(t *testing.T) {
	api := &fakeClearinghouse{state: sampleState()}
	tr := NewTracker(api, zap.NewNop())
	tr.SetAddress("0xabc")

	_, err := tr.PollOnce(context.Background(), "0xdef")
	assert.ErrorIs(t, err, domain.ErrStaleResponse)
	assert.Zero(t, api.calls)
}

func TestTracker_ErrorKeepsSnapshot(t *testing.T) {
	api := &fakeClearinghouse{state: sampleState()}
	tr := NewTracker(api, zap.NewNop())
	tr.SetAddress("0xabc")
	_, err := tr.PollOnce(context.Background(), "0xabc")
	require.NoError(t, err)

	api.err = domain.NewTransportError("clearinghouseState", errors.New("503"))
	_, err = tr.PollOnce(context.Background(), "0xabc")
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.True(t, decimal.NewFromInt(1000).Equal(tr.Snapshot().Equity))
}

func TestTracker_Malformed(t *testing.T) {
	api := &fakeClearinghouse{state: &clients.ClearinghouseState{MarginSummary: clients.MarginSummary{AccountValue: "abc"}}}
	tr := NewTracker(api, zap.NewNop())
	tr.SetAddress("0xabc")

	_, err := tr.PollOnce(context.Background(), "0xabc")
	assert.ErrorIs(t, err, domain.ErrParse)
}
