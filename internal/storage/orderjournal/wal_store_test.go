package orderjournal

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id, state string) Record {
	return Record{
		AttemptID: id,
		Address:   "0xabc",
		Symbol:    "ETH",
		Side:      "buy",
		Kind:      "market",
		Size:      decimal.RequireFromString("0.5"),
		Price:     decimal.RequireFromString("3015.5"),
		Leverage:  decimal.NewFromInt(10),
		Nonce:     1_700_000_000_000,
		State:     state,
		At:        time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestWALStore_AppendAndRead(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, store.Close())
	}()

	assert.Equal(t, uint64(0), store.CurrentIndex())

	require.NoError(t, store.Append(record("a1", "confirmed")))
	failed := record("a2", "failed")
	failed.ErrorKind = "exchange_rejected"
	failed.Message = "insufficient margin"
	require.NoError(t, store.Append(failed))

	assert.Equal(t, uint64(2), store.CurrentIndex())

	all, err := store.RecordsAfter(0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, uint64(1), all[0].Index)
	assert.Equal(t, "a1", all[0].Record.AttemptID)
	assert.True(t, decimal.RequireFromString("3015.5").Equal(all[0].Record.Price))
	assert.Equal(t, "insufficient margin", all[1].Record.Message)

	tail, err := store.RecordsAfter(1)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, "a2", tail[0].Record.AttemptID)

	none, err := store.RecordsAfter(2)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestWALStore_RequiresAttemptID(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	assert.Error(t, store.Append(Record{Symbol: "BTC"}))
	assert.Equal(t, uint64(0), store.CurrentIndex())
}

func TestWALStore_Nil(t *testing.T) {
	var store *WALStore
	assert.Error(t, store.Append(record("x", "failed")))
	_, err := store.RecordsAfter(0)
	assert.Error(t, err)
	assert.Equal(t, uint64(0), store.CurrentIndex())
}
