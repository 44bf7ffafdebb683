package trader

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/hyperlev/internal/domain"
)

func sampleAction() OrderAction {
	return buildAction(orderPlan{
		instrument: domain.Instrument{Symbol: "BTC", SizeDecimals: 5},
		draft:      domain.NewOrderDraft("BTC", domain.SideBuy),
		size:       dec("0.001"),
		limitPx:    dec("65000"),
		tif:        TifIoc,
	}, "fixed")
}

func TestActionHash(t *testing.T) {
	action := sampleAction()

	h1, err := actionHash(action, 1700000000000)
	require.NoError(t, err)
	h2, err := actionHash(action, 1700000000000)
	require.NoError(t, err)
	h3, err := actionHash(action, 1700000000001)
	require.NoError(t, err)

	assert.Len(t, h1, 32)
	assert.Equal(t, h1, h2, "deterministic")
	assert.NotEqual(t, h1, h3, "nonce is committed")
}

func TestTypedDataForAction(t *testing.T) {
	main, err := typedDataForAction(sampleAction(), 1, SourceMainnet)
	require.NoError(t, err)
	test, err := typedDataForAction(sampleAction(), 1, SourceTestnet)
	require.NoError(t, err)

	assert.Equal(t, "Agent", main.PrimaryType)
	assert.Equal(t, "Exchange", main.Domain.Name)
	assert.Equal(t, "1337", (*big.Int)(main.Domain.ChainId).String())
	assert.Equal(t, "a", main.Message["source"])
	assert.Equal(t, "b", test.Message["source"])
	assert.Equal(t, main.Message["connectionId"], test.Message["connectionId"])

	connID, ok := main.Message["connectionId"].(string)
	require.True(t, ok)
	assert.Len(t, connID, 66)
}

func TestSplitSignature(t *testing.T) {
	r := strings.Repeat("11", 32)
	s := strings.Repeat("22", 32)

	sig, err := SplitSignature("0x" + r + s + "1b")
	require.NoError(t, err)
	assert.Equal(t, "0x"+r, sig.R)
	assert.Equal(t, "0x"+s, sig.S)
	assert.Equal(t, 27, sig.V)

	sig, err = SplitSignature(r + s + "01")
	require.NoError(t, err, "prefix is optional")
	assert.Equal(t, 28, sig.V, "recovery id 0/1 is normalized to 27/28")

	_, err = SplitSignature("0x" + r)
	assert.Error(t, err)

	_, err = SplitSignature("0x" + r + s + "zz")
	assert.Error(t, err)
}
