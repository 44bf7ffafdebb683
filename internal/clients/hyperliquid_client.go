package clients

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	hyperliquid "github.com/sonirico/go-hyperliquid"
)

// HyperliquidClient SDK-backed client for a wallet whose private key is held locally.
// It handles account settings the order flow does not sign itself (leverage, margin mode).
type HyperliquidClient struct {
	privateKey  *ecdsa.PrivateKey
	accountAddr string
	// updateLeverage posts one updateLeverage action.
	updateLeverage func(ctx context.Context, leverage int, coin string, cross bool) error
}

// ParsePrivateKey parses a hex private key with or without 0x prefix.
func ParsePrivateKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	key := strings.TrimSpace(privateKeyHex)
	if len(key) >= 2 && (key[:2] == "0x" || key[:2] == "0X") {
		key = key[2:]
	}

	privateKey, err := crypto.HexToECDSA(key)
	if err != nil {
		return nil, errors.Wrap(err, "parse private key")
	}
	return privateKey, nil
}

// AddressFromKey derives the checksummed account address of privateKey.
func AddressFromKey(privateKey *ecdsa.PrivateKey) (string, error) {
	pub, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return "", fmt.Errorf("error casting public key to ECDSA")
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}

func NewHyperliquidClient(privateKeyHex string, baseURL string) (*HyperliquidClient, error) {
	privateKey, err := ParsePrivateKey(privateKeyHex)
	if err != nil {
		return nil, err
	}
	accountAddr, err := AddressFromKey(privateKey)
	if err != nil {
		return nil, err
	}

	// meta is fetched lazily by the SDK
	ex := hyperliquid.NewExchange(
		context.Background(),
		privateKey,
		baseURL,
		nil,
		"",
		accountAddr,
		nil,
	)

	return &HyperliquidClient{
		privateKey:  privateKey,
		accountAddr: accountAddr,
		updateLeverage: func(ctx context.Context, leverage int, coin string, cross bool) error {
			_, err := ex.UpdateLeverage(ctx, leverage, coin, cross)
			return err
		},
	}, nil
}

func (c *HyperliquidClient) PrivateKey() *ecdsa.PrivateKey { return c.privateKey }
func (c *HyperliquidClient) AccountAddress() string        { return c.accountAddr }

// UpdateLeverage sets leverage and margin mode of coin on the exchange. It is
// part of an order attempt and, like the order itself, is sent once.
func (c *HyperliquidClient) UpdateLeverage(ctx context.Context, coin string, leverage int, cross bool) error {
	if leverage < 1 {
		return fmt.Errorf("leverage must be >= 1, got %d", leverage)
	}
	if err := c.updateLeverage(ctx, leverage, coin, cross); err != nil {
		return errors.Wrapf(err, "update leverage of %s to %dx", coin, leverage)
	}
	return nil
}
