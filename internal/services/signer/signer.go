// Package signer provides wallet implementations that sign EIP-712 typed data.
package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/hyperlev/internal/domain"
)

// KeySigner signs with a private key held in process memory.
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	logger  *zap.Logger
}

func NewKeySigner(key *ecdsa.PrivateKey, logger *zap.Logger) *KeySigner {
	return &KeySigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		logger:  logger,
	}
}

// Address account address derived from the key.
func (s *KeySigner) Address() string { return s.address.Hex() }

// SignTypedData returns the 65-byte r||s||v signature as 0x-prefixed hex,
// v in {27, 28}.
func (s *KeySigner) SignTypedData(ctx context.Context, data apitypes.TypedData, hints domain.SignHints) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.Wrap(domain.ErrSigningRejected, err.Error())
	}

	hash, err := TypedDataHash(data)
	if err != nil {
		return "", err
	}

	sig, err := crypto.Sign(hash, s.key)
	if err != nil {
		return "", errors.Wrap(err, "sign typed data")
	}
	sig[64] += 27

	s.logger.Debug("typed data signed", zap.String("title", hints.Title), zap.String("address", s.Address()))
	return "0x" + common.Bytes2Hex(sig), nil
}

// TypedDataHash keccak256("\x19\x01" || domainSeparator || hashStruct(message)).
func TypedDataHash(data apitypes.TypedData) ([]byte, error) {
	domainSeparator, err := data.HashStruct("EIP712Domain", data.Domain.Map())
	if err != nil {
		return nil, errors.Wrap(err, "hash domain")
	}
	messageHash, err := data.HashStruct(data.PrimaryType, data.Message)
	if err != nil {
		return nil, errors.Wrapf(err, "hash %s message", data.PrimaryType)
	}

	raw := []byte("\x19\x01")
	raw = append(raw, domainSeparator...)
	raw = append(raw, messageHash...)
	return crypto.Keccak256(raw), nil
}

// RecoverAddress address that produced sig over data.
func RecoverAddress(data apitypes.TypedData, sig string) (string, error) {
	hash, err := TypedDataHash(data)
	if err != nil {
		return "", err
	}
	raw := common.FromHex(sig)
	if len(raw) != crypto.SignatureLength {
		return "", fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(raw))
	}
	raw = append([]byte(nil), raw...)
	if raw[64] >= 27 {
		raw[64] -= 27
	}
	pub, err := crypto.SigToPub(hash, raw)
	if err != nil {
		return "", errors.Wrap(err, "recover public key")
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}
