package signer

import (
	"context"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/hyperlev/internal/domain"
)

// Wallet signs typed data.
type Wallet interface {
	SignTypedData(ctx context.Context, data apitypes.TypedData, hints domain.SignHints) (string, error)
}

// Prompt asks the user to approve a signature request.
type Prompt func(ctx context.Context, hints domain.SignHints) (bool, error)

// ConfirmingSigner asks for approval before delegating to the wallet, the way
// a browser wallet pops up a confirmation.
type ConfirmingSigner struct {
	wallet Wallet
	prompt Prompt
}

func NewConfirmingSigner(wallet Wallet, prompt Prompt) *ConfirmingSigner {
	return &ConfirmingSigner{wallet: wallet, prompt: prompt}
}

func (s *ConfirmingSigner) SignTypedData(ctx context.Context, data apitypes.TypedData, hints domain.SignHints) (string, error) {
	ok, err := s.prompt(ctx, hints)
	if err != nil {
		return "", errors.Wrapf(domain.ErrSigningRejected, "confirmation failed: %v", err)
	}
	if !ok {
		return "", errors.Wrap(domain.ErrSigningRejected, "user rejected the request")
	}
	return s.wallet.SignTypedData(ctx, data, hints)
}
