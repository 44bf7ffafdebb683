package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrTransport network or HTTP failure.
	ErrTransport = errors.New("transport error")
	// ErrParse malformed response; always also matches ErrTransport.
	ErrParse = errors.New("parse error")
	// ErrValidation caller input is invalid, nothing was sent.
	ErrValidation = errors.New("validation error")
	// ErrSigningRejected the user or the wallet declined to sign.
	ErrSigningRejected = errors.New("signing rejected")
	// ErrTimeout signing did not finish within the allowed time.
	ErrTimeout = errors.New("signing timed out")
	// ErrEncoding the order could not be encoded for signing, nothing was signed or sent.
	ErrEncoding = errors.New("order encoding failed")
	// ErrExchangeRejected the exchange answered with a non-ok status.
	ErrExchangeRejected = errors.New("exchange rejected")
	// ErrStaleResponse the precondition of a request changed before it completed.
	ErrStaleResponse = errors.New("stale response discarded")
)

// TransportError failed request to the exchange API.
type TransportError struct {
	Op    string
	Err   error
	parse bool
}

// NewTransportError wraps a network/HTTP failure of op.
func NewTransportError(op string, err error) error {
	return &TransportError{Op: op, Err: err}
}

// NewParseError wraps a decoding failure of op.
func NewParseError(op string, err error) error {
	return &TransportError{Op: op, Err: err, parse: true}
}

func (e *TransportError) Error() string {
	kind := "transport"
	if e.parse {
		kind = "parse"
	}
	return fmt.Sprintf("%s %s: %v", e.Op, kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is matches ErrTransport, and ErrParse for decoding failures.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport || (e.parse && target == ErrParse)
}

// CatalogError instrument catalog could not be loaded.
type CatalogError struct {
	Err error
}

func (e *CatalogError) Error() string { return "load catalog: " + e.Err.Error() }

func (e *CatalogError) Unwrap() error { return e.Err }

// OrderErrorKind classifies a failed order attempt.
type OrderErrorKind string

const (
	OrderErrorValidation       OrderErrorKind = "validation"
	OrderErrorSigningRejected  OrderErrorKind = "signing_rejected"
	OrderErrorTimeout          OrderErrorKind = "timeout"
	OrderErrorExchangeRejected OrderErrorKind = "exchange_rejected"
	OrderErrorTransport        OrderErrorKind = "transport"
	OrderErrorEncoding         OrderErrorKind = "encoding"
)

// OrderError terminal failure of an order attempt, surfaced to the user.
type OrderError struct {
	Kind    OrderErrorKind
	Message string
	Err     error
}

// NewValidationError creates an OrderError of kind validation.
func NewValidationError(format string, args ...any) *OrderError {
	return &OrderError{Kind: OrderErrorValidation, Message: fmt.Sprintf(format, args...)}
}

func (e *OrderError) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *OrderError) Unwrap() error { return e.Err }

// Is maps the kind to the package sentinels.
func (e *OrderError) Is(target error) bool {
	switch e.Kind {
	case OrderErrorValidation:
		return target == ErrValidation
	case OrderErrorSigningRejected:
		return target == ErrSigningRejected
	case OrderErrorTimeout:
		return target == ErrTimeout
	case OrderErrorExchangeRejected:
		return target == ErrExchangeRejected
	case OrderErrorTransport:
		return target == ErrTransport
	case OrderErrorEncoding:
		return target == ErrEncoding
	}
	return false
}
