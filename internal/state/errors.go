package state

import (
	"errors"
	"fmt"
)

// Kind classifies why a transfer was rejected.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindZeroAmount
	KindInsufficientFund
	KindWrongTokenID
	KindAccountNotFound
	KindBadNonce
	KindNegativeValue
)

var (
	ErrZeroAmount       = errors.New("zero amount")
	ErrInsufficientFund = errors.New("insufficient fund")
	ErrWrongTokenID     = errors.New("wrong token id")
	ErrAccountNotFound  = errors.New("account not found")
	ErrBadNonce         = errors.New("bad nonce")
	ErrNegativeValue    = errors.New("negative value")

	ErrAccountExists     = errors.New("account already exists")
	ErrUnknownCheckpoint = errors.New("unknown or released checkpoint")
	ErrNoCheckpoint      = errors.New("commit without checkpoint")
)

func (k Kind) String() string {
	switch k {
	case KindZeroAmount:
		return "zero_amount"
	case KindInsufficientFund:
		return "insufficient_fund"
	case KindWrongTokenID:
		return "wrong_token_id"
	case KindAccountNotFound:
		return "account_not_found"
	case KindBadNonce:
		return "bad_nonce"
	case KindNegativeValue:
		return "negative_value"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindZeroAmount:
		return ErrZeroAmount
	case KindInsufficientFund:
		return ErrInsufficientFund
	case KindWrongTokenID:
		return ErrWrongTokenID
	case KindAccountNotFound:
		return ErrAccountNotFound
	case KindBadNonce:
		return ErrBadNonce
	case KindNegativeValue:
		return ErrNegativeValue
	default:
		return nil
	}
}

// TxError is a data-dependent rejection of a single transfer.
type TxError struct {
	Kind   Kind
	Detail string
}

func newTxError(kind Kind, format string, args ...any) *TxError {
	return &TxError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func (e *TxError) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Detail
}

func (e *TxError) Unwrap() error { return e.Kind.sentinel() }

// KindOf extracts the rejection kind from err, or KindUnknown.
func KindOf(err error) Kind {
	var txErr *TxError
	if errors.As(err, &txErr) {
		return txErr.Kind
	}
	return KindUnknown
}
