// Package walleterrors defines the typed error taxonomy surfaced across the
// wallet SDK boundary. Engines translate low-level errors (pgx, grpc, HTTP)
// into one of these kinds at their boundary; nothing below the boundary
// leaks raw driver errors to a caller.
package walleterrors

import (
	"errors"
	"fmt"
)

// Kind classifies a WalletError for callers that need to decide whether to
// retry, surface to the user, or give up.
type Kind string

const (
	// KindInvalidInput covers caller mistakes: bad address, amount <= 0,
	// incompatible options. Never retried.
	KindInvalidInput Kind = "invalid_input"
	// KindNetworkError covers transient I/O. The sync push loop retries it
	// with backoff; other engines return it from the first failed attempt
	// without retrying.
	KindNetworkError Kind = "network_error"
	// KindSigner covers missing key material, a cancelled hardware prompt,
	// or a wrong PIN. Not retried automatically.
	KindSigner Kind = "signer"
	// KindService covers an operator or SSP explicitly denying a request
	// (quota, quorum failure).
	KindService Kind = "service"
	// KindStorage covers database I/O; transient storage errors may be
	// retried by the caller.
	KindStorage Kind = "storage"
	// KindDepositClaim covers the DepositClaim sub-kinds below.
	KindDepositClaim Kind = "deposit_claim"
	// KindGeneric is the last resort for anything else.
	KindGeneric Kind = "generic"
)

// DepositClaimSubKind enumerates the reasons a deposit claim can fail,
// persisted on the deposit row so the caller can explain the failure.
type DepositClaimSubKind string

const (
	DepositClaimMissingUtxo           DepositClaimSubKind = "missing_utxo"
	DepositClaimFeeExceeded           DepositClaimSubKind = "fee_exceeded"
	DepositClaimGeneric               DepositClaimSubKind = "generic"
)

// WalletError is the error type every public SDK method and engine boundary
// returns. It never panics outward.
type WalletError struct {
	Kind       Kind
	SubKind    DepositClaimSubKind // only meaningful when Kind == KindDepositClaim
	Message    string
	Wrapped    error
}

func (e *WalletError) Error() string {
	if e.SubKind != "" {
		return fmt.Sprintf("%s/%s: %s", e.Kind, e.SubKind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *WalletError) Unwrap() error {
	return e.Wrapped
}

func New(kind Kind, message string) *WalletError {
	return &WalletError{Kind: kind, Message: message}
}

func Wrap(kind Kind, err error, message string) *WalletError {
	return &WalletError{Kind: kind, Message: message, Wrapped: err}
}

func NewDepositClaim(sub DepositClaimSubKind, message string) *WalletError {
	return &WalletError{Kind: KindDepositClaim, SubKind: sub, Message: message}
}

// Is allows kind-only checks by comparing Kind alone — callers that only
// care about the kind can do errors.Is(err, &WalletError{Kind:
// KindNetworkError}).
func (e *WalletError) Is(target error) bool {
	var t *WalletError
	if errors.As(target, &t) {
		if t.Kind == "" {
			return false
		}
		return e.Kind == t.Kind
	}
	return false
}

// KindOf extracts the Kind of err if it (or something it wraps) is a
// *WalletError, defaulting to KindGeneric otherwise.
func KindOf(err error) Kind {
	var we *WalletError
	if errors.As(err, &we) {
		return we.Kind
	}
	return KindGeneric
}
