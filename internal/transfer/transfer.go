// Package transfer implements the outgoing/incoming transfer state machine
// that moves a set of leaves from one identity to another: key tweaks,
// FROST-cosigned refund transactions, ECIES-encrypted transfer packages,
// and claim-side key rebinding.
package transfer

import "time"

// Status is a transfer's lifecycle state (spec section 3 / 4.5).
type Status string

const (
	StatusInit                     Status = "INIT"
	StatusKeyTweaksPrepared        Status = "KEY_TWEAKS_PREPARED"
	StatusSignaturesRequested      Status = "SIGNATURES_REQUESTED"
	StatusTransferPackageDelivered Status = "TRANSFER_PACKAGE_DELIVERED"
	StatusFinalized                Status = "FINALIZED"
	StatusExpired                  Status = "EXPIRED"
	StatusReturned                 Status = "RETURNED"
)

// Direction is which side of a transfer this wallet is on.
type Direction string

const (
	DirectionIncoming Direction = "INCOMING"
	DirectionOutgoing Direction = "OUTGOING"
)

// LeafKeyTweak pairs a leaf's old and new signing public keys for one
// transfer, per spec 4.5 step 1.
type LeafKeyTweak struct {
	NodeID string
	OldPK  []byte
	NewPK  []byte
}

// LeafTransferEntry is one leaf's contribution to a Transfer: its secret
// ciphertext (ECIES-encrypted new signing key, spec 4.5 step 3), the
// refund signature FROST-aggregated across the operator quorum, and the
// intermediate refund transaction it backs.
type LeafTransferEntry struct {
	NodeID          string
	SecretCipher    []byte
	RefundSignature []byte
	RefundTxHex     string
}

// UserRequest cross-references the SSP request this transfer fulfills,
// when the transfer originates from a cooperative exit, preimage swap, or
// static deposit claim rather than a direct user-to-user send.
type UserRequest struct {
	Kind string // "CooperativeExit" | "PreimageSwap" | "StaticDepositClaim"
	ID   string
}

// Transfer aggregates the act of moving a set of leaves from one identity
// to another (spec section 3).
type Transfer struct {
	ID               string
	Direction        Direction
	Status           Status
	ExpiryTime       time.Time
	TotalValueSat    int64
	Leaves           []LeafTransferEntry
	UserRequest      *UserRequest
	SparkInvoice     string
	SenderIdentity   []byte
	ReceiverIdentity []byte
}

// IsExpired reports whether the transfer's expiry has passed and it has
// not yet reached a terminal state.
func (t *Transfer) IsExpired(now time.Time) bool {
	switch t.Status {
	case StatusFinalized, StatusExpired, StatusReturned:
		return false
	}
	return !t.ExpiryTime.IsZero() && now.After(t.ExpiryTime)
}

// PendingUntilUserRequest reports whether this transfer must wait for an
// explicit user action (claim_deposit, lightning send poll, etc.) before
// the claim side finalizes it automatically, per spec 4.5/4.6/4.7: transfers
// tied to a CooperativeExit, PreimageSwap, or StaticDepositClaim are not
// auto-claimed on sync like ordinary peer sends.
func (t *Transfer) PendingUntilUserRequest() bool {
	return t.UserRequest != nil
}
