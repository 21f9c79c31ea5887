// Package lightning implements the preimage-swap send flow and the
// request-an-invoice receive flow that bridge Spark transfers to the
// Lightning network through the SSP (spec section 4.6).
package lightning

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/zpay32"

	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
)

// Invoice is the subset of a decoded BOLT-11 invoice this wallet acts on.
type Invoice struct {
	PaymentHash [32]byte
	AmountMsat  int64
	Memo        string
	Destination *btcec.PublicKey
}

// ParseInvoice decodes and validates a BOLT-11 invoice string for net,
// rejecting invoices with no amount (this wallet always pays an exact
// amount) or with no payment hash.
func ParseInvoice(bolt11 string, net *chaincfg.Params) (*Invoice, error) {
	decoded, err := zpay32.Decode(bolt11, net)
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindInvalidInput, err, "failed to decode invoice")
	}
	if decoded.MilliSat == nil {
		return nil, walleterrors.New(walleterrors.KindInvalidInput, "invoice has no amount")
	}
	if decoded.PaymentHash == nil {
		return nil, walleterrors.New(walleterrors.KindInvalidInput, "invoice has no payment hash")
	}

	var memo string
	if decoded.Description != nil {
		memo = *decoded.Description
	}

	return &Invoice{
		PaymentHash: *decoded.PaymentHash,
		AmountMsat:  int64(*decoded.MilliSat),
		Memo:        memo,
		Destination: decoded.Destination,
	}, nil
}

// AmountSat rounds the invoice's millisatoshi amount down to whole
// satoshis, the unit leaves are denominated in.
func (i *Invoice) AmountSat() int64 {
	return i.AmountMsat / 1000
}

// VerifyPreimage checks that preimage actually hashes to the invoice's
// payment hash before the wallet releases funds against it.
func (i *Invoice) VerifyPreimage(preimage [32]byte) bool {
	return sha256.Sum256(preimage[:]) == i.PaymentHash
}
