package walletsdk

import (
	"bytes"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/sparkwallet/spark-wallet-sdk/internal/challengeauth"
	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
)

// SignMessage signs message with the identity key, returning a 65-byte
// recoverable signature (spec section 6: "ECDSA-recoverable message
// signing"), the same wire format the operator/SSP auth challenges use.
func (w *Wallet) SignMessage(message []byte) ([]byte, error) {
	digest := challengeauth.DoubleSHA256(message)
	return w.signer.SignIdentityRecoverable(digest[:])
}

// CheckMessage reports whether sig is a valid recoverable signature over
// message, and that it recovers to signerPubKey specifically.
func (w *Wallet) CheckMessage(message, sig, signerPubKey []byte) (bool, error) {
	if len(sig) != 65 {
		return false, walleterrors.New(walleterrors.KindInvalidInput, "signature must be 65 bytes")
	}
	digest := challengeauth.DoubleSHA256(message)

	recID := sig[64] - 31
	compact := make([]byte, 65)
	compact[0] = 27 + recID + 4 // compressed-pubkey recovery flag
	copy(compact[1:], sig[:64])

	recovered, _, err := ecdsa.RecoverCompact(compact, digest[:])
	if err != nil {
		return false, walleterrors.Wrap(walleterrors.KindInvalidInput, err, "failed to recover public key from signature")
	}

	var want *btcec.PublicKey
	want, err = btcec.ParsePubKey(signerPubKey)
	if err != nil {
		return false, walleterrors.Wrap(walleterrors.KindInvalidInput, err, "invalid signer public key")
	}
	return bytes.Equal(recovered.SerializeCompressed(), want.SerializeCompressed()), nil
}
