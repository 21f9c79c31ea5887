package signer

import (
	"crypto/hmac"
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
)

// SignHashSchnorr produces a BIP340 Schnorr signature over hash32 using the
// key at path. Used for taproot key-path spends of node/refund transactions.
func (s *Signer) SignHashSchnorr(hash32 []byte, path DerivationPath) ([]byte, error) {
	if len(hash32) != 32 {
		return nil, walleterrors.New(walleterrors.KindSigner, "hash must be 32 bytes")
	}
	s.mu.Lock()
	priv, err := s.derivePrivKey(path)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	sig, err := schnorr.Sign(priv, hash32)
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindSigner, err, "schnorr signing failed")
	}
	return sig.Serialize(), nil
}

// HMACSHA256 computes an HMAC-SHA256 of msg keyed by the private key
// material at path, serialized as a scalar. Used for deterministic
// domain-specific derivations (e.g. LNURL-auth's per-domain linking key).
func (s *Signer) HMACSHA256(msg []byte, path DerivationPath) ([]byte, error) {
	s.mu.Lock()
	priv, err := s.derivePrivKey(path)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	mac := hmac.New(sha256.New, priv.Serialize())
	mac.Write(msg)
	return mac.Sum(nil), nil
}
