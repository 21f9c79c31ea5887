package signer

import (
	"github.com/btcsuite/btcd/btcec/v2"
	ecdsa_btcec "github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
)

// SignECDSA signs a 32-byte message hash with the key at path, returning a
// DER-encoded signature.
func (s *Signer) SignECDSA(msg32 []byte, path DerivationPath) ([]byte, error) {
	if len(msg32) != 32 {
		return nil, walleterrors.New(walleterrors.KindSigner, "message must be 32 bytes")
	}
	s.mu.Lock()
	priv, err := s.derivePrivKey(path)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	sig := ecdsa_btcec.Sign(priv, msg32)
	return sig.Serialize(), nil
}

// SignECDSARecoverable signs msg32 and returns a 65-byte signature with the
// recovery byte fixed at 31+recid, matching the wire protocol's
// double-SHA256 + recoverable-ECDSA challenge format (spec 6).
func (s *Signer) SignECDSARecoverable(msg32 []byte, path DerivationPath) ([]byte, error) {
	if len(msg32) != 32 {
		return nil, walleterrors.New(walleterrors.KindSigner, "message must be 32 bytes")
	}
	s.mu.Lock()
	priv, err := s.derivePrivKey(path)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return signRecoverable(priv, msg32)
}

// SignIdentityECDSA signs msg32 with the stable identity key, returning a
// DER-encoded signature — the format lnurl-auth's callback expects (spec
// section 1), unlike the operator/SSP challenge's recoverable format.
func (s *Signer) SignIdentityECDSA(msg32 []byte) ([]byte, error) {
	if len(msg32) != 32 {
		return nil, walleterrors.New(walleterrors.KindSigner, "message must be 32 bytes")
	}
	sig := ecdsa_btcec.Sign(s.identity, msg32)
	return sig.Serialize(), nil
}

// SignIdentityRecoverable signs msg32 with the stable identity key — used
// for operator/SSP auth challenges and the distributed-lock RPC signature.
func (s *Signer) SignIdentityRecoverable(msg32 []byte) ([]byte, error) {
	if len(msg32) != 32 {
		return nil, walleterrors.New(walleterrors.KindSigner, "message must be 32 bytes")
	}
	return signRecoverable(s.identity, msg32)
}

func signRecoverable(priv *btcec.PrivateKey, msg32 []byte) ([]byte, error) {
	compact := ecdsa_btcec.SignCompact(priv, msg32, true)
	if len(compact) != 65 {
		return nil, walleterrors.New(walleterrors.KindSigner, "unexpected compact signature length")
	}
	// btcec's compact format is [recoveryByte(27+recid[+4 if compressed]) | r | s].
	// The wire format this SDK speaks puts r||s first and the recovery byte
	// last, normalized to 31+recid.
	recoveryByte := compact[0]
	recID := (recoveryByte - 27) & 0x3
	out := make([]byte, 65)
	copy(out[0:64], compact[1:65])
	out[64] = 31 + recID
	return out, nil
}
