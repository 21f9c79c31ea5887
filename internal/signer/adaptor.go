package signer

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
)

// AdaptedSignature is a Schnorr signature with its s-term masked by a
// random scalar y, together with the adaptor public key Y = y·G a
// counterparty can use to verify the masked signature commits to a real
// one without learning y (spec 4.8).
type AdaptedSignature struct {
	R [32]byte // unchanged nonce x-coordinate
	S [32]byte // masked scalar, s' = s - y
	Y []byte   // compressed adaptor public key y·G
}

// AdaptorSecret is the random scalar y generated for one adaptor-signature
// round, kept by the wallet until it is ready to reveal it.
type AdaptorSecret struct {
	y secp256k1.ModNScalar
}

// AdaptSignature picks a random scalar y and splits a 64-byte Schnorr
// signature (R || s) into an AdaptedSignature carrying s' = s - y and the
// adaptor public key Y = y·G (spec 4.8 step 2). The secret y is retained
// by the caller and only handed to RevealAdaptorSecret once the
// counterparty's side of the swap has landed.
func AdaptSignature(sig []byte) (*AdaptedSignature, *AdaptorSecret, error) {
	if len(sig) != 64 {
		return nil, nil, walleterrors.New(walleterrors.KindSigner, "signature must be 64 bytes")
	}

	y, err := randomScalar()
	if err != nil {
		return nil, nil, err
	}

	var s secp256k1.ModNScalar
	if overflow := s.SetByteSlice(sig[32:64]); overflow {
		return nil, nil, walleterrors.New(walleterrors.KindSigner, "invalid signature scalar")
	}

	var sPrime secp256k1.ModNScalar
	sPrime.Set(&s)
	negY := new(secp256k1.ModNScalar).Set(&y)
	negY.Negate()
	sPrime.Add(negY)

	out := &AdaptedSignature{Y: scalarBasePointCompressed(y)}
	copy(out.R[:], sig[0:32])
	sBytes := sPrime.Bytes()
	copy(out.S[:], sBytes[:])

	return out, &AdaptorSecret{y: y}, nil
}

// RevealAdaptorSecret returns the 32-byte scalar y so the caller can hand
// it to the counterparty (spec 4.8 step 4).
func (a *AdaptorSecret) RevealAdaptorSecret() []byte {
	out := a.y.Bytes()
	return out[:]
}

// CompleteAdaptedSignature recombines an AdaptedSignature with the
// revealed adaptor secret y into the original valid 64-byte Schnorr
// signature (s = s' + y), the operation either party can perform once any
// one side publishes its half — the mechanism spec 4.8 relies on to make
// the exchange atomic.
func CompleteAdaptedSignature(adapted *AdaptedSignature, y []byte) ([]byte, error) {
	var sPrime secp256k1.ModNScalar
	if overflow := sPrime.SetByteSlice(adapted.S[:]); overflow {
		return nil, walleterrors.New(walleterrors.KindSigner, "invalid adapted signature scalar")
	}
	var yScalar secp256k1.ModNScalar
	if overflow := yScalar.SetByteSlice(y); overflow {
		return nil, walleterrors.New(walleterrors.KindSigner, "invalid adaptor secret")
	}

	var s secp256k1.ModNScalar
	s.Set(&sPrime)
	s.Add(&yScalar)

	sig := make([]byte, 64)
	copy(sig[0:32], adapted.R[:])
	sBytes := s.Bytes()
	copy(sig[32:64], sBytes[:])
	return sig, nil
}
