package signer

import (
	"crypto/rand"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
)

// VerifiableSecretShare is one operator's share of a Shamir-split secret,
// together with the coefficient public keys needed to verify it without
// learning the secret (Feldman VSS).
type VerifiableSecretShare struct {
	Index           uint32 // 1-indexed participant identifier, the x-coordinate
	Share           []byte // 32-byte scalar, the polynomial evaluated at Index
	CoefficientPubs [][]byte // compressed 33-byte public keys of each coefficient, proof material
}

// SplitSecretWithProofs splits secret into n shares with threshold t using
// Shamir secret sharing over the secp256k1 scalar field: a degree-(t-1)
// polynomial is sampled with secret as its constant term, then evaluated at
// x = 1..n. Each coefficient's public key (coefficient * G) is attached to
// every share so operators can verify their share against the commitment
// without reconstructing the secret (spec 4.1).
func SplitSecretWithProofs(secret []byte, threshold, n uint32) ([]*VerifiableSecretShare, error) {
	if threshold == 0 || threshold > n {
		return nil, walleterrors.New(walleterrors.KindInvalidInput, "threshold must be in [1, n]")
	}
	if len(secret) != 32 {
		return nil, walleterrors.New(walleterrors.KindInvalidInput, "secret must be 32 bytes")
	}

	var secretScalar secp256k1.ModNScalar
	if overflow := secretScalar.SetByteSlice(secret); overflow {
		return nil, walleterrors.New(walleterrors.KindInvalidInput, "secret is not a valid scalar")
	}

	coeffs := make([]secp256k1.ModNScalar, threshold)
	coeffs[0] = secretScalar
	for i := uint32(1); i < threshold; i++ {
		s, err := randomScalar()
		if err != nil {
			return nil, err
		}
		coeffs[i] = s
	}

	coeffPubs := make([][]byte, threshold)
	for i, c := range coeffs {
		coeffPubs[i] = scalarBasePointCompressed(c)
	}

	shares := make([]*VerifiableSecretShare, n)
	for idx := uint32(1); idx <= n; idx++ {
		y := evalPolynomial(coeffs, idx)
		yBytes := y.Bytes()
		shares[idx-1] = &VerifiableSecretShare{
			Index:           idx,
			Share:           yBytes[:],
			CoefficientPubs: coeffPubs,
		}
	}

	return shares, nil
}

// evalPolynomial evaluates the polynomial with the given coefficients
// (lowest degree first) at x, all arithmetic mod the secp256k1 group order.
func evalPolynomial(coeffs []secp256k1.ModNScalar, x uint32) secp256k1.ModNScalar {
	var xScalar secp256k1.ModNScalar
	xScalar.SetInt(x)

	var result secp256k1.ModNScalar
	for i := len(coeffs) - 1; i >= 0; i-- {
		result.Mul(&xScalar)
		result.Add(&coeffs[i])
	}
	return result
}

func randomScalar() (secp256k1.ModNScalar, error) {
	var buf [32]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			return secp256k1.ModNScalar{}, walleterrors.Wrap(walleterrors.KindSigner, err, "failed to read randomness")
		}
		var s secp256k1.ModNScalar
		if overflow := s.SetByteSlice(buf[:]); !overflow && !s.IsZero() {
			return s, nil
		}
	}
}

func scalarBasePointCompressed(s secp256k1.ModNScalar) []byte {
	var point secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&s, &point)
	point.ToAffine()
	pub := secp256k1.NewPublicKey(&point.X, &point.Y)
	return pub.SerializeCompressed()
}

// RecoverSecret reconstructs the polynomial's constant term from t shares
// via Lagrange interpolation at x=0. Used only in tests and recovery
// tooling; the live protocol never gathers enough shares to do this itself.
func RecoverSecret(shares []*VerifiableSecretShare) ([]byte, error) {
	var acc secp256k1.ModNScalar
	for i, share := range shares {
		var yi secp256k1.ModNScalar
		if overflow := yi.SetByteSlice(share.Share); overflow {
			return nil, walleterrors.New(walleterrors.KindInvalidInput, "invalid share scalar")
		}

		var xi secp256k1.ModNScalar
		xi.SetInt(share.Index)

		var num secp256k1.ModNScalar
		num.SetInt(1)
		var den secp256k1.ModNScalar
		den.SetInt(1)

		for j, other := range shares {
			if i == j {
				continue
			}
			var xj secp256k1.ModNScalar
			xj.SetInt(other.Index)

			num.Mul(&xj)

			var diff secp256k1.ModNScalar
			diff.Set(&xi)
			diff.Negate()
			diff.Add(&xj)
			den.Mul(&diff)
		}

		denInv := new(secp256k1.ModNScalar).InverseValNonConst(&den)
		var lagrange secp256k1.ModNScalar
		lagrange.Set(&num)
		lagrange.Mul(denInv)

		var term secp256k1.ModNScalar
		term.Set(&yi)
		term.Mul(&lagrange)
		acc.Add(&term)
	}

	out := acc.Bytes()
	return out[:], nil
}
