package signer

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
)

// FrostCommitment is the client's round-1 contribution: two hiding/binding
// nonce public points, keyed by a commitment hash so round-2 can find the
// matching secret nonces (spec 9, "secret lifetimes").
type FrostCommitment struct {
	Hash      string
	Hiding    []byte // compressed 33-byte point
	Binding   []byte
}

type nonceSecrets struct {
	hiding  secp256k1.ModNScalar
	binding secp256k1.ModNScalar
}

// noncePool correlates outstanding round-1 nonces with their commitment
// hash so round-2 (SignFrost) and aggregation can retrieve them, and evicts
// entries once used or abandoned.
type noncePool struct {
	mu      sync.Mutex
	entries map[string]nonceSecrets
}

func newNoncePool() *noncePool {
	return &noncePool{entries: make(map[string]nonceSecrets)}
}

func (p *noncePool) put(hash string, s nonceSecrets) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[hash] = s
}

func (p *noncePool) take(hash string) (nonceSecrets, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.entries[hash]
	if ok {
		delete(p.entries, hash)
	}
	return s, ok
}

// Evict drops a commitment's nonces without using them, for sessions that
// time out or are cancelled (spec 5: "drains in-flight FROST sessions").
func (p *noncePool) Evict(hash string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, hash)
}

// GenerateFrostCommitments produces a fresh round-1 commitment pair for the
// leaf key at path. The secret nonces stay in the signer's nonce pool,
// addressable only by the returned commitment hash.
func (s *Signer) GenerateFrostCommitments(path DerivationPath) (*FrostCommitment, error) {
	hidingSecret, err := randomScalar()
	if err != nil {
		return nil, err
	}
	bindingSecret, err := randomScalar()
	if err != nil {
		return nil, err
	}

	hidingPub := scalarBasePointCompressed(hidingSecret)
	bindingPub := scalarBasePointCompressed(bindingSecret)

	h := sha256.New()
	h.Write(hidingPub)
	h.Write(bindingPub)
	hash := hex.EncodeToString(h.Sum(nil))

	s.noncePool.put(hash, nonceSecrets{hiding: hidingSecret, binding: bindingSecret})

	return &FrostCommitment{Hash: hash, Hiding: hidingPub, Binding: bindingPub}, nil
}

// FrostSignRequest carries everything needed to produce this signer's
// round-2 share for one FROST signing session.
type FrostSignRequest struct {
	CommitmentHash  string
	Message         []byte // 32-byte sighash
	GroupCommitment []byte // sum of all participants' binding-adjusted nonce points, compressed 33 bytes
	BindingFactor   []byte // 32-byte scalar binding this participant's nonce into the group commitment
	Path            DerivationPath
}

// SignFrost computes this participant's round-2 signature share:
//
//	z_i = hiding_nonce + binding_factor * binding_nonce + challenge * d_i
//
// where d_i is the leaf key's private scalar and challenge is the BIP340
// challenge hash over (group_commitment, group_pubkey, message). The
// nonces are evicted from the pool after use — a commitment hash is
// single-use.
func (s *Signer) SignFrost(req *FrostSignRequest) ([]byte, error) {
	if len(req.Message) != 32 {
		return nil, walleterrors.New(walleterrors.KindSigner, "message must be 32 bytes")
	}

	nonces, ok := s.noncePool.take(req.CommitmentHash)
	if !ok {
		return nil, walleterrors.New(walleterrors.KindSigner, "no nonce found for commitment hash")
	}

	s.mu.Lock()
	priv, err := s.derivePrivKey(req.Path)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var bindingFactor secp256k1.ModNScalar
	if overflow := bindingFactor.SetByteSlice(req.BindingFactor); overflow {
		return nil, walleterrors.New(walleterrors.KindSigner, "invalid binding factor")
	}

	groupPub, err := secp256k1.ParsePubKey(req.GroupCommitment)
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindSigner, err, "invalid group commitment point")
	}

	challenge := bip340Challenge(groupPub, priv.PubKey(), req.Message)

	var privScalar secp256k1.ModNScalar
	privScalar.Set(&priv.Key)

	var term1 secp256k1.ModNScalar
	term1.Set(&nonces.binding)
	term1.Mul(&bindingFactor)

	var term2 secp256k1.ModNScalar
	term2.Set(&challenge)
	term2.Mul(&privScalar)

	var z secp256k1.ModNScalar
	z.Set(&nonces.hiding)
	z.Add(&term1)
	z.Add(&term2)

	out := z.Bytes()
	return out[:], nil
}

// AggregateFrost sums round-2 shares into a final 64-byte BIP340 signature
// over (group_commitment_x, z). Shares must already have odd-Y correction
// applied by the caller per participant if their local nonce's point had an
// odd Y coordinate — this SDK only aggregates, it does not run the
// coordinator role of collecting shares from other operators.
func AggregateFrost(groupCommitment []byte, shares [][]byte) ([]byte, error) {
	groupPub, err := secp256k1.ParsePubKey(groupCommitment)
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindSigner, err, "invalid group commitment point")
	}

	var zSum secp256k1.ModNScalar
	for _, share := range shares {
		var z secp256k1.ModNScalar
		if overflow := z.SetByteSlice(share); overflow {
			return nil, walleterrors.New(walleterrors.KindSigner, "invalid signature share")
		}
		zSum.Add(&z)
	}

	rBytes := groupPub.X().Bytes()
	zBytes := zSum.Bytes()

	sig := make([]byte, 64)
	copy(sig[0:32], rBytes[:])
	copy(sig[32:64], zBytes[:])
	return sig, nil
}

func bip340Challenge(r, pub *secp256k1.PublicKey, msg []byte) secp256k1.ModNScalar {
	tag := sha256.Sum256([]byte("BIP0340/challenge"))
	h := sha256.New()
	h.Write(tag[:])
	h.Write(tag[:])
	rx := r.X().Bytes()
	px := pub.X().Bytes()
	h.Write(rx[:])
	h.Write(px[:])
	h.Write(msg)
	sum := h.Sum(nil)

	var challenge secp256k1.ModNScalar
	challenge.SetByteSlice(sum)
	return challenge
}
