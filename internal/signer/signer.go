// Package signer holds wallet key material and performs every signing
// operation the rest of the SDK needs: plain ECDSA/Schnorr over identity or
// derived leaf keys, ECIES for transfer-package secrets, and the two-round
// FROST protocol used to co-sign with the operator quorum. No secret ever
// crosses the package boundary; callers get back signatures, public keys,
// and opaque handles.
package signer

import (
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
)

// Signer is the wallet's sole holder of private key material.
type Signer struct {
	mu         sync.Mutex
	master     *hdkeychain.ExtendedKey
	identity   *btcec.PrivateKey
	net        *chaincfg.Params
	noncePool  *noncePool
	randomKeys map[string]*btcec.PrivateKey // handle -> key, for generate_random_key
}

// New builds a Signer from a BIP32 master extended key. seed is the raw
// BIP39-derived seed bytes (or equivalent entropy); net selects which
// network's version bytes the derived extended keys use.
func New(seed []byte, net *chaincfg.Params) (*Signer, error) {
	master, err := hdkeychain.NewMaster(seed, net)
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindSigner, err, "failed to derive master key")
	}
	identity, err := master.ECPrivKey()
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindSigner, err, "failed to derive identity key")
	}
	return &Signer{
		master:     master,
		identity:   identity,
		net:        net,
		noncePool:  newNoncePool(),
		randomKeys: make(map[string]*btcec.PrivateKey),
	}, nil
}

// IdentityPublicKey returns the wallet's stable identity public key,
// compressed 33-byte form.
func (s *Signer) IdentityPublicKey() []byte {
	return s.identity.PubKey().SerializeCompressed()
}

// DerivationPath is a BIP32-style list of child indexes. Values >=
// hdkeychain.HardenedKeyStart are hardened.
type DerivationPath []uint32

// derive walks the path from the master key, returning the resulting
// extended key. Called under s.mu by every operation that needs a leaf key.
func (s *Signer) derive(path DerivationPath) (*hdkeychain.ExtendedKey, error) {
	key := s.master
	for _, idx := range path {
		child, err := key.Derive(idx)
		if err != nil {
			return nil, walleterrors.Wrap(walleterrors.KindSigner, err, "key derivation failed")
		}
		key = child
	}
	return key, nil
}

// DerivePublicKey returns the compressed 33-byte public key at path.
func (s *Signer) DerivePublicKey(path DerivationPath) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ext, err := s.derive(path)
	if err != nil {
		return nil, err
	}
	pub, err := ext.ECPubKey()
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindSigner, err, "failed to derive public key")
	}
	return pub.SerializeCompressed(), nil
}

func (s *Signer) derivePrivKey(path DerivationPath) (*btcec.PrivateKey, error) {
	ext, err := s.derive(path)
	if err != nil {
		return nil, err
	}
	return ext.ECPrivKey()
}

// GenerateRandomKey creates a fresh, unrelated private key and returns an
// opaque handle for it plus its compressed public key. Used for per-leaf
// signing keys generated during a transfer (spec 4.5 step 1).
func (s *Signer) GenerateRandomKey() (handle string, pubKey []byte, err error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return "", nil, walleterrors.Wrap(walleterrors.KindSigner, err, "failed to generate random key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	h := sha256.Sum256(priv.PubKey().SerializeCompressed())
	handle = fmt.Sprintf("%x", h[:8])
	s.randomKeys[handle] = priv
	return handle, priv.PubKey().SerializeCompressed(), nil
}

// privKeyForHandle returns the private key behind a generate_random_key
// handle, or an error if it is unknown. It is unexported, so the generated
// key never leaves this package's control.
func (s *Signer) privKeyForHandle(handle string) (*btcec.PrivateKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	priv, ok := s.randomKeys[handle]
	if !ok {
		return nil, walleterrors.New(walleterrors.KindSigner, "unknown key handle")
	}
	return priv, nil
}

// ForgetHandle drops a random key handle once it has been tweaked away to
// an operator-recognized key, so secret material doesn't linger.
func (s *Signer) ForgetHandle(handle string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.randomKeys, handle)
}
