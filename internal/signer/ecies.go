package signer

import (
	"crypto/rand"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"crypto/sha256"

	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
)

// eciesInfo binds the derived symmetric key to its purpose so a key reused
// across contexts can't be confused for another's ciphertext.
const eciesInfo = "spark-wallet-ecies-v1"

// EciesEncrypt encrypts plaintext to recipientPubKey: an ephemeral keypair
// is generated per call, ECDH'd against recipientPubKey, and the shared
// point is fed through HKDF-SHA256 to derive a ChaCha20-Poly1305 key.
// Output is ephemeral_pubkey(33) || nonce(12) || ciphertext.
func (s *Signer) EciesEncrypt(plaintext []byte, recipientPubKey []byte) ([]byte, error) {
	recipient, err := btcec.ParsePubKey(recipientPubKey)
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindInvalidInput, err, "invalid recipient public key")
	}

	ephemeral, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindSigner, err, "failed to generate ephemeral key")
	}

	sharedKey, err := eciesSharedKey(ephemeral, recipient)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.New(sharedKey)
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindSigner, err, "failed to build aead")
	}

	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindSigner, err, "failed to generate nonce")
	}

	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	ephemeralPub := ephemeral.PubKey().SerializeCompressed()
	out := make([]byte, 0, len(ephemeralPub)+len(nonce)+len(ciphertext))
	out = append(out, ephemeralPub...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return out, nil
}

// EciesDecrypt reverses EciesEncrypt using the recipient key at path.
func (s *Signer) EciesDecrypt(blob []byte, path DerivationPath) ([]byte, error) {
	if len(blob) < 33+chacha20poly1305.NonceSize {
		return nil, walleterrors.New(walleterrors.KindInvalidInput, "ciphertext too short")
	}

	ephemeralPub, err := btcec.ParsePubKey(blob[:33])
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindInvalidInput, err, "invalid ephemeral public key")
	}
	nonce := blob[33 : 33+chacha20poly1305.NonceSize]
	ciphertext := blob[33+chacha20poly1305.NonceSize:]

	s.mu.Lock()
	priv, err := s.derivePrivKey(path)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	sharedKey, err := eciesSharedKey(priv, ephemeralPub)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.New(sharedKey)
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindSigner, err, "failed to build aead")
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindSigner, err, "decryption failed")
	}
	return plaintext, nil
}

// eciesSharedKey computes ECDH(priv, pub) via decred's secp256k1 shared
// secret helper (same curve, reserialized) and stretches it with HKDF into
// a 32-byte ChaCha20-Poly1305 key.
func eciesSharedKey(priv *btcec.PrivateKey, pub *btcec.PublicKey) ([]byte, error) {
	dPriv := secp256k1.PrivKeyFromBytes(priv.Serialize())
	dPub, err := secp256k1.ParsePubKey(pub.SerializeCompressed())
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindSigner, err, "failed to reparse public key")
	}

	shared := secp256k1.GenerateSharedSecret(dPriv, dPub)

	kdf := hkdf.New(sha256.New, shared, nil, []byte(eciesInfo))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindSigner, err, "hkdf expansion failed")
	}
	return key, nil
}
