package signer

import (
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	ecdsa_btcec "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSigner(t *testing.T) *Signer {
	return testSignerWithByte(t, 1)
}

func testSignerWithByte(t *testing.T, fill byte) *Signer {
	t.Helper()
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = fill + byte(i)
	}
	s, err := New(seed, &chaincfg.MainNetParams)
	require.NoError(t, err)
	return s
}

func TestIdentityPublicKeyStable(t *testing.T) {
	s := testSigner(t)
	a := s.IdentityPublicKey()
	b := s.IdentityPublicKey()
	assert.Equal(t, a, b)
	assert.Len(t, a, 33)
}

func TestDerivePublicKeyDeterministic(t *testing.T) {
	s := testSigner(t)
	path := LeafPath(42)

	pk1, err := s.DerivePublicKey(path)
	require.NoError(t, err)
	pk2, err := s.DerivePublicKey(path)
	require.NoError(t, err)
	assert.Equal(t, pk1, pk2)

	other, err := s.DerivePublicKey(LeafPath(43))
	require.NoError(t, err)
	assert.NotEqual(t, pk1, other)
}

func TestSignECDSARoundTrip(t *testing.T) {
	s := testSigner(t)
	path := LeafPath(1)
	msg := sha256.Sum256([]byte("spark transfer refund"))

	sig, err := s.SignECDSA(msg[:], path)
	require.NoError(t, err)

	pubBytes, err := s.DerivePublicKey(path)
	require.NoError(t, err)
	pub, err := btcec.ParsePubKey(pubBytes)
	require.NoError(t, err)

	parsedSig, err := ecdsa_btcec.ParseDERSignature(sig)
	require.NoError(t, err)
	assert.True(t, parsedSig.Verify(msg[:], pub))
}

func TestSignECDSARecoverableLength(t *testing.T) {
	s := testSigner(t)
	msg := sha256.Sum256([]byte("auth challenge"))

	sig, err := s.SignIdentityRecoverable(msg[:])
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.GreaterOrEqual(t, sig[64], byte(31))
	assert.LessOrEqual(t, sig[64], byte(34))
}

func TestSignECDSARejectsShortMessage(t *testing.T) {
	s := testSigner(t)
	_, err := s.SignECDSA([]byte("short"), LeafPath(1))
	assert.Error(t, err)
}

func TestSignHashSchnorrRoundTrip(t *testing.T) {
	s := testSigner(t)
	path := LeafPath(7)
	hash := sha256.Sum256([]byte("taproot key spend"))

	sigBytes, err := s.SignHashSchnorr(hash[:], path)
	require.NoError(t, err)

	pubBytes, err := s.DerivePublicKey(path)
	require.NoError(t, err)
	pub, err := schnorr.ParsePubKey(pubBytes[1:])
	require.NoError(t, err)

	sig, err := schnorr.ParseSignature(sigBytes)
	require.NoError(t, err)
	assert.True(t, sig.Verify(hash[:], pub))
}

func TestEciesRoundTrip(t *testing.T) {
	sender := testSignerWithByte(t, 1)
	receiver := testSignerWithByte(t, 99)

	plaintext := []byte("transfer secret cipher payload")
	blob, err := sender.EciesEncrypt(plaintext, receiver.IdentityPublicKey())
	require.NoError(t, err)

	decrypted, err := receiver.EciesDecrypt(blob, DerivationPath{})
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEciesDecryptWrongRecipientFails(t *testing.T) {
	sender := testSignerWithByte(t, 1)
	receiver := testSignerWithByte(t, 50)
	wrongReceiver := testSignerWithByte(t, 99)

	blob, err := sender.EciesEncrypt([]byte("secret"), receiver.IdentityPublicKey())
	require.NoError(t, err)

	_, err = wrongReceiver.EciesDecrypt(blob, DerivationPath{})
	assert.Error(t, err)
}

func TestGenerateRandomKeyUnique(t *testing.T) {
	s := testSigner(t)
	_, pub1, err := s.GenerateRandomKey()
	require.NoError(t, err)
	_, pub2, err := s.GenerateRandomKey()
	require.NoError(t, err)
	assert.NotEqual(t, pub1, pub2)
}
