package walletsdk

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkwallet/spark-wallet-sdk/internal/signer"
)

func testWalletSigner(t *testing.T, fill byte) (*Wallet, *signer.Signer) {
	t.Helper()
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = fill + byte(i)
	}
	s, err := signer.New(seed, &chaincfg.MainNetParams)
	require.NoError(t, err)
	return &Wallet{signer: s}, s
}

func TestSignMessageCheckMessageRoundTrip(t *testing.T) {
	w, s := testWalletSigner(t, 1)
	message := []byte("withdraw 10000 sats to cold storage")

	sig, err := w.SignMessage(message)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	ok, err := w.CheckMessage(message, sig, s.IdentityPublicKey())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckMessageRejectsWrongSigner(t *testing.T) {
	w, _ := testWalletSigner(t, 1)
	other, _ := testWalletSigner(t, 50)
	message := []byte("transfer authorization")

	sig, err := w.SignMessage(message)
	require.NoError(t, err)

	ok, err := w.CheckMessage(message, sig, other.signer.IdentityPublicKey())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckMessageRejectsTamperedMessage(t *testing.T) {
	w, s := testWalletSigner(t, 1)
	message := []byte("original message")

	sig, err := w.SignMessage(message)
	require.NoError(t, err)

	ok, err := w.CheckMessage([]byte("tampered message"), sig, s.IdentityPublicKey())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckMessageRejectsBadSignatureLength(t *testing.T) {
	w, s := testWalletSigner(t, 1)
	_, err := w.CheckMessage([]byte("msg"), []byte{1, 2, 3}, s.IdentityPublicKey())
	assert.Error(t, err)
}

func TestCheckMessageRejectsInvalidSignerKey(t *testing.T) {
	w, _ := testWalletSigner(t, 1)
	sig, err := w.SignMessage([]byte("msg"))
	require.NoError(t, err)

	_, err = w.CheckMessage([]byte("msg"), sig, []byte{1, 2, 3})
	assert.Error(t, err)
}
