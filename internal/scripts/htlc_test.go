package scripts

import (
	"crypto/rand"
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randPubKey(t *testing.T) *btcec.PublicKey {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return priv.PubKey()
}

func TestBuildPreimageSwapHTLCProducesValidPkScript(t *testing.T) {
	var preimage [32]byte
	_, err := rand.Read(preimage[:])
	require.NoError(t, err)
	paymentHash := sha256.Sum256(preimage[:])

	htlc, err := BuildPreimageSwapHTLC(paymentHash, randPubKey(t), randPubKey(t))
	require.NoError(t, err)

	script, err := htlc.PkScript()
	require.NoError(t, err)
	assert.Len(t, script, 34)
	assert.Equal(t, byte(0x51), script[0]) // OP_1
}

func TestHashLockWitnessRejectsWrongPreimage(t *testing.T) {
	paymentHash := sha256.Sum256([]byte("correct preimage"))
	htlc, err := BuildPreimageSwapHTLC(paymentHash, randPubKey(t), randPubKey(t))
	require.NoError(t, err)

	var wrongPreimage [32]byte
	copy(wrongPreimage[:], []byte("not the right one"))

	_, err = htlc.HashLockWitness(nil, wrongPreimage)
	assert.Error(t, err)
}

func TestBuildPreimageSwapHTLCDistinctOutputPerPaymentHash(t *testing.T) {
	hashLockPub := randPubKey(t)
	sequencePub := randPubKey(t)

	h1, err := BuildPreimageSwapHTLC(sha256.Sum256([]byte("a")), hashLockPub, sequencePub)
	require.NoError(t, err)
	h2, err := BuildPreimageSwapHTLC(sha256.Sum256([]byte("b")), hashLockPub, sequencePub)
	require.NoError(t, err)

	assert.NotEqual(t, h1.OutputKey.SerializeCompressed(), h2.OutputKey.SerializeCompressed())
}
