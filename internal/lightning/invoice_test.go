package lightning

import (
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyPreimageMatchesHash(t *testing.T) {
	preimage := [32]byte{}
	copy(preimage[:], []byte("preimage-preimage-preimage-pad!"))
	inv := &Invoice{PaymentHash: sha256.Sum256(preimage[:])}
	assert.True(t, inv.VerifyPreimage(preimage))
}

func TestVerifyPreimageRejectsWrongPreimage(t *testing.T) {
	preimage := [32]byte{}
	copy(preimage[:], []byte("preimage-preimage-preimage-pad!"))
	wrong := [32]byte{}
	copy(wrong[:], []byte("wrong-preimage-wrong-preimage!!"))
	inv := &Invoice{PaymentHash: sha256.Sum256(preimage[:])}
	assert.False(t, inv.VerifyPreimage(wrong))
}

func TestAmountSatRoundsDownFromMsat(t *testing.T) {
	inv := &Invoice{AmountMsat: 1500}
	assert.Equal(t, int64(1), inv.AmountSat())
}

func TestParseInvoiceRejectsGarbage(t *testing.T) {
	_, err := ParseInvoice("not-an-invoice", &chaincfg.RegressionNetParams)
	require.Error(t, err)
}
