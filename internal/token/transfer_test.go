package token

import (
	"bytes"
	"context"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkwallet/spark-wallet-sdk/internal/signer"
)

type fakeQuorum struct {
	finalizedTxID string
	err           error
}

func (f *fakeQuorum) FinalizeTokenTransaction(ctx context.Context, txID string, signedTxHex string) error {
	f.finalizedTxID = txID
	return f.err
}

func testSigner(t *testing.T) *signer.Signer {
	t.Helper()
	s, err := signer.New(bytes.Repeat([]byte{0x66}, 32), &chaincfg.MainNetParams)
	require.NoError(t, err)
	return s
}

func TestTransferFinalizesAndSignsTransaction(t *testing.T) {
	store := seedStore(Output{ID: "o1", TokenID: "tok", ValueSat: 1000, Status: StatusAvailable})
	r, err := store.ReserveTokenOutputs("tok", MinTotalValue(1000), PurposePayment)
	require.NoError(t, err)

	quorum := &fakeQuorum{}
	e := NewEngine(testSigner(t), store,quorum)

	recipientPK := bytes.Repeat([]byte{0x07}, 33)
	tx, err := e.Transfer(context.Background(), r.ID, recipientPK, 600)
	require.NoError(t, err)
	assert.Equal(t, TxFinalized, tx.Status)
	assert.Equal(t, int64(400), tx.ChangeSat)
	assert.Equal(t, tx.ID, quorum.finalizedTxID)
	assert.NotEmpty(t, tx.SignedTxHex)
}

func TestTransferRejectsRecipientAmountAboveReservation(t *testing.T) {
	store := seedStore(Output{ID: "o1", TokenID: "tok", ValueSat: 100, Status: StatusAvailable})
	r, err := store.ReserveTokenOutputs("tok", MinTotalValue(100), PurposePayment)
	require.NoError(t, err)

	e := NewEngine(testSigner(t), store,&fakeQuorum{})
	_, err = e.Transfer(context.Background(), r.ID, bytes.Repeat([]byte{0x08}, 33), 1000)
	assert.Error(t, err)
}

func TestTransferLeavesSignedCancelledWhenQuorumRejects(t *testing.T) {
	store := seedStore(Output{ID: "o1", TokenID: "tok", ValueSat: 100, Status: StatusAvailable})
	r, err := store.ReserveTokenOutputs("tok", MinTotalValue(100), PurposePayment)
	require.NoError(t, err)

	quorum := &fakeQuorum{err: assert.AnError}
	e := NewEngine(testSigner(t), store,quorum)

	tx, err := e.Transfer(context.Background(), r.ID, bytes.Repeat([]byte{0x09}, 33), 50)
	require.Error(t, err)
	assert.Equal(t, TxSignedCancelled, tx.Status)
}
