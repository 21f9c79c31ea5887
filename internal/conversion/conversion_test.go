package conversion

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkwallet/spark-wallet-sdk/internal/leafstore"
	"github.com/sparkwallet/spark-wallet-sdk/internal/signer"
	"github.com/sparkwallet/spark-wallet-sdk/internal/token"
	"github.com/sparkwallet/spark-wallet-sdk/internal/transfer"
)

type fakeTransferQuorum struct{}

func (fakeTransferQuorum) CosignRefund(ctx context.Context, nodeID string, refundTxHex string, userShare []byte) ([]byte, error) {
	return bytes.Repeat([]byte{0x01}, 64), nil
}

func (fakeTransferQuorum) DeliverTransferPackage(ctx context.Context, t *transfer.Transfer) error {
	return nil
}

func (fakeTransferQuorum) ClaimTransferPackage(ctx context.Context, transferID string, newOwnerKeys []transfer.LeafKeyTweak) error {
	return nil
}

type seededRefresher struct {
	leaves []leafstore.Leaf
}

func (s *seededRefresher) ListOwnedLeaves(ctx context.Context) ([]leafstore.Leaf, map[string][]string, error) {
	return s.leaves, map[string][]string{"op-0": {"n1"}}, nil
}

type noopRefundSigner struct{}

func (noopRefundSigner) RefreshRefund(ctx context.Context, nodeID string) (string, time.Time, error) {
	return "", time.Time{}, nil
}

func testSigner(t *testing.T) *signer.Signer {
	t.Helper()
	s, err := signer.New(bytes.Repeat([]byte{0x51}, 32), &chaincfg.MainNetParams)
	require.NoError(t, err)
	return s
}

func testTransferEngine(t *testing.T) *transfer.Engine {
	t.Helper()
	refresher := &seededRefresher{
		leaves: []leafstore.Leaf{{NodeID: "n1", ValueSat: 1000, Status: leafstore.StatusAvailable, RefundTxHex: "deadbeef"}},
	}
	store := leafstore.New(refresher, noopRefundSigner{}, time.Hour, 10)
	require.NoError(t, store.Refresh(context.Background()))
	return transfer.New(testSigner(t), store, fakeTransferQuorum{}, nil)
}

type fakeTokenQuorum struct{}

func (fakeTokenQuorum) FinalizeTokenTransaction(ctx context.Context, txID string, signedTxHex string) error {
	return nil
}

type fixedQuoter struct {
	rate float64
	next float64
	used bool
}

func (q *fixedQuoter) SatsPerToken(ctx context.Context, tokenIdentifier string) (float64, error) {
	if !q.used {
		q.used = true
		return q.rate, nil
	}
	return q.next, nil
}

func newEngineWithStore(t *testing.T) (*Engine, *token.Store) {
	t.Helper()
	tokenStore := token.New()
	tokenStore.SetTokensOutputs([]token.Output{{ID: "o1", TokenID: "tok", ValueSat: 1000, Status: token.StatusAvailable}})
	tokenEngine := token.NewEngine(testSigner(t), tokenStore, fakeTokenQuorum{})
	transferEngine := testTransferEngine(t)
	quoter := &fixedQuoter{rate: 10, next: 10}
	e := New(transferEngine, tokenEngine, quoter, bytes.Repeat([]byte{0x22}, 33))
	return e, tokenStore
}

func TestConvertFromBitcoinSendsBothLegsWithinSlippage(t *testing.T) {
	e, tokenStore := newEngineWithStore(t)
	reservation, err := tokenStore.ReserveTokenOutputs("tok", token.MinTotalValue(1000), token.PurposePayment)
	require.NoError(t, err)

	result, err := e.Convert(context.Background(), Options{
		Type:            FromBitcoin,
		TokenIdentifier: "tok",
		MaxSlippageBps:  50,
	}, 1000, 600, reservation.ID, bytes.Repeat([]byte{0x09}, 33))
	require.NoError(t, err)
	assert.Equal(t, "SparkTransfer", result.Details.From.Method)
	assert.Equal(t, "TokenTransfer", result.Details.To.Method)
	assert.NotEmpty(t, result.TransferID)
	assert.NotEmpty(t, result.TokenTxID)
}

func TestConvertFromBitcoinFailsWhenSlippageExceeded(t *testing.T) {
	tokenStore := token.New()
	tokenStore.SetTokensOutputs([]token.Output{{ID: "o1", TokenID: "tok", ValueSat: 1000, Status: token.StatusAvailable}})
	tokenEngine := token.NewEngine(testSigner(t), tokenStore, fakeTokenQuorum{})
	reservation, err := tokenStore.ReserveTokenOutputs("tok", token.MinTotalValue(1000), token.PurposePayment)
	require.NoError(t, err)

	transferEngine := testTransferEngine(t)
	quoter := &fixedQuoter{rate: 10, next: 20} // price doubled between legs
	e := New(transferEngine, tokenEngine, quoter, bytes.Repeat([]byte{0x22}, 33))

	_, err = e.Convert(context.Background(), Options{
		Type:            FromBitcoin,
		TokenIdentifier: "tok",
		MaxSlippageBps:  50,
	}, 1000, 600, reservation.ID, bytes.Repeat([]byte{0x09}, 33))
	assert.ErrorIs(t, err, ErrSlippageExceeded)
}

func TestConvertToBitcoinSendsBothLegsWithinSlippage(t *testing.T) {
	e, tokenStore := newEngineWithStore(t)
	reservation, err := tokenStore.ReserveTokenOutputs("tok", token.MinTotalValue(1000), token.PurposePayment)
	require.NoError(t, err)

	recipient := testSigner(t)
	result, err := e.Convert(context.Background(), Options{
		Type:            ToBitcoin,
		TokenIdentifier: "tok",
		MaxSlippageBps:  50,
	}, 1000, 600, reservation.ID, recipient.IdentityPublicKey())
	require.NoError(t, err)
	assert.Equal(t, "TokenTransfer", result.Details.From.Method)
	assert.Equal(t, "SparkTransfer", result.Details.To.Method)
}
