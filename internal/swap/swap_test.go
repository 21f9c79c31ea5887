package swap

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
	"github.com/sparkwallet/spark-wallet-sdk/internal/sspclient"
)

type fakeQuorum struct {
	cosignCalls int
}

func (f *fakeQuorum) CosignRefund(ctx context.Context, nodeID string, refundTxHex string, userShare []byte) ([]byte, error) {
	f.cosignCalls++
	return bytes.Repeat([]byte{0x03}, 64), nil
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
	s, err := signer.New(bytes.Repeat([]byte{0x55}, 32), &chaincfg.MainNetParams)
	require.NoError(t, err)
	return s
}

func storeWithLeaves(t *testing.T, leaves ...leafstore.Leaf) *leafstore.Store {
	t.Helper()
	store := leafstore.New(&seededRefresher{leaves: leaves}, noopRefundSigner{}, time.Hour, 10)
	require.NoError(t, store.Refresh(context.Background()))
	return store
}

func TestRebalanceSubmitsAdaptedSignaturesAndRevealsSecrets(t *testing.T) {
	var submitted []sspclient.SwapAdaptedSignature
	var revealedSwapID string
	var revealedSecrets map[string][]byte

	srv := newFakeSSP(t, func(method string, params rawParams) any {
		switch method {
		case "request_leaves_swap_quote":
			return sspclient.LeavesSwapQuote{QuoteID: "q1", TargetValueSat: 900, FeeSat: 10}
		case "submit_swap_adapted_signatures":
			var p struct {
				QuoteID    string                         `json:"quote_id"`
				Signatures []sspclient.SwapAdaptedSignature `json:"signatures"`
			}
			params.decode(t, &p)
			submitted = p.Signatures
			return sspclient.SwapAcceptance{
				SwapID:    "swap-1",
				NewLeaves: []sspclient.SwapLeafDenomination{{NodeID: "new1", ValueSat: 900}},
				FeeSat:    10,
			}
		case "reveal_swap_secrets":
			var p struct {
				SwapID  string            `json:"swap_id"`
				Secrets map[string][]byte `json:"secrets"`
			}
			params.decode(t, &p)
			revealedSwapID = p.SwapID
			revealedSecrets = p.Secrets
			return struct{}{}
		default:
			t.Fatalf("unexpected method %s", method)
			return nil
		}
	})
	defer srv.Close()

	s := testSigner(t)
	ssp, err := sspclient.New(context.Background(), sspclient.Config{BaseURL: srv.URL}, s)
	require.NoError(t, err)

	leaves := []leafstore.Leaf{{NodeID: "n1", ValueSat: 1000, Status: leafstore.StatusAvailable, RefundTxHex: "deadbeef"}}
	store := storeWithLeaves(t, leaves...)
	quorum := &fakeQuorum{}
	e := New(s, store, quorum, ssp)

	result, err := e.Rebalance(context.Background(), leaves, []int64{900})
	require.NoError(t, err)
	assert.Equal(t, "swap-1", result.SwapID)
	assert.Equal(t, 1, quorum.cosignCalls)
	require.Len(t, submitted, 1)
	assert.Equal(t, "n1", submitted[0].NodeID)
	assert.NotEmpty(t, submitted[0].AdaptorPK)
	assert.Equal(t, "swap-1", revealedSwapID)
	assert.Contains(t, revealedSecrets, "n1")
}

func TestRebalanceRejectsTargetsExceedingInputValue(t *testing.T) {
	s := testSigner(t)
	leaves := []leafstore.Leaf{{NodeID: "n1", ValueSat: 100, Status: leafstore.StatusAvailable, RefundTxHex: "deadbeef"}}
	store := storeWithLeaves(t, leaves...)
	e := New(s, store, &fakeQuorum{}, nil)

	_, err := e.Rebalance(context.Background(), leaves, []int64{1000})
	require.Error(t, err)
}
