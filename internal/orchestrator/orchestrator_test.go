package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkwallet/spark-wallet-sdk/internal/deposit"
	"github.com/sparkwallet/spark-wallet-sdk/internal/leafstore"
	"github.com/sparkwallet/spark-wallet-sdk/internal/signer"
	"github.com/sparkwallet/spark-wallet-sdk/internal/sspclient"
	"github.com/sparkwallet/spark-wallet-sdk/internal/token"
	"github.com/sparkwallet/spark-wallet-sdk/internal/transfer"
)

func testSigner(t *testing.T) *signer.Signer {
	t.Helper()
	s, err := signer.New(bytes.Repeat([]byte{0x77}, 32), &chaincfg.MainNetParams)
	require.NoError(t, err)
	return s
}

func fakeSSP(t *testing.T, onCall func(method string, params json.RawMessage) any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/challenge", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(struct {
			Challenge []byte `json:"challenge"`
		}{Challenge: bytes.Repeat([]byte{0x5E}, 32)})
	})
	mux.HandleFunc("/auth/verify", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(struct {
			SessionToken string `json:"session_token"`
		}{SessionToken: "session-orch"})
	})
	mux.HandleFunc("/rpc", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(onCall(req.Method, req.Params))
	})
	return httptest.NewServer(mux)
}

type fakeSink struct {
	events []Event
}

func (f *fakeSink) Emit(e Event) { f.events = append(f.events, e) }

type fakeStore struct {
	inserted []*Payment
}

func (f *fakeStore) Insert(ctx context.Context, p *Payment) error {
	f.inserted = append(f.inserted, p)
	return nil
}

type fakeTransferQuorum struct{ deliverCalls int }

func (f *fakeTransferQuorum) CosignRefund(ctx context.Context, nodeID string, refundTxHex string, userShare []byte) ([]byte, error) {
	return bytes.Repeat([]byte{0x01}, 64), nil
}

func (f *fakeTransferQuorum) DeliverTransferPackage(ctx context.Context, t *transfer.Transfer) error {
	f.deliverCalls++
	return nil
}

func (f *fakeTransferQuorum) ClaimTransferPackage(ctx context.Context, transferID string, newOwnerKeys []transfer.LeafKeyTweak) error {
	return nil
}

type seededRefresher struct{ leaves []leafstore.Leaf }

func (s *seededRefresher) ListOwnedLeaves(ctx context.Context) ([]leafstore.Leaf, map[string][]string, error) {
	return s.leaves, map[string][]string{"op-0": {"n1"}}, nil
}

type noopRefundSigner struct{}

func (noopRefundSigner) RefreshRefund(ctx context.Context, nodeID string) (string, time.Time, error) {
	return "", time.Time{}, nil
}

func testTransferEngine(t *testing.T, quorum *fakeTransferQuorum) (*transfer.Engine, *signer.Signer) {
	t.Helper()
	s := testSigner(t)
	refresher := &seededRefresher{
		leaves: []leafstore.Leaf{{NodeID: "n1", ValueSat: 1000, Status: leafstore.StatusAvailable, RefundTxHex: "deadbeef"}},
	}
	leaves := leafstore.New(refresher, noopRefundSigner{}, time.Hour, 10)
	require.NoError(t, leaves.Refresh(context.Background()))
	return transfer.New(s, leaves, quorum, nil), s
}

func TestPrepareSendPaymentRejectsUnrecognizedDestination(t *testing.T) {
	o := New(&chaincfg.MainNetParams, nil, nil, nil, nil, nil, nil)
	_, err := o.PrepareSendPayment(context.Background(), PrepareRequest{Destination: "not-a-valid-anything"})
	assert.Error(t, err)
}

func TestPrepareSendPaymentDispatchesSparkTransfer(t *testing.T) {
	o := New(&chaincfg.MainNetParams, nil, nil, nil, nil, nil, nil)
	resp, err := o.PrepareSendPayment(context.Background(), PrepareRequest{Destination: "sprk1qexampleaddress", AmountSat: 500})
	require.NoError(t, err)
	assert.Equal(t, MethodSparkTransfer, resp.Method)
}

func TestPrepareSendPaymentDispatchesTokenTransferWhenTokenIdentifierSet(t *testing.T) {
	o := New(&chaincfg.MainNetParams, nil, nil, nil, nil, nil, nil)
	resp, err := o.PrepareSendPayment(context.Background(), PrepareRequest{
		Destination:     "sprk1qexampleaddress",
		AmountSat:       500,
		TokenIdentifier: "tok1",
	})
	require.NoError(t, err)
	assert.Equal(t, MethodTokenTransfer, resp.Method)
}

func TestPrepareSendPaymentDispatchesCooperativeExitWithMediumQuote(t *testing.T) {
	srv := fakeSSP(t, func(method string, params json.RawMessage) any {
		assert.Equal(t, "request_coop_exit_quote", method)
		var p struct {
			Speed string `json:"speed"`
		}
		require.NoError(t, json.Unmarshal(params, &p))
		return sspclient.CoopExitQuote{QuoteID: "cq-" + p.Speed, FeeSat: 77}
	})
	defer srv.Close()

	s := testSigner(t)
	c, err := sspclient.New(context.Background(), sspclient.Config{BaseURL: srv.URL}, s)
	require.NoError(t, err)
	depositEngine := deposit.New(s, c, &chaincfg.MainNetParams)

	o := New(&chaincfg.MainNetParams, nil, depositEngine, nil, nil, nil, nil)
	resp, err := o.PrepareSendPayment(context.Background(), PrepareRequest{Destination: "bc1qexampleaddress", AmountSat: 50_000})
	require.NoError(t, err)
	assert.Equal(t, MethodCooperativeExit, resp.Method)
	assert.Equal(t, "cq-medium", resp.CoopExitQuoteID)
	assert.Equal(t, int64(77), resp.FeeSat)
}

func TestSendPaymentReturnsCachedPaymentForRepeatedIdempotencyKey(t *testing.T) {
	sink := &fakeSink{}
	store := &fakeStore{}
	o := New(&chaincfg.MainNetParams, nil, nil, nil, nil, store, sink)

	cached := &Payment{ID: "idem-1", Status: StatusSucceeded, CreatedAt: time.Now()}
	o.byIdemKey["idem-1"] = cached

	got, err := o.SendPayment(context.Background(), &PrepareResponse{Method: MethodSparkTransfer}, SendOptions{IdempotencyKey: "idem-1"})
	require.NoError(t, err)
	assert.Same(t, cached, got)
	assert.Empty(t, store.inserted, "a cached payment is not re-inserted")
	assert.Empty(t, sink.events, "a cached payment does not re-emit")
}

func TestLookupByIdempotencyKey(t *testing.T) {
	o := New(&chaincfg.MainNetParams, nil, nil, nil, nil, nil, nil)

	_, ok := o.LookupByIdempotencyKey("missing")
	assert.False(t, ok)

	cached := &Payment{ID: "idem-2", Status: StatusSucceeded}
	o.byIdemKey["idem-2"] = cached

	got, ok := o.LookupByIdempotencyKey("idem-2")
	require.True(t, ok)
	assert.Same(t, cached, got)
}

func TestSendPaymentSparkTransferToOwnIdentityShortCircuits(t *testing.T) {
	quorum := &fakeTransferQuorum{}
	transferEngine, s := testTransferEngine(t, quorum)
	sink := &fakeSink{}
	store := &fakeStore{}
	o := New(&chaincfg.MainNetParams, nil, nil, transferEngine, nil, store, sink)

	payment, err := o.SendPayment(context.Background(), &PrepareResponse{Method: MethodSparkTransfer, AmountSat: 1000}, SendOptions{
		ReceiverIdentityPubKey: s.IdentityPublicKey(),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, payment.Status)
	assert.NotEmpty(t, payment.TransferID)
	assert.Zero(t, quorum.deliverCalls, "a self-transfer never round-trips through the operator quorum")
}

func TestSendPaymentSparkTransferToOtherIdentityGoesThroughQuorum(t *testing.T) {
	quorum := &fakeTransferQuorum{}
	transferEngine, _ := testTransferEngine(t, quorum)
	sink := &fakeSink{}
	store := &fakeStore{}
	o := New(&chaincfg.MainNetParams, nil, nil, transferEngine, nil, store, sink)

	receiverSigner, err := signer.New(bytes.Repeat([]byte{0x88}, 32), &chaincfg.MainNetParams)
	require.NoError(t, err)

	payment, err := o.SendPayment(context.Background(), &PrepareResponse{Method: MethodSparkTransfer, AmountSat: 1000}, SendOptions{
		ReceiverIdentityPubKey: receiverSigner.IdentityPublicKey(),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, payment.Status)
	assert.Equal(t, 1, quorum.deliverCalls, "a transfer to another identity runs the full protocol")
}

func TestSendPaymentTokenTransferSucceedsAndEmitsEvent(t *testing.T) {
	s := testSigner(t)
	tokenStore := token.New()
	tokenStore.SetTokensOutputs([]token.Output{{ID: "o1", TokenID: "tok", ValueSat: 1000, Status: token.StatusAvailable}})
	reservation, err := tokenStore.ReserveTokenOutputs("tok", token.MinTotalValue(1000), token.PurposePayment)
	require.NoError(t, err)

	tokenEngine := token.NewEngine(s, tokenStore, &acceptingQuorum{})
	sink := &fakeSink{}
	store := &fakeStore{}
	o := New(&chaincfg.MainNetParams, nil, nil, nil, tokenEngine, store, sink)

	prep := &PrepareResponse{Method: MethodTokenTransfer, Destination: "sprk1qexampleaddress", AmountSat: 600}
	payment, err := o.SendPayment(context.Background(), prep, SendOptions{
		IdempotencyKey:     "idem-token-1",
		TokenReservationID: reservation.ID,
		RecipientPubKey:    bytes.Repeat([]byte{0x0A}, 33),
		RecipientSat:       600,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, payment.Status)
	require.Len(t, store.inserted, 1)
	require.Len(t, sink.events, 1)
	assert.Equal(t, EventPaymentSucceeded, sink.events[0].Kind)
}

type acceptingQuorum struct{}

func (acceptingQuorum) FinalizeTokenTransaction(ctx context.Context, txID string, signedTxHex string) error {
	return nil
}

func TestDecryptSuccessActionURLValidatesCallbackDomain(t *testing.T) {
	action := &LNURLSuccessAction{Tag: "url", URL: "https://pay.example.com/thanks", CallbackDomain: "pay.example.com"}
	assert.Equal(t, action.URL, decryptSuccessAction(action, bytes.Repeat([]byte{0x01}, 32)))

	mismatched := &LNURLSuccessAction{Tag: "url", URL: "https://evil.example.org/thanks", CallbackDomain: "pay.example.com"}
	assert.Empty(t, decryptSuccessAction(mismatched, bytes.Repeat([]byte{0x01}, 32)))
}
