package sspclient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkwallet/spark-wallet-sdk/internal/signer"
)

func testSigner(t *testing.T) *signer.Signer {
	t.Helper()
	seed := bytes.Repeat([]byte{0x11}, 32)
	s, err := signer.New(seed, &chaincfg.MainNetParams)
	require.NoError(t, err)
	return s
}

// fakeSSP implements the minimal handshake + one RPC method the tests
// below exercise, standing in for a real Service Provider.
func fakeSSP(t *testing.T, sessionToken string, onCall func(method string, params json.RawMessage) any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/challenge", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(challengeResponseBody{Challenge: bytes.Repeat([]byte{0xAB}, 32)})
	})
	mux.HandleFunc("/auth/verify", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(challengeResultBody{SessionToken: sessionToken})
	})
	mux.HandleFunc("/rpc", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+sessionToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req struct {
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		result := onCall(req.Method, req.Params)
		_ = json.NewEncoder(w).Encode(result)
	})
	return httptest.NewServer(mux)
}

func TestNewAuthenticatesSuccessfully(t *testing.T) {
	srv := fakeSSP(t, "session-xyz", nil)
	defer srv.Close()

	c, err := New(context.Background(), Config{BaseURL: srv.URL}, testSigner(t))
	require.NoError(t, err)
	assert.Equal(t, "session-xyz", c.sessionToken)
}

func TestRequestLeavesSwapQuoteRoundTrips(t *testing.T) {
	srv := fakeSSP(t, "session-xyz", func(method string, params json.RawMessage) any {
		assert.Equal(t, "request_leaves_swap_quote", method)
		return LeavesSwapQuote{QuoteID: "q1", TargetValueSat: 5000, FeeSat: 10}
	})
	defer srv.Close()

	c, err := New(context.Background(), Config{BaseURL: srv.URL}, testSigner(t))
	require.NoError(t, err)

	quote, err := c.RequestLeavesSwapQuote(context.Background(), 5010, 5000)
	require.NoError(t, err)
	assert.Equal(t, "q1", quote.QuoteID)
	assert.Equal(t, int64(5000), quote.TargetValueSat)
}

func TestRpcCallReauthenticatesOnExpiredSession(t *testing.T) {
	calls := 0
	srv := fakeSSP(t, "session-rotated", func(method string, params json.RawMessage) any {
		calls++
		return DepositClaimQuote{QuoteID: "dq1", FeeSat: 5}
	})
	defer srv.Close()

	c, err := New(context.Background(), Config{BaseURL: srv.URL}, testSigner(t))
	require.NoError(t, err)
	c.sessionToken = "stale-token"

	quote, err := c.RequestDepositClaimQuote(context.Background(), "deadbeef", 0)
	require.NoError(t, err)
	assert.Equal(t, "dq1", quote.QuoteID)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "session-rotated", c.sessionToken)
}

func TestNewIdempotencyKeyProducesDistinctKeys(t *testing.T) {
	a, err := NewIdempotencyKey()
	require.NoError(t, err)
	b, err := NewIdempotencyKey()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
