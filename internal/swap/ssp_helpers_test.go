package swap

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// rawParams is the raw JSON-RPC params blob handed to a fake SSP's onCall
// dispatcher; decode unmarshals it into a typed struct for assertions.
type rawParams json.RawMessage

func (p rawParams) decode(t *testing.T, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(p, out))
}

// newFakeSSP stands in for a real Service Provider: it satisfies the
// challenge/response handshake unconditionally, then dispatches every RPC
// call to onCall by method name.
func newFakeSSP(t *testing.T, onCall func(method string, params rawParams) any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/challenge", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(struct {
			Challenge []byte `json:"challenge"`
		}{Challenge: bytes.Repeat([]byte{0x9A}, 32)})
	})
	mux.HandleFunc("/auth/verify", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(struct {
			SessionToken string `json:"session_token"`
		}{SessionToken: "session-swap"})
	})
	mux.HandleFunc("/rpc", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		result := onCall(req.Method, rawParams(req.Params))
		_ = json.NewEncoder(w).Encode(result)
	})
	return httptest.NewServer(mux)
}
