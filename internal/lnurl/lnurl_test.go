package lnurl

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaySuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5000", r.URL.Query().Get("amount"))
		assert.Equal(t, "thanks", r.URL.Query().Get("comment"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(PayResponse{PR: "lnbc50u1..."})
	}))
	defer server.Close()

	c := New()
	resp, err := c.Pay(t.Context(), server.URL, 5000, "thanks")
	require.NoError(t, err)
	assert.Equal(t, "lnbc50u1...", resp.PR)
}

func TestPayMissingInvoiceIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(PayResponse{})
	}))
	defer server.Close()

	c := New()
	_, err := c.Pay(t.Context(), server.URL, 1000, "")
	assert.Error(t, err)
}

func TestPayServerErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New()
	_, err := c.Pay(t.Context(), server.URL, 1000, "")
	assert.Error(t, err)
}

func TestWithdrawSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k1value", r.URL.Query().Get("k1"))
		assert.Equal(t, "lnbc10u1...", r.URL.Query().Get("pr"))
		json.NewEncoder(w).Encode(statusResponse{Status: "OK"})
	}))
	defer server.Close()

	c := New()
	err := c.Withdraw(t.Context(), server.URL, "k1value", "lnbc10u1...")
	require.NoError(t, err)
}

func TestWithdrawCallbackError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(statusResponse{Status: "ERROR", Reason: "already claimed"})
	}))
	defer server.Close()

	c := New()
	err := c.Withdraw(t.Context(), server.URL, "k1value", "lnbc10u1...")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already claimed")
}

func TestAuthSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "challenge123", r.URL.Query().Get("k1"))
		assert.Equal(t, "02aabbcc", r.URL.Query().Get("key"))
		assert.Equal(t, "3045deadbeef", r.URL.Query().Get("sig"))
		json.NewEncoder(w).Encode(statusResponse{Status: "OK"})
	}))
	defer server.Close()

	c := New()
	err := c.Auth(t.Context(), server.URL, "challenge123", []byte{0x02, 0xaa, 0xbb, 0xcc}, []byte{0x30, 0x45, 0xde, 0xad, 0xbe, 0xef})
	require.NoError(t, err)
}

func TestAuthInvalidCallbackURL(t *testing.T) {
	c := New()
	err := c.Auth(t.Context(), "://bad-url", "k1", []byte{0x02}, []byte{0x30})
	assert.Error(t, err)
}
