package sspclient

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterLightningAddress(t *testing.T) {
	srv := fakeSSP(t, "session-xyz", func(method string, params json.RawMessage) any {
		assert.Equal(t, "register_lightning_address", method)
		var decoded struct {
			Username string `json:"username"`
		}
		require.NoError(t, json.Unmarshal(params, &decoded))
		assert.Equal(t, "satoshi", decoded.Username)
		return LightningAddress{Address: "satoshi@spark.wallet"}
	})
	defer srv.Close()

	c, err := New(context.Background(), Config{BaseURL: srv.URL}, testSigner(t))
	require.NoError(t, err)

	addr, err := c.RegisterLightningAddress(context.Background(), "idem-1", "satoshi")
	require.NoError(t, err)
	assert.Equal(t, "satoshi@spark.wallet", addr.Address)
}

func TestGetLightningAddress(t *testing.T) {
	srv := fakeSSP(t, "session-xyz", func(method string, params json.RawMessage) any {
		assert.Equal(t, "get_lightning_address", method)
		return LightningAddress{Address: "hal@spark.wallet"}
	})
	defer srv.Close()

	c, err := New(context.Background(), Config{BaseURL: srv.URL}, testSigner(t))
	require.NoError(t, err)

	addr, err := c.GetLightningAddress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hal@spark.wallet", addr.Address)
}

func TestCheckLightningAddressAvailable(t *testing.T) {
	srv := fakeSSP(t, "session-xyz", func(method string, params json.RawMessage) any {
		assert.Equal(t, "check_lightning_address_available", method)
		return struct {
			Available bool `json:"available"`
		}{Available: true}
	})
	defer srv.Close()

	c, err := New(context.Background(), Config{BaseURL: srv.URL}, testSigner(t))
	require.NoError(t, err)

	available, err := c.CheckLightningAddressAvailable(context.Background(), "newname")
	require.NoError(t, err)
	assert.True(t, available)
}

func TestDeleteLightningAddress(t *testing.T) {
	srv := fakeSSP(t, "session-xyz", func(method string, params json.RawMessage) any {
		assert.Equal(t, "delete_lightning_address", method)
		return nil
	})
	defer srv.Close()

	c, err := New(context.Background(), Config{BaseURL: srv.URL}, testSigner(t))
	require.NoError(t, err)

	err = c.DeleteLightningAddress(context.Background(), "idem-2")
	require.NoError(t, err)
}

func TestGetTokensMetadata(t *testing.T) {
	srv := fakeSSP(t, "session-xyz", func(method string, params json.RawMessage) any {
		assert.Equal(t, "get_tokens_metadata", method)
		var decoded struct {
			TokenIdentifiers []string `json:"token_identifiers,omitempty"`
		}
		require.NoError(t, json.Unmarshal(params, &decoded))
		assert.Equal(t, []string{"btkn1abc"}, decoded.TokenIdentifiers)
		return struct {
			Tokens []TokenMetadata `json:"tokens"`
		}{Tokens: []TokenMetadata{{TokenIdentifier: "btkn1abc", Name: "Example", Ticker: "EXM", Decimals: 8}}}
	})
	defer srv.Close()

	c, err := New(context.Background(), Config{BaseURL: srv.URL}, testSigner(t))
	require.NoError(t, err)

	tokens, err := c.GetTokensMetadata(context.Background(), []string{"btkn1abc"})
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "Example", tokens[0].Name)
}
