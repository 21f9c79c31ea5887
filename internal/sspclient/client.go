// Package sspclient is a thin JSON-RPC client for the single Service
// Provider (SSP) this wallet cooperates with for Lightning payments and
// cooperative exits: leaves-swap quotes, coop-exit quotes and requests,
// Lightning send/receive requests, and static-deposit claims.
package sspclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sparkwallet/spark-wallet-sdk/internal/challengeauth"
	"github.com/sparkwallet/spark-wallet-sdk/internal/signer"
	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
	"github.com/sparkwallet/spark-wallet-sdk/pkg/walletlog"
)

// Client talks to the SSP's JSON-RPC endpoint over HTTPS, authenticating
// via the shared challenge/response handshake and tagging every mutating
// call with a UUIDv7 idempotency key so retries are safe.
type Client struct {
	httpClient *http.Client
	baseURL    string
	signer     *signer.Signer

	sessionToken string
}

// Config configures the SSP endpoint.
type Config struct {
	BaseURL          string
	IdentityKey      []byte
	RequestTimeoutMs int
}

// New builds a Client and performs the initial authentication handshake.
func New(ctx context.Context, cfg Config, s *signer.Signer) (*Client, error) {
	timeout := time.Duration(cfg.RequestTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		signer:     s,
	}

	token, err := challengeauth.Run(ctx, s, &httpChallengeRequester{client: c})
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindService, err, "ssp authentication failed")
	}
	c.sessionToken = token
	return c, nil
}

// reauthenticate re-runs the handshake, called on a 401 from any method.
func (c *Client) reauthenticate(ctx context.Context) error {
	token, err := challengeauth.Run(ctx, c.signer, &httpChallengeRequester{client: c})
	if err != nil {
		return walleterrors.Wrap(walleterrors.KindService, err, "ssp re-authentication failed")
	}
	c.sessionToken = token
	return nil
}

// rpcCall posts method/params as a JSON-RPC-style request, decoding the
// result into out. Retries once after a fresh handshake on 401.
func (c *Client) rpcCall(ctx context.Context, method string, idempotencyKey string, params, out any) error {
	resp, err := c.doCall(ctx, method, idempotencyKey, params, out)
	if err == nil {
		return nil
	}
	if resp != nil && resp.StatusCode == http.StatusUnauthorized {
		if reauthErr := c.reauthenticate(ctx); reauthErr != nil {
			return reauthErr
		}
		_, err = c.doCall(ctx, method, idempotencyKey, params, out)
	}
	return err
}

func (c *Client) doCall(ctx context.Context, method string, idempotencyKey string, params, out any) (*http.Response, error) {
	body, err := json.Marshal(struct {
		Method string `json:"method"`
		Params any    `json:"params"`
	}{Method: method, Params: params})
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindInvalidInput, err, "failed to encode ssp request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rpc", bytes.NewReader(body))
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindInvalidInput, err, "failed to build ssp request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.sessionToken)
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		walletlog.Error("ssp request failed", zap.String("method", method), zap.Error(err))
		return nil, walleterrors.Wrap(walleterrors.KindNetworkError, err, "ssp request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return resp, walleterrors.New(walleterrors.KindService, "ssp session expired")
	}
	if resp.StatusCode != http.StatusOK {
		walletlog.Error("ssp returned error status", zap.String("method", method), zap.Int("status", resp.StatusCode))
		return resp, walleterrors.New(walleterrors.KindService, fmt.Sprintf("ssp error: status %d", resp.StatusCode))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, walleterrors.Wrap(walleterrors.KindService, err, "failed to decode ssp response")
		}
	}
	return resp, nil
}

// NewIdempotencyKey mints a time-ordered UUIDv7 for a mutating call.
func NewIdempotencyKey() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", walleterrors.Wrap(walleterrors.KindGeneric, err, "failed to generate idempotency key")
	}
	return id.String(), nil
}
