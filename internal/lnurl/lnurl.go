// Package lnurl speaks the callback half of the three LNURL flows this
// wallet exposes (spec section 1: LNURL metadata fetch and bech32 decoding
// are non-goals, the caller already has a plain https callback URL in
// hand). Each flow is one HTTP round trip against that URL.
package lnurl

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
)

// Client issues the callback requests for lnurl_pay/lnurl_withdraw/lnurl_auth.
type Client struct {
	httpClient *http.Client
}

// New builds a Client with a bounded request timeout.
func New() *Client {
	return &Client{httpClient: &http.Client{Timeout: 15 * time.Second}}
}

// PayResponse is the callback's reply to an lnurl-pay request: the
// invoice to pay plus an optional success action to decrypt once it
// settles (internal/orchestrator.LNURLSuccessAction carries the result on).
type PayResponse struct {
	PR            string `json:"pr"`
	SuccessAction *struct {
		Tag         string `json:"tag"`
		Description string `json:"description,omitempty"`
		URL         string `json:"url,omitempty"`
		Ciphertext  string `json:"ciphertext,omitempty"`
	} `json:"successAction,omitempty"`
}

// Pay fetches an invoice for amountMsat (and an optional comment) from
// callbackURL, the standard lnurl-pay second round trip.
func (c *Client) Pay(ctx context.Context, callbackURL string, amountMsat int64, comment string) (*PayResponse, error) {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindInvalidInput, err, "invalid lnurl-pay callback url")
	}
	q := u.Query()
	q.Set("amount", fmt.Sprintf("%d", amountMsat))
	if comment != "" {
		q.Set("comment", comment)
	}
	u.RawQuery = q.Encode()

	var out PayResponse
	if err := c.getJSON(ctx, u.String(), &out); err != nil {
		return nil, err
	}
	if out.PR == "" {
		return nil, walleterrors.New(walleterrors.KindService, "lnurl-pay callback returned no invoice")
	}
	return &out, nil
}

// Withdraw submits a freshly requested invoice against an lnurl-withdraw
// callback along with the k1 the withdraw offer was issued with.
func (c *Client) Withdraw(ctx context.Context, callbackURL, k1, bolt11 string) error {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return walleterrors.Wrap(walleterrors.KindInvalidInput, err, "invalid lnurl-withdraw callback url")
	}
	q := u.Query()
	q.Set("k1", k1)
	q.Set("pr", bolt11)
	u.RawQuery = q.Encode()

	var out statusResponse
	if err := c.getJSON(ctx, u.String(), &out); err != nil {
		return err
	}
	return out.asError()
}

// Auth submits the identity-key signature over k1 to an lnurl-auth
// callback, proving control of the identity key without revealing it.
func (c *Client) Auth(ctx context.Context, callbackURL, k1 string, identityPubKey, sigDER []byte) error {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return walleterrors.Wrap(walleterrors.KindInvalidInput, err, "invalid lnurl-auth callback url")
	}
	q := u.Query()
	q.Set("k1", k1)
	q.Set("key", hex.EncodeToString(identityPubKey))
	q.Set("sig", hex.EncodeToString(sigDER))
	u.RawQuery = q.Encode()

	var out statusResponse
	if err := c.getJSON(ctx, u.String(), &out); err != nil {
		return err
	}
	return out.asError()
}

type statusResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func (s statusResponse) asError() error {
	if s.Status == "ERROR" {
		return walleterrors.New(walleterrors.KindService, "lnurl callback error: "+s.Reason)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, requestURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return walleterrors.Wrap(walleterrors.KindInvalidInput, err, "failed to build lnurl callback request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return walleterrors.Wrap(walleterrors.KindNetworkError, err, "lnurl callback request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return walleterrors.New(walleterrors.KindService, fmt.Sprintf("lnurl callback returned status %d", resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return walleterrors.Wrap(walleterrors.KindService, err, "failed to decode lnurl callback response")
	}
	return nil
}
