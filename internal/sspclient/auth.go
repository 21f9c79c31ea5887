package sspclient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
)

// httpChallengeRequester implements challengeauth.Requester over the SSP's
// plain HTTPS JSON endpoints, used both for the initial handshake and for
// re-auth after a 401.
type httpChallengeRequester struct {
	client *Client
}

type challengeRequestBody struct {
	IdentityPublicKey []byte `json:"identity_public_key"`
}

type challengeResponseBody struct {
	Challenge []byte `json:"challenge"`
}

type challengeSubmissionBody struct {
	IdentityPublicKey []byte `json:"identity_public_key"`
	Challenge         []byte `json:"challenge"`
	Signature         []byte `json:"signature"`
}

type challengeResultBody struct {
	SessionToken string `json:"session_token"`
}

func (h *httpChallengeRequester) RequestChallenge(ctx context.Context, identityPubKey []byte) ([]byte, error) {
	body, err := json.Marshal(challengeRequestBody{IdentityPublicKey: identityPubKey})
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindInvalidInput, err, "failed to encode challenge request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.client.baseURL+"/auth/challenge", bytes.NewReader(body))
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindInvalidInput, err, "failed to build challenge request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.httpClient.Do(req)
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindNetworkError, err, "ssp challenge request failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, walleterrors.New(walleterrors.KindService, "ssp rejected challenge request")
	}

	var out challengeResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindService, err, "failed to decode ssp challenge")
	}
	return out.Challenge, nil
}

func (h *httpChallengeRequester) SubmitChallengeResponse(ctx context.Context, identityPubKey, challenge, signature []byte) (string, error) {
	body, err := json.Marshal(challengeSubmissionBody{
		IdentityPublicKey: identityPubKey,
		Challenge:         challenge,
		Signature:         signature,
	})
	if err != nil {
		return "", walleterrors.Wrap(walleterrors.KindInvalidInput, err, "failed to encode challenge response")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.client.baseURL+"/auth/verify", bytes.NewReader(body))
	if err != nil {
		return "", walleterrors.Wrap(walleterrors.KindInvalidInput, err, "failed to build challenge verify request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.httpClient.Do(req)
	if err != nil {
		return "", walleterrors.Wrap(walleterrors.KindNetworkError, err, "ssp challenge verify failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", walleterrors.New(walleterrors.KindService, "ssp rejected challenge response")
	}

	var out challengeResultBody
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", walleterrors.Wrap(walleterrors.KindService, err, "failed to decode ssp session token")
	}
	return out.SessionToken, nil
}
