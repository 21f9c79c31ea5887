package operatorpool

import (
	"bytes"
	"context"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkwallet/spark-wallet-sdk/internal/signer"
)

type fakeChallengeRequester struct {
	challenge        []byte
	gotIdentityPub   []byte
	gotSignature     []byte
	sessionToken     string
	requestErr       error
	submissionErr    error
}

func (f *fakeChallengeRequester) RequestChallenge(ctx context.Context, identityPubKey []byte) ([]byte, error) {
	f.gotIdentityPub = identityPubKey
	return f.challenge, f.requestErr
}

func (f *fakeChallengeRequester) SubmitChallengeResponse(ctx context.Context, identityPubKey, challenge, signature []byte) (string, error) {
	f.gotSignature = signature
	return f.sessionToken, f.submissionErr
}

func testSignerForAuth(t *testing.T) *signer.Signer {
	t.Helper()
	seed := bytes.Repeat([]byte{0x07}, 32)
	s, err := signer.New(seed, &chaincfg.MainNetParams)
	require.NoError(t, err)
	return s
}

func TestAuthenticateSignsChallengeAndReturnsToken(t *testing.T) {
	fake := &fakeChallengeRequester{
		challenge:    bytes.Repeat([]byte{0x01}, 32),
		sessionToken: "session-abc",
	}

	s := testSignerForAuth(t)
	token, err := authenticateWithRequester(context.Background(), s, fake)
	require.NoError(t, err)
	assert.Equal(t, "session-abc", token)
	assert.Equal(t, s.IdentityPublicKey(), fake.gotIdentityPub)
	assert.Len(t, fake.gotSignature, 65)
}

func TestAuthenticatePropagatesChallengeRequestError(t *testing.T) {
	fake := &fakeChallengeRequester{requestErr: assert.AnError}
	s := testSignerForAuth(t)
	_, err := authenticateWithRequester(context.Background(), s, fake)
	assert.Error(t, err)
}

func TestDoubleSHA256Deterministic(t *testing.T) {
	in := []byte("challenge-bytes")
	a := doubleSHA256(in)
	b := doubleSHA256(in)
	assert.Equal(t, a, b)
}
