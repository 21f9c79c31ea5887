// Package challengeauth implements the challenge/response handshake spec
// section 4.2 prescribes for both the operator pool and the SSP client: the
// remote side issues a random challenge, the wallet signs
// double-SHA256(challenge) with an identity key via recoverable ECDSA, and
// the remote side returns a session token used for subsequent calls.
package challengeauth

import (
	"context"
	"crypto/sha256"

	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
)

// Requester is satisfied by whatever transport a collaborator speaks —
// gRPC for operators, plain HTTP for the SSP — since the handshake itself
// is transport-agnostic.
type Requester interface {
	RequestChallenge(ctx context.Context, identityPubKey []byte) ([]byte, error)
	SubmitChallengeResponse(ctx context.Context, identityPubKey, challenge, signature []byte) (sessionToken string, err error)
}

// IdentitySigner is the subset of *signer.Signer this handshake needs.
type IdentitySigner interface {
	IdentityPublicKey() []byte
	SignIdentityRecoverable(msg32 []byte) ([]byte, error)
}

// Run executes the handshake against requester and returns the session
// token to attach to subsequent calls.
func Run(ctx context.Context, s IdentitySigner, requester Requester) (string, error) {
	identityPub := s.IdentityPublicKey()
	challenge, err := requester.RequestChallenge(ctx, identityPub)
	if err != nil {
		return "", walleterrors.Wrap(walleterrors.KindNetworkError, err, "failed to request challenge")
	}

	digest := DoubleSHA256(challenge)
	sig, err := s.SignIdentityRecoverable(digest[:])
	if err != nil {
		return "", walleterrors.Wrap(walleterrors.KindSigner, err, "failed to sign challenge")
	}

	token, err := requester.SubmitChallengeResponse(ctx, identityPub, challenge, sig)
	if err != nil {
		return "", walleterrors.Wrap(walleterrors.KindService, err, "challenge response rejected")
	}
	return token, nil
}

// DoubleSHA256 hashes b twice, the digest the recoverable signature covers.
func DoubleSHA256(b []byte) [32]byte {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}
