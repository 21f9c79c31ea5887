package operatorpool

import (
	"context"

	"google.golang.org/grpc"

	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
)

// grpcChallengeRequester invokes the operator's auth RPCs directly by
// method name, rather than through generated stubs, since the operator
// protocol itself is a defined external service this module only consumes.
type grpcChallengeRequester struct {
	conn *grpc.ClientConn
}

func newGRPCChallengeRequester(conn *grpc.ClientConn) ChallengeRequester {
	return &grpcChallengeRequester{conn: conn}
}

type challengeRequest struct {
	IdentityPublicKey []byte `json:"identity_public_key"`
}

type challengeResponse struct {
	Challenge []byte `json:"challenge"`
}

type challengeSubmission struct {
	IdentityPublicKey []byte `json:"identity_public_key"`
	Challenge         []byte `json:"challenge"`
	Signature         []byte `json:"signature"`
}

type challengeResult struct {
	SessionToken string `json:"session_token"`
}

func (g *grpcChallengeRequester) RequestChallenge(ctx context.Context, identityPubKey []byte) ([]byte, error) {
	req := &challengeRequest{IdentityPublicKey: identityPubKey}
	resp := &challengeResponse{}
	if err := g.conn.Invoke(ctx, "/spark.operator.v1.Auth/RequestChallenge", req, resp, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindNetworkError, err, "request challenge rpc failed")
	}
	return resp.Challenge, nil
}

func (g *grpcChallengeRequester) SubmitChallengeResponse(ctx context.Context, identityPubKey, challenge, signature []byte) (string, error) {
	req := &challengeSubmission{
		IdentityPublicKey: identityPubKey,
		Challenge:         challenge,
		Signature:         signature,
	}
	resp := &challengeResult{}
	if err := g.conn.Invoke(ctx, "/spark.operator.v1.Auth/SubmitChallengeResponse", req, resp, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return "", walleterrors.Wrap(walleterrors.KindNetworkError, err, "submit challenge response rpc failed")
	}
	return resp.SessionToken, nil
}
