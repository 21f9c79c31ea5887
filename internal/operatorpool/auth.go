package operatorpool

import (
	"context"

	"google.golang.org/grpc"

	"github.com/sparkwallet/spark-wallet-sdk/internal/challengeauth"
	"github.com/sparkwallet/spark-wallet-sdk/internal/signer"
)

// ChallengeRequester is satisfied by grpcChallengeRequester, which invokes
// the operator's auth RPCs by method name rather than through generated
// stubs (spec section 1 — the operator protocol is treated as a defined
// remote service). Requesting a challenge and submitting the signed
// response both go through it.
type ChallengeRequester = challengeauth.Requester

// challengeRequesterFor resolves the requester for conn. A package var so
// tests can substitute a fake without a live connection.
var challengeRequesterFor = func(conn *grpc.ClientConn) ChallengeRequester {
	return newGRPCChallengeRequester(conn)
}

// authenticate runs the challenge/response handshake described in spec
// section 4.2 against conn's operator.
func authenticate(ctx context.Context, s *signer.Signer, conn *grpc.ClientConn) (string, error) {
	return authenticateWithRequester(ctx, s, challengeRequesterFor(conn))
}

// authenticateWithRequester is the handshake logic factored out of
// authenticate so it can run against a fake ChallengeRequester in tests
// without a live gRPC connection.
func authenticateWithRequester(ctx context.Context, s *signer.Signer, requester ChallengeRequester) (string, error) {
	return challengeauth.Run(ctx, s, requester)
}

func doubleSHA256(b []byte) [32]byte {
	return challengeauth.DoubleSHA256(b)
}
