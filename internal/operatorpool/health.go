package operatorpool

import (
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"

	"github.com/lightningnetwork/lnd/healthcheck"

	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
)

// newConnectivityCheck wraps a gRPC connection's state as a
// healthcheck.CheckFunc, the same shape lnd uses to monitor its chain
// backend and disk space: a zero-arg function returning an error on
// failure, wrapped in a bounded-attempt Observer.
func newConnectivityCheck(conn *grpc.ClientConn) healthcheck.CheckFunc {
	return func() error {
		switch conn.GetState() {
		case connectivity.Ready, connectivity.Idle:
			return nil
		default:
			return walleterrors.New(walleterrors.KindNetworkError, "operator connection not ready")
		}
	}
}

// runHealthObserver runs a single bounded-retry health observation against
// conn, matching lnd's healthcheck.Observer semantics (attempts with
// backoff before declaring failure) but invoked inline here since the pool
// already owns its own outer polling ticker.
func runHealthObserver(conn *grpc.ClientConn) error {
	observer := &healthcheck.Observer{
		Name:     "operator_connectivity",
		Timeout:  5 * time.Second,
		Attempts: 3,
		Backoff:  time.Second,
		Check:    newConnectivityCheck(conn),
	}
	return observer.Check()
}
