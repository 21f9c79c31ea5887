package syncx

import (
	"context"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/queue"
	"github.com/lightningnetwork/lnd/ticker"
	"go.uber.org/zap"

	"github.com/sparkwallet/spark-wallet-sdk/internal/challengeauth"
	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
	"github.com/sparkwallet/spark-wallet-sdk/pkg/walletlog"
)

// LockTTL is how long a held lock survives without a refresh before the
// coordinator auto-expires it (spec 4.11).
const LockTTL = 30 * time.Second

// LockSigner signs the distributed-lock RPC's request digest with the
// identity key (spec 6: double-SHA256 + recoverable ECDSA, 65 bytes with
// recovery byte 31+recid).
type LockSigner interface {
	IdentityPublicKey() []byte
	SignIdentityRecoverable(msg32 []byte) ([]byte, error)
}

// LockTransport issues the signed set_lock/get_lock RPCs against the
// coordinator's lock table.
type LockTransport interface {
	SetLock(ctx context.Context, name string, identityPubKey []byte, acquire, exclusive bool, signature []byte) (bool, error)
	GetLock(ctx context.Context, name string, identityPubKey []byte) (bool, error)
}

// LockClient manages this identity's held named locks, auto-refreshing
// each one on a ticker so it survives past LockTTL as long as the caller
// keeps holding it.
type LockClient struct {
	signer    LockSigner
	transport LockTransport

	mu       sync.Mutex
	held     map[string]bool // name -> exclusive
	refresh  *ticker.Ticker
	requests *queue.ConcurrentQueue
	stop     chan struct{}
}

type lockRequest struct {
	name      string
	exclusive bool
}

// NewLockClient builds a LockClient and starts its background refresh
// loop; call Close to stop it.
func NewLockClient(signer LockSigner, transport LockTransport) *LockClient {
	c := &LockClient{
		signer:    signer,
		transport: transport,
		held:      make(map[string]bool),
		refresh:   ticker.New(LockTTL / 3),
		requests:  queue.NewConcurrentQueue(50),
		stop:      make(chan struct{}),
	}
	c.requests.Start()
	go c.run()
	return c
}

// Close stops the refresh loop and underlying request queue.
func (c *LockClient) Close() {
	close(c.stop)
	c.requests.Stop()
}

// SetLock implements the public set_lock(name, acquire, exclusive) call.
// Releasing a lock this identity doesn't hold is a no-op (spec 4.11).
func (c *LockClient) SetLock(ctx context.Context, name string, acquire, exclusive bool) (bool, error) {
	sig, err := c.signRequest(name, acquire, exclusive)
	if err != nil {
		return false, err
	}

	ok, err := c.transport.SetLock(ctx, name, c.signer.IdentityPublicKey(), acquire, exclusive, sig)
	if err != nil {
		return false, walleterrors.Wrap(walleterrors.KindNetworkError, err, "set_lock rpc failed")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case acquire && ok:
		c.held[name] = exclusive
		c.refresh.Resume()
	case !acquire:
		delete(c.held, name)
		if len(c.held) == 0 {
			c.refresh.Pause()
		}
	}
	return ok, nil
}

// GetLock implements get_lock(name): true if any client of this identity
// currently holds it.
func (c *LockClient) GetLock(ctx context.Context, name string) (bool, error) {
	held, err := c.transport.GetLock(ctx, name, c.signer.IdentityPublicKey())
	if err != nil {
		return false, walleterrors.Wrap(walleterrors.KindNetworkError, err, "get_lock rpc failed")
	}
	return held, nil
}

func (c *LockClient) signRequest(name string, acquire, exclusive bool) ([]byte, error) {
	payload := append([]byte(name), byte(boolToInt(acquire)), byte(boolToInt(exclusive)))
	digest := challengeauth.DoubleSHA256(payload)
	sig, err := c.signer.SignIdentityRecoverable(digest[:])
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindSigner, err, "failed to sign lock request")
	}
	return sig, nil
}

// run drives periodic refreshes of every currently held lock: each tick
// queues one refresh request per held lock through requests, and the same
// loop then issues them one at a time, so a slow coordinator round-trip
// delays the handling of the next tick.
func (c *LockClient) run() {
	c.refresh.Pause()
	defer c.refresh.Stop()
	for {
		select {
		case <-c.refresh.Ticks():
			c.mu.Lock()
			for name, exclusive := range c.held {
				c.requests.ChanIn() <- lockRequest{name: name, exclusive: exclusive}
			}
			c.mu.Unlock()
		case raw := <-c.requests.ChanOut():
			req := raw.(lockRequest)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if _, err := c.SetLock(ctx, req.name, true, req.exclusive); err != nil {
				walletlog.Warn("failed to refresh named lock", zap.String("lock", req.name), zap.Error(err))
			}
			cancel()
		case <-c.stop:
			return
		}
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
