// Package operatorpool manages authenticated connections to the quorum of
// signing operators: one connection per operator, one operator designated
// coordinator, challenge/response auth, reconnect on each health tick, and
// per-operator health observation driving failover.
package operatorpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/lightningnetwork/lnd/ticker"

	"github.com/sparkwallet/spark-wallet-sdk/internal/signer"
	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
	"github.com/sparkwallet/spark-wallet-sdk/pkg/walletlog"
)

// Endpoint describes one operator's network location.
type Endpoint struct {
	ID            string
	Host          string
	Port          int
	TLSCertPath   string
	IsCoordinator bool
}

func (e Endpoint) addr() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// reconnectBackoffStart and reconnectBackoffMax bound each operator's
// recorded backoff value, doubled after every failed reconnect and reset on
// success. Reconnect attempts run on every health tick regardless; the
// recorded backoff does not delay them.
const (
	reconnectBackoffStart = 5 * time.Second
	reconnectBackoffMax   = 5 * time.Minute
)

// connState tracks one operator's live connection, session token, and
// reconnect backoff.
type connState struct {
	mu           sync.Mutex
	endpoint     Endpoint
	conn         *grpc.ClientConn
	sessionToken string
	backoff      time.Duration
	healthy      bool
	lastHealthy  time.Time
}

// Pool holds one authenticated channel per operator and tracks which is
// currently the coordinator.
type Pool struct {
	signer       *signer.Signer
	conns        []*connState
	coordinator  int // index into conns
	mu           sync.RWMutex
	healthTicker *ticker.Ticker
	stopHealth   chan struct{}
}

// New dials every operator endpoint and performs the initial
// challenge/response handshake. The first endpoint flagged IsCoordinator
// becomes the coordinator; if none is flagged, the first endpoint is used.
func New(ctx context.Context, s *signer.Signer, endpoints []Endpoint) (*Pool, error) {
	if len(endpoints) == 0 {
		return nil, walleterrors.New(walleterrors.KindInvalidInput, "at least one operator endpoint is required")
	}

	p := &Pool{
		signer:     s,
		conns:      make([]*connState, len(endpoints)),
		stopHealth: make(chan struct{}),
	}

	coordinatorIdx := -1
	for i, ep := range endpoints {
		if ep.IsCoordinator && coordinatorIdx < 0 {
			coordinatorIdx = i
		}
		p.conns[i] = &connState{endpoint: ep, backoff: reconnectBackoffStart}
	}
	if coordinatorIdx < 0 {
		coordinatorIdx = 0
	}
	p.coordinator = coordinatorIdx

	for _, cs := range p.conns {
		if err := p.connectAndAuth(ctx, cs); err != nil {
			walletlog.Warn("operator connection failed at startup",
				zap.String("operator", cs.endpoint.ID), zap.Error(err))
		}
	}

	p.healthTicker = ticker.New(30 * time.Second)
	p.healthTicker.Resume()
	go p.healthLoop()

	return p, nil
}

func (p *Pool) connectAndAuth(ctx context.Context, cs *connState) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	creds, err := credentials.NewClientTLSFromFile(cs.endpoint.TLSCertPath, "")
	if err != nil {
		return walleterrors.Wrap(walleterrors.KindNetworkError, err, "failed to load operator tls cert")
	}

	conn, err := grpc.NewClient(cs.endpoint.addr(), grpc.WithTransportCredentials(creds),
		grpc.WithPerRPCCredentials(&sessionCredential{token: &cs.sessionToken}))
	if err != nil {
		return walleterrors.Wrap(walleterrors.KindNetworkError, err, "failed to dial operator")
	}

	token, err := authenticate(ctx, p.signer, conn)
	if err != nil {
		conn.Close()
		return walleterrors.Wrap(walleterrors.KindService, err, "operator auth failed")
	}

	cs.conn = conn
	cs.sessionToken = token
	cs.healthy = true
	cs.lastHealthy = time.Now()
	cs.backoff = reconnectBackoffStart

	walletlog.Info("operator connected", zap.String("operator", cs.endpoint.ID))
	return nil
}

// sessionCredential attaches the per-operator session token as gRPC
// per-RPC metadata, re-read on every call so a re-auth updates it in place.
type sessionCredential struct {
	token *string
}

func (c *sessionCredential) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + *c.token}, nil
}

func (c *sessionCredential) RequireTransportSecurity() bool { return true }

// Coordinator returns the operator ID currently designated coordinator.
func (p *Pool) Coordinator() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.conns[p.coordinator].endpoint.ID
}

// ConnForOperator returns the live *grpc.ClientConn for operator id, or an
// error if it is not currently connected.
func (p *Pool) ConnForOperator(id string) (*grpc.ClientConn, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, cs := range p.conns {
		if cs.endpoint.ID == id {
			cs.mu.Lock()
			defer cs.mu.Unlock()
			if cs.conn == nil || !cs.healthy {
				return nil, walleterrors.New(walleterrors.KindNetworkError, "operator not connected: "+id)
			}
			return cs.conn, nil
		}
	}
	return nil, walleterrors.New(walleterrors.KindInvalidInput, "unknown operator: "+id)
}

// CoordinatorConn returns the current coordinator's connection.
func (p *Pool) CoordinatorConn() (*grpc.ClientConn, error) {
	p.mu.RLock()
	idx := p.coordinator
	p.mu.RUnlock()
	return p.ConnForOperator(p.conns[idx].endpoint.ID)
}

// healthLoop drives per-operator health checks on the 30s health ticker
// and tries to reconnect every unhealthy operator on each tick, promoting
// a new coordinator if the current one fails its health check.
func (p *Pool) healthLoop() {
	for {
		select {
		case <-p.healthTicker.Ticks():
			p.checkAndReconnect()
		case <-p.stopHealth:
			p.healthTicker.Stop()
			return
		}
	}
}

func (p *Pool) checkAndReconnect() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for i, cs := range p.conns {
		cs.mu.Lock()
		conn := cs.conn
		healthy := cs.healthy
		cs.mu.Unlock()

		if conn == nil || !healthy {
			if err := p.connectAndAuth(ctx, cs); err != nil {
				cs.mu.Lock()
				cs.backoff = nextBackoff(cs.backoff)
				cs.mu.Unlock()
				continue
			}
		}

		if err := runHealthObserver(conn); err != nil {
			cs.mu.Lock()
			cs.healthy = false
			cs.mu.Unlock()
			walletlog.Warn("operator health check failed", zap.String("operator", cs.endpoint.ID), zap.Error(err))
			p.maybeFailoverCoordinator(i)
		}
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > reconnectBackoffMax {
		return reconnectBackoffMax
	}
	return next
}

// maybeFailoverCoordinator promotes the next healthy operator to
// coordinator if the currently designated one just went unhealthy.
func (p *Pool) maybeFailoverCoordinator(unhealthyIdx int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.coordinator != unhealthyIdx {
		return
	}
	for i, cs := range p.conns {
		cs.mu.Lock()
		ok := cs.healthy
		cs.mu.Unlock()
		if ok {
			p.coordinator = i
			walletlog.Warn("coordinator failover", zap.String("new_coordinator", cs.endpoint.ID))
			return
		}
	}
}

// Close shuts down every operator connection. Called on SDK disconnect / process shutdown (spec 5).
func (p *Pool) Close() error {
	close(p.stopHealth)
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for _, cs := range p.conns {
		cs.mu.Lock()
		if cs.conn != nil {
			if err := cs.conn.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		cs.mu.Unlock()
	}
	return firstErr
}
