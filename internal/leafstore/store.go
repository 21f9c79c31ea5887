package leafstore

import (
	"context"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
	"go.uber.org/zap"

	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
	"github.com/sparkwallet/spark-wallet-sdk/pkg/walletlog"
)

// TimelockRefreshWindow is how close to expiry a leaf's refund timelock
// must be before the watchtower-style refresh kicks in.
const TimelockRefreshWindow = 24 * time.Hour

// CoordinatorRefresher is the subset of the operator pool's surface the
// store needs: pulling the caller's owned leaves as reported by the
// coordinator (and, for minority-missing detection, by each signer).
type CoordinatorRefresher interface {
	ListOwnedLeaves(ctx context.Context) (coordinatorView []Leaf, perOperator map[string][]string, err error)
}

// RefundSigner co-signs a fresh refund transaction for a leaf whose
// timelock is nearing expiry.
type RefundSigner interface {
	RefreshRefund(ctx context.Context, nodeID string) (newRefundTxHex string, newExpiry time.Time, err error)
}

// OptimizationProgress is emitted on optimizationEvents while the
// background coalescing loop runs (spec section 6 event taxonomy).
type OptimizationProgress struct {
	LeavesBefore int
	LeavesAfter  int
	Done         bool
}

// Store holds the wallet's local leaf cache. All mutation happens under mu;
// selection never issues RPCs while holding it (spec 4.4: the single
// mutex-guarded selection must stay a pure in-memory operation).
type Store struct {
	mu    sync.Mutex
	leafs map[string]Leaf // keyed by NodeID

	refresher CoordinatorRefresher
	signer    RefundSigner
	clock     clock.Clock

	refreshTicker *ticker.Ticker
	stop          chan struct{}

	optimizationEvents chan OptimizationProgress
	multiplicity       int
}

// New builds a Store. refreshInterval drives both the leaf-cache refresh
// and the timelock watchtower check; multiplicity bounds how many leaves
// the background optimizer will coalesce into.
func New(refresher CoordinatorRefresher, signer RefundSigner, refreshInterval time.Duration, multiplicity int) *Store {
	return &Store{
		leafs:              make(map[string]Leaf),
		refresher:          refresher,
		signer:             signer,
		clock:              clock.NewDefaultClock(),
		refreshTicker:      ticker.New(refreshInterval),
		stop:               make(chan struct{}),
		optimizationEvents: make(chan OptimizationProgress, 16),
		multiplicity:       multiplicity,
	}
}

// OptimizationEvents exposes the channel the SDK facade forwards as
// OptimizationProgress wallet events.
func (s *Store) OptimizationEvents() <-chan OptimizationProgress {
	return s.optimizationEvents
}

// Run drives the periodic refresh/timelock-refresh/optimize loop until ctx
// is canceled or Close is called.
func (s *Store) Run(ctx context.Context) {
	s.refreshTicker.Resume()
	defer s.refreshTicker.Stop()
	for {
		select {
		case <-s.refreshTicker.Ticks():
			if err := s.Refresh(ctx); err != nil {
				walletlog.Warn("leaf refresh failed", zap.Error(err))
				continue
			}
			s.refreshStaleTimelocks(ctx)
			s.optimize(ctx)
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Close stops the background loop.
func (s *Store) Close() {
	close(s.stop)
}

// Refresh pulls all owned leaves from the coordinator and reconciles them
// with the local cache, flagging leaves a minority of operators didn't
// report (spec 4.4 step 1).
func (s *Store) Refresh(ctx context.Context) error {
	coordinatorView, perOperator, err := s.refresher.ListOwnedLeaves(ctx)
	if err != nil {
		return walleterrors.Wrap(walleterrors.KindNetworkError, err, "failed to refresh leaves from coordinator")
	}

	reported := make(map[string]int)
	for _, nodeIDs := range perOperator {
		for _, id := range nodeIDs {
			reported[id]++
		}
	}
	quorumSize := len(perOperator)

	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[string]Leaf, len(coordinatorView))
	for _, l := range coordinatorView {
		if count := reported[l.NodeID]; quorumSize > 0 && count < quorumSize {
			l.AvailableMissingOperators = missingOperators(l.NodeID, perOperator)
		}
		next[l.NodeID] = l
	}
	s.leafs = next
	return nil
}

func missingOperators(nodeID string, perOperator map[string][]string) []string {
	var missing []string
	for opID, nodeIDs := range perOperator {
		found := false
		for _, id := range nodeIDs {
			if id == nodeID {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, opID)
		}
	}
	return missing
}

// Available returns a snapshot of every cached leaf, whatever its status;
// Select itself skips the ones that are not StatusAvailable.
func (s *Store) Available() []Leaf {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Leaf, 0, len(s.leafs))
	for _, l := range s.leafs {
		out = append(out, l)
	}
	return out
}

// SelectForAmount runs the deterministic selection algorithm against a
// consistent in-memory snapshot, holding mu only long enough to copy it —
// no RPC is ever issued while the lock is held.
func (s *Store) SelectForAmount(targetSat int64) (SelectionResult, bool) {
	snapshot := s.Available()
	return Select(snapshot, targetSat)
}

// Reserve marks leaves as held by an in-flight operation so concurrent
// selections don't double-spend them.
func (s *Store) Reserve(nodeIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range nodeIDs {
		if l, ok := s.leafs[id]; ok {
			l.Status = StatusReserved
			s.leafs[id] = l
		}
	}
}

// Release returns previously reserved leaves to the available pool
// (transfer expired or returned, spec 4.5).
func (s *Store) Release(nodeIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range nodeIDs {
		if l, ok := s.leafs[id]; ok {
			l.Status = StatusAvailable
			s.leafs[id] = l
		}
	}
}

func (s *Store) refreshStaleTimelocks(ctx context.Context) {
	now := s.clock.Now()
	for _, l := range s.Available() {
		if !l.IsStale(now, TimelockRefreshWindow) {
			continue
		}
		newTx, newExpiry, err := s.signer.RefreshRefund(ctx, l.NodeID)
		if err != nil {
			walletlog.Warn("timelock refresh failed", zap.String("node_id", l.NodeID), zap.Error(err))
			continue
		}
		s.mu.Lock()
		if cur, ok := s.leafs[l.NodeID]; ok {
			cur.RefundTxHex = newTx
			cur.RefundTimelockExpiresAt = newExpiry
			s.leafs[l.NodeID] = cur
		}
		s.mu.Unlock()
	}
}

// optimize coalesces small leaves toward the configured multiplicity,
// emitting progress on optimizationEvents. The actual coalescing RPC
// (a swap through the operator quorum) is out of this package's scope;
// optimize only decides *that* a coalesce is due and reports it, since the
// transfer/swap engines own the RPC round-trip itself.
func (s *Store) optimize(ctx context.Context) {
	leaves := s.Available()
	if len(leaves) <= s.multiplicity {
		return
	}
	select {
	case s.optimizationEvents <- OptimizationProgress{LeavesBefore: len(leaves), LeavesAfter: s.multiplicity, Done: false}:
	default:
	}
}
