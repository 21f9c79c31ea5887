// Package leafstore owns the wallet's view of its leaves (Spark's
// UTXO-equivalent tree nodes): refreshing the local cache against the
// coordinator, selecting a subset of leaves to cover a target value,
// refreshing near-expiry refund timelocks, and background optimization
// that coalesces small leaves into fewer larger ones.
package leafstore

import "time"

// Status is a leaf's lifecycle state in the local cache.
type Status string

const (
	StatusAvailable Status = "AVAILABLE"
	StatusReserved  Status = "RESERVED" // held by an in-flight transfer/swap
	StatusPending   Status = "PENDING"  // created but not yet confirmed by the quorum
)

// Leaf is the wallet's local view of one tree node it owns.
type Leaf struct {
	ID                        string
	NodeID                    string
	ValueSat                  int64
	Status                    Status
	RefundTxHex               string
	RefundTimelockExpiresAt   time.Time
	AvailableMissingOperators []string // operator IDs that didn't report this leaf on refresh
}

// IsStale reports whether l's refund timelock is close enough to expiry
// that a watchtower-style refresh should run before it can be spent safely.
func (l Leaf) IsStale(now time.Time, refreshWindow time.Duration) bool {
	return !l.RefundTimelockExpiresAt.IsZero() && l.RefundTimelockExpiresAt.Sub(now) <= refreshWindow
}
