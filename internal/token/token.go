// Package token tracks off-chain token outputs and the reservations a
// pending transfer or swap holds against them (spec section 4.9).
package token

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
)

// Status is a token output's lifecycle state in the local pool.
type Status string

const (
	StatusAvailable Status = "AVAILABLE"
	StatusReserved  Status = "RESERVED"
	StatusSpent     Status = "SPENT"
)

// Output is one off-chain token output the wallet holds.
type Output struct {
	ID       string
	TokenID  string
	ValueSat int64
	Status   Status
}

// Purpose records why a reservation was made, carried through to the
// signed token transaction's metadata.
type Purpose string

const (
	PurposePayment Purpose = "Payment"
	PurposeSwap    Purpose = "Swap"
)

// Target is a reservation goal: either a minimum total value or a maximum
// output count (spec 4.9). Exactly one of MinValue/MaxCount is set.
type Target struct {
	MinValue int64
	MaxCount int
	byCount  bool
}

// MinTotalValue requires the reserved outputs to sum to at least v.
func MinTotalValue(v int64) Target { return Target{MinValue: v} }

// MaxOutputCount requires at most c outputs, the c largest available.
func MaxOutputCount(c int) Target { return Target{MaxCount: c, byCount: true} }

// Reservation holds a set of outputs aside for a pending transfer/swap
// until it is finalized or cancelled.
type Reservation struct {
	ID      string
	TokenID string
	Purpose Purpose
	Outputs []Output
}

// Store is the wallet's local view of its token outputs.
type Store struct {
	mu           sync.Mutex
	outputs      map[string]Output      // by output id
	reservations map[string]*Reservation
}

// New builds an empty token output store.
func New() *Store {
	return &Store{
		outputs:      make(map[string]Output),
		reservations: make(map[string]*Reservation),
	}
}

// SetTokensOutputs reconciles the local pool against the authoritative
// full list from a network sync (spec 4.9): any reservation whose outputs
// no longer appear in fullList (spent remotely) is dropped.
func (s *Store) SetTokensOutputs(fullList []Output) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.outputs = make(map[string]Output, len(fullList))
	for _, o := range fullList {
		s.outputs[o.ID] = o
	}

	for id, r := range s.reservations {
		for _, o := range r.Outputs {
			if _, ok := s.outputs[o.ID]; !ok {
				delete(s.reservations, id)
				break
			}
		}
	}
}

// ReserveTokenOutputs selects outputs of tokenID meeting target for
// purpose, preferring an exact match over the target's fallback strategy
// (spec 4.9: "prefer exact-match; else smallest-first or largest-first").
func (s *Store) ReserveTokenOutputs(tokenID string, target Target, purpose Purpose) (*Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := s.availableLocked(tokenID)

	var chosen []Output
	if target.byCount {
		chosen = selectLargestFirst(candidates, target.MaxCount)
		if len(chosen) < target.MaxCount && len(chosen) < len(candidates) {
			return nil, walleterrors.New(walleterrors.KindInvalidInput, "insufficient token outputs for requested count")
		}
	} else {
		var ok bool
		chosen, ok = selectExactOrSmallestFirst(candidates, target.MinValue)
		if !ok {
			return nil, walleterrors.New(walleterrors.KindInvalidInput, "insufficient token output value")
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindGeneric, err, "failed to mint reservation id")
	}

	for _, o := range chosen {
		rec := s.outputs[o.ID]
		rec.Status = StatusReserved
		s.outputs[o.ID] = rec
	}

	r := &Reservation{ID: id.String(), TokenID: tokenID, Purpose: purpose, Outputs: chosen}
	s.reservations[r.ID] = r
	return r, nil
}

func (s *Store) availableLocked(tokenID string) []Output {
	var out []Output
	for _, o := range s.outputs {
		if o.TokenID == tokenID && o.Status == StatusAvailable {
			out = append(out, o)
		}
	}
	return out
}

// Balances sums every output still held locally (available or reserved)
// by token id, the data behind get_info's token_balances map.
func (s *Store) Balances() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int64)
	for _, o := range s.outputs {
		if o.Status == StatusSpent {
			continue
		}
		out[o.TokenID] += o.ValueSat
	}
	return out
}

// FinalizeReservation removes a reservation's outputs from the local pool
// permanently (spec 4.9): they have been spent in a transaction the
// caller is about to broadcast/deliver.
func (s *Store) FinalizeReservation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reservations[id]
	if !ok {
		return walleterrors.New(walleterrors.KindInvalidInput, "unknown reservation")
	}
	for _, o := range r.Outputs {
		delete(s.outputs, o.ID)
	}
	delete(s.reservations, id)
	return nil
}

// CancelReservation returns a reservation's outputs to the available pool.
func (s *Store) CancelReservation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reservations[id]
	if !ok {
		return walleterrors.New(walleterrors.KindInvalidInput, "unknown reservation")
	}
	for _, o := range r.Outputs {
		if rec, ok := s.outputs[o.ID]; ok {
			rec.Status = StatusAvailable
			s.outputs[o.ID] = rec
		}
	}
	delete(s.reservations, id)
	return nil
}

// selectExactOrSmallestFirst looks for a single output equal to target,
// then for a subset of candidates summing exactly to target; failing that,
// accumulates smallest-first until the running total reaches target.
func selectExactOrSmallestFirst(candidates []Output, target int64) ([]Output, bool) {
	sorted := append([]Output(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ValueSat < sorted[j].ValueSat })

	for _, o := range sorted {
		if o.ValueSat == target {
			return []Output{o}, true
		}
	}
	if exact, ok := exactSubsetAsc(sorted, target); ok {
		return exact, true
	}

	var chosen []Output
	var total int64
	for _, o := range sorted {
		chosen = append(chosen, o)
		total += o.ValueSat
		if total >= target {
			return chosen, true
		}
	}
	return nil, false
}

// exactSubsetAsc makes one greedy pass over sorted (ascending), adding each
// output that still fits under target, and succeeds only if the running
// total lands exactly on target. Other combinations are not searched.
func exactSubsetAsc(sorted []Output, target int64) ([]Output, bool) {
	var chosen []Output
	var total int64
	for _, o := range sorted {
		if total+o.ValueSat > target {
			continue
		}
		chosen = append(chosen, o)
		total += o.ValueSat
		if total == target {
			return chosen, true
		}
	}
	return nil, false
}

func selectLargestFirst(candidates []Output, count int) []Output {
	sorted := append([]Output(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ValueSat > sorted[j].ValueSat })
	if count > len(sorted) {
		count = len(sorted)
	}
	return sorted[:count]
}
