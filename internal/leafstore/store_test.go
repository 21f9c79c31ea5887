package leafstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRefresher struct {
	view        []Leaf
	perOperator map[string][]string
	err         error
}

func (f *fakeRefresher) ListOwnedLeaves(ctx context.Context) ([]Leaf, map[string][]string, error) {
	return f.view, f.perOperator, f.err
}

type fakeRefundSigner struct {
	called bool
}

func (f *fakeRefundSigner) RefreshRefund(ctx context.Context, nodeID string) (string, time.Time, error) {
	f.called = true
	return "refreshed-tx", time.Now().Add(72 * time.Hour), nil
}

func TestRefreshReconcilesCoordinatorView(t *testing.T) {
	refresher := &fakeRefresher{
		view: []Leaf{
			{NodeID: "n1", ValueSat: 1000, Status: StatusAvailable},
			{NodeID: "n2", ValueSat: 2000, Status: StatusAvailable},
		},
		perOperator: map[string][]string{
			"op-0": {"n1", "n2"},
			"op-1": {"n1", "n2"},
			"op-2": {"n1"},
		},
	}
	s := New(refresher, &fakeRefundSigner{}, time.Hour, 10)

	require.NoError(t, s.Refresh(context.Background()))

	leaves := s.Available()
	require.Len(t, leaves, 2)
	for _, l := range leaves {
		if l.NodeID == "n2" {
			assert.Equal(t, []string{"op-2"}, l.AvailableMissingOperators)
		}
	}
}

func TestRefreshFlagsMinorityMissingLeaf(t *testing.T) {
	refresher := &fakeRefresher{
		view: []Leaf{{NodeID: "n1", ValueSat: 1000, Status: StatusAvailable}},
		perOperator: map[string][]string{
			"op-0": {"n1"},
			"op-1": {},
			"op-2": {},
		},
	}
	s := New(refresher, &fakeRefundSigner{}, time.Hour, 10)
	require.NoError(t, s.Refresh(context.Background()))

	leaves := s.Available()
	require.Len(t, leaves, 1)
	assert.ElementsMatch(t, []string{"op-1", "op-2"}, leaves[0].AvailableMissingOperators)
}

func TestReserveAndReleaseRoundTrip(t *testing.T) {
	s := New(&fakeRefresher{}, &fakeRefundSigner{}, time.Hour, 10)
	s.leafs["n1"] = Leaf{NodeID: "n1", ValueSat: 500, Status: StatusAvailable}

	s.Reserve([]string{"n1"})
	_, ok := s.SelectForAmount(500)
	assert.False(t, ok)

	s.Release([]string{"n1"})
	res, ok := s.SelectForAmount(500)
	require.True(t, ok)
	assert.True(t, res.ExactMatch)
}

func TestRefreshStaleTimelocksCallsSigner(t *testing.T) {
	signer := &fakeRefundSigner{}
	s := New(&fakeRefresher{}, signer, time.Hour, 10)
	s.leafs["n1"] = Leaf{
		NodeID:                  "n1",
		ValueSat:                500,
		Status:                  StatusAvailable,
		RefundTimelockExpiresAt: time.Now().Add(1 * time.Hour),
	}

	s.refreshStaleTimelocks(context.Background())
	assert.True(t, signer.called)
}
