package syncx

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu       sync.Mutex
	outgoing map[int64]OutgoingChange
	materialized []IncomingRecord
	deletedIncoming []int64
	highest  int64
}

func newMemStore() *memStore {
	return &memStore{outgoing: make(map[int64]OutgoingChange)}
}

func (m *memStore) InsertOutgoing(ctx context.Context, change OutgoingChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outgoing[change.Revision] = change
	if change.Revision > m.highest {
		m.highest = change.Revision
	}
	return nil
}

func (m *memStore) PendingOutgoing(ctx context.Context) ([]OutgoingChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]OutgoingChange, 0, len(m.outgoing))
	for _, c := range m.outgoing {
		out = append(out, c)
	}
	return out, nil
}

func (m *memStore) RebaseOutgoing(ctx context.Context, oldRevision, newRevision int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.outgoing[oldRevision]
	if !ok {
		return nil
	}
	delete(m.outgoing, oldRevision)
	c.Revision = newRevision
	m.outgoing[newRevision] = c
	if newRevision > m.highest {
		m.highest = newRevision
	}
	return nil
}

func (m *memStore) DeleteOutgoing(ctx context.Context, revision int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.outgoing, revision)
	return nil
}

func (m *memStore) HighestKnownRevision(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.highest, nil
}

func (m *memStore) Materialize(ctx context.Context, rec IncomingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.materialized = append(m.materialized, rec)
	if rec.Revision > m.highest {
		m.highest = rec.Revision
	}
	return nil
}

func (m *memStore) DeleteIncoming(ctx context.Context, revision int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletedIncoming = append(m.deletedIncoming, revision)
	return nil
}

type fakeTransport struct {
	mu        sync.Mutex
	pushed    []OutgoingChange
	incoming  []IncomingRecord
	pushErr   error
}

func (f *fakeTransport) Push(ctx context.Context, change OutgoingChange) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return 0, f.pushErr
	}
	f.pushed = append(f.pushed, change)
	return change.Revision, nil
}

func (f *fakeTransport) ListChanges(ctx context.Context, sinceRevision int64) ([]IncomingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []IncomingRecord
	for _, r := range f.incoming {
		if r.Revision > sinceRevision {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeTransport) Subscribe(ctx context.Context, clientID string) (<-chan struct{}, error) {
	ch := make(chan struct{})
	return ch, nil
}

func TestAddOutgoingChangeAssignsIncreasingRevisions(t *testing.T) {
	store := newMemStore()
	transport := &fakeTransport{}
	loop := New(store, transport, "client-1")
	defer loop.Close()

	first, err := loop.AddOutgoingChange(context.Background(), "rec-a", []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Revision)

	second, err := loop.AddOutgoingChange(context.Background(), "rec-b", []byte(`{"b":2}`))
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Revision)
}

func TestCycleCommitsPendingOutgoingBeforePulling(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.InsertOutgoing(context.Background(), OutgoingChange{Revision: 1, RecordID: "rec-a"}))
	transport := &fakeTransport{
		incoming: []IncomingRecord{{Revision: 2, RecordID: "rec-b", NewStateJSON: []byte(`{}`)}},
	}
	loop := New(store, transport, "client-1")
	defer loop.Close()

	require.NoError(t, loop.cycle(context.Background()))

	assert.Len(t, transport.pushed, 1, "pending outgoing change is pushed")
	assert.Empty(t, store.outgoing, "acknowledged outgoing change is removed")
	assert.Len(t, store.materialized, 1, "incoming record is materialized")
	assert.Equal(t, []int64{2}, store.deletedIncoming, "materialized incoming record is deleted")
}

func TestPullAndApplyRebasesCollidingOutgoingChanges(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.InsertOutgoing(context.Background(), OutgoingChange{Revision: 1, RecordID: "rec-a"}))
	transport := &fakeTransport{
		incoming: []IncomingRecord{{Revision: 1, RecordID: "rec-b", NewStateJSON: []byte(`{}`)}},
	}
	loop := New(store, transport, "client-1")
	defer loop.Close()

	require.NoError(t, loop.pullAndApply(context.Background()))

	require.Len(t, store.outgoing, 1)
	for rev, change := range store.outgoing {
		assert.Greater(t, rev, int64(1), "rebased change must carry a revision above the incoming one")
		assert.Equal(t, "rec-a", change.RecordID)
	}
}

func TestSyncedSignalsOncePerCycle(t *testing.T) {
	store := newMemStore()
	transport := &fakeTransport{}
	loop := New(store, transport, "client-1")
	defer loop.Close()

	require.NoError(t, loop.cycle(context.Background()))
	select {
	case <-loop.Synced():
	case <-time.After(time.Second):
		t.Fatal("expected a synced signal")
	}
}
