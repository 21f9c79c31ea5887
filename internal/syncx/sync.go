// Package syncx runs the wallet's real-time sync loop: a durable
// outbox/inbox over the relational store that pushes local changes to the
// coordinator and pulls/rebases remote ones (spec section 4.11).
package syncx

import (
	"context"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"go.uber.org/zap"

	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
	"github.com/sparkwallet/spark-wallet-sdk/pkg/walletlog"
)

// OutgoingChange is one pending local mutation awaiting a push, keyed by
// a revision assigned strictly higher than every revision this client has
// seen (spec: add_outgoing_change).
type OutgoingChange struct {
	Revision       int64
	RecordID       string
	FieldsJSON     []byte
	ParentRevision *int64
}

// IncomingRecord is one record pulled from the coordinator's change stream.
type IncomingRecord struct {
	Revision     int64
	RecordID     string
	NewStateJSON []byte
	OldStateJSON []byte
}

// Store is the relational persistence this loop drives: sync_outgoing,
// sync_incoming, and sync_records as named in spec section 6's schema.
type Store interface {
	// InsertOutgoing persists an outgoing change atomically alongside the
	// revision bookkeeping that produced it.
	InsertOutgoing(ctx context.Context, change OutgoingChange) error
	// PendingOutgoing returns every outgoing change not yet acknowledged
	// by the coordinator, oldest revision first.
	PendingOutgoing(ctx context.Context) ([]OutgoingChange, error)
	// RebaseOutgoing moves an outgoing change from oldRevision to
	// newRevision, which the caller picks strictly higher than the incoming
	// revision it collided with (spec: rebase on incoming collision).
	RebaseOutgoing(ctx context.Context, oldRevision, newRevision int64) error
	// DeleteOutgoing drops an outgoing change once the coordinator has
	// accepted it.
	DeleteOutgoing(ctx context.Context, revision int64) error
	// HighestKnownRevision returns the highest revision this client has
	// seen across outgoing and incoming records, for new-change assignment.
	HighestKnownRevision(ctx context.Context) (int64, error)
	// Materialize applies an incoming record's new state to the owning
	// relational table (payments, unclaimed_deposits, ...). Invoked before
	// the incoming row is deleted so a crash after materialization but
	// before delete simply replays the same (idempotent) update.
	Materialize(ctx context.Context, rec IncomingRecord) error
	// DeleteIncoming drops an incoming record once materialized.
	DeleteIncoming(ctx context.Context, revision int64) error
}

// Transport is the coordinator-facing half of the loop: pushing the local
// outbox and pulling the remote change stream.
type Transport interface {
	// Push submits one outgoing change, returning the coordinator-assigned
	// revision it was accepted at.
	Push(ctx context.Context, change OutgoingChange) (acceptedRevision int64, err error)
	// ListChanges pulls every remote record with revision > sinceRevision.
	ListChanges(ctx context.Context, sinceRevision int64) ([]IncomingRecord, error)
	// Subscribe delivers a notification each time the coordinator's change
	// stream advances for this identity, excluding notifications the
	// caller's own clientID produced.
	Subscribe(ctx context.Context, clientID string) (<-chan struct{}, error)
}

// backoffStart and backoffMultiplier drive push retry delay; backoffCap
// bounds how long a single item is retried before abandonment (spec 4.11).
const (
	backoffStart      = time.Second
	backoffMultiplier = 1.5
	backoffCap        = 14 * 24 * time.Hour
)

// Loop is the single-consumer sync event loop: outgoing push, incoming
// pull, and materialization never run concurrently with each other (spec
// section 5 concurrency model).
type Loop struct {
	store     Store
	transport Transport
	clientID  string
	clock     clock.Clock

	mu   sync.Mutex
	stop chan struct{}

	synced chan struct{}
}

// New builds a Loop for the given client identity.
func New(store Store, transport Transport, clientID string) *Loop {
	return &Loop{
		store:     store,
		transport: transport,
		clientID:  clientID,
		clock:     clock.NewDefaultClock(),
		stop:      make(chan struct{}),
		synced:    make(chan struct{}, 1),
	}
}

// Synced is signaled once per completed pull/materialize cycle, the
// trigger for the SDK facade's Synced event.
func (l *Loop) Synced() <-chan struct{} { return l.synced }

// Close stops the background loop.
func (l *Loop) Close() { close(l.stop) }

// AddOutgoingChange assigns a fresh revision above every revision this
// client knows of and persists the change atomically, then attempts an
// immediate push so same-process sends don't wait for the next
// notification.
func (l *Loop) AddOutgoingChange(ctx context.Context, recordID string, fieldsJSON []byte) (OutgoingChange, error) {
	highest, err := l.store.HighestKnownRevision(ctx)
	if err != nil {
		return OutgoingChange{}, walleterrors.Wrap(walleterrors.KindStorage, err, "failed to read highest known revision")
	}
	change := OutgoingChange{
		Revision:   highest + 1,
		RecordID:   recordID,
		FieldsJSON: fieldsJSON,
	}
	if err := l.store.InsertOutgoing(ctx, change); err != nil {
		return OutgoingChange{}, walleterrors.Wrap(walleterrors.KindStorage, err, "failed to persist outgoing change")
	}
	go l.pushWithBackoff(context.Background(), change)
	return change, nil
}

// Run subscribes to the coordinator's change stream and drives pushes and
// pulls until ctx is canceled or Close is called. It commits the latest
// pending outgoing change first on every cycle, including the first, so a
// crash between insert and materialize is recovered from on restart (spec
// 4.11 apply order).
func (l *Loop) Run(ctx context.Context) error {
	notifications, err := l.transport.Subscribe(ctx, l.clientID)
	if err != nil {
		return walleterrors.Wrap(walleterrors.KindNetworkError, err, "failed to subscribe to sync stream")
	}

	if err := l.cycle(ctx); err != nil {
		walletlog.Warn("initial sync cycle failed", zap.Error(err))
	}

	for {
		select {
		case <-notifications:
			if err := l.cycle(ctx); err != nil {
				walletlog.Warn("sync cycle failed", zap.Error(err))
			}
		case <-l.stop:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (l *Loop) cycle(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.pushPendingOutgoing(ctx); err != nil {
		return err
	}
	if err := l.pullAndApply(ctx); err != nil {
		return err
	}

	select {
	case l.synced <- struct{}{}:
	default:
	}
	return nil
}

// pushPendingOutgoing commits the latest pending outgoing change, the
// recovery step for a crash between an insert and its materialization.
func (l *Loop) pushPendingOutgoing(ctx context.Context) error {
	pending, err := l.store.PendingOutgoing(ctx)
	if err != nil {
		return walleterrors.Wrap(walleterrors.KindStorage, err, "failed to list pending outgoing changes")
	}
	if len(pending) == 0 {
		return nil
	}
	latest := pending[len(pending)-1]
	accepted, err := l.transport.Push(ctx, latest)
	if err != nil {
		return walleterrors.Wrap(walleterrors.KindNetworkError, err, "failed to push outgoing change")
	}
	return l.store.DeleteOutgoing(ctx, accepted)
}

// pullAndApply drains the incoming record stream, rebasing any pending
// outgoing change an incoming record collides with, materializing each
// incoming record's new state, then deleting it (spec 4.11 step 2). It
// pulls from just below the lowest pending outgoing revision, so a remote
// record that reuses a pending change's revision is still pulled.
func (l *Loop) pullAndApply(ctx context.Context) error {
	highest, err := l.store.HighestKnownRevision(ctx)
	if err != nil {
		return walleterrors.Wrap(walleterrors.KindStorage, err, "failed to read highest known revision")
	}
	pending, err := l.store.PendingOutgoing(ctx)
	if err != nil {
		return walleterrors.Wrap(walleterrors.KindStorage, err, "failed to list pending outgoing changes")
	}
	since := highest
	for _, change := range pending {
		if change.Revision-1 < since {
			since = change.Revision - 1
		}
	}

	incoming, err := l.transport.ListChanges(ctx, since)
	if err != nil {
		return walleterrors.Wrap(walleterrors.KindNetworkError, err, "failed to list incoming changes")
	}

	for _, rec := range incoming {
		if err := l.rebaseCollisions(ctx, rec.Revision); err != nil {
			return err
		}
		if err := l.store.Materialize(ctx, rec); err != nil {
			return walleterrors.Wrap(walleterrors.KindStorage, err, "failed to materialize incoming record")
		}
		if err := l.store.DeleteIncoming(ctx, rec.Revision); err != nil {
			return walleterrors.Wrap(walleterrors.KindStorage, err, "failed to delete incoming record")
		}
	}
	return nil
}

func (l *Loop) rebaseCollisions(ctx context.Context, incomingRevision int64) error {
	pending, err := l.store.PendingOutgoing(ctx)
	if err != nil {
		return walleterrors.Wrap(walleterrors.KindStorage, err, "failed to list pending outgoing changes")
	}
	highest, err := l.store.HighestKnownRevision(ctx)
	if err != nil {
		return walleterrors.Wrap(walleterrors.KindStorage, err, "failed to read highest known revision")
	}
	next := highest
	if incomingRevision > next {
		next = incomingRevision
	}
	for _, change := range pending {
		if change.Revision > incomingRevision {
			continue
		}
		next++
		if err := l.store.RebaseOutgoing(ctx, change.Revision, next); err != nil {
			return walleterrors.Wrap(walleterrors.KindStorage, err, "failed to rebase outgoing change")
		}
	}
	return nil
}

func (l *Loop) pushWithBackoff(ctx context.Context, change OutgoingChange) {
	delay := backoffStart
	elapsed := time.Duration(0)
	for {
		accepted, err := l.transport.Push(ctx, change)
		if err == nil {
			if delErr := l.store.DeleteOutgoing(ctx, accepted); delErr != nil {
				walletlog.Warn("failed to delete acknowledged outgoing change", zap.Int64("revision", change.Revision), zap.Error(delErr))
			}
			return
		}
		walletlog.Warn("push failed, backing off", zap.Int64("revision", change.Revision), zap.Duration("delay", delay), zap.Error(err))

		select {
		case <-l.clock.TickAfter(delay):
		case <-l.stop:
			return
		case <-ctx.Done():
			return
		}

		elapsed += delay
		if elapsed >= backoffCap {
			walletlog.Error("abandoning outgoing change after exceeding backoff cap", zap.Int64("revision", change.Revision))
			return
		}
		delay = time.Duration(float64(delay) * backoffMultiplier)
	}
}
