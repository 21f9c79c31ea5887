//go:build integration

package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkwallet/spark-wallet-sdk/internal/syncx"
	"github.com/sparkwallet/spark-wallet-sdk/pkg/walletlog"
)

// ============================================================================
// Integration tests — require a running Postgres container
// Run with: go test -tags=integration ./internal/database/
// ============================================================================

func init() {
	_ = walletlog.Init("development")
}

func TestPaymentRepositoryCreateGetListRoundTrips(t *testing.T) {
	db := SetupTestDB(t)
	defer db.Close()
	defer CleanupTestDB(t, db)

	repo := NewPaymentRepository(db)
	now := time.Now().UTC().Truncate(time.Second)

	p := &Payment{
		ID:          uuid.NewString(),
		Type:        PaymentTypeSend,
		Status:      PaymentStatusPending,
		Amount:      5000,
		Fees:        12,
		Method:      MethodSparkTransfer,
		Timestamp:   now,
		DetailsJSON: []byte(`{"transfer_id":"t1"}`),
	}
	require.NoError(t, repo.Create(context.Background(), p))

	got, err := repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Amount, got.Amount)
	assert.Equal(t, TokenTxTransfer, got.TxType)

	require.NoError(t, repo.UpdateStatus(context.Background(), p.ID, PaymentStatusCompleted, 15))
	got, err = repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusCompleted, got.Status)
	assert.Equal(t, int64(15), got.Fees)

	list, err := repo.List(context.Background(), PaymentFilter{Type: PaymentTypeSend, SortAscending: true})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, p.ID, list[0].ID)

	_, err = repo.GetByID(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestUnclaimedDepositRepositoryUpsertListDelete(t *testing.T) {
	db := SetupTestDB(t)
	defer db.Close()
	defer CleanupTestDB(t, db)

	repo := NewUnclaimedDepositRepository(db)
	d := &UnclaimedDeposit{TxID: "deadbeef", Vout: 0, AmountSat: 100000}
	require.NoError(t, repo.Upsert(context.Background(), d))

	got, err := repo.Get(context.Background(), "deadbeef", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), got.AmountSat)

	list, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, repo.Delete(context.Background(), "deadbeef", 0))
	_, err = repo.Get(context.Background(), "deadbeef", 0)
	assert.ErrorIs(t, err, ErrUnclaimedDepositNotFound)
}

func TestSettingsRepositorySetGetDelete(t *testing.T) {
	db := SetupTestDB(t)
	defer db.Close()
	defer CleanupTestDB(t, db)

	repo := NewSettingsRepository(db)
	_, err := repo.Get(context.Background(), "lightning_address")
	assert.ErrorIs(t, err, ErrSettingNotFound)

	require.NoError(t, repo.Set(context.Background(), "lightning_address", "alice@spark.cash"))
	value, err := repo.Get(context.Background(), "lightning_address")
	require.NoError(t, err)
	assert.Equal(t, "alice@spark.cash", value)

	require.NoError(t, repo.Delete(context.Background(), "lightning_address"))
	_, err = repo.Get(context.Background(), "lightning_address")
	assert.ErrorIs(t, err, ErrSettingNotFound)
}

func TestSyncStoreOutgoingAndMaterializeLifecycle(t *testing.T) {
	db := SetupTestDB(t)
	defer db.Close()
	defer CleanupTestDB(t, db)

	store := NewSyncStore(db)
	ctx := context.Background()

	highest, err := store.HighestKnownRevision(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), highest)

	change := syncx.OutgoingChange{Revision: 1, RecordID: "payment/p1", FieldsJSON: []byte(`{"status":"Completed"}`)}
	require.NoError(t, store.InsertOutgoing(ctx, change))

	pending, err := store.PendingOutgoing(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, store.RebaseOutgoing(ctx, 1, 5))
	pending, err = store.PendingOutgoing(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(5), pending[0].Revision)

	require.NoError(t, store.DeleteOutgoing(ctx, 5))
	pending, err = store.PendingOutgoing(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	rec := syncx.IncomingRecord{Revision: 7, RecordID: "payment/p2", NewStateJSON: []byte(`{"status":"Completed"}`)}
	require.NoError(t, store.Materialize(ctx, rec))
	// Materializing an older revision for the same record must not
	// regress the stored state.
	stale := syncx.IncomingRecord{Revision: 6, RecordID: "payment/p2", NewStateJSON: []byte(`{"status":"Pending"}`)}
	require.NoError(t, store.Materialize(ctx, stale))

	highest, err = store.HighestKnownRevision(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), highest)

	require.NoError(t, store.DeleteIncoming(ctx, rec.Revision))
}
