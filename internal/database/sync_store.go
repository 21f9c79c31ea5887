package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sparkwallet/spark-wallet-sdk/internal/syncx"
)

// CurrentSchemaVersion is stamped onto every sync_records row this client
// writes (spec section 6: schema version 18 introduced token tx_type).
const CurrentSchemaVersion = 18

// SyncStore implements internal/syncx.Store against the sync_outgoing,
// sync_incoming, and sync_records tables (spec section 4.11).
type SyncStore struct {
	db *pgxpool.Pool
}

// NewSyncStore creates a new SyncStore.
func NewSyncStore(db *DB) *SyncStore {
	return &SyncStore{db: db.pool}
}

// recordKey splits a syncx record id of the form "type/id" used to key
// sync_records, the same composite key the coordinator's change stream
// addresses records by.
func recordKey(recordID string) (recordType, id string) {
	parts := strings.SplitN(recordID, "/", 2)
	if len(parts) != 2 {
		return "unknown", recordID
	}
	return parts[0], parts[1]
}

// InsertOutgoing persists a pending local mutation.
func (s *SyncStore) InsertOutgoing(ctx context.Context, change syncx.OutgoingChange) error {
	query := `INSERT INTO sync_outgoing (revision, record_id, fields_json, parent_revision)
	    VALUES ($1, $2, $3, $4)`
	_, err := s.db.Exec(ctx, query, change.Revision, change.RecordID, change.FieldsJSON, change.ParentRevision)
	if err != nil {
		return fmt.Errorf("failed to insert outgoing change at revision %d: %w", change.Revision, err)
	}
	return nil
}

// PendingOutgoing returns every change the coordinator has not yet
// acknowledged, oldest revision first.
func (s *SyncStore) PendingOutgoing(ctx context.Context) ([]syncx.OutgoingChange, error) {
	query := `SELECT revision, record_id, fields_json, parent_revision
	    FROM sync_outgoing ORDER BY revision ASC`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending outgoing changes: %w", err)
	}
	defer rows.Close()

	var changes []syncx.OutgoingChange
	for rows.Next() {
		var c syncx.OutgoingChange
		if err := rows.Scan(&c.Revision, &c.RecordID, &c.FieldsJSON, &c.ParentRevision); err != nil {
			return nil, fmt.Errorf("failed to scan outgoing change row: %w", err)
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return changes, nil
}

// RebaseOutgoing moves a pending change to a fresh revision, used when an
// incoming record collides with a not-yet-pushed local change.
func (s *SyncStore) RebaseOutgoing(ctx context.Context, oldRevision, newRevision int64) error {
	tag, err := s.db.Exec(ctx, `UPDATE sync_outgoing SET revision = $2 WHERE revision = $1`, oldRevision, newRevision)
	if err != nil {
		return fmt.Errorf("failed to rebase outgoing change from %d to %d: %w", oldRevision, newRevision, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no outgoing change at revision %d to rebase", oldRevision)
	}
	return nil
}

// DeleteOutgoing drops a change once the coordinator has accepted it.
func (s *SyncStore) DeleteOutgoing(ctx context.Context, revision int64) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM sync_outgoing WHERE revision = $1`, revision); err != nil {
		return fmt.Errorf("failed to delete outgoing change at revision %d: %w", revision, err)
	}
	return nil
}

// HighestKnownRevision returns the highest revision seen across both the
// outbox and the materialized sync_records table, the floor new outgoing
// changes must exceed.
func (s *SyncStore) HighestKnownRevision(ctx context.Context) (int64, error) {
	query := `SELECT GREATEST(
	    COALESCE((SELECT MAX(revision) FROM sync_outgoing), 0),
	    COALESCE((SELECT MAX(revision) FROM sync_records), 0)
	)`
	var highest int64
	if err := s.db.QueryRow(ctx, query).Scan(&highest); err != nil {
		return 0, fmt.Errorf("failed to get highest known revision: %w", err)
	}
	return highest, nil
}

// Materialize applies an incoming record's new state to sync_records,
// upserting by (type, id) so a crash-and-replay before DeleteIncoming is
// idempotent.
func (s *SyncStore) Materialize(ctx context.Context, rec syncx.IncomingRecord) error {
	recordType, id := recordKey(rec.RecordID)
	query := `INSERT INTO sync_records (type, id, revision, schema_version, data_json)
	    VALUES ($1, $2, $3, $4, $5)
	    ON CONFLICT (type, id) DO UPDATE
	      SET revision = EXCLUDED.revision,
	          schema_version = EXCLUDED.schema_version,
	          data_json = EXCLUDED.data_json
	    WHERE sync_records.revision < EXCLUDED.revision`
	_, err := s.db.Exec(ctx, query, recordType, id, rec.Revision, CurrentSchemaVersion, rec.NewStateJSON)
	if err != nil {
		return fmt.Errorf("failed to materialize record %s at revision %d: %w", rec.RecordID, rec.Revision, err)
	}
	return nil
}

// DeleteIncoming drops an incoming record once materialized.
func (s *SyncStore) DeleteIncoming(ctx context.Context, revision int64) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM sync_incoming WHERE revision = $1`, revision); err != nil {
		return fmt.Errorf("failed to delete incoming record at revision %d: %w", revision, err)
	}
	return nil
}

