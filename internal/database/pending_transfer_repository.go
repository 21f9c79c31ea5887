package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrPendingTransferNotFound is returned when no row exists for the given id.
var ErrPendingTransferNotFound = errors.New("pending transfer not found")

// PendingTransferRepository handles all database operations for transfers
// that have survived key-tweaking but not yet delivery/finalization
// (spec 4.5's reconnect-resume requirement).
type PendingTransferRepository struct {
	db *pgxpool.Pool
}

// NewPendingTransferRepository creates a new pending transfer repository.
func NewPendingTransferRepository(db *DB) *PendingTransferRepository {
	return &PendingTransferRepository{db: db.pool}
}

// Upsert records a transfer's latest state. The transfer engine saves a
// transfer once its key tweaks and refund signatures are committed
// (status SIGNATURES_REQUESTED), and again after delivery only when the
// transfer still waits on a user request; a finalized transfer is deleted.
func (r *PendingTransferRepository) Upsert(ctx context.Context, t *PendingTransfer) error {
	query := `INSERT INTO pending_transfers (id, status, data_json)
	    VALUES ($1, $2, $3)
	    ON CONFLICT (id) DO UPDATE
	      SET status = EXCLUDED.status,
	          data_json = EXCLUDED.data_json`

	_, err := r.db.Exec(ctx, query, t.ID, t.Status, t.DataJSON)
	if err != nil {
		return fmt.Errorf("failed to upsert pending transfer %s: %w", t.ID, err)
	}
	return nil
}

// Get retrieves one pending transfer by id.
func (r *PendingTransferRepository) Get(ctx context.Context, id string) (*PendingTransfer, error) {
	query := `SELECT id, status, data_json FROM pending_transfers WHERE id = $1`

	var t PendingTransfer
	err := r.db.QueryRow(ctx, query, id).Scan(&t.ID, &t.Status, &t.DataJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPendingTransferNotFound
		}
		return nil, fmt.Errorf("failed to get pending transfer %s: %w", id, err)
	}
	return &t, nil
}

// List returns every pending transfer, backing the resume-on-reconnect path.
func (r *PendingTransferRepository) List(ctx context.Context) ([]*PendingTransfer, error) {
	query := `SELECT id, status, data_json FROM pending_transfers ORDER BY id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending transfers: %w", err)
	}
	defer rows.Close()

	var transfers []*PendingTransfer
	for rows.Next() {
		var t PendingTransfer
		if err := rows.Scan(&t.ID, &t.Status, &t.DataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan pending transfer row: %w", err)
		}
		transfers = append(transfers, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return transfers, nil
}

// Delete removes a pending transfer row once it is finalized, expired, or
// returned.
func (r *PendingTransferRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM pending_transfers WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete pending transfer %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPendingTransferNotFound
	}
	return nil
}
