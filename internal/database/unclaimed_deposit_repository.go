package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUnclaimedDepositNotFound is returned when no (txid, vout) row exists.
var ErrUnclaimedDepositNotFound = errors.New("unclaimed deposit not found")

// UnclaimedDepositRepository handles all database operations for static
// deposits seen on chain but not yet claimed (spec section 4.7).
type UnclaimedDepositRepository struct {
	db *pgxpool.Pool
}

// NewUnclaimedDepositRepository creates a new unclaimed deposit repository.
func NewUnclaimedDepositRepository(db *DB) *UnclaimedDepositRepository {
	return &UnclaimedDepositRepository{db: db.pool}
}

// Upsert records a newly observed deposit UTXO, or refreshes one whose
// claim_error_json changed on retry.
func (r *UnclaimedDepositRepository) Upsert(ctx context.Context, d *UnclaimedDeposit) error {
	query := `INSERT INTO unclaimed_deposits (txid, vout, amount_sats, claim_error_json, refund_tx, refund_tx_id)
	    VALUES ($1, $2, $3, $4, $5, $6)
	    ON CONFLICT (txid, vout) DO UPDATE
	      SET amount_sats = EXCLUDED.amount_sats,
	          claim_error_json = EXCLUDED.claim_error_json,
	          refund_tx = EXCLUDED.refund_tx,
	          refund_tx_id = EXCLUDED.refund_tx_id`

	_, err := r.db.Exec(ctx, query, d.TxID, d.Vout, d.AmountSat, d.ClaimErrorJSON, d.RefundTx, d.RefundTxID)
	if err != nil {
		return fmt.Errorf("failed to upsert unclaimed deposit %s:%d: %w", d.TxID, d.Vout, err)
	}
	return nil
}

// Get retrieves one unclaimed deposit by its outpoint. Returns
// ErrUnclaimedDepositNotFound if it has already been claimed or was never
// recorded.
func (r *UnclaimedDepositRepository) Get(ctx context.Context, txid string, vout int32) (*UnclaimedDeposit, error) {
	query := `SELECT txid, vout, amount_sats, claim_error_json, refund_tx, refund_tx_id
	    FROM unclaimed_deposits WHERE txid = $1 AND vout = $2`

	var d UnclaimedDeposit
	err := r.db.QueryRow(ctx, query, txid, vout).Scan(&d.TxID, &d.Vout, &d.AmountSat, &d.ClaimErrorJSON, &d.RefundTx, &d.RefundTxID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUnclaimedDepositNotFound
		}
		return nil, fmt.Errorf("failed to get unclaimed deposit %s:%d: %w", txid, vout, err)
	}
	return &d, nil
}

// List returns every unclaimed deposit, backing the list_unclaimed_deposits
// public SDK call.
func (r *UnclaimedDepositRepository) List(ctx context.Context) ([]*UnclaimedDeposit, error) {
	query := `SELECT txid, vout, amount_sats, claim_error_json, refund_tx, refund_tx_id
	    FROM unclaimed_deposits ORDER BY txid, vout`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list unclaimed deposits: %w", err)
	}
	defer rows.Close()

	var deposits []*UnclaimedDeposit
	for rows.Next() {
		var d UnclaimedDeposit
		if err := rows.Scan(&d.TxID, &d.Vout, &d.AmountSat, &d.ClaimErrorJSON, &d.RefundTx, &d.RefundTxID); err != nil {
			return nil, fmt.Errorf("failed to scan unclaimed deposit row: %w", err)
		}
		deposits = append(deposits, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return deposits, nil
}

// Delete removes a deposit row once claimed successfully.
func (r *UnclaimedDepositRepository) Delete(ctx context.Context, txid string, vout int32) error {
	query := `DELETE FROM unclaimed_deposits WHERE txid = $1 AND vout = $2`
	tag, err := r.db.Exec(ctx, query, txid, vout)
	if err != nil {
		return fmt.Errorf("failed to delete unclaimed deposit %s:%d: %w", txid, vout, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUnclaimedDepositNotFound
	}
	return nil
}

// MarkRefunded records the refund transaction for a deposit that failed to
// claim and was instead refunded directly to sender (spec 4.7's
// RefundDeposit path).
func (r *UnclaimedDepositRepository) MarkRefunded(ctx context.Context, txid string, vout int32, refundTxHex, refundTxID string) error {
	query := `UPDATE unclaimed_deposits SET refund_tx = $3, refund_tx_id = $4 WHERE txid = $1 AND vout = $2`
	tag, err := r.db.Exec(ctx, query, txid, vout, refundTxHex, refundTxID)
	if err != nil {
		return fmt.Errorf("failed to mark unclaimed deposit %s:%d refunded: %w", txid, vout, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUnclaimedDepositNotFound
	}
	return nil
}
