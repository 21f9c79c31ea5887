package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrPaymentMetadataNotFound is returned when no metadata row exists for a
// payment id.
var ErrPaymentMetadataNotFound = errors.New("payment metadata not found")

// PaymentMetadataRepository persists the LNURL-pay success-action fields
// that don't belong on the payments row itself (spec section 4.10).
type PaymentMetadataRepository struct {
	db *pgxpool.Pool
}

// NewPaymentMetadataRepository creates a new payment metadata repository.
func NewPaymentMetadataRepository(db *DB) *PaymentMetadataRepository {
	return &PaymentMetadataRepository{db: db.pool}
}

// Upsert writes or replaces a payment's metadata row.
func (r *PaymentMetadataRepository) Upsert(ctx context.Context, m *PaymentMetadata) error {
	query := `INSERT INTO payment_metadata (payment_id, lnurl_pay_info_json, lnurl_description)
	    VALUES ($1, $2, $3)
	    ON CONFLICT (payment_id) DO UPDATE
	      SET lnurl_pay_info_json = EXCLUDED.lnurl_pay_info_json,
	          lnurl_description = EXCLUDED.lnurl_description`

	_, err := r.db.Exec(ctx, query, m.PaymentID, m.LnurlPayInfoJSON, m.LnurlDescription)
	if err != nil {
		return fmt.Errorf("failed to upsert payment metadata for %s: %w", m.PaymentID, err)
	}
	return nil
}

// GetByPaymentID retrieves a payment's metadata row. Returns
// ErrPaymentMetadataNotFound if the payment has none.
func (r *PaymentMetadataRepository) GetByPaymentID(ctx context.Context, paymentID string) (*PaymentMetadata, error) {
	query := `SELECT payment_id, lnurl_pay_info_json, lnurl_description
	    FROM payment_metadata WHERE payment_id = $1`

	var m PaymentMetadata
	err := r.db.QueryRow(ctx, query, paymentID).Scan(&m.PaymentID, &m.LnurlPayInfoJSON, &m.LnurlDescription)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentMetadataNotFound
		}
		return nil, fmt.Errorf("failed to get payment metadata for %s: %w", paymentID, err)
	}
	return &m, nil
}
