package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrPaymentNotFound is returned when a payment row does not exist.
var ErrPaymentNotFound = errors.New("payment not found")

// PaymentFilter narrows list_payments (spec section 6) to a type, status,
// asset, or time window. Zero values mean "no filter on this field".
type PaymentFilter struct {
	Type           PaymentType
	Status         PaymentStatus
	Method         PaymentMethod
	FromTimestamp  *time.Time
	ToTimestamp    *time.Time
	Offset         int
	Limit          int
	SortAscending  bool
}

// PaymentRepository handles all database operations for payments.
type PaymentRepository struct {
	db *pgxpool.Pool
}

// NewPaymentRepository creates a new payment repository instance.
func NewPaymentRepository(db *DB) *PaymentRepository {
	return &PaymentRepository{db: db.pool}
}

// Create inserts a new payment row.
func (r *PaymentRepository) Create(ctx context.Context, p *Payment) error {
	query := `INSERT INTO payments (
		id, type, status, amount, fees, method, timestamp, details_json, tx_type
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(
		ctx,
		query,
		p.ID,
		p.Type,
		p.Status,
		p.Amount,
		p.Fees,
		p.Method,
		p.Timestamp,
		p.DetailsJSON,
		txTypeOrDefault(p.TxType),
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func txTypeOrDefault(t TokenTxType) TokenTxType {
	if t == "" {
		return TokenTxTransfer
	}
	return t
}

// GetByID retrieves a payment by its id. Returns ErrPaymentNotFound if the
// id does not exist.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*Payment, error) {
	query := `SELECT id, type, status, amount, fees, method, timestamp, details_json, tx_type
	    FROM payments WHERE id = $1`

	var p Payment
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Type, &p.Status, &p.Amount, &p.Fees, &p.Method, &p.Timestamp, &p.DetailsJSON, &p.TxType,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment with id %s: %w", id, err)
	}
	return &p, nil
}

// UpdateStatus transitions a payment's status once its underlying send or
// receive settles (spec 4.10's terminal PaymentSucceeded/PaymentFailed).
// Returns ErrPaymentNotFound if the id does not exist.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id string, status PaymentStatus, feesSat int64) error {
	query := `UPDATE payments SET status = $2, fees = $3 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, status, feesSat)
	if err != nil {
		return fmt.Errorf("failed to update payment with id %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

// List returns payments matching filter, ordered by timestamp per
// filter.SortAscending (spec 8: list_payments sort order).
func (r *PaymentRepository) List(ctx context.Context, filter PaymentFilter) ([]*Payment, error) {
	order := "DESC"
	if filter.SortAscending {
		order = "ASC"
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`SELECT id, type, status, amount, fees, method, timestamp, details_json, tx_type
	    FROM payments
	    WHERE ($1 = '' OR type = $1)
	      AND ($2 = '' OR status = $2)
	      AND ($3 = '' OR method = $3)
	      AND ($4::timestamptz IS NULL OR timestamp >= $4)
	      AND ($5::timestamptz IS NULL OR timestamp <= $5)
	    ORDER BY timestamp %s
	    OFFSET $6 LIMIT $7`, order)

	rows, err := r.db.Query(ctx, query,
		filter.Type, filter.Status, filter.Method,
		filter.FromTimestamp, filter.ToTimestamp,
		filter.Offset, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.Type, &p.Status, &p.Amount, &p.Fees, &p.Method, &p.Timestamp, &p.DetailsJSON, &p.TxType); err != nil {
			return nil, fmt.Errorf("failed to scan payment row: %w", err)
		}
		payments = append(payments, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return payments, nil
}
