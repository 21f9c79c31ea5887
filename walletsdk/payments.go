package walletsdk

import (
	"context"
	"time"

	"github.com/sparkwallet/spark-wallet-sdk/internal/database"
	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
)

// ListPaymentsFilter narrows list_payments to a type, status, method, or
// time window (spec section 6).
type ListPaymentsFilter struct {
	Type          database.PaymentType
	Status        database.PaymentStatus
	Method        database.PaymentMethod
	FromTimestamp *time.Time
	ToTimestamp   *time.Time
	Offset        int
	Limit         int
	SortAscending bool
}

// ListPayments returns a page of this wallet's payment history.
func (w *Wallet) ListPayments(ctx context.Context, filter ListPaymentsFilter) ([]*database.Payment, error) {
	return w.payments.List(ctx, database.PaymentFilter{
		Type:          filter.Type,
		Status:        filter.Status,
		Method:        filter.Method,
		FromTimestamp: filter.FromTimestamp,
		ToTimestamp:   filter.ToTimestamp,
		Offset:        filter.Offset,
		Limit:         filter.Limit,
		SortAscending: filter.SortAscending,
	})
}

// GetPayment fetches a single payment by id.
func (w *Wallet) GetPayment(ctx context.Context, id string) (*database.Payment, error) {
	return w.payments.GetByID(ctx, id)
}

// WaitForPayment blocks until the payment matching id reaches a terminal
// status, or timeout elapses, polling the payments table since terminal
// transitions are only ever observed through the store (the orchestrator
// inserts payments it originates, the sync loop materializes ones another
// client of this identity originated).
func (w *Wallet) WaitForPayment(ctx context.Context, id string, timeout time.Duration) (*database.Payment, error) {
	deadline := time.Now().Add(timeout)
	const pollInterval = 500 * time.Millisecond

	for {
		p, err := w.payments.GetByID(ctx, id)
		if err != nil && err != database.ErrPaymentNotFound {
			return nil, err
		}
		if p != nil && p.Status != database.PaymentStatusPending {
			return p, nil
		}
		if !time.Now().Before(deadline) {
			return nil, walleterrors.New(walleterrors.KindGeneric, "timed out waiting for payment")
		}

		select {
		case <-ctx.Done():
			return nil, walleterrors.Wrap(walleterrors.KindGeneric, ctx.Err(), "wait for payment canceled")
		case <-time.After(pollInterval):
		}
	}
}
