package walletsdk

import (
	"context"
	"encoding/json"

	"github.com/sparkwallet/spark-wallet-sdk/internal/database"
	"github.com/sparkwallet/spark-wallet-sdk/internal/transfer"
	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
)

// pendingTransferStoreAdapter satisfies transfer.Store by serializing an
// in-flight transfer's full state into pending_transfers.data_json, mirroring
// paymentStoreAdapter and syncStore's use of an opaque JSON column for
// engine-specific state.
type pendingTransferStoreAdapter struct {
	repo *database.PendingTransferRepository
}

func (a *pendingTransferStoreAdapter) SavePendingTransfer(ctx context.Context, t *transfer.Transfer) error {
	data, err := json.Marshal(t)
	if err != nil {
		return walleterrors.Wrap(walleterrors.KindGeneric, err, "failed to marshal pending transfer")
	}
	return a.repo.Upsert(ctx, &database.PendingTransfer{
		ID:       t.ID,
		Status:   string(t.Status),
		DataJSON: data,
	})
}

func (a *pendingTransferStoreAdapter) DeletePendingTransfer(ctx context.Context, id string) error {
	err := a.repo.Delete(ctx, id)
	if err == database.ErrPendingTransferNotFound {
		return nil
	}
	return err
}

func (a *pendingTransferStoreAdapter) ListPendingTransfers(ctx context.Context) ([]*transfer.Transfer, error) {
	rows, err := a.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	transfers := make([]*transfer.Transfer, 0, len(rows))
	for _, row := range rows {
		var t transfer.Transfer
		if err := json.Unmarshal(row.DataJSON, &t); err != nil {
			return nil, walleterrors.Wrap(walleterrors.KindGeneric, err, "failed to unmarshal pending transfer")
		}
		transfers = append(transfers, &t)
	}
	return transfers, nil
}
