package walletsdk

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chainhash"
	"github.com/btcsuite/btcd/wire"
	"go.uber.org/zap"

	"github.com/sparkwallet/spark-wallet-sdk/internal/database"
	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
	"github.com/sparkwallet/spark-wallet-sdk/pkg/walletlog"
)

// ClaimDeposit runs the static-deposit claim flow for the UTXO at
// txid:vout, refusing to proceed if the operator's quoted fee exceeds
// maxFeeSat. A claim rejection is recorded against the unclaimed_deposits
// row so list_unclaimed_deposits can explain why it's still outstanding;
// a successful claim drops the row.
func (w *Wallet) ClaimDeposit(ctx context.Context, txid string, vout uint32, maxFeeSat int64) (transferID string, err error) {
	transferID, err = w.deposit.ClaimDeposit(ctx, txid, vout, maxFeeSat)
	if err != nil {
		if we, ok := err.(*walleterrors.WalletError); ok && we.Kind == walleterrors.KindDepositClaim {
			detail, marshalErr := json.Marshal(struct {
				SubKind string `json:"sub_kind"`
				Message string `json:"message"`
			}{string(we.SubKind), we.Message})
			if marshalErr == nil {
				row, getErr := w.unclaimedDeposits.Get(ctx, txid, int32(vout))
				if getErr != nil {
					row = &database.UnclaimedDeposit{TxID: txid, Vout: int32(vout)}
				}
				row.ClaimErrorJSON = detail
				if upsertErr := w.unclaimedDeposits.Upsert(ctx, row); upsertErr != nil {
					walletlog.Warn("failed to record deposit claim error", zap.Error(upsertErr))
				}
			}
		}
		return "", err
	}
	if delErr := w.unclaimedDeposits.Delete(ctx, txid, int32(vout)); delErr != nil {
		walletlog.Warn("failed to drop claimed deposit row", zap.Error(delErr))
	}
	return transferID, nil
}

// RefundDeposit builds and signs a direct on-chain spend of the
// static-deposit UTXO at txid:vout (derived under index, holding
// amountSat) to destination, bypassing the operator quorum entirely
// (spec 4.7).
func (w *Wallet) RefundDeposit(ctx context.Context, txid string, vout uint32, index uint32, amountSat int64, destination []byte, feeSat int64) ([]byte, error) {
	hash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindInvalidInput, err, "invalid deposit txid")
	}
	script, err := w.deposit.OutputScript(index)
	if err != nil {
		return nil, err
	}
	destPub, err := btcec.ParsePubKey(destination)
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindInvalidInput, err, "invalid refund destination public key")
	}

	signedTx, err := w.deposit.RefundDeposit(
		wire.NewOutPoint(hash, vout),
		wire.NewTxOut(amountSat, script),
		index, destPub, feeSat,
	)
	if err != nil {
		return nil, err
	}

	var refundTx wire.MsgTx
	if err := refundTx.Deserialize(bytes.NewReader(signedTx)); err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindGeneric, err, "failed to decode signed refund tx")
	}
	if err := w.unclaimedDeposits.MarkRefunded(ctx, txid, int32(vout), hex.EncodeToString(signedTx), refundTx.TxHash().String()); err != nil {
		walletlog.Warn("failed to record deposit refund", zap.Error(err))
	}
	return signedTx, nil
}

// ListUnclaimedDeposits returns every static-deposit UTXO seen on chain
// but not yet claimed or refunded.
func (w *Wallet) ListUnclaimedDeposits(ctx context.Context) ([]*database.UnclaimedDeposit, error) {
	return w.unclaimedDeposits.List(ctx)
}
