// Package leaftx builds the chain of transactions that make up a Spark
// leaf: the node tx that commits a UTXO (or a parent node) to a taproot
// output, the split tx that divides a node into children, the leaf tx that
// lets a refund's timelock be refreshed without re-signing the refund
// itself, and the refund/connector transactions that let the owner reclaim
// a leaf unilaterally after its relative timelock matures.
package leaftx

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
)

// DefaultFeeSats is subtracted from a node/split/leaf transaction's output
// value when the parent has enough value to cover it, matching the
// fee-on-spend convention leaves use instead of carrying a dedicated fee
// input.
const DefaultFeeSats = 300

// maybeApplyFee subtracts DefaultFeeSats from amount when it's large enough
// to absorb the deduction, otherwise passes the amount through unchanged.
func maybeApplyFee(amount int64) int64 {
	if amount > DefaultFeeSats {
		return amount - DefaultFeeSats
	}
	return amount
}

// P2TRScriptFromPubKey returns the P2TR scriptPubKey for a taproot output
// key (already tweaked, not an internal key).
func P2TRScriptFromPubKey(pub *btcec.PublicKey) ([]byte, error) {
	script, err := txscript.PayToTaprootScript(pub)
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindSigner, err, "failed to build p2tr script")
	}
	return script, nil
}

// EphemeralAnchorOutput is a zero-value anchor output enabling CPFP fee
// bumping of a refund tx without needing a pre-funded fee input.
func EphemeralAnchorOutput() *wire.TxOut {
	return wire.NewTxOut(0, []byte{txscript.OP_TRUE, 0x02, 0x4e, 0x73})
}

// BuildRootTx creates the root node transaction spending the on-chain
// deposit UTXO directly into the first node's taproot output.
func BuildRootTx(depositOutPoint *wire.OutPoint, depositTxOut *wire.TxOut) *wire.MsgTx {
	tx := wire.NewMsgTx(3)
	tx.AddTxIn(wire.NewTxIn(depositOutPoint, nil, nil))
	tx.AddTxOut(wire.NewTxOut(maybeApplyFee(depositTxOut.Value), depositTxOut.PkScript))
	return tx
}

// BuildSplitTx divides a parent node's output across childTxOuts,
// proportionally absorbing DefaultFeeSats across every child so no child
// output needs its own dedicated fee input.
func BuildSplitTx(parentOutPoint *wire.OutPoint, childTxOuts []*wire.TxOut) *wire.MsgTx {
	tx := wire.NewMsgTx(3)
	tx.AddTxIn(wire.NewTxIn(parentOutPoint, nil, nil))

	var total int64
	for _, out := range childTxOuts {
		total += out.Value
	}

	if total > DefaultFeeSats {
		feeRatio := float64(DefaultFeeSats) / float64(total)
		for _, out := range childTxOuts {
			adjusted := int64(float64(out.Value) * (1 - feeRatio))
			tx.AddTxOut(wire.NewTxOut(adjusted, out.PkScript))
		}
	} else {
		for _, out := range childTxOuts {
			tx.AddTxOut(out)
		}
	}

	return tx
}

// BuildNodeTx creates an intermediate node transaction sitting between a
// split tx and a leaf's node tx; it carries no timelock.
func BuildNodeTx(parentOutPoint *wire.OutPoint, txOut *wire.TxOut) *wire.MsgTx {
	tx := wire.NewMsgTx(3)
	tx.AddTxIn(wire.NewTxIn(parentOutPoint, nil, nil))
	tx.AddTxOut(wire.NewTxOut(maybeApplyFee(txOut.Value), txOut.PkScript))
	return tx
}

// BuildLeafNodeTx creates a leaf's node transaction with the given relative
// CSV sequence. Each timelock refresh (spec 4.4 item 3) re-signs a new copy
// of this transaction with a smaller sequence, letting the refund tx below
// it keep a constant, renewable timelock.
func BuildLeafNodeTx(sequence uint32, parentOutPoint *wire.OutPoint, txOut *wire.TxOut, applyFee bool) *wire.MsgTx {
	tx := wire.NewMsgTx(3)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: *parentOutPoint,
		Sequence:         sequence,
	})
	amount := txOut.Value
	if applyFee {
		amount = maybeApplyFee(amount)
	}
	tx.AddTxOut(wire.NewTxOut(amount, txOut.PkScript))
	return tx
}

// RefundTxPair is the pair of refund transactions produced for a leaf: a
// CPFP-friendly version carrying an ephemeral anchor instead of a fee
// deduction, and a direct version that pays the fee out of the leaf value.
type RefundTxPair struct {
	CPFPRefundTx   *wire.MsgTx
	DirectRefundTx *wire.MsgTx
}

// BuildRefundTxs builds both refund transaction variants paying
// receivingPubKey, spendable once sequence's relative timelock matures.
func BuildRefundTxs(sequence uint32, nodeOutPoint *wire.OutPoint, amountSats int64, receivingPubKey *btcec.PublicKey, applyFeeToDirect bool) (*RefundTxPair, error) {
	refundScript, err := P2TRScriptFromPubKey(receivingPubKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build refund pkscript: %w", err)
	}

	cpfpTx := wire.NewMsgTx(3)
	cpfpTx.AddTxIn(&wire.TxIn{PreviousOutPoint: *nodeOutPoint, Sequence: sequence})
	cpfpTx.AddTxOut(wire.NewTxOut(amountSats, refundScript))
	cpfpTx.AddTxOut(EphemeralAnchorOutput())

	directAmount := amountSats
	if applyFeeToDirect {
		directAmount = maybeApplyFee(amountSats)
	}
	directTx := wire.NewMsgTx(3)
	directTx.AddTxIn(&wire.TxIn{PreviousOutPoint: *nodeOutPoint, Sequence: sequence})
	directTx.AddTxOut(wire.NewTxOut(directAmount, refundScript))

	return &RefundTxPair{CPFPRefundTx: cpfpTx, DirectRefundTx: directTx}, nil
}

// BuildConnectorRefundTx builds the two-input refund used during a
// cooperative exit, spending both the node output and a connector output
// (contributed by the SSP to cover the exit's on-chain fee) into a single
// output paying the receiver.
func BuildConnectorRefundTx(sequence uint32, nodeOutPoint, connectorOutPoint *wire.OutPoint, amountSats int64, receiverPubKey *btcec.PublicKey) (*wire.MsgTx, error) {
	receiverScript, err := P2TRScriptFromPubKey(receiverPubKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build receiver pkscript: %w", err)
	}

	tx := wire.NewMsgTx(3)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: *nodeOutPoint, Sequence: sequence})
	tx.AddTxIn(wire.NewTxIn(connectorOutPoint, nil, nil))
	tx.AddTxOut(wire.NewTxOut(amountSats, receiverScript))
	return tx, nil
}
