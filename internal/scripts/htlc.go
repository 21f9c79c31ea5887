// Package scripts builds the taproot leaf scripts used by leaf nodes that
// carry a Lightning preimage-swap HTLC: two script-path leaves under an
// unspendable internal key, one redeemable with the payment preimage, the
// other after a relative timelock returns the leaf to the sender.
package scripts

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
)

// LightningHTLCTimelockBlocks is the CSV relative timelock on the
// sequence-lock (refund) branch of a preimage-swap HTLC leaf (spec 4.6).
const LightningHTLCTimelockBlocks = 2160

// numsInternalKey is the standard unspendable "nothing up my sleeve"
// internal key used so the HTLC output can only be spent via one of its two
// script paths, never via key-path spend. It is BIP341's point H, whose x
// coordinate is the SHA256 of the uncompressed encoding of the generator G.
var numsInternalKey = mustParseNUMS()

func mustParseNUMS() *btcec.PublicKey {
	// H = lift_x(0x50929b74c1a04954b78b4b6035e97a5e078a5a0f28ec96d547bfee9ace803ac0)
	h := [32]byte{
		0x50, 0x92, 0x9b, 0x74, 0xc1, 0xa0, 0x49, 0x54,
		0xb7, 0x8b, 0x4b, 0x60, 0x35, 0xe9, 0x7a, 0x5e,
		0x07, 0x8a, 0x5a, 0x0f, 0x28, 0xec, 0x96, 0xd5,
		0x47, 0xbf, 0xee, 0x9a, 0xce, 0x80, 0x3a, 0xc0,
	}
	pub, err := schnorr.ParsePubKey(h[:])
	if err != nil {
		panic("invalid embedded NUMS point: " + err.Error())
	}
	return pub
}

// HTLCLeaves is the pair of script-path leaves making up a preimage-swap
// HTLC, plus the data needed to build the witness for either spend path.
type HTLCLeaves struct {
	InternalKey  *btcec.PublicKey
	PaymentHash  [32]byte
	HashLockPub  *btcec.PublicKey
	SequencePub  *btcec.PublicKey
	HashLockLeaf txscript.TapLeaf
	TimeoutLeaf  txscript.TapLeaf
	TapTree      *txscript.IndexedTapScriptTree
	OutputKey    *btcec.PublicKey
}

// buildHashLockScript: SHA256 <payment_hash> EQUALVERIFY <hash_lock_pk> CHECKSIG
func buildHashLockScript(paymentHash [32]byte, hashLockPub *btcec.PublicKey) ([]byte, error) {
	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_SHA256)
	builder.AddData(paymentHash[:])
	builder.AddOp(txscript.OP_EQUALVERIFY)
	builder.AddData(schnorr.SerializePubKey(hashLockPub))
	builder.AddOp(txscript.OP_CHECKSIG)
	return builder.Script()
}

// buildTimeoutScript: <2160> CSV DROP <sequence_lock_pk> CHECKSIG
func buildTimeoutScript(sequencePub *btcec.PublicKey) ([]byte, error) {
	builder := txscript.NewScriptBuilder()
	builder.AddInt64(LightningHTLCTimelockBlocks)
	builder.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)
	builder.AddOp(txscript.OP_DROP)
	builder.AddData(schnorr.SerializePubKey(sequencePub))
	builder.AddOp(txscript.OP_CHECKSIG)
	return builder.Script()
}

// BuildPreimageSwapHTLC constructs the taproot output committing to both
// spend paths of a preimage-swap leaf (spec 4.6 step 3).
func BuildPreimageSwapHTLC(paymentHash [32]byte, hashLockPub, sequencePub *btcec.PublicKey) (*HTLCLeaves, error) {
	hashLockScript, err := buildHashLockScript(paymentHash, hashLockPub)
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindSigner, err, "failed to build hash-lock script")
	}
	timeoutScript, err := buildTimeoutScript(sequencePub)
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindSigner, err, "failed to build timeout script")
	}

	hashLockLeaf := txscript.NewBaseTapLeaf(hashLockScript)
	timeoutLeaf := txscript.NewBaseTapLeaf(timeoutScript)

	tapTree := txscript.AssembleTaprootScriptTree(hashLockLeaf, timeoutLeaf)
	merkleRoot := tapTree.RootNode.TapHash()

	outputKey := txscript.ComputeTaprootOutputKey(numsInternalKey, merkleRoot[:])

	return &HTLCLeaves{
		InternalKey:  numsInternalKey,
		PaymentHash:  paymentHash,
		HashLockPub:  hashLockPub,
		SequencePub:  sequencePub,
		HashLockLeaf: hashLockLeaf,
		TimeoutLeaf:  timeoutLeaf,
		TapTree:      tapTree,
		OutputKey:    outputKey,
	}, nil
}

// PkScript returns the P2TR scriptPubKey (OP_1 <32-byte-x-only-key>).
func (h *HTLCLeaves) PkScript() ([]byte, error) {
	script := make([]byte, 34)
	script[0] = txscript.OP_1
	script[1] = txscript.OP_DATA_32
	xOnly := schnorr.SerializePubKey(h.OutputKey)
	copy(script[2:], xOnly)
	return script, nil
}

// controlBlock builds the control block proving leafIndex is committed to
// by the output key, for either the hash-lock (0) or timeout (1) leaf.
func (h *HTLCLeaves) controlBlock(leafIndex int) ([]byte, error) {
	proof := h.TapTree.LeafMerkleProofs[leafIndex]
	cb := proof.ToControlBlock(h.InternalKey)
	return cb.ToBytes()
}

// HashLockWitness builds the witness for the SSP/recipient spending via the
// hash-lock branch once it learns the preimage.
func (h *HTLCLeaves) HashLockWitness(sig *schnorr.Signature, preimage [32]byte) (wire.TxWitness, error) {
	if sha256.Sum256(preimage[:]) != h.PaymentHash {
		return nil, walleterrors.New(walleterrors.KindInvalidInput, "preimage does not match payment hash")
	}
	script, err := buildHashLockScript(h.PaymentHash, h.HashLockPub)
	if err != nil {
		return nil, err
	}
	cb, err := h.controlBlock(0)
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindSigner, err, "failed to build control block")
	}
	return wire.TxWitness{sig.Serialize(), script, cb}, nil
}

// TimeoutWitness builds the witness for the sender reclaiming the leaf
// after the CSV timelock matures without a settled Lightning payment.
func (h *HTLCLeaves) TimeoutWitness(sig *schnorr.Signature) (wire.TxWitness, error) {
	script, err := buildTimeoutScript(h.SequencePub)
	if err != nil {
		return nil, err
	}
	cb, err := h.controlBlock(1)
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindSigner, err, "failed to build control block")
	}
	return wire.TxWitness{sig.Serialize(), script, cb}, nil
}
