// Package deposit implements static on-chain deposit addresses (claim and
// direct refund) and cooperative exit (spec section 4.7).
package deposit

import (
	"bytes"
	"context"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/sparkwallet/spark-wallet-sdk/internal/leaftx"
	"github.com/sparkwallet/spark-wallet-sdk/internal/signer"
	"github.com/sparkwallet/spark-wallet-sdk/internal/sspclient"
	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
)

// MainnetCoopExitExpiry and OtherNetworkCoopExitExpiry bound how long a
// cooperative-exit quote stays valid (spec 4.7).
const (
	MainnetCoopExitExpiry      = 48 * time.Hour
	OtherNetworkCoopExitExpiry = 5 * time.Minute
)

// staticDepositPurpose is the hardened branch static-deposit addresses are
// derived under, distinct from internal/signer's leaf purpose branch so
// the two key spaces never collide.
const staticDepositPurpose = 0x80000000 + 9736

// Engine runs the static-deposit and cooperative-exit flows.
type Engine struct {
	signer *signer.Signer
	ssp    *sspclient.Client
	net    *chaincfg.Params
}

// New builds a deposit/exit Engine.
func New(s *signer.Signer, ssp *sspclient.Client, net *chaincfg.Params) *Engine {
	return &Engine{signer: s, ssp: ssp, net: net}
}

func staticDepositPath(index uint32) signer.DerivationPath {
	return signer.DerivationPath{staticDepositPurpose, index}
}

// GenerateDepositAddress derives a P2TR address from the static-deposit key
// at index.
func (e *Engine) GenerateDepositAddress(index uint32) (string, error) {
	pubBytes, err := e.signer.DerivePublicKey(staticDepositPath(index))
	if err != nil {
		return "", err
	}
	pub, err := btcec.ParsePubKey(pubBytes)
	if err != nil {
		return "", walleterrors.Wrap(walleterrors.KindSigner, err, "invalid static deposit public key")
	}

	addr, err := btcutil.NewAddressTaproot(schnorrSerialize(pub), e.net)
	if err != nil {
		return "", walleterrors.Wrap(walleterrors.KindSigner, err, "failed to build taproot address")
	}
	return addr.EncodeAddress(), nil
}

// OutputScript returns the P2TR pkScript for the static-deposit address at
// index, the shape RefundDeposit's canned previous-output fetcher needs
// when the caller only has the deposit's txid/vout/amount on hand.
func (e *Engine) OutputScript(index uint32) ([]byte, error) {
	pubBytes, err := e.signer.DerivePublicKey(staticDepositPath(index))
	if err != nil {
		return nil, err
	}
	pub, err := btcec.ParsePubKey(pubBytes)
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindSigner, err, "invalid static deposit public key")
	}
	return leaftx.P2TRScriptFromPubKey(pub)
}

func schnorrSerialize(pub *btcec.PublicKey) []byte {
	return pub.SerializeCompressed()[1:] // drop the parity byte for the 32-byte x-only key
}

// ClaimDeposit runs the static-deposit claim flow (spec 4.7): fetch a quote,
// accept it if the fee is within maxFeeSat, then ask the SSP to claim —
// the operator co-signed node-creation transaction and the resulting
// transfer claim are owned by the operator quorum and transfer engine
// respectively.
func (e *Engine) ClaimDeposit(ctx context.Context, txid string, vout uint32, maxFeeSat int64) (transferID string, err error) {
	quote, err := e.ssp.RequestDepositClaimQuote(ctx, txid, vout)
	if err != nil {
		return "", err
	}
	if quote.FeeSat > maxFeeSat {
		return "", walleterrors.NewDepositClaim(walleterrors.DepositClaimFeeExceeded, "deposit claim fee exceeds max_fee")
	}

	idemKey, err := sspclient.NewIdempotencyKey()
	if err != nil {
		return "", err
	}
	transferID, err = e.ssp.ClaimDeposit(ctx, idemKey, quote.QuoteID)
	if err != nil {
		return "", walleterrors.Wrap(walleterrors.KindDepositClaim, err, "ssp rejected deposit claim")
	}
	return transferID, nil
}

// RefundDeposit constructs a direct on-chain spend from a static-deposit
// UTXO to destination, signed with the per-index static-deposit secret,
// bypassing the operator quorum entirely (spec 4.7: "using the per-index
// static-deposit secret").
func (e *Engine) RefundDeposit(depositOutPoint *wire.OutPoint, depositTxOut *wire.TxOut, index uint32, destination *btcec.PublicKey, feeSat int64) ([]byte, error) {
	script, err := leaftx.P2TRScriptFromPubKey(destination)
	if err != nil {
		return nil, err
	}

	amount := depositTxOut.Value - feeSat
	if amount < 0 {
		return nil, walleterrors.New(walleterrors.KindInvalidInput, "fee exceeds deposit value")
	}

	tx := wire.NewMsgTx(3)
	tx.AddTxIn(wire.NewTxIn(depositOutPoint, nil, nil))
	tx.AddTxOut(wire.NewTxOut(amount, script))

	prevFetcher := txscript.NewCannedPrevOutputFetcher(depositTxOut.PkScript, depositTxOut.Value)
	sigHashes := txscript.NewTxSigHashes(tx, prevFetcher)
	hash, err := txscript.CalcTaprootSignatureHash(sigHashes, txscript.SigHashDefault, tx, 0, prevFetcher)
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindSigner, err, "failed to compute refund sighash")
	}

	var hash32 [32]byte
	copy(hash32[:], hash)
	sig, err := e.signer.SignHashSchnorr(hash32[:], staticDepositPath(index))
	if err != nil {
		return nil, err
	}
	tx.TxIn[0].Witness = wire.TxWitness{sig}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindSigner, err, "failed to serialize refund tx")
	}
	return buf.Bytes(), nil
}
