package lightning

import (
	"context"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"go.uber.org/zap"

	"github.com/sparkwallet/spark-wallet-sdk/internal/scripts"
	"github.com/sparkwallet/spark-wallet-sdk/internal/signer"
	"github.com/sparkwallet/spark-wallet-sdk/internal/sspclient"
	"github.com/sparkwallet/spark-wallet-sdk/internal/transfer"
	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
	"github.com/sparkwallet/spark-wallet-sdk/pkg/walletlog"
)

// terminalSendStatuses are the SSP send statuses that stop polling.
var terminalSendStatuses = map[sspclient.LightningSendStatus]bool{
	sspclient.LightningSendSucceeded:               true,
	sspclient.LightningSendFailed:                  true,
	sspclient.LightningSendTransferFailed:          true,
	sspclient.LightningSendPreimageProvidingFailed: true,
	sspclient.LightningSendUserSwapReturned:        true,
}

// Engine runs the Lightning send/receive flows described in spec 4.6.
type Engine struct {
	signer   *signer.Signer
	ssp      *sspclient.Client
	transfer *transfer.Engine
}

// New builds a Lightning Engine.
func New(s *signer.Signer, ssp *sspclient.Client, transferEngine *transfer.Engine) *Engine {
	return &Engine{signer: s, ssp: ssp, transfer: transferEngine}
}

// SendResult is returned once an invoice payment reaches a terminal state.
type SendResult struct {
	Status   sspclient.LightningSendStatus
	Preimage []byte
}

// Send runs the SSP side of a Lightning send (spec 4.6):
//  1. parse and validate the invoice
//  2. call the SSP to request the Lightning send and poll to a terminal
//     status
//
// Send does not generate hash-lock or sequence-lock keys, build the HTLC
// leaf, or start a preimage swap with the operator quorum; BuildHTLCLeaf
// is a separate helper that Send does not call.
func (e *Engine) Send(ctx context.Context, bolt11 string, net *chaincfg.Params) (*SendResult, error) {
	if _, err := ParseInvoice(bolt11, net); err != nil {
		return nil, err
	}

	idemKey, err := sspclient.NewIdempotencyKey()
	if err != nil {
		return nil, err
	}

	result, err := e.ssp.RequestLightningSend(ctx, idemKey, bolt11)
	if err != nil {
		return nil, err
	}

	for !terminalSendStatuses[result.Status] {
		result, err = e.ssp.GetLightningSendStatus(ctx, result.RequestID)
		if err != nil {
			return nil, err
		}
	}

	walletlog.Info("lightning send reached terminal status",
		zap.String("request_id", result.RequestID), zap.String("status", string(result.Status)))

	return &SendResult{Status: result.Status, Preimage: result.Preimage}, nil
}

// BuildHTLCLeaf constructs the taproot HTLC script tree a preimage-swap
// leaf is created under, given the invoice's payment hash and the two
// keys the signer has freshly generated for the hash-lock and
// sequence-lock (timeout) branches.
func BuildHTLCLeaf(paymentHash [32]byte, hashLockPub, sequencePub *btcec.PublicKey) (*scripts.HTLCLeaves, error) {
	leaves, err := scripts.BuildPreimageSwapHTLC(paymentHash, hashLockPub, sequencePub)
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindSigner, err, "failed to build htlc leaf")
	}
	return leaves, nil
}

// ReceiveResult carries the invoice to hand the payer and the transfer id
// the wallet must claim once the SSP's internal transfer lands (spec 4.6
// receive flow step 2, claimed via internal/transfer per 4.5).
type ReceiveResult struct {
	Invoice    string
	TransferID string
}

// Receive requests an invoice from the SSP for amountSat with memo.
func (e *Engine) Receive(ctx context.Context, amountSat int64, memo string, descriptionHash []byte) (*ReceiveResult, error) {
	idemKey, err := sspclient.NewIdempotencyKey()
	if err != nil {
		return nil, err
	}
	result, err := e.ssp.RequestLightningReceive(ctx, idemKey, amountSat, memo, descriptionHash)
	if err != nil {
		return nil, err
	}
	return &ReceiveResult{Invoice: result.Invoice, TransferID: result.TransferID}, nil
}
