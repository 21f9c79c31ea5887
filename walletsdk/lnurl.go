package walletsdk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/sparkwallet/spark-wallet-sdk/internal/orchestrator"
	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
)

// LnurlPay fetches an invoice from an lnurl-pay callback and sends it,
// decrypting any success action once the payment settles.
func (w *Wallet) LnurlPay(ctx context.Context, callbackURL string, amountMsat int64, comment string) (*orchestrator.Payment, error) {
	resp, err := w.lnurl.Pay(ctx, callbackURL, amountMsat, comment)
	if err != nil {
		return nil, err
	}

	prep, err := w.orch.PrepareSendPayment(ctx, orchestrator.PrepareRequest{Destination: resp.PR})
	if err != nil {
		return nil, err
	}

	var action *orchestrator.LNURLSuccessAction
	if resp.SuccessAction != nil {
		action = &orchestrator.LNURLSuccessAction{
			Tag:           resp.SuccessAction.Tag,
			URL:           resp.SuccessAction.URL,
			CiphertextB64: resp.SuccessAction.Ciphertext,
		}
	}
	return w.SendPayment(ctx, prep, orchestrator.SendOptions{SuccessAction: action})
}

// LnurlWithdraw mints a fresh receive invoice for amountSat and submits it
// against an lnurl-withdraw callback along with the offer's k1.
func (w *Wallet) LnurlWithdraw(ctx context.Context, callbackURL, k1 string, amountSat int64) (*ReceivePaymentResponse, error) {
	resp, err := w.ReceivePayment(ctx, ReceivePaymentRequest{Method: ReceiveBolt11Invoice, AmountSat: amountSat})
	if err != nil {
		return nil, err
	}
	if err := w.lnurl.Withdraw(ctx, callbackURL, k1, resp.Address); err != nil {
		return nil, err
	}
	return resp, nil
}

// LnurlAuth signs k1 with the identity key and submits the signature,
// together with the identity public key, to an lnurl-auth callback. The
// same identity key is sent to every domain; no per-domain linking key is
// derived.
func (w *Wallet) LnurlAuth(ctx context.Context, callbackURL, k1Hex string) error {
	k1, err := hex.DecodeString(k1Hex)
	if err != nil {
		return walleterrors.Wrap(walleterrors.KindInvalidInput, err, "invalid lnurl-auth k1")
	}
	digest := sha256.Sum256(k1)
	sig, err := w.signer.SignIdentityECDSA(digest[:])
	if err != nil {
		return err
	}
	return w.lnurl.Auth(ctx, callbackURL, k1Hex, w.signer.IdentityPublicKey(), sig)
}
