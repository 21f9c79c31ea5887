package walletsdk

import (
	"context"
	"time"

	"github.com/sparkwallet/spark-wallet-sdk/internal/sparkaddr"
	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
)

// ReceiveMethod selects which kind of receive address or invoice
// receive_payment mints (spec section 6).
type ReceiveMethod string

const (
	ReceiveSparkAddress   ReceiveMethod = "SparkAddress"
	ReceiveSparkInvoice   ReceiveMethod = "SparkInvoice"
	ReceiveBitcoinAddress ReceiveMethod = "BitcoinAddress"
	ReceiveBolt11Invoice  ReceiveMethod = "Bolt11Invoice"
)

// ReceivePaymentRequest picks a method and its method-specific fields.
// Only the fields relevant to Method need to be set.
type ReceivePaymentRequest struct {
	Method ReceiveMethod

	// SparkInvoice
	AmountSat    int64
	TokenID      string
	Expiry       time.Time
	Description  string
	SenderPubKey []byte

	// Bolt11Invoice
	PaymentHash []byte
}

// ReceivePaymentResponse is what the caller hands to whoever is paying
// them: a Spark address/invoice string, a bitcoin address, or a bolt11
// invoice string.
type ReceivePaymentResponse struct {
	Address    string
	TransferID string
}

// ReceivePayment mints a fresh receive address or invoice per method.
func (w *Wallet) ReceivePayment(ctx context.Context, req ReceivePaymentRequest) (*ReceivePaymentResponse, error) {
	switch req.Method {
	case ReceiveSparkAddress:
		addr, err := sparkaddr.EncodeAddress(w.net, w.signer.IdentityPublicKey())
		if err != nil {
			return nil, err
		}
		return &ReceivePaymentResponse{Address: addr}, nil

	case ReceiveSparkInvoice:
		addr, err := sparkaddr.EncodeInvoice(w.net, sparkaddr.Invoice{
			IdentityPubKey: w.signer.IdentityPublicKey(),
			AmountSat:      req.AmountSat,
			TokenID:        req.TokenID,
			Expiry:         req.Expiry,
			Description:    req.Description,
			SenderPubKey:   req.SenderPubKey,
		})
		if err != nil {
			return nil, err
		}
		return &ReceivePaymentResponse{Address: addr}, nil

	case ReceiveBitcoinAddress:
		addr, err := w.deposit.GenerateDepositAddress(0)
		if err != nil {
			return nil, err
		}
		return &ReceivePaymentResponse{Address: addr}, nil

	case ReceiveBolt11Invoice:
		var descriptionHash []byte
		if len(req.PaymentHash) == 32 {
			descriptionHash = req.PaymentHash
		}
		result, err := w.lightning.Receive(ctx, req.AmountSat, req.Description, descriptionHash)
		if err != nil {
			return nil, err
		}
		return &ReceivePaymentResponse{Address: result.Invoice, TransferID: result.TransferID}, nil

	default:
		return nil, walleterrors.New(walleterrors.KindInvalidInput, "unknown receive_payment method")
	}
}
