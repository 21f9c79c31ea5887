// Package conversion runs two-leg bitcoin/token conversion payments (spec
// section 4.12): one leg moves sats, the other moves tokens, with a
// slippage bound enforced against a price quote taken at each leg.
package conversion

import (
	"context"

	"github.com/sparkwallet/spark-wallet-sdk/internal/token"
	"github.com/sparkwallet/spark-wallet-sdk/internal/transfer"
	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
)

// Type is which direction a conversion payment runs.
type Type string

const (
	// FromBitcoin: sender has sats, payee receives tokens.
	FromBitcoin Type = "FromBitcoin"
	// ToBitcoin: sender has tokens, payee receives sats.
	ToBitcoin Type = "ToBitcoin"
)

// Options configures one conversion payment.
type Options struct {
	Type            Type
	TokenIdentifier string // the token leg's asset, either direction
	MaxSlippageBps  int64
}

// LegDetail reports one leg of a completed conversion.
type LegDetail struct {
	Method          string
	FeeSat          int64
	TokenIdentifier string
}

// Details is the conversion_details spec 4.12 requires payments to report.
type Details struct {
	From LegDetail
	To   LegDetail
}

// Quoter prices a token against sats, used to detect adverse movement
// between the two legs of a conversion.
type Quoter interface {
	SatsPerToken(ctx context.Context, tokenIdentifier string) (float64, error)
}

// Result is a completed conversion's outcome.
type Result struct {
	Details    Details
	TransferID string
	TokenTxID  string
}

// Engine runs FromBitcoin/ToBitcoin conversions atop the transfer and
// token engines.
type Engine struct {
	transfer           *transfer.Engine
	tokens             *token.Engine
	quoter             Quoter
	intermediaryPubKey []byte
}

// New builds a conversion Engine. intermediaryPubKey is the conversion
// counterparty both legs route through.
func New(transferEngine *transfer.Engine, tokenEngine *token.Engine, quoter Quoter, intermediaryPubKey []byte) *Engine {
	return &Engine{
		transfer:           transferEngine,
		tokens:             tokenEngine,
		quoter:             quoter,
		intermediaryPubKey: intermediaryPubKey,
	}
}

// ErrSlippageExceeded is returned once the first leg has already landed
// with the counterparty and the price moved past max_slippage_bps before
// the second leg could run. The first leg's refund is not this engine's
// responsibility: per spec 4.12 it arrives later as an ordinary incoming
// payment event from the counterparty, which storage reconciles back to
// the pre-payment balance the same way any other received payment would.
var ErrSlippageExceeded = walleterrors.New(walleterrors.KindService, "conversion slippage exceeded max_slippage_bps, awaiting counterparty refund")

// Convert runs one conversion payment. amountSat is the bitcoin-side
// amount; for FromBitcoin it is what the sender pays, for ToBitcoin it is
// what the payee receives. reservationID names the token.Store reservation
// backing the token leg, and recipientPubKey the token leg's destination.
func (e *Engine) Convert(ctx context.Context, opts Options, amountSat, tokenSat int64, reservationID string, recipientPubKey []byte) (*Result, error) {
	quoteBefore, err := e.quoter.SatsPerToken(ctx, opts.TokenIdentifier)
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindNetworkError, err, "failed to fetch conversion quote")
	}

	switch opts.Type {
	case FromBitcoin:
		return e.convertFromBitcoin(ctx, opts, amountSat, tokenSat, reservationID, recipientPubKey, quoteBefore)
	case ToBitcoin:
		return e.convertToBitcoin(ctx, opts, amountSat, tokenSat, reservationID, recipientPubKey, quoteBefore)
	default:
		return nil, walleterrors.New(walleterrors.KindInvalidInput, "unknown conversion type")
	}
}

// convertFromBitcoin sends the sats leg to the intermediary first (this
// leg carries the fee), re-quotes, and only forwards the token leg to the
// payee if the price hasn't moved past max_slippage_bps (spec 4.12).
func (e *Engine) convertFromBitcoin(ctx context.Context, opts Options, amountSat, tokenSat int64, reservationID string, recipientPubKey []byte, quoteBefore float64) (*Result, error) {
	t, err := e.transfer.Send(ctx, transfer.SendOptions{
		ReceiverIdentityPubKey: e.intermediaryPubKey,
		AmountSat:              amountSat,
	})
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindService, err, "sats leg failed")
	}

	quoteAfter, err := e.quoter.SatsPerToken(ctx, opts.TokenIdentifier)
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindNetworkError, err, "failed to re-quote after sats leg")
	}
	if slippageExceeded(quoteBefore, quoteAfter, opts.MaxSlippageBps) {
		return nil, ErrSlippageExceeded
	}

	tx, err := e.tokens.Transfer(ctx, reservationID, recipientPubKey, tokenSat)
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindService, err, "token leg failed")
	}

	return &Result{
		Details: Details{
			From: LegDetail{Method: "SparkTransfer", FeeSat: 0},
			To:   LegDetail{Method: "TokenTransfer", FeeSat: 0, TokenIdentifier: opts.TokenIdentifier},
		},
		TransferID: t.ID,
		TokenTxID:  tx.ID,
	}, nil
}

// convertToBitcoin is the reverse: the token leg moves first and carries
// the fee, the sats leg (fee zero) pays the recipient out of the
// intermediary's bitcoin balance.
func (e *Engine) convertToBitcoin(ctx context.Context, opts Options, amountSat, tokenSat int64, reservationID string, recipientPubKey []byte, quoteBefore float64) (*Result, error) {
	tx, err := e.tokens.Transfer(ctx, reservationID, e.intermediaryPubKey, tokenSat)
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindService, err, "token leg failed")
	}

	quoteAfter, err := e.quoter.SatsPerToken(ctx, opts.TokenIdentifier)
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindNetworkError, err, "failed to re-quote after token leg")
	}
	if slippageExceeded(quoteBefore, quoteAfter, opts.MaxSlippageBps) {
		return nil, ErrSlippageExceeded
	}

	t, err := e.transfer.Send(ctx, transfer.SendOptions{
		ReceiverIdentityPubKey: recipientPubKey,
		AmountSat:              amountSat,
	})
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindService, err, "sats leg failed")
	}

	return &Result{
		Details: Details{
			From: LegDetail{Method: "TokenTransfer", FeeSat: 0, TokenIdentifier: opts.TokenIdentifier},
			To:   LegDetail{Method: "SparkTransfer", FeeSat: 0},
		},
		TransferID: t.ID,
		TokenTxID:  tx.ID,
	}, nil
}

// slippageExceeded reports whether the price moved by more than maxBps
// basis points between quoteBefore and quoteAfter. The move is measured in
// either direction: a move in the user's favour counts the same as an
// adverse one.
func slippageExceeded(quoteBefore, quoteAfter float64, maxBps int64) bool {
	if quoteBefore == 0 {
		return false
	}
	delta := quoteAfter - quoteBefore
	if delta < 0 {
		delta = -delta
	}
	bps := int64(delta / quoteBefore * 10_000)
	return bps > maxBps
}
