// Package orchestrator runs the two-phase send-payment API (spec section
// 4.10): prepare_send_payment selects a method and returns an immutable
// quote, then send_payment executes it idempotently against the
// appropriate engine.
package orchestrator

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sparkwallet/spark-wallet-sdk/internal/deposit"
	"github.com/sparkwallet/spark-wallet-sdk/internal/lightning"
	"github.com/sparkwallet/spark-wallet-sdk/internal/sspclient"
	"github.com/sparkwallet/spark-wallet-sdk/internal/token"
	"github.com/sparkwallet/spark-wallet-sdk/internal/transfer"
	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
	"github.com/sparkwallet/spark-wallet-sdk/pkg/walletlog"
)

// Method is the payment rail prepare_send_payment dispatches to.
type Method string

const (
	MethodLightning       Method = "Lightning"
	MethodCooperativeExit Method = "CooperativeExit"
	MethodSparkTransfer   Method = "SparkTransfer"
	MethodTokenTransfer   Method = "TokenTransfer"
)

// Status is a payment's terminal or in-flight state.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusSucceeded Status = "Succeeded"
	StatusFailed    Status = "Failed"
)

// PrepareRequest is the caller's raw payment intent.
type PrepareRequest struct {
	Destination     string // invoice, bitcoin address, or spark address
	AmountSat       int64
	TokenIdentifier string
	PreferSpark     bool
}

// PrepareResponse is the immutable quote prepare_send_payment returns.
// send_payment must be given the exact PrepareResponse it was quoted;
// nothing about the method or fee is re-derived at send time.
type PrepareResponse struct {
	Method          Method
	Destination     string
	AmountSat       int64
	FeeSat          int64
	TokenIdentifier string
	Bolt11          string
	CoopExitQuoteID string
}

// LNURLSuccessAction carries an LNURL-pay success action's ciphertext,
// decrypted with the payment preimage once the Lightning send succeeds
// (spec 4.10).
type LNURLSuccessAction struct {
	Tag            string
	CallbackDomain string
	URL            string
	CiphertextB64  string
}

// SendOptions configures one send_payment call.
type SendOptions struct {
	IdempotencyKey string

	// CooperativeExit
	SignedExitTxHex string

	// SparkTransfer
	ReceiverIdentityPubKey []byte

	// TokenTransfer
	TokenReservationID string
	RecipientPubKey    []byte
	RecipientSat       int64

	SuccessAction *LNURLSuccessAction
}

// Payment is the orchestrator's record of one send, the unit inserted
// into storage and reported through events.
type Payment struct {
	ID              string
	Method          Method
	Status          Status
	Destination     string
	AmountSat       int64
	FeeSat          int64
	CreatedAt       time.Time
	TransferID      string
	Preimage        []byte
	DecryptedAction string
	FailureReason   string
}

// EventKind distinguishes the two terminal events the orchestrator emits.
type EventKind string

const (
	EventPaymentSucceeded EventKind = "PaymentSucceeded"
	EventPaymentFailed    EventKind = "PaymentFailed"
)

// Event is handed to Sink.Emit once a payment reaches a terminal state.
type Event struct {
	Kind    EventKind
	Payment *Payment
}

// Sink receives payment lifecycle events, backed by the public SDK's
// add_event_listener surface.
type Sink interface {
	Emit(Event)
}

// Store persists a payment once its underlying engine call returns,
// backed by internal/database's payments table.
type Store interface {
	Insert(ctx context.Context, p *Payment) error
}

// Orchestrator wires every payment engine to the two-phase API.
type Orchestrator struct {
	net       *chaincfg.Params
	lightning *lightning.Engine
	deposit   *deposit.Engine
	transfer  *transfer.Engine
	tokens    *token.Engine
	store     Store
	sink      Sink

	mu        sync.Mutex
	byIdemKey map[string]*Payment
}

// New builds an Orchestrator.
func New(net *chaincfg.Params, lightningEngine *lightning.Engine, depositEngine *deposit.Engine, transferEngine *transfer.Engine, tokenEngine *token.Engine, store Store, sink Sink) *Orchestrator {
	return &Orchestrator{
		net:       net,
		lightning: lightningEngine,
		deposit:   depositEngine,
		transfer:  transferEngine,
		tokens:    tokenEngine,
		store:     store,
		sink:      sink,
		byIdemKey: make(map[string]*Payment),
	}
}

// PrepareSendPayment selects a method and returns an immutable quote
// without any side effect (spec 4.10 method dispatch table).
func (o *Orchestrator) PrepareSendPayment(ctx context.Context, req PrepareRequest) (*PrepareResponse, error) {
	if inv, err := lightning.ParseInvoice(req.Destination, o.net); err == nil {
		return &PrepareResponse{
			Method:      MethodLightning,
			Destination: req.Destination,
			AmountSat:   inv.AmountSat(),
			Bolt11:      req.Destination,
		}, nil
	}

	if looksLikeBitcoinAddress(req.Destination) {
		quotes, err := o.deposit.FetchCoopExitFeeQuotes(ctx, req.AmountSat, req.Destination)
		if err != nil {
			return nil, err
		}
		quote := pickMediumSpeed(quotes)
		return &PrepareResponse{
			Method:          MethodCooperativeExit,
			Destination:     req.Destination,
			AmountSat:       req.AmountSat,
			FeeSat:          quote.UserFeeSat,
			CoopExitQuoteID: quote.QuoteID,
		}, nil
	}

	if looksLikeSparkAddress(req.Destination) {
		method := MethodSparkTransfer
		if req.TokenIdentifier != "" {
			method = MethodTokenTransfer
		}
		return &PrepareResponse{
			Method:          method,
			Destination:     req.Destination,
			AmountSat:       req.AmountSat,
			TokenIdentifier: req.TokenIdentifier,
		}, nil
	}

	return nil, walleterrors.New(walleterrors.KindInvalidInput, "unrecognized payment destination")
}

// LookupByIdempotencyKey returns the payment a prior SendPayment call
// recorded under key, if this process has seen one. Used to give concurrent
// same-key callers the winning payment instead of dispatching twice.
func (o *Orchestrator) LookupByIdempotencyKey(key string) (*Payment, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	existing, ok := o.byIdemKey[key]
	return existing, ok
}

// SendPayment executes a previously prepared payment. Supplying the same
// idempotencyKey for a prior payment returns that payment unchanged,
// regardless of its current state (spec 4.10).
func (o *Orchestrator) SendPayment(ctx context.Context, prep *PrepareResponse, opts SendOptions) (*Payment, error) {
	if opts.IdempotencyKey != "" {
		if existing, ok := o.LookupByIdempotencyKey(opts.IdempotencyKey); ok {
			return existing, nil
		}
	}

	payment, err := o.dispatch(ctx, prep, opts)
	if payment == nil {
		return nil, err
	}

	if opts.IdempotencyKey != "" {
		o.mu.Lock()
		o.byIdemKey[opts.IdempotencyKey] = payment
		o.mu.Unlock()
	}

	if o.store != nil {
		if storeErr := o.store.Insert(ctx, payment); storeErr != nil {
			walletlog.Error("failed to persist payment", zap.String("payment_id", payment.ID), zap.Error(storeErr))
		}
	}

	if opts.SuccessAction != nil && payment.Status == StatusSucceeded && len(payment.Preimage) == 32 {
		payment.DecryptedAction = decryptSuccessAction(opts.SuccessAction, payment.Preimage)
	}

	if o.sink != nil {
		kind := EventPaymentSucceeded
		if payment.Status == StatusFailed {
			kind = EventPaymentFailed
		}
		o.sink.Emit(Event{Kind: kind, Payment: payment})
	}

	return payment, err
}

func (o *Orchestrator) dispatch(ctx context.Context, prep *PrepareResponse, opts SendOptions) (*Payment, error) {
	id := opts.IdempotencyKey
	if id == "" {
		minted, err := uuid.NewV7()
		if err != nil {
			return nil, walleterrors.Wrap(walleterrors.KindGeneric, err, "failed to mint payment id")
		}
		id = minted.String()
	}

	base := &Payment{
		ID:          id,
		Method:      prep.Method,
		Destination: prep.Destination,
		AmountSat:   prep.AmountSat,
		FeeSat:      prep.FeeSat,
		CreatedAt:   time.Now(),
		Status:      StatusPending,
	}

	switch prep.Method {
	case MethodLightning:
		result, err := o.lightning.Send(ctx, prep.Bolt11, o.net)
		if err != nil {
			base.Status = StatusFailed
			base.FailureReason = err.Error()
			return base, err
		}
		if result.Status != sspclient.LightningSendSucceeded {
			base.Status = StatusFailed
			base.FailureReason = string(result.Status)
			return base, walleterrors.New(walleterrors.KindService, "lightning send did not succeed")
		}
		base.Status = StatusSucceeded
		base.Preimage = result.Preimage
		return base, nil

	case MethodCooperativeExit:
		if err := o.deposit.CoopExit(ctx, prep.CoopExitQuoteID, opts.SignedExitTxHex); err != nil {
			base.Status = StatusFailed
			base.FailureReason = err.Error()
			return base, err
		}
		base.Status = StatusSucceeded
		return base, nil

	case MethodSparkTransfer:
		if o.transfer.IsOwnIdentity(opts.ReceiverIdentityPubKey) {
			t, err := o.transfer.SelfTransfer(ctx, prep.AmountSat)
			if err != nil {
				base.Status = StatusFailed
				base.FailureReason = err.Error()
				return base, err
			}
			base.TransferID = t.ID
			base.Status = StatusSucceeded
			return base, nil
		}

		t, err := o.transfer.Send(ctx, transfer.SendOptions{
			ReceiverIdentityPubKey: opts.ReceiverIdentityPubKey,
			AmountSat:              prep.AmountSat,
		})
		if err != nil {
			base.Status = StatusFailed
			base.FailureReason = err.Error()
			return base, err
		}
		base.TransferID = t.ID
		base.Status = StatusSucceeded
		return base, nil

	case MethodTokenTransfer:
		tx, err := o.tokens.Transfer(ctx, opts.TokenReservationID, opts.RecipientPubKey, opts.RecipientSat)
		if err != nil {
			base.Status = StatusFailed
			base.FailureReason = err.Error()
			return base, err
		}
		base.TransferID = tx.ID
		base.Status = StatusSucceeded
		return base, nil

	default:
		base.Status = StatusFailed
		return base, walleterrors.New(walleterrors.KindInvalidInput, "unknown payment method")
	}
}

func looksLikeBitcoinAddress(dest string) bool {
	return strings.HasPrefix(dest, "bc1") || strings.HasPrefix(dest, "tb1") ||
		strings.HasPrefix(dest, "bcrt1") || strings.HasPrefix(dest, "1") || strings.HasPrefix(dest, "3")
}

func looksLikeSparkAddress(dest string) bool {
	return strings.HasPrefix(dest, "sp1") || strings.HasPrefix(dest, "sprk1") || strings.HasPrefix(dest, "sprt1")
}

func pickMediumSpeed(quotes []deposit.CoopExitFeeQuote) deposit.CoopExitFeeQuote {
	for _, q := range quotes {
		if q.Speed == deposit.CoopExitMedium {
			return q
		}
	}
	if len(quotes) > 0 {
		return quotes[0]
	}
	return deposit.CoopExitFeeQuote{}
}
