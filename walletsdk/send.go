package walletsdk

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sparkwallet/spark-wallet-sdk/internal/database"
	"github.com/sparkwallet/spark-wallet-sdk/internal/orchestrator"
	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
	"github.com/sparkwallet/spark-wallet-sdk/pkg/walletcache"
	"github.com/sparkwallet/spark-wallet-sdk/pkg/walletlog"
)

// sendLockName guards the leaf-selecting side of every send against
// running concurrently with another client of this identity, mirroring
// the named lock the coordinator already exposes for this purpose (spec
// 4.11's distributed named-lock table).
const sendLockName = "send_payment"

// idempotencyCacheTTL bounds how long a prepared idempotency key is
// remembered in Redis once Redis is configured; the orchestrator's own
// in-memory map is the authority when it isn't.
const idempotencyCacheTTL = 24 * time.Hour

// sendPollInterval paces how often a caller that lost the send lock
// re-checks for the in-flight holder's result.
const sendPollInterval = 200 * time.Millisecond

// PrepareSendPayment selects a payment method and returns an immutable
// quote; send_payment must be given the exact response it returns.
func (w *Wallet) PrepareSendPayment(ctx context.Context, req orchestrator.PrepareRequest) (*orchestrator.PrepareResponse, error) {
	return w.orch.PrepareSendPayment(ctx, req)
}

// SendPayment executes a previously prepared payment. If opts.IdempotencyKey
// is empty, one is minted so a caller always gets a stable handle back,
// matching wait_for_payment's payment_id lookup.
func (w *Wallet) SendPayment(ctx context.Context, prep *orchestrator.PrepareResponse, opts orchestrator.SendOptions) (*orchestrator.Payment, error) {
	if opts.IdempotencyKey == "" {
		minted, err := uuid.NewV7()
		if err != nil {
			return nil, walleterrors.Wrap(walleterrors.KindGeneric, err, "failed to mint idempotency key")
		}
		opts.IdempotencyKey = minted.String()
	}

	if payment, ok := w.lookupSendResult(ctx, opts.IdempotencyKey); ok {
		return payment, nil
	}

	locked, err := w.lockClient.SetLock(ctx, sendLockName, true, true)
	if err != nil {
		return nil, err
	}
	if !locked {
		// Another call for this identity (possibly from another connected
		// client, since the lock is distributed) holds sendLockName. Rather
		// than fail this call outright, wait for it to finish and return its
		// result: concurrent calls sharing an idempotency key must all see
		// the same payment.id (spec section 5 / section 8 scenario 3).
		return w.awaitInFlightSend(ctx, opts.IdempotencyKey)
	}
	defer func() {
		if _, err := w.lockClient.SetLock(context.Background(), sendLockName, false, true); err != nil {
			walletlog.Warn("failed to release send lock", zap.Error(err))
		}
	}()

	// A holder may have finished and released the lock between our first
	// lookup and acquiring it ourselves.
	if payment, ok := w.lookupSendResult(ctx, opts.IdempotencyKey); ok {
		return payment, nil
	}

	payment, err := w.orch.SendPayment(ctx, prep, opts)
	if payment != nil && walletcache.Client != nil {
		if setErr := walletcache.Set(ctx, idemCacheKey(opts.IdempotencyKey), payment.ID, idempotencyCacheTTL); setErr != nil {
			walletlog.Warn("failed to cache idempotency key", zap.Error(setErr))
		}
	}
	return payment, err
}

// lookupSendResult reports a payment already recorded for key, checking this
// process's in-memory orchestrator state first and falling back to the
// shared Redis/Postgres idempotency cache for results recorded by another
// client of this identity.
func (w *Wallet) lookupSendResult(ctx context.Context, key string) (*orchestrator.Payment, bool) {
	if payment, ok := w.orch.LookupByIdempotencyKey(key); ok {
		return payment, true
	}
	if walletcache.Client == nil {
		return nil, false
	}
	cached, err := walletcache.Get(ctx, idemCacheKey(key))
	if err != nil || cached == "" {
		return nil, false
	}
	payment, err := w.payments.GetByID(ctx, cached)
	if err != nil {
		return nil, false
	}
	return toOrchestratorPayment(payment), true
}

// awaitInFlightSend polls for the result of the call currently holding
// sendLockName, returning as soon as it finishes. It only gives up if ctx is
// canceled, since the holder is expected to eventually release the lock or
// record a result.
func (w *Wallet) awaitInFlightSend(ctx context.Context, key string) (*orchestrator.Payment, error) {
	ticker := time.NewTicker(sendPollInterval)
	defer ticker.Stop()
	for {
		if payment, ok := w.lookupSendResult(ctx, key); ok {
			return payment, nil
		}
		select {
		case <-ctx.Done():
			return nil, walleterrors.Wrap(walleterrors.KindService, ctx.Err(), "timed out waiting for in-flight send with the same idempotency key")
		case <-ticker.C:
		}
	}
}

func idemCacheKey(key string) string {
	return "idempotency:send_payment:" + key
}

// toOrchestratorPayment reconstructs the orchestrator's Payment shape from
// a persisted row for a cache-hit return, skipping the engine-specific
// fields (preimage, decrypted action) the stored row's details_json would
// need unmarshaling to recover — callers re-fetch get_payment for those.
func toOrchestratorPayment(p *database.Payment) *orchestrator.Payment {
	status := orchestrator.StatusPending
	switch p.Status {
	case database.PaymentStatusCompleted:
		status = orchestrator.StatusSucceeded
	case database.PaymentStatusFailed:
		status = orchestrator.StatusFailed
	}
	return &orchestrator.Payment{
		ID:          p.ID,
		Method:      orchestrator.Method(p.Method),
		Status:      status,
		Destination: "",
		AmountSat:   p.Amount,
		FeeSat:      p.Fees,
		CreatedAt:   p.Timestamp,
	}
}
