package walletsdk

import (
	"context"
	"encoding/hex"
	"encoding/json"

	"github.com/sparkwallet/spark-wallet-sdk/internal/database"
	"github.com/sparkwallet/spark-wallet-sdk/internal/orchestrator"
	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
)

// paymentStoreAdapter satisfies orchestrator.Store by translating a
// completed send into a payments table row.
type paymentStoreAdapter struct {
	repo *database.PaymentRepository
}

func (a *paymentStoreAdapter) Insert(ctx context.Context, p *orchestrator.Payment) error {
	status := database.PaymentStatusPending
	switch p.Status {
	case orchestrator.StatusSucceeded:
		status = database.PaymentStatusCompleted
	case orchestrator.StatusFailed:
		status = database.PaymentStatusFailed
	}

	details, err := json.Marshal(paymentDetails{
		Destination:     p.Destination,
		TransferID:      p.TransferID,
		PreimageHex:     hexOrEmpty(p.Preimage),
		DecryptedAction: p.DecryptedAction,
		FailureReason:   p.FailureReason,
	})
	if err != nil {
		return walleterrors.Wrap(walleterrors.KindGeneric, err, "failed to marshal payment details")
	}

	row := &database.Payment{
		ID:          p.ID,
		Type:        database.PaymentTypeSend,
		Status:      status,
		Amount:      p.AmountSat,
		Fees:        p.FeeSat,
		Method:      database.PaymentMethod(p.Method),
		Timestamp:   p.CreatedAt,
		DetailsJSON: details,
		TxType:      database.TokenTxTransfer,
	}
	return a.repo.Create(ctx, row)
}

// paymentDetails is the shape stashed in payments.details_json for a send,
// enough to reconstruct get_payment's response without a second engine call.
type paymentDetails struct {
	Destination     string `json:"destination,omitempty"`
	TransferID      string `json:"transfer_id,omitempty"`
	PreimageHex     string `json:"preimage_hex,omitempty"`
	DecryptedAction string `json:"decrypted_action,omitempty"`
	FailureReason   string `json:"failure_reason,omitempty"`
}

func hexOrEmpty(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return hex.EncodeToString(b)
}

// orchestratorSink satisfies orchestrator.Sink, translating its two
// terminal payment events into the facade's broader event taxonomy.
type orchestratorSink struct {
	events *eventBus
}

func (s *orchestratorSink) Emit(e orchestrator.Event) {
	kind := EventPaymentSucceeded
	if e.Kind == orchestrator.EventPaymentFailed {
		kind = EventPaymentFailed
	}
	s.events.emit(Event{Kind: kind, Payment: e.Payment})
}
