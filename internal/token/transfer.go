package token

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/google/uuid"

	"github.com/sparkwallet/spark-wallet-sdk/internal/signer"
	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
)

// tokenSigningPurpose is the hardened branch token transaction digests are
// signed under, distinct from the leaf and static-deposit branches so the
// three key spaces never collide.
const tokenSigningPurpose = 0x80000000 + 9737

// TxStatus is a token transaction's lifecycle state (spec 4.9).
type TxStatus string

const (
	TxStarted          TxStatus = "Started"
	TxSigned           TxStatus = "Signed"
	TxFinalized        TxStatus = "Finalized"
	TxStartedCancelled TxStatus = "StartedCancelled"
	TxSignedCancelled  TxStatus = "SignedCancelled"
)

// Quorum abstracts the operator round trip a token transfer needs: the
// operators co-sign and finalize the transaction once the wallet has
// produced its own signature.
type Quorum interface {
	FinalizeTokenTransaction(ctx context.Context, txID string, signedTxHex string) error
}

// Transaction is a signed token transaction moving reserved outputs to a
// recipient plus change back to the wallet.
type Transaction struct {
	ID            string
	TokenID       string
	ReservationID string
	Status        TxStatus
	Inputs        []Output
	RecipientPK   []byte
	RecipientSat  int64
	ChangeSat     int64
	SignedTxHex   string
}

// Engine builds and finalizes token transactions.
type Engine struct {
	signer *signer.Signer
	store  *Store
	quorum Quorum
}

// NewEngine builds a token transfer Engine.
func NewEngine(s *signer.Signer, store *Store, quorum Quorum) *Engine {
	return &Engine{signer: s, store: store, quorum: quorum}
}

// Transfer moves a reservation's outputs to recipientPK, sending
// recipientSat to them and the remainder back to the wallet as change
// (spec 4.9). The underlying wire encoding of a token transaction is an
// external collaborator concern (spec section 1 non-goals); this engine
// signs a canonical digest over the reservation and delegates
// finalization to the operator quorum.
func (e *Engine) Transfer(ctx context.Context, reservationID string, recipientPK []byte, recipientSat int64) (*Transaction, error) {
	e.store.mu.Lock()
	r, ok := e.store.reservations[reservationID]
	e.store.mu.Unlock()
	if !ok {
		return nil, walleterrors.New(walleterrors.KindInvalidInput, "unknown reservation")
	}

	var total int64
	for _, o := range r.Outputs {
		total += o.ValueSat
	}
	changeSat := total - recipientSat
	if changeSat < 0 {
		return nil, walleterrors.New(walleterrors.KindInvalidInput, "recipient amount exceeds reservation value")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindGeneric, err, "failed to mint token transaction id")
	}

	tx := &Transaction{
		ID:            id.String(),
		TokenID:       r.TokenID,
		ReservationID: reservationID,
		Status:        TxStarted,
		Inputs:        r.Outputs,
		RecipientPK:   recipientPK,
		RecipientSat:  recipientSat,
		ChangeSat:     changeSat,
	}

	digest := tokenTxDigest(tx)
	sig, err := e.signer.SignHashSchnorr(digest, signer.DerivationPath{tokenSigningPurpose, 0})
	if err != nil {
		return nil, err
	}
	tx.SignedTxHex = hex.EncodeToString(sig) + ":" + hex.EncodeToString(digest)
	tx.Status = TxSigned

	if err := e.quorum.FinalizeTokenTransaction(ctx, tx.ID, tx.SignedTxHex); err != nil {
		tx.Status = TxSignedCancelled
		return tx, walleterrors.Wrap(walleterrors.KindNetworkError, err, "operators rejected token transaction")
	}

	if err := e.store.FinalizeReservation(reservationID); err != nil {
		return tx, err
	}
	tx.Status = TxFinalized
	return tx, nil
}

// Cancel abandons a reservation before it is transferred, returning its
// outputs to the available pool.
func (e *Engine) Cancel(reservationID string) error {
	return e.store.CancelReservation(reservationID)
}

// tokenTxDigest hashes the fields that determine a token transaction's
// economic effect, giving the signer a fixed-size input regardless of the
// eventual wire encoding.
func tokenTxDigest(tx *Transaction) []byte {
	h := sha256.New()
	h.Write([]byte(tx.TokenID))
	h.Write([]byte(tx.ReservationID))
	h.Write(tx.RecipientPK)

	var amounts [16]byte
	binary.BigEndian.PutUint64(amounts[0:8], uint64(tx.RecipientSat))
	binary.BigEndian.PutUint64(amounts[8:16], uint64(tx.ChangeSat))
	h.Write(amounts[:])

	sum := h.Sum(nil)
	return sum
}
