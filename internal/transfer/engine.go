package transfer

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sparkwallet/spark-wallet-sdk/internal/leafstore"
	"github.com/sparkwallet/spark-wallet-sdk/internal/signer"
	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
	"github.com/sparkwallet/spark-wallet-sdk/pkg/walletlog"
)

// DefaultExpiry bounds how long a sender-delivered transfer package waits
// for the receiver to claim it before the sender can reclaim the leaves.
const DefaultExpiry = 24 * time.Hour

// Quorum abstracts the operator-quorum round trips the transfer protocol
// needs: FROST-cosigning refunds and delivering/finalizing the transfer
// package. The operator wire protocol itself is an external collaborator
// (spec section 1); this interface is the seam this engine depends on.
type Quorum interface {
	CosignRefund(ctx context.Context, nodeID string, refundTxHex string, userShare []byte) (aggregatedSig []byte, err error)
	DeliverTransferPackage(ctx context.Context, t *Transfer) error
	ClaimTransferPackage(ctx context.Context, transferID string, newOwnerKeys []LeafKeyTweak) error
}

// Store persists a transfer once its key tweaks and refund signatures are
// prepared, so a transfer that reaches KEY_TWEAKS_PREPARED/
// SIGNATURES_REQUESTED but fails to deliver can resume from there on
// reconnect instead of selecting fresh leaves from scratch (spec 4.5).
type Store interface {
	SavePendingTransfer(ctx context.Context, t *Transfer) error
	DeletePendingTransfer(ctx context.Context, id string) error
	ListPendingTransfers(ctx context.Context) ([]*Transfer, error)
}

// Engine runs the outgoing/incoming transfer protocol.
type Engine struct {
	signer *signer.Signer
	leaves *leafstore.Store
	quorum Quorum
	store  Store
}

// New builds a transfer Engine. store may be nil, in which case in-flight
// transfers are not persisted and cannot be resumed after a restart.
func New(s *signer.Signer, leaves *leafstore.Store, quorum Quorum, store Store) *Engine {
	return &Engine{signer: s, leaves: leaves, quorum: quorum, store: store}
}

// SendOptions configures an outgoing transfer.
type SendOptions struct {
	ReceiverIdentityPubKey []byte
	AmountSat              int64
	UserRequest            *UserRequest
}

// Send runs the full outgoing-transfer state machine (spec 4.5): select
// leaves, generate new signing keys, cosign refunds, build and deliver the
// transfer package. A transfer whose UserRequest is set (cooperative exit,
// preimage swap, static deposit claim) is delivered but left pending for
// the SSP/user to complete rather than expected to finalize on its own.
func (e *Engine) Send(ctx context.Context, opts SendOptions) (*Transfer, error) {
	selection, ok := e.leaves.SelectForAmount(opts.AmountSat)
	if !ok {
		return nil, walleterrors.New(walleterrors.KindInvalidInput, "insufficient leaves for transfer amount")
	}

	nodeIDs := make([]string, len(selection.Leaves))
	for i, l := range selection.Leaves {
		nodeIDs[i] = l.NodeID
	}
	e.leaves.Reserve(nodeIDs)

	id, err := uuid.NewV7()
	if err != nil {
		e.leaves.Release(nodeIDs)
		return nil, walleterrors.Wrap(walleterrors.KindGeneric, err, "failed to mint transfer id")
	}

	t := &Transfer{
		ID:               id.String(),
		Direction:        DirectionOutgoing,
		Status:           StatusInit,
		ExpiryTime:       time.Now().Add(DefaultExpiry),
		TotalValueSat:    opts.AmountSat,
		UserRequest:      opts.UserRequest,
		ReceiverIdentity: opts.ReceiverIdentityPubKey,
	}

	for _, l := range selection.Leaves {
		entry, err := e.buildLeafEntry(ctx, l, opts.ReceiverIdentityPubKey)
		if err != nil {
			e.leaves.Release(nodeIDs)
			return nil, err
		}
		t.Leaves = append(t.Leaves, entry)
	}
	t.Status = StatusKeyTweaksPrepared
	t.Status = StatusSignaturesRequested

	// Key tweaks and refund signatures are now committed. Persist before the
	// delivery round trip so a crash or disconnect between here and a
	// successful DeliverTransferPackage can resume from KeyTweaksPrepared on
	// reconnect instead of re-selecting leaves and redoing the cosigning
	// (spec 4.5).
	if e.store != nil {
		if err := e.store.SavePendingTransfer(ctx, t); err != nil {
			e.leaves.Release(nodeIDs)
			return nil, walleterrors.Wrap(walleterrors.KindGeneric, err, "failed to persist pending transfer")
		}
	}

	if err := e.deliver(ctx, t); err != nil {
		// Leaves stay reserved and the pending record stays in the store:
		// the key tweaks and refund signatures already produced are still
		// valid, so the next Resume retries delivery with the same leaves
		// rather than discarding them and starting over.
		return nil, walleterrors.Wrap(walleterrors.KindNetworkError, err, "failed to deliver transfer package")
	}

	if t.PendingUntilUserRequest() {
		walletlog.Info("transfer delivered, pending user/SSP completion", zap.String("transfer_id", t.ID))
		return t, nil
	}

	return t, nil
}

// deliver hands the transfer package to the operator quorum and advances
// its status accordingly, clearing the persisted pending record once the
// transfer no longer needs to survive a restart.
func (e *Engine) deliver(ctx context.Context, t *Transfer) error {
	if err := e.quorum.DeliverTransferPackage(ctx, t); err != nil {
		return err
	}
	t.Status = StatusTransferPackageDelivered

	if t.PendingUntilUserRequest() {
		if e.store != nil {
			if err := e.store.SavePendingTransfer(ctx, t); err != nil {
				walletlog.Warn("failed to update pending transfer after delivery", zap.String("transfer_id", t.ID), zap.Error(err))
			}
		}
		return nil
	}

	t.Status = StatusFinalized
	if e.store != nil {
		if err := e.store.DeletePendingTransfer(ctx, t.ID); err != nil {
			walletlog.Warn("failed to clear pending transfer", zap.String("transfer_id", t.ID), zap.Error(err))
		}
	}
	return nil
}

// Resume re-reads any transfers the store still has pending and retries
// delivery for each. Called on reconnect (spec 4.5: "on reconnect the
// client re-reads pending state and resumes from KeyTweaksPrepared").
func (e *Engine) Resume(ctx context.Context) ([]*Transfer, error) {
	if e.store == nil {
		return nil, nil
	}
	pending, err := e.store.ListPendingTransfers(ctx)
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindGeneric, err, "failed to list pending transfers")
	}

	resumed := make([]*Transfer, 0, len(pending))
	for _, t := range pending {
		if t.IsExpired(time.Now()) {
			nodeIDs := make([]string, len(t.Leaves))
			for i, entry := range t.Leaves {
				nodeIDs[i] = entry.NodeID
			}
			e.leaves.Release(nodeIDs)
			if err := e.store.DeletePendingTransfer(ctx, t.ID); err != nil {
				walletlog.Warn("failed to clear expired pending transfer", zap.String("transfer_id", t.ID), zap.Error(err))
			}
			continue
		}
		if t.Status == StatusTransferPackageDelivered {
			// Delivery already succeeded before the restart. A transfer
			// still waiting on the user/SSP stays pending; otherwise only
			// the finalize/cleanup bookkeeping was interrupted.
			if !t.PendingUntilUserRequest() {
				t.Status = StatusFinalized
				if err := e.store.DeletePendingTransfer(ctx, t.ID); err != nil {
					walletlog.Warn("failed to clear delivered pending transfer", zap.String("transfer_id", t.ID), zap.Error(err))
				}
			}
			resumed = append(resumed, t)
			continue
		}
		if err := e.deliver(ctx, t); err != nil {
			walletlog.Warn("resume: transfer still undeliverable", zap.String("transfer_id", t.ID), zap.Error(err))
			resumed = append(resumed, t)
			continue
		}
		resumed = append(resumed, t)
	}
	return resumed, nil
}

// IsOwnIdentity reports whether pub is this wallet's own identity public
// key, the condition that routes an outgoing transfer through SelfTransfer
// instead of the full multi-party protocol (spec 4.5).
func (e *Engine) IsOwnIdentity(pub []byte) bool {
	return bytes.Equal(pub, e.signer.IdentityPublicKey())
}

func (e *Engine) buildLeafEntry(ctx context.Context, l leafstore.Leaf, receiverPub []byte) (LeafTransferEntry, error) {
	_, newPub, err := e.signer.GenerateRandomKey()
	if err != nil {
		return LeafTransferEntry{}, walleterrors.Wrap(walleterrors.KindSigner, err, "failed to generate new leaf key")
	}

	aggregatedSig, err := e.quorum.CosignRefund(ctx, l.NodeID, l.RefundTxHex, nil)
	if err != nil {
		return LeafTransferEntry{}, walleterrors.Wrap(walleterrors.KindNetworkError, err, "failed to cosign refund")
	}

	cipher, err := e.signer.EciesEncrypt(newPub, receiverPub)
	if err != nil {
		return LeafTransferEntry{}, walleterrors.Wrap(walleterrors.KindSigner, err, "failed to encrypt transfer secret")
	}

	return LeafTransferEntry{
		NodeID:          l.NodeID,
		SecretCipher:    cipher,
		RefundSignature: aggregatedSig,
		RefundTxHex:     l.RefundTxHex,
	}, nil
}

// SelfTransfer short-circuits the full protocol when sender and receiver
// are the same identity (spec 4.5): no cosigning or ECIES round trip is
// needed since the wallet already owns the destination key, so the sender
// immediately claims. It still reserves the leaves for the duration of the
// call so a concurrent Send can't select the same leaves, then releases
// them immediately since nothing external happens to them (mirroring Send,
// which never releases leaves it has successfully spent).
func (e *Engine) SelfTransfer(ctx context.Context, amountSat int64) (*Transfer, error) {
	selection, ok := e.leaves.SelectForAmount(amountSat)
	if !ok {
		return nil, walleterrors.New(walleterrors.KindInvalidInput, "insufficient leaves for transfer amount")
	}
	nodeIDs := make([]string, len(selection.Leaves))
	for i, l := range selection.Leaves {
		nodeIDs[i] = l.NodeID
	}
	e.leaves.Reserve(nodeIDs)
	defer e.leaves.Release(nodeIDs)

	id, err := uuid.NewV7()
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindGeneric, err, "failed to mint transfer id")
	}

	ownerPub := e.signer.IdentityPublicKey()
	return &Transfer{
		ID:               id.String(),
		Direction:        DirectionOutgoing,
		Status:           StatusFinalized,
		TotalValueSat:    amountSat,
		SenderIdentity:   ownerPub,
		ReceiverIdentity: ownerPub,
	}, nil
}

// Claim runs the receiver side of a transfer: it decrypts each leaf's new
// signing public key from its secret ciphertext, rebinds operator-side
// ownership, and marks the transfer finalized (spec 4.5 claim flow).
func (e *Engine) Claim(ctx context.Context, t *Transfer) error {
	if t.Status == StatusFinalized {
		return nil
	}
	tweaks := make([]LeafKeyTweak, 0, len(t.Leaves))
	for _, entry := range t.Leaves {
		plaintext, err := e.signer.EciesDecrypt(entry.SecretCipher, nil)
		if err != nil {
			return walleterrors.Wrap(walleterrors.KindSigner, err, "failed to decrypt transfer secret")
		}
		tweaks = append(tweaks, LeafKeyTweak{NodeID: entry.NodeID, NewPK: plaintext})
	}

	if err := e.quorum.ClaimTransferPackage(ctx, t.ID, tweaks); err != nil {
		return walleterrors.Wrap(walleterrors.KindNetworkError, err, "failed to claim transfer package")
	}
	t.Status = StatusFinalized
	return nil
}
