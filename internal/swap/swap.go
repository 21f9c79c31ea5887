// Package swap rebalances leaf denominations via the adaptor-signature
// protocol (spec section 4.8): refund signatures for the leaves being
// given up are masked with a random scalar before the SSP ever sees a
// valid signature, so neither side can broadcast ahead of the other.
package swap

import (
	"context"

	"github.com/sparkwallet/spark-wallet-sdk/internal/leafstore"
	"github.com/sparkwallet/spark-wallet-sdk/internal/signer"
	"github.com/sparkwallet/spark-wallet-sdk/internal/sspclient"
	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
)

// Quorum abstracts the one operator round trip a swap needs: cosigning
// the refund transaction for a leaf being given up. Shared in shape with
// internal/transfer's Quorum interface, but kept local so this package
// doesn't need a transfer-package type to run a swap.
type Quorum interface {
	CosignRefund(ctx context.Context, nodeID string, refundTxHex string, userShare []byte) (aggregatedSig []byte, err error)
}

// Engine runs the leaf denomination rebalancing protocol.
type Engine struct {
	signer *signer.Signer
	leaves *leafstore.Store
	quorum Quorum
	ssp    *sspclient.Client
}

// New builds a swap Engine.
func New(s *signer.Signer, leaves *leafstore.Store, quorum Quorum, ssp *sspclient.Client) *Engine {
	return &Engine{signer: s, leaves: leaves, quorum: quorum, ssp: ssp}
}

// Result is the outcome of a completed rebalancing swap.
type Result struct {
	SwapID    string
	NewLeaves []sspclient.SwapLeafDenomination
	FeeSat    int64
}

// Rebalance runs the full protocol (spec 4.8) against leaves summing to S,
// producing new leaves of the requested target denominations (summing to
// at most S): cosign refunds, adapt each signature with a fresh secret,
// submit the adapted signatures for a quote, then reveal the secrets so
// the SSP can complete and forward them.
func (e *Engine) Rebalance(ctx context.Context, leaves []leafstore.Leaf, targetsSat []int64) (*Result, error) {
	var inputValue, targetValue int64
	for _, l := range leaves {
		inputValue += l.ValueSat
	}
	for _, t := range targetsSat {
		targetValue += t
	}
	if targetValue > inputValue {
		return nil, walleterrors.New(walleterrors.KindInvalidInput, "swap targets exceed input leaf value")
	}

	nodeIDs := make([]string, len(leaves))
	for i, l := range leaves {
		nodeIDs[i] = l.NodeID
	}
	e.leaves.Reserve(nodeIDs)

	adaptedSigs, secrets, err := e.adaptRefunds(ctx, leaves)
	if err != nil {
		e.leaves.Release(nodeIDs)
		return nil, err
	}

	idemKey, err := sspclient.NewIdempotencyKey()
	if err != nil {
		e.leaves.Release(nodeIDs)
		return nil, err
	}
	quote, err := e.ssp.RequestLeavesSwapQuote(ctx, inputValue, targetValue)
	if err != nil {
		e.leaves.Release(nodeIDs)
		return nil, err
	}

	acceptance, err := e.ssp.SubmitSwapAdaptedSignatures(ctx, idemKey, quote.QuoteID, adaptedSigs)
	if err != nil {
		e.leaves.Release(nodeIDs)
		return nil, walleterrors.Wrap(walleterrors.KindService, err, "ssp rejected adapted swap signatures")
	}

	revealKey, err := sspclient.NewIdempotencyKey()
	if err != nil {
		return nil, err
	}
	if err := e.ssp.RevealSwapSecrets(ctx, revealKey, acceptance.SwapID, secrets); err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindService, err, "failed to reveal adaptor secrets")
	}

	return &Result{SwapID: acceptance.SwapID, NewLeaves: acceptance.NewLeaves, FeeSat: acceptance.FeeSat}, nil
}

// adaptRefunds cosigns and then adaptor-masks the refund signature for
// every leaf being given up, returning the wire-ready adapted signatures
// alongside the adaptor secrets keyed by node id so the caller can reveal
// them in a single follow-up call.
func (e *Engine) adaptRefunds(ctx context.Context, leaves []leafstore.Leaf) ([]sspclient.SwapAdaptedSignature, map[string][]byte, error) {
	adapted := make([]sspclient.SwapAdaptedSignature, 0, len(leaves))
	secrets := make(map[string][]byte, len(leaves))

	for _, l := range leaves {
		aggregatedSig, err := e.quorum.CosignRefund(ctx, l.NodeID, l.RefundTxHex, nil)
		if err != nil {
			return nil, nil, walleterrors.Wrap(walleterrors.KindNetworkError, err, "failed to cosign refund for swap")
		}

		adaptedSig, secret, err := signer.AdaptSignature(aggregatedSig)
		if err != nil {
			return nil, nil, err
		}

		adapted = append(adapted, sspclient.SwapAdaptedSignature{
			NodeID:    l.NodeID,
			RBytes:    adaptedSig.R[:],
			SBytes:    adaptedSig.S[:],
			AdaptorPK: adaptedSig.Y,
		})
		secrets[l.NodeID] = secret.RevealAdaptorSecret()
	}

	return adapted, secrets, nil
}
