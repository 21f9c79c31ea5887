package operatorpool

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"github.com/sparkwallet/spark-wallet-sdk/internal/leafstore"
	"github.com/sparkwallet/spark-wallet-sdk/internal/transfer"
	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
)

// Quorum backs every operator round trip the transfer, swap, token, and
// leaf-store engines need against the coordinator's RPC surface, the same
// json-codec-over-grpc.Invoke idiom grpcclient.go uses for the auth
// handshake. One concrete type satisfies transfer.Quorum, swap.Quorum,
// token.Quorum, leafstore.CoordinatorRefresher, and leafstore.RefundSigner,
// since all five are different views onto the same coordinator connection.
type Quorum struct {
	pool *Pool
}

// NewQuorum builds a Quorum bound to pool's coordinator connection.
func NewQuorum(pool *Pool) *Quorum {
	return &Quorum{pool: pool}
}

type cosignRefundRequest struct {
	NodeID      string `json:"node_id"`
	RefundTxHex string `json:"refund_tx_hex"`
	UserShare   []byte `json:"user_share,omitempty"`
}

type cosignRefundResponse struct {
	AggregatedSignature []byte `json:"aggregated_signature"`
}

// CosignRefund FROST-cosigns a leaf's refund transaction across the
// operator quorum, the one round trip transfer.Quorum and swap.Quorum
// share directly.
func (q *Quorum) CosignRefund(ctx context.Context, nodeID string, refundTxHex string, userShare []byte) ([]byte, error) {
	conn, err := q.pool.CoordinatorConn()
	if err != nil {
		return nil, err
	}
	req := &cosignRefundRequest{NodeID: nodeID, RefundTxHex: refundTxHex, UserShare: userShare}
	resp := &cosignRefundResponse{}
	if err := conn.Invoke(ctx, "/spark.operator.v1.Transfer/CosignRefund", req, resp, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindNetworkError, err, "cosign refund rpc failed")
	}
	return resp.AggregatedSignature, nil
}

type leafTransferEntryWire struct {
	NodeID          string `json:"node_id"`
	SecretCipher    []byte `json:"secret_cipher"`
	RefundSignature []byte `json:"refund_signature"`
	RefundTxHex     string `json:"refund_tx_hex"`
}

type deliverTransferPackageRequest struct {
	TransferID       string                   `json:"transfer_id"`
	SenderIdentity   []byte                   `json:"sender_identity"`
	ReceiverIdentity []byte                   `json:"receiver_identity"`
	ExpiryUnix       int64                    `json:"expiry_unix"`
	TotalValueSat    int64                    `json:"total_value_sat"`
	Leaves           []leafTransferEntryWire  `json:"leaves"`
}

// DeliverTransferPackage hands the sender's ECIES-encrypted transfer
// package to the coordinator, which fans it out to the rest of the
// quorum (spec 4.5 step 3).
func (q *Quorum) DeliverTransferPackage(ctx context.Context, t *transfer.Transfer) error {
	conn, err := q.pool.CoordinatorConn()
	if err != nil {
		return err
	}
	leaves := make([]leafTransferEntryWire, len(t.Leaves))
	for i, l := range t.Leaves {
		leaves[i] = leafTransferEntryWire{
			NodeID:          l.NodeID,
			SecretCipher:    l.SecretCipher,
			RefundSignature: l.RefundSignature,
			RefundTxHex:     l.RefundTxHex,
		}
	}
	req := &deliverTransferPackageRequest{
		TransferID:       t.ID,
		SenderIdentity:   t.SenderIdentity,
		ReceiverIdentity: t.ReceiverIdentity,
		ExpiryUnix:       t.ExpiryTime.Unix(),
		TotalValueSat:    t.TotalValueSat,
		Leaves:           leaves,
	}
	if err := conn.Invoke(ctx, "/spark.operator.v1.Transfer/DeliverTransferPackage", req, &struct{}{}, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return walleterrors.Wrap(walleterrors.KindNetworkError, err, "deliver transfer package rpc failed")
	}
	return nil
}

type leafKeyTweakWire struct {
	NodeID string `json:"node_id"`
	OldPK  []byte `json:"old_public_key"`
	NewPK  []byte `json:"new_public_key"`
}

type claimTransferPackageRequest struct {
	TransferID string             `json:"transfer_id"`
	KeyTweaks  []leafKeyTweakWire `json:"key_tweaks"`
}

// ClaimTransferPackage rebinds the claimed leaves to the receiver's new
// signing keys across the quorum (spec 4.5 step 4).
func (q *Quorum) ClaimTransferPackage(ctx context.Context, transferID string, newOwnerKeys []transfer.LeafKeyTweak) error {
	conn, err := q.pool.CoordinatorConn()
	if err != nil {
		return err
	}
	tweaks := make([]leafKeyTweakWire, len(newOwnerKeys))
	for i, k := range newOwnerKeys {
		tweaks[i] = leafKeyTweakWire{NodeID: k.NodeID, OldPK: k.OldPK, NewPK: k.NewPK}
	}
	req := &claimTransferPackageRequest{TransferID: transferID, KeyTweaks: tweaks}
	if err := conn.Invoke(ctx, "/spark.operator.v1.Transfer/ClaimTransferPackage", req, &struct{}{}, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return walleterrors.Wrap(walleterrors.KindNetworkError, err, "claim transfer package rpc failed")
	}
	return nil
}

type finalizeTokenTransactionRequest struct {
	TransactionID string `json:"transaction_id"`
	SignedTxHex   string `json:"signed_tx_hex"`
}

// FinalizeTokenTransaction submits the wallet's signed token transaction
// for the quorum to co-sign and finalize (spec 4.9).
func (q *Quorum) FinalizeTokenTransaction(ctx context.Context, txID string, signedTxHex string) error {
	conn, err := q.pool.CoordinatorConn()
	if err != nil {
		return err
	}
	req := &finalizeTokenTransactionRequest{TransactionID: txID, SignedTxHex: signedTxHex}
	if err := conn.Invoke(ctx, "/spark.operator.v1.Token/FinalizeTokenTransaction", req, &struct{}{}, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return walleterrors.Wrap(walleterrors.KindNetworkError, err, "finalize token transaction rpc failed")
	}
	return nil
}

type listOwnedLeavesResponse struct {
	CoordinatorView []leafWire          `json:"coordinator_view"`
	PerOperator     map[string][]string `json:"per_operator"`
}

type leafWire struct {
	ID                      string `json:"id"`
	NodeID                  string `json:"node_id"`
	ValueSat                int64  `json:"value_sat"`
	RefundTxHex             string `json:"refund_tx_hex"`
	RefundTimelockExpiresAt int64  `json:"refund_timelock_expires_at_unix"`
}

// ListOwnedLeaves implements internal/leafstore.CoordinatorRefresher: the
// coordinator's own view of the caller's leaves plus, per operator, which
// node ids that operator independently reports owning (spec 4.4 step 1's
// minority-missing check).
func (q *Quorum) ListOwnedLeaves(ctx context.Context) ([]leafstore.Leaf, map[string][]string, error) {
	conn, err := q.pool.CoordinatorConn()
	if err != nil {
		return nil, nil, err
	}
	resp := &listOwnedLeavesResponse{}
	if err := conn.Invoke(ctx, "/spark.operator.v1.Leaf/ListOwnedLeaves", &struct{}{}, resp, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, nil, walleterrors.Wrap(walleterrors.KindNetworkError, err, "list owned leaves rpc failed")
	}
	leaves := make([]leafstore.Leaf, len(resp.CoordinatorView))
	for i, l := range resp.CoordinatorView {
		leaves[i] = leafstore.Leaf{
			ID:                      l.ID,
			NodeID:                  l.NodeID,
			ValueSat:                l.ValueSat,
			Status:                  leafstore.StatusAvailable,
			RefundTxHex:             l.RefundTxHex,
			RefundTimelockExpiresAt: time.Unix(l.RefundTimelockExpiresAt, 0),
		}
	}
	return leaves, resp.PerOperator, nil
}

type refreshRefundRequest struct {
	NodeID string `json:"node_id"`
}

type refreshRefundResponse struct {
	NewRefundTxHex  string `json:"new_refund_tx_hex"`
	NewExpiryUnix   int64  `json:"new_expiry_unix"`
}

// RefreshRefund implements internal/leafstore.RefundSigner: co-signs a
// fresh refund transaction pushing a leaf's timelock back out before it
// nears expiry (spec 4.4's watchtower behavior).
func (q *Quorum) RefreshRefund(ctx context.Context, nodeID string) (string, time.Time, error) {
	conn, err := q.pool.CoordinatorConn()
	if err != nil {
		return "", time.Time{}, err
	}
	req := &refreshRefundRequest{NodeID: nodeID}
	resp := &refreshRefundResponse{}
	if err := conn.Invoke(ctx, "/spark.operator.v1.Leaf/RefreshRefund", req, resp, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return "", time.Time{}, walleterrors.Wrap(walleterrors.KindNetworkError, err, "refresh refund rpc failed")
	}
	return resp.NewRefundTxHex, time.Unix(resp.NewExpiryUnix, 0), nil
}
