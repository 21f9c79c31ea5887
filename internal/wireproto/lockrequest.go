package wireproto

import (
	"bytes"
	"io"

	"github.com/lightningnetwork/lnd/tlv"

	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
)

// TLV types for the distributed-lock RPC request (spec section 6): the
// wallet signs double-SHA256(serialized params) with a recoverable ECDSA
// signature, so the wire encoding of those params has to be
// deterministic, which is exactly what a TLV stream guarantees record by
// record.
const (
	typeLockName       tlv.Type = 0
	typeIdentityPubKey tlv.Type = 1
	typeLockAcquire    tlv.Type = 2
	typeLockExclusive  tlv.Type = 3
	typeLockSignature  tlv.Type = 4
)

// LockRequest is the signed set_lock/get_lock RPC payload.
type LockRequest struct {
	Name           string
	IdentityPubKey []byte
	Acquire        bool
	Exclusive      bool
	Signature      []byte
}

// SerializeParams encodes every field but Signature, the exact byte
// string the recoverable signature covers.
func (r *LockRequest) SerializeParams() ([]byte, error) {
	nameBytes := []byte(r.Name)
	acquireByte := boolByte(r.Acquire)
	exclusiveByte := boolByte(r.Exclusive)

	stream, err := tlv.NewStream(
		tlv.MakeStaticRecord(typeLockName, &nameBytes, uint64(len(nameBytes)), tlv.EVarBytes, tlv.DVarBytes),
		tlv.MakeStaticRecord(typeIdentityPubKey, &r.IdentityPubKey, uint64(len(r.IdentityPubKey)), tlv.EVarBytes, tlv.DVarBytes),
		tlv.MakeStaticRecord(typeLockAcquire, &acquireByte, 1, tlv.EUint8, tlv.DUint8),
		tlv.MakeStaticRecord(typeLockExclusive, &exclusiveByte, 1, tlv.EUint8, tlv.DUint8),
	)
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindGeneric, err, "failed to build lock request tlv stream")
	}

	var buf bytes.Buffer
	if err := stream.Encode(&buf); err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindGeneric, err, "failed to encode lock request")
	}
	return buf.Bytes(), nil
}

// Encode serializes the full request, signature included, as one TLV
// stream ready to be framed with WriteFrame.
func (r *LockRequest) Encode(w io.Writer) error {
	nameBytes := []byte(r.Name)
	acquireByte := boolByte(r.Acquire)
	exclusiveByte := boolByte(r.Exclusive)

	stream, err := tlv.NewStream(
		tlv.MakeStaticRecord(typeLockName, &nameBytes, uint64(len(nameBytes)), tlv.EVarBytes, tlv.DVarBytes),
		tlv.MakeStaticRecord(typeIdentityPubKey, &r.IdentityPubKey, uint64(len(r.IdentityPubKey)), tlv.EVarBytes, tlv.DVarBytes),
		tlv.MakeStaticRecord(typeLockAcquire, &acquireByte, 1, tlv.EUint8, tlv.DUint8),
		tlv.MakeStaticRecord(typeLockExclusive, &exclusiveByte, 1, tlv.EUint8, tlv.DUint8),
		tlv.MakeStaticRecord(typeLockSignature, &r.Signature, uint64(len(r.Signature)), tlv.EVarBytes, tlv.DVarBytes),
	)
	if err != nil {
		return walleterrors.Wrap(walleterrors.KindGeneric, err, "failed to build lock request tlv stream")
	}
	return stream.Encode(w)
}

// DecodeLockRequest reads one LockRequest TLV stream previously produced
// by Encode.
func DecodeLockRequest(r io.Reader) (*LockRequest, error) {
	var (
		nameBytes, identityPubKey, signature []byte
		acquireByte, exclusiveByte           uint8
	)

	stream, err := tlv.NewStream(
		tlv.MakeStaticRecord(typeLockName, &nameBytes, 0, tlv.EVarBytes, tlv.DVarBytes),
		tlv.MakeStaticRecord(typeIdentityPubKey, &identityPubKey, 0, tlv.EVarBytes, tlv.DVarBytes),
		tlv.MakeStaticRecord(typeLockAcquire, &acquireByte, 1, tlv.EUint8, tlv.DUint8),
		tlv.MakeStaticRecord(typeLockExclusive, &exclusiveByte, 1, tlv.EUint8, tlv.DUint8),
		tlv.MakeStaticRecord(typeLockSignature, &signature, 0, tlv.EVarBytes, tlv.DVarBytes),
	)
	if err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindGeneric, err, "failed to build lock request tlv stream")
	}
	if err := stream.Decode(r); err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindGeneric, err, "failed to decode lock request")
	}

	return &LockRequest{
		Name:           string(nameBytes),
		IdentityPubKey: identityPubKey,
		Acquire:        acquireByte != 0,
		Exclusive:      exclusiveByte != 0,
		Signature:      signature,
	}, nil
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
