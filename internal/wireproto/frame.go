// Package wireproto implements a length-prefixed framed message format
// (spec section 6), plus the TLV record set a distributed-lock RPC request
// carries. No other package in this module calls it: the operator clients
// speak gRPC and the SSP client HTTP, each with its own encoding.
package wireproto

import (
	"encoding/binary"
	"io"

	"github.com/sparkwallet/spark-wallet-sdk/internal/walleterrors"
)

// MaxFrameSize bounds a single frame's payload, generous for any operator
// or SSP RPC this wallet issues.
const MaxFrameSize = 1 << 20 // 1 MiB

// WriteFrame writes payload prefixed with its 4-byte big-endian length.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return walleterrors.New(walleterrors.KindInvalidInput, "frame payload exceeds max frame size")
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return walleterrors.Wrap(walleterrors.KindNetworkError, err, "failed to write frame length")
	}
	if _, err := w.Write(payload); err != nil {
		return walleterrors.Wrap(walleterrors.KindNetworkError, err, "failed to write frame payload")
	}
	return nil
}

// ReadFrame reads one length-prefixed frame, rejecting any length above
// MaxFrameSize before allocating its buffer.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindNetworkError, err, "failed to read frame length")
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameSize {
		return nil, walleterrors.New(walleterrors.KindInvalidInput, "frame exceeds max frame size")
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, walleterrors.Wrap(walleterrors.KindNetworkError, err, "failed to read frame payload")
	}
	return payload, nil
}
