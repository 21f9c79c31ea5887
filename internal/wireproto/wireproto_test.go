package wireproto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFrameThenReadFrameRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello operator pool")
	require.NoError(t, WriteFrame(&buf, payload))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	_, err := ReadFrame(&buf)
	assert.Error(t, err)
}

func TestLockRequestEncodeDecodeRoundTrips(t *testing.T) {
	req := &LockRequest{
		Name:           "wallet-sync",
		IdentityPubKey: bytes.Repeat([]byte{0x02}, 33),
		Acquire:        true,
		Exclusive:      true,
		Signature:      bytes.Repeat([]byte{0x09}, 65),
	}

	var buf bytes.Buffer
	require.NoError(t, req.Encode(&buf))

	decoded, err := DecodeLockRequest(&buf)
	require.NoError(t, err)
	assert.Equal(t, req.Name, decoded.Name)
	assert.Equal(t, req.IdentityPubKey, decoded.IdentityPubKey)
	assert.Equal(t, req.Acquire, decoded.Acquire)
	assert.Equal(t, req.Exclusive, decoded.Exclusive)
	assert.Equal(t, req.Signature, decoded.Signature)
}

func TestSerializeParamsExcludesSignature(t *testing.T) {
	base := &LockRequest{Name: "wallet-sync", IdentityPubKey: bytes.Repeat([]byte{0x02}, 33), Acquire: true}
	withSig := &LockRequest{Name: base.Name, IdentityPubKey: base.IdentityPubKey, Acquire: true, Signature: bytes.Repeat([]byte{0x01}, 65)}

	a, err := base.SerializeParams()
	require.NoError(t, err)
	b, err := withSig.SerializeParams()
	require.NoError(t, err)
	assert.Equal(t, a, b, "signature must not affect the signed payload")
}
