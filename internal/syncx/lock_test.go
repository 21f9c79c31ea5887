package syncx

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLockSigner struct {
	pub []byte
}

func (s *testLockSigner) IdentityPublicKey() []byte { return s.pub }

func (s *testLockSigner) SignIdentityRecoverable(msg32 []byte) ([]byte, error) {
	sig := make([]byte, 65)
	copy(sig, msg32)
	return sig, nil
}

type fakeLockTransport struct {
	mu          sync.Mutex
	exclusive   map[string]bool // name -> held by "us"
	setLockCalls int
}

func newFakeLockTransport() *fakeLockTransport {
	return &fakeLockTransport{exclusive: make(map[string]bool)}
}

func (f *fakeLockTransport) SetLock(ctx context.Context, name string, identityPubKey []byte, acquire, exclusive bool, signature []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setLockCalls++
	if !acquire {
		delete(f.exclusive, name)
		return true, nil
	}
	f.exclusive[name] = exclusive
	return true, nil
}

func (f *fakeLockTransport) GetLock(ctx context.Context, name string, identityPubKey []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.exclusive[name]
	return ok, nil
}

func TestSetLockAcquiresAndTracksHeldLock(t *testing.T) {
	signer := &testLockSigner{pub: bytes.Repeat([]byte{0x02}, 33)}
	transport := newFakeLockTransport()
	client := NewLockClient(signer, transport)
	defer client.Close()

	ok, err := client.SetLock(context.Background(), "wallet-sync", true, true)
	require.NoError(t, err)
	assert.True(t, ok)

	held, err := client.GetLock(context.Background(), "wallet-sync")
	require.NoError(t, err)
	assert.True(t, held)
}

func TestSetLockReleaseIsNoOpWhenNotHeld(t *testing.T) {
	signer := &testLockSigner{pub: bytes.Repeat([]byte{0x03}, 33)}
	transport := newFakeLockTransport()
	client := NewLockClient(signer, transport)
	defer client.Close()

	ok, err := client.SetLock(context.Background(), "never-held", false, false)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRefreshLoopReacquiresHeldLocksOnTicker(t *testing.T) {
	signer := &testLockSigner{pub: bytes.Repeat([]byte{0x04}, 33)}
	transport := newFakeLockTransport()
	client := NewLockClient(signer, transport)
	defer client.Close()

	_, err := client.SetLock(context.Background(), "wallet-sync", true, false)
	require.NoError(t, err)

	client.refresh.Force <- time.Now()

	require.Eventually(t, func() bool {
		transport.mu.Lock()
		defer transport.mu.Unlock()
		return transport.setLockCalls >= 2
	}, 2*time.Second, 10*time.Millisecond)
}
