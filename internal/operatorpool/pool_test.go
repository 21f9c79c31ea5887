package operatorpool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextBackoffDoublesUpToMax(t *testing.T) {
	cur := reconnectBackoffStart
	for i := 0; i < 10; i++ {
		cur = nextBackoff(cur)
		assert.LessOrEqual(t, cur, reconnectBackoffMax)
	}
	assert.Equal(t, reconnectBackoffMax, cur)
}

func TestSessionCredentialCarriesBearerToken(t *testing.T) {
	token := "tok-123"
	cred := &sessionCredential{token: &token}

	md, err := cred.GetRequestMetadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", md["authorization"])
	assert.True(t, cred.RequireTransportSecurity())
}

func TestSessionCredentialReflectsTokenRefresh(t *testing.T) {
	token := "first"
	cred := &sessionCredential{token: &token}

	md, err := cred.GetRequestMetadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer first", md["authorization"])

	token = "second"
	md, err = cred.GetRequestMetadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer second", md["authorization"])
}

func TestEndpointAddrFormatsHostPort(t *testing.T) {
	ep := Endpoint{Host: "operator-1.example.com", Port: 8443}
	assert.Equal(t, "operator-1.example.com:8443", ep.addr())
}

func TestNewRejectsEmptyEndpoints(t *testing.T) {
	_, err := New(context.Background(), nil, nil)
	require.Error(t, err)
}

func TestMaybeFailoverCoordinatorPromotesHealthyOperator(t *testing.T) {
	p := &Pool{
		conns: []*connState{
			{endpoint: Endpoint{ID: "op-0"}, healthy: false},
			{endpoint: Endpoint{ID: "op-1"}, healthy: true},
		},
		coordinator: 0,
	}

	p.maybeFailoverCoordinator(0)

	assert.Equal(t, "op-1", p.Coordinator())
}

func TestMaybeFailoverCoordinatorIgnoresNonCoordinatorFailure(t *testing.T) {
	p := &Pool{
		conns: []*connState{
			{endpoint: Endpoint{ID: "op-0"}, healthy: true},
			{endpoint: Endpoint{ID: "op-1"}, healthy: false},
		},
		coordinator: 0,
	}

	p.maybeFailoverCoordinator(1)

	assert.Equal(t, "op-0", p.Coordinator())
}

func TestConnForOperatorRejectsUnknownID(t *testing.T) {
	p := &Pool{
		conns: []*connState{
			{endpoint: Endpoint{ID: "op-0"}, backoff: reconnectBackoffStart},
		},
	}

	_, err := p.ConnForOperator("op-missing")
	require.Error(t, err)
}
