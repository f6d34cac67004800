package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test_NewCustomError tests the creation of custom errors.
func Test_NewCustomError(t *testing.T) {
	err := New(ERR_PEER_TIMEOUT, "peer %s timed out", "10.0.0.1:24100")
	require.NotNil(t, err)
	require.Equal(t, ERR_PEER_TIMEOUT, err.Code())
	require.Equal(t, "peer 10.0.0.1:24100 timed out", err.Message())

	secondErr := New(ERR_NO_PEERS_RESPONDED, "[StatusFetcher] all %d peers failed", 3, err)
	thirdErr := New(ERR_SYNC_REFRESH_FAILED, "refresh failed", secondErr)

	require.True(t, thirdErr.Is(ErrNoPeersResponded))
	require.True(t, thirdErr.Is(ErrPeerTimeout))
	require.True(t, errors.Is(thirdErr, ErrSyncRefreshFailed))
	require.False(t, thirdErr.Is(ErrDiscoveryFailed))
	require.Equal(t, "[StatusFetcher] all 3 peers failed", secondErr.Message())
}

func Test_WrapsStandardErrors(t *testing.T) {
	err := NewPeerTimeoutError("status request", context.DeadlineExceeded)

	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, Is(err, ErrPeerTimeout))
	assert.Contains(t, err.Error(), "context deadline exceeded")
}

func Test_FmtWrappedCustomError(t *testing.T) {
	err := NewDiscoveryFailedError("directory unreachable")
	fmtError := fmt.Errorf("bootstrap: %w", err)

	assert.True(t, errors.Is(fmtError, ErrDiscoveryFailed))
	assert.Equal(t, ERR_DISCOVERY_FAILED, CodeOf(fmtError))
}

func Test_As(t *testing.T) {
	err := NewSyncRefreshFailedError("refresh", NewNoPeersRespondedError("none"))

	var tErr *Error
	require.True(t, errors.As(err, &tErr))
	assert.Equal(t, ERR_SYNC_REFRESH_FAILED, tErr.Code())

	require.NotNil(t, tErr.WrappedErr())
	assert.Equal(t, ERR_NO_PEERS_RESPONDED, CodeOf(tErr.WrappedErr()))
}

func Test_InvalidCode(t *testing.T) {
	err := New(ERR(999), "whatever")
	assert.Equal(t, "invalid error code", err.Message())
	assert.Equal(t, "999", ERR(999).String())
}

func Test_NilError(t *testing.T) {
	var err *Error

	assert.Equal(t, "<nil>", err.Error())
	assert.Equal(t, ERR_UNKNOWN, err.Code())
	assert.False(t, err.Is(ErrUnknown))
	assert.Nil(t, err.Unwrap())
	assert.True(t, Is(nil, nil))
	assert.False(t, Is(nil, ErrUnknown))
}

func Test_Join(t *testing.T) {
	err := Join(NewPeerTimeoutError("a"), NewPeerUnreachableError("b"))

	assert.True(t, errors.Is(err, ErrPeerTimeout))
	assert.True(t, errors.Is(err, ErrPeerUnreachable))
}
