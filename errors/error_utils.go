// Package errors provides the coded error type used across walletsync and
// helpers for categorizing peer and network failures.
package errors

import (
	"context"
	"errors"
	"net"
	"strings"
)

// IsPeerError reports whether err is a per-peer failure that a caller may
// log and skip before moving on to the next peer.
func IsPeerError(err error) bool {
	if err == nil {
		return false
	}

	switch CodeOf(err) {
	case ERR_PEER_UNREACHABLE, ERR_PEER_TIMEOUT, ERR_PEER_RESPONSE_INVALID:
		return true
	}

	return false
}

// IsTimeoutError determines if err was caused by a deadline rather than a refusal.
//
// Parameters:
//   - err: Error to check
//
// Returns:
//   - bool: true if a deadline or network timeout is found in the chain
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// IsCanceled reports whether err stems from a canceled context.
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, context.Canceled) || CodeOf(err) == ERR_CONTEXT_CANCELED
}
