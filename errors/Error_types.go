package errors

var (
	ErrUnknown             = New(ERR_UNKNOWN, "unknown error")
	ErrInvalidArgument     = New(ERR_INVALID_ARGUMENT, "invalid argument")
	ErrThresholdExceeded   = New(ERR_THRESHOLD_EXCEEDED, "threshold exceeded")
	ErrNotFound            = New(ERR_NOT_FOUND, "not found")
	ErrConfiguration       = New(ERR_CONFIGURATION, "configuration error")
	ErrContextCanceled     = New(ERR_CONTEXT_CANCELED, "context canceled")
	ErrError               = New(ERR_ERROR, "generic error")
	ErrServiceError        = New(ERR_SERVICE_ERROR, "service error")
	ErrInvalidState        = New(ERR_INVALID_STATE, "invalid state")
	ErrSessionClosed       = New(ERR_SESSION_CLOSED, "session closed")
	ErrDiscoveryFailed     = New(ERR_DISCOVERY_FAILED, "peer discovery failed")
	ErrNoPeersAvailable    = New(ERR_NO_PEERS_AVAILABLE, "no peers available")
	ErrPeerUnreachable     = New(ERR_PEER_UNREACHABLE, "peer unreachable")
	ErrPeerTimeout         = New(ERR_PEER_TIMEOUT, "peer timed out")
	ErrPeerResponseInvalid = New(ERR_PEER_RESPONSE_INVALID, "peer response invalid")
	ErrNoPeersResponded    = New(ERR_NO_PEERS_RESPONDED, "no peers responded")
	ErrSyncRefreshFailed   = New(ERR_SYNC_REFRESH_FAILED, "sync refresh failed")
	ErrSyncInProgress      = New(ERR_SYNC_IN_PROGRESS, "sync in progress")
)

// errors initialization functions

func NewUnknownError(message string, params ...interface{}) error {
	return New(ERR_UNKNOWN, message, params...)
}
func NewInvalidArgumentError(message string, params ...interface{}) error {
	return New(ERR_INVALID_ARGUMENT, message, params...)
}
func NewThresholdExceededError(message string, params ...interface{}) error {
	return New(ERR_THRESHOLD_EXCEEDED, message, params...)
}
func NewNotFoundError(message string, params ...interface{}) error {
	return New(ERR_NOT_FOUND, message, params...)
}
func NewConfigurationError(message string, params ...interface{}) error {
	return New(ERR_CONFIGURATION, message, params...)
}
func NewContextCanceledError(message string, params ...interface{}) error {
	return New(ERR_CONTEXT_CANCELED, message, params...)
}
func NewError(message string, params ...interface{}) error {
	return New(ERR_ERROR, message, params...)
}
func NewServiceError(message string, params ...interface{}) error {
	return New(ERR_SERVICE_ERROR, message, params...)
}
func NewInvalidStateError(message string, params ...interface{}) error {
	return New(ERR_INVALID_STATE, message, params...)
}
func NewSessionClosedError(message string, params ...interface{}) error {
	return New(ERR_SESSION_CLOSED, message, params...)
}
func NewDiscoveryFailedError(message string, params ...interface{}) error {
	return New(ERR_DISCOVERY_FAILED, message, params...)
}
func NewNoPeersAvailableError(message string, params ...interface{}) error {
	return New(ERR_NO_PEERS_AVAILABLE, message, params...)
}
func NewPeerUnreachableError(message string, params ...interface{}) error {
	return New(ERR_PEER_UNREACHABLE, message, params...)
}
func NewPeerTimeoutError(message string, params ...interface{}) error {
	return New(ERR_PEER_TIMEOUT, message, params...)
}
func NewPeerResponseInvalidError(message string, params ...interface{}) error {
	return New(ERR_PEER_RESPONSE_INVALID, message, params...)
}
func NewNoPeersRespondedError(message string, params ...interface{}) error {
	return New(ERR_NO_PEERS_RESPONDED, message, params...)
}
func NewSyncRefreshFailedError(message string, params ...interface{}) error {
	return New(ERR_SYNC_REFRESH_FAILED, message, params...)
}
func NewSyncInProgressError(message string, params ...interface{}) error {
	return New(ERR_SYNC_IN_PROGRESS, message, params...)
}
