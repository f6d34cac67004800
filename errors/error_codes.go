package errors

import "strconv"

// ERR is the numeric code carried by every *Error.
type ERR int32

const (
	ERR_UNKNOWN            ERR = 0
	ERR_INVALID_ARGUMENT   ERR = 1
	ERR_THRESHOLD_EXCEEDED ERR = 2
	ERR_NOT_FOUND          ERR = 3
	ERR_CONFIGURATION      ERR = 4
	ERR_CONTEXT_CANCELED   ERR = 5
	ERR_ERROR              ERR = 9
	ERR_SERVICE_ERROR      ERR = 10
	ERR_INVALID_STATE      ERR = 11
	ERR_SESSION_CLOSED     ERR = 12

	// network synchronization
	ERR_DISCOVERY_FAILED      ERR = 40
	ERR_NO_PEERS_AVAILABLE    ERR = 41
	ERR_PEER_UNREACHABLE      ERR = 42
	ERR_PEER_TIMEOUT          ERR = 43
	ERR_PEER_RESPONSE_INVALID ERR = 44
	ERR_NO_PEERS_RESPONDED    ERR = 45
	ERR_SYNC_REFRESH_FAILED   ERR = 46
	ERR_SYNC_IN_PROGRESS      ERR = 47
)

var ERR_name = map[int32]string{
	0:  "UNKNOWN",
	1:  "INVALID_ARGUMENT",
	2:  "THRESHOLD_EXCEEDED",
	3:  "NOT_FOUND",
	4:  "CONFIGURATION",
	5:  "CONTEXT_CANCELED",
	9:  "ERROR",
	10: "SERVICE_ERROR",
	11: "INVALID_STATE",
	12: "SESSION_CLOSED",
	40: "DISCOVERY_FAILED",
	41: "NO_PEERS_AVAILABLE",
	42: "PEER_UNREACHABLE",
	43: "PEER_TIMEOUT",
	44: "PEER_RESPONSE_INVALID",
	45: "NO_PEERS_RESPONDED",
	46: "SYNC_REFRESH_FAILED",
	47: "SYNC_IN_PROGRESS",
}

func (x ERR) String() string {
	if name, ok := ERR_name[int32(x)]; ok {
		return name
	}

	return strconv.Itoa(int(x))
}
