package netsync

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/timecoin/walletsync/errors"
	"github.com/timecoin/walletsync/ulogger"
)

const maxStatusBodySize = 64 << 10

// HTTPStatusSource queries GET http://{host}:{statusPort}/blockchain/info.
// The peer's own port is ignored; every node serves status on the network's
// status port.
type HTTPStatusSource struct {
	logger          ulogger.Logger
	httpClient      *http.Client
	statusPort      int
	timeout         time.Duration
	expectedNetwork string
}

// NewHTTPStatusSource creates a status source. Sane defaults apply to
// non-positive values.
func NewHTTPStatusSource(logger ulogger.Logger, statusPort int, timeout time.Duration, expectedNetwork string) *HTTPStatusSource {
	if statusPort <= 0 {
		statusPort = 24101
	}

	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	return &HTTPStatusSource{
		logger:     logger,
		statusPort: statusPort,
		timeout:    timeout,
		httpClient: &http.Client{
			// a peer that redirects is not serving the status API
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		expectedNetwork: expectedNetwork,
	}
}

// StatusURL returns the status endpoint for peer.
func (s *HTTPStatusSource) StatusURL(peer Peer) string {
	return "http://" + net.JoinHostPort(peer.Host(), strconv.Itoa(s.statusPort)) + "/blockchain/info"
}

// FetchStatus performs a single request bounded by the per-peer timeout.
func (s *HTTPStatusSource) FetchStatus(ctx context.Context, peer Peer) (*ChainStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	url := s.StatusURL(peer)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.NewPeerUnreachableError("[StatusFetcher] bad status url for %s", peer, err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, s.transportError(peer, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NewPeerResponseInvalidError("[StatusFetcher] %s returned status %d", peer, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStatusBodySize))
	if err != nil {
		return nil, s.transportError(peer, err)
	}

	status, err := parseChainStatus(body)
	if err != nil {
		return nil, errors.NewPeerResponseInvalidError("[StatusFetcher] %s returned an unusable status", peer, err)
	}

	if s.expectedNetwork != "" && status.Network != "" && !strings.EqualFold(status.Network, s.expectedNetwork) {
		return nil, errors.NewPeerResponseInvalidError("[StatusFetcher] %s is on network %q, expected %q", peer, status.Network, s.expectedNetwork)
	}

	return status, nil
}

func (s *HTTPStatusSource) transportError(peer Peer, err error) error {
	if errors.IsTimeoutError(err) {
		return errors.NewPeerTimeoutError("[StatusFetcher] %s did not answer within %s", peer, s.timeout, err)
	}

	return errors.NewPeerUnreachableError("[StatusFetcher] %s is unreachable", peer, err)
}

func parseChainStatus(body []byte) (*ChainStatus, error) {
	var raw struct {
		Height        *uint64 `json:"height"`
		Network       string  `json:"network"`
		BestBlockHash string  `json:"best_block_hash"`
		TotalSupply   uint64  `json:"total_supply"`
		Timestamp     int64   `json:"timestamp"`
	}

	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.NewInvalidArgumentError("status body is not a chain status object", err)
	}

	if raw.Height == nil {
		return nil, errors.NewInvalidArgumentError("status body has no height")
	}

	return &ChainStatus{
		Height:        *raw.Height,
		Network:       raw.Network,
		BestBlockHash: raw.BestBlockHash,
		TotalSupply:   raw.TotalSupply,
		Timestamp:     raw.Timestamp,
	}, nil
}
