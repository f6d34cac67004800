package netsync

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/timecoin/walletsync/errors"
	"github.com/timecoin/walletsync/ulogger"
)

const maxDiscoveryBodySize = 1 << 20

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DiscoveryClient reads the peer list from the directory service at
// {endpoint}/peers.
type DiscoveryClient struct {
	logger     ulogger.Logger
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
}

// NewDiscoveryClient creates a discovery client. A non-positive timeout
// falls back to 10 seconds.
func NewDiscoveryClient(logger ulogger.Logger, endpoint string, timeout time.Duration) *DiscoveryClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &DiscoveryClient{
		logger:   logger,
		endpoint: strings.TrimRight(endpoint, "/"),
		timeout:  timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// URL returns the peer list URL.
func (dc *DiscoveryClient) URL() string {
	return dc.endpoint + "/peers"
}

// DiscoverPeers makes one bounded request to the directory. Any failure,
// including a single malformed entry, fails the whole call. An empty list is
// a valid answer.
func (dc *DiscoveryClient) DiscoverPeers(ctx context.Context) ([]Peer, error) {
	if dc.endpoint == "" {
		return nil, errors.NewDiscoveryFailedError("[Discovery] no directory endpoint configured")
	}

	ctx, cancel := context.WithTimeout(ctx, dc.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dc.URL(), nil)
	if err != nil {
		return nil, errors.NewDiscoveryFailedError("[Discovery] failed to create request for %s", dc.URL(), err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := dc.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewDiscoveryFailedError("[Discovery] request to %s failed", dc.URL(), err)
	}

	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NewDiscoveryFailedError("[Discovery] %s returned status %d", dc.URL(), resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDiscoveryBodySize))
	if err != nil {
		return nil, errors.NewDiscoveryFailedError("[Discovery] failed to read response from %s", dc.URL(), err)
	}

	peers, err := parsePeerList(body)
	if err != nil {
		return nil, errors.NewDiscoveryFailedError("[Discovery] malformed peer list from %s", dc.URL(), err)
	}

	dc.logger.Debugf("[Discovery] %s returned %d peers", dc.URL(), len(peers))

	return peers, nil
}

// parsePeerList accepts either ["host:port", ...] or
// {"count": n, "peers": [...]} where entries are strings or {"address": "host:port", ...}.
func parsePeerList(body []byte) ([]Peer, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.NewInvalidArgumentError("empty body")
	}

	var entries []jsoniter.RawMessage

	switch body[0] {
	case '[':
		if err := json.Unmarshal(body, &entries); err != nil {
			return nil, errors.NewInvalidArgumentError("peer list is not a JSON array", err)
		}
	case '{':
		var wrapped struct {
			Count *int                  `json:"count"`
			Peers *[]jsoniter.RawMessage `json:"peers"`
		}

		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, errors.NewInvalidArgumentError("peer list object is malformed", err)
		}

		if wrapped.Peers == nil {
			return nil, errors.NewInvalidArgumentError("peer list object has no peers field")
		}

		entries = *wrapped.Peers
	default:
		return nil, errors.NewInvalidArgumentError("peer list is neither an array nor an object")
	}

	peers := make([]Peer, 0, len(entries))

	for i, raw := range entries {
		address, err := peerEntryAddress(raw)
		if err != nil {
			return nil, errors.NewInvalidArgumentError("peer entry %d", i, err)
		}

		if err = ValidatePeerAddress(address); err != nil {
			return nil, err
		}

		peers = append(peers, Peer{Address: address})
	}

	return peers, nil
}

func peerEntryAddress(raw jsoniter.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", errors.NewInvalidArgumentError("empty entry")
	}

	switch trimmed[0] {
	case '"':
		var address string
		if err := json.Unmarshal(trimmed, &address); err != nil {
			return "", errors.NewInvalidArgumentError("entry is not a string", err)
		}

		return address, nil
	case '{':
		var entry struct {
			Address string `json:"address"`
		}

		if err := json.Unmarshal(trimmed, &entry); err != nil {
			return "", errors.NewInvalidArgumentError("entry object is malformed", err)
		}

		if entry.Address == "" {
			return "", errors.NewInvalidArgumentError("entry object has no address")
		}

		return entry.Address, nil
	default:
		return "", errors.NewInvalidArgumentError("entry %s is neither a string nor an object", string(trimmed))
	}
}
