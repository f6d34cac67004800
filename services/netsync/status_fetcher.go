package netsync

import (
	"context"
	"time"

	"github.com/timecoin/walletsync/errors"
	"github.com/timecoin/walletsync/ulogger"
)

// ChainStatusFetcher asks peers for the chain status one at a time, in order,
// and stops at the first usable answer.
type ChainStatusFetcher struct {
	logger ulogger.Logger
	source StatusSource
	stats  *PeerStatsTracker
}

// NewChainStatusFetcher creates a fetcher. stats may be nil.
func NewChainStatusFetcher(logger ulogger.Logger, source StatusSource, stats *PeerStatsTracker) *ChainStatusFetcher {
	initPrometheusMetrics()

	return &ChainStatusFetcher{
		logger: logger,
		source: source,
		stats:  stats,
	}
}

// FetchChainStatus returns the status of the first peer that answers.
//
// Per-peer failures are logged and skipped. Peers after the winner are never
// contacted. An empty list fails without touching the network, and if every
// peer fails the last peer error is wrapped in ERR_NO_PEERS_RESPONDED.
func (f *ChainStatusFetcher) FetchChainStatus(ctx context.Context, peers []Peer) (*ChainStatus, error) {
	if len(peers) == 0 {
		return nil, errors.NewNoPeersAvailableError("[StatusFetcher] peer registry is empty")
	}

	var lastErr error

	for i, peer := range peers {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewContextCanceledError("[StatusFetcher] stopped after %d of %d peers", i, len(peers), err)
		}

		start := time.Now()
		status, err := f.source.FetchStatus(ctx, peer)
		elapsed := time.Since(start)

		prometheusNetSyncStatusFetchDuration.Observe(elapsed.Seconds())

		if err == nil && status == nil {
			err = errors.NewPeerResponseInvalidError("[StatusFetcher] %s returned no status", peer)
		}

		if err != nil {
			lastErr = err

			f.stats.RecordFailure(peer, err)
			prometheusNetSyncPeerFailures.WithLabelValues(failureReason(err)).Inc()
			f.logger.Warnf("[StatusFetcher] peer %d/%d %s failed after %s: %v", i+1, len(peers), peer, elapsed, err)

			continue
		}

		f.stats.RecordSuccess(peer, elapsed, status.Height)
		f.logger.Debugf("[StatusFetcher] peer %s reported height %d on %q in %s", peer, status.Height, status.Network, elapsed)

		return status, nil
	}

	return nil, errors.NewNoPeersRespondedError("[StatusFetcher] none of %d peers returned a chain status", len(peers), lastErr)
}
