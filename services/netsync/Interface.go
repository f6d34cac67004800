// Package netsync keeps a wallet session in step with the network: it discovers
// peers, asks them for the chain tip and publishes a SyncState that any number
// of readers can snapshot while a refresh is running.
package netsync

import (
	"context"
	"net"
	"time"
)

// Peer is a network participant addressed as "host:port". Peers are values;
// the registry replaces them, it never edits them.
type Peer struct {
	Address string `json:"address"`
}

// Host returns the host part of the address. An address without a port is
// returned unchanged so it can still be paired with the status port.
func (p Peer) Host() string {
	host, _, err := net.SplitHostPort(p.Address)
	if err != nil {
		return p.Address
	}

	return host
}

func (p Peer) String() string {
	return p.Address
}

// ChainStatus is what a peer reports from /blockchain/info.
type ChainStatus struct {
	Height        uint64 `json:"height"`
	Network       string `json:"network"`
	BestBlockHash string `json:"best_block_hash"`
	TotalSupply   uint64 `json:"total_supply"`
	Timestamp     int64  `json:"timestamp,omitempty"`
}

// SyncState is the view of synchronization shared with the presentation layer.
// Values handed out by NetworkManager.Snapshot are private copies.
type SyncState struct {
	ConnectedPeers     []Peer    `json:"connected_peers"`
	IsSyncing          bool      `json:"is_syncing"`
	SyncProgress       float64   `json:"sync_progress"` // 0.0 - 1.0
	CurrentBlockHeight uint64    `json:"current_block_height"`
	NetworkBlockHeight uint64    `json:"network_block_height"`
	State              string    `json:"state"`
	SessionID          string    `json:"session_id"`
	LastUpdated        time.Time `json:"last_updated"`
	LastError          string    `json:"last_error,omitempty"`
}

// IsSynced is true once a status fetch has completed and nothing is in flight.
func (s SyncState) IsSynced() bool {
	return !s.IsSyncing && s.SyncProgress >= 1.0 && s.CurrentBlockHeight > 0
}

func (s SyncState) clone() SyncState {
	c := s
	if s.ConnectedPeers != nil {
		c.ConnectedPeers = make([]Peer, len(s.ConnectedPeers))
		copy(c.ConnectedPeers, s.ConnectedPeers)
	}

	return c
}

// StatusSource asks a single peer for its chain status.
type StatusSource interface {
	FetchStatus(ctx context.Context, peer Peer) (*ChainStatus, error)
}

// PeerDiscoverer returns the current peer list from a directory service.
type PeerDiscoverer interface {
	DiscoverPeers(ctx context.Context) ([]Peer, error)
}

// ManagerI is the surface the debug API and the CLI depend on.
type ManagerI interface {
	// Bootstrap discovers peers (falling back to bootstrapNodes when discovery
	// fails), replaces the registry and fetches the chain status.
	//
	// A failed fetch leaves the manager Disconnected and is not returned as an
	// error. Errors are returned only when the call is rejected outright.
	Bootstrap(ctx context.Context, bootstrapNodes []string) error

	// Refresh re-fetches the chain status from the existing registry.
	Refresh(ctx context.Context) error

	// RefreshNow is Refresh behind a rate limiter, for user-triggered refreshes.
	RefreshNow(ctx context.Context) error

	// IsSynced evaluates the synced predicate on a single snapshot.
	IsSynced() bool

	// Snapshot returns a consistent copy of the whole SyncState.
	Snapshot() SyncState

	// Subscribe delivers a snapshot after every state change. The returned
	// function unsubscribes and closes the channel.
	Subscribe() (<-chan SyncState, func())

	// Peers returns the registry contents in order.
	Peers() []Peer

	// PeerStats returns per-peer status request statistics.
	PeerStats() []PeerStats
}
