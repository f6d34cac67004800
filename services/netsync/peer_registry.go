package netsync

import (
	"sync"
)

// PeerRegistry is the ordered list of peers known to a session.
// Order matters: the status fetcher walks it front to back.
type PeerRegistry struct {
	mu    sync.RWMutex
	peers []Peer
}

// NewPeerRegistry creates a new peer registry
func NewPeerRegistry() *PeerRegistry {
	return &PeerRegistry{
		peers: make([]Peer, 0),
	}
}

// Replace swaps the whole list, keeping the given order and any duplicates
func (pr *PeerRegistry) Replace(peers []Peer) {
	next := make([]Peer, len(peers))
	copy(next, peers)

	pr.mu.Lock()
	defer pr.mu.Unlock()

	pr.peers = next
}

// AddPeer appends a peer to the end of the list
func (pr *PeerRegistry) AddPeer(p Peer) {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	pr.peers = append(pr.peers, p)
}

// Peers returns a copy of the list
func (pr *PeerRegistry) Peers() []Peer {
	pr.mu.RLock()
	defer pr.mu.RUnlock()

	result := make([]Peer, len(pr.peers))
	copy(result, pr.peers)

	return result
}

// PeerCount returns the number of registered peers
func (pr *PeerRegistry) PeerCount() int {
	pr.mu.RLock()
	defer pr.mu.RUnlock()

	return len(pr.peers)
}

// Contains reports whether address is registered
func (pr *PeerRegistry) Contains(address string) bool {
	pr.mu.RLock()
	defer pr.mu.RUnlock()

	for _, p := range pr.peers {
		if p.Address == address {
			return true
		}
	}

	return false
}
