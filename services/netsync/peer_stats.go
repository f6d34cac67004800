package netsync

import (
	"sort"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/atomic"
)

// PeerStats tracks status request outcomes for one peer.
type PeerStats struct {
	Address         string        `json:"address"`
	Attempts        int64         `json:"attempts"`
	Successes       int64         `json:"successes"`
	Failures        int64         `json:"failures"`
	AvgResponseTime time.Duration `json:"avg_response_time_ns"`
	LastLatency     time.Duration `json:"last_latency_ns"`
	LastHeight      uint64        `json:"last_height"`
	LastError       string        `json:"last_error,omitempty"`
	LastAttempt     time.Time     `json:"last_attempt"`
	LastSuccess     time.Time     `json:"last_success,omitempty"`
	LastFailure     time.Time     `json:"last_failure,omitempty"`
}

// SuccessRate returns successes/attempts, or 0 before the first attempt.
func (ps PeerStats) SuccessRate() float64 {
	if ps.Attempts == 0 {
		return 0
	}

	return float64(ps.Successes) / float64(ps.Attempts)
}

// PeerStatsTracker keeps PeerStats per address. Entries for peers that
// have not been contacted within the TTL expire. A nil tracker ignores
// every call.
type PeerStatsTracker struct {
	mu      sync.Mutex
	cache   *ttlcache.Cache[string, *PeerStats]
	stopped atomic.Bool
}

// NewPeerStatsTracker creates a tracker and starts its expiry loop.
func NewPeerStatsTracker(ttl time.Duration) *PeerStatsTracker {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	t := &PeerStatsTracker{
		cache: ttlcache.New[string, *PeerStats](
			ttlcache.WithTTL[string, *PeerStats](ttl),
			ttlcache.WithDisableTouchOnHit[string, *PeerStats](),
		),
	}

	go t.cache.Start()

	return t
}

// Stop halts the expiry loop. It is safe to call Stop multiple times.
func (t *PeerStatsTracker) Stop() {
	if t == nil {
		return
	}

	if t.stopped.CompareAndSwap(false, true) {
		t.cache.Stop()
	}
}

// RecordSuccess records a status response from peer.
func (t *PeerStatsTracker) RecordSuccess(peer Peer, elapsed time.Duration, height uint64) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	ps := t.entry(peer)
	now := time.Now()

	ps.Attempts++
	ps.Successes++
	ps.LastAttempt = now
	ps.LastSuccess = now
	ps.LastLatency = elapsed
	ps.LastHeight = height
	ps.LastError = ""

	// weighted average: 80% previous, 20% new
	if ps.AvgResponseTime == 0 {
		ps.AvgResponseTime = elapsed
	} else {
		ps.AvgResponseTime = time.Duration(int64(float64(ps.AvgResponseTime)*0.8 + float64(elapsed)*0.2))
	}
}

// RecordFailure records a failed status request to peer.
func (t *PeerStatsTracker) RecordFailure(peer Peer, err error) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	ps := t.entry(peer)
	now := time.Now()

	ps.Attempts++
	ps.Failures++
	ps.LastAttempt = now
	ps.LastFailure = now

	if err != nil {
		ps.LastError = err.Error()
	}
}

// Get returns a copy of the stats for address.
func (t *PeerStatsTracker) Get(address string) (PeerStats, bool) {
	if t == nil {
		return PeerStats{}, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	item := t.cache.Get(address)
	if item == nil {
		return PeerStats{}, false
	}

	return *item.Value(), true
}

// All returns copies of every tracked entry ordered by address.
func (t *PeerStatsTracker) All() []PeerStats {
	if t == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	result := make([]PeerStats, 0, t.cache.Len())
	for _, item := range t.cache.Items() {
		result = append(result, *item.Value())
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Address < result[j].Address
	})

	return result
}

// entry must be called with t.mu held. Setting the item again restarts its TTL,
// reads alone do not.
func (t *PeerStatsTracker) entry(peer Peer) *PeerStats {
	ps := &PeerStats{Address: peer.Address}
	if item := t.cache.Get(peer.Address); item != nil {
		ps = item.Value()
	}

	t.cache.Set(peer.Address, ps, ttlcache.DefaultTTL)

	return ps
}
