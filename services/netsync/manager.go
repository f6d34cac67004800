package netsync

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"github.com/timecoin/walletsync/errors"
	"github.com/timecoin/walletsync/settings"
	"github.com/timecoin/walletsync/ulogger"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"
)

// NetworkManager owns the network view of one wallet session: the peer
// registry, the chain status fetcher and the SyncState readers observe.
//
// Bootstrap and Refresh never hold the state lock across network I/O. They
// work out the new state first and then swap it in under the lock, so a
// Snapshot taken at any moment is complete and consistent. Only one of them
// may run at a time; an overlapping call is rejected with ERR_SYNC_IN_PROGRESS.
type NetworkManager struct {
	logger     ulogger.Logger
	settings   *settings.Settings
	sessionID  string
	registry   *PeerRegistry
	discoverer PeerDiscoverer
	source     StatusSource
	fetcher    *ChainStatusFetcher
	stats      *PeerStatsTracker
	ownsStats  bool
	fsm        *fsm.FSM
	limiter    *rate.Limiter

	mu             sync.RWMutex
	state          SyncState
	bootstrapNodes []string

	inFlight atomic.Bool
	closed   atomic.Bool

	subsMu      sync.Mutex
	subscribers map[int]chan SyncState
	nextSubID   int

	loopMu     sync.Mutex
	loopCancel context.CancelFunc
	loopWg     sync.WaitGroup
}

// Option configures a NetworkManager.
type Option func(*NetworkManager)

// WithDiscoverer replaces the HTTP directory client.
func WithDiscoverer(d PeerDiscoverer) Option {
	return func(m *NetworkManager) {
		m.discoverer = d
	}
}

// WithStatusSource replaces the HTTP status source.
func WithStatusSource(s StatusSource) Option {
	return func(m *NetworkManager) {
		m.source = s
	}
}

// WithPeerStatsTracker shares a tracker between managers, for example across
// sessions in the same process. The caller owns it and stops it.
func WithPeerStatsTracker(t *PeerStatsTracker) Option {
	return func(m *NetworkManager) {
		m.stats = t
	}
}

// NewNetworkManager creates the manager for a new session. Nothing touches the
// network until Bootstrap is called.
func NewNetworkManager(logger ulogger.Logger, tSettings *settings.Settings, opts ...Option) *NetworkManager {
	initPrometheusMetrics()

	if tSettings == nil {
		tSettings = settings.NewSettings()
	}

	ns := tSettings.NetSync

	m := &NetworkManager{
		logger:      logger,
		settings:    tSettings,
		sessionID:   uuid.New().String(),
		registry:    NewPeerRegistry(),
		subscribers: make(map[int]chan SyncState),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.discoverer == nil {
		m.discoverer = NewDiscoveryClient(logger, ns.APIEndpoint, ns.DiscoveryTimeout)
	}

	if m.source == nil {
		m.source = NewHTTPStatusSource(logger, ns.StatusPort, ns.StatusTimeout, ns.ExpectedNetwork)
	}

	if m.stats == nil {
		m.stats = NewPeerStatsTracker(ns.PeerStatsTTL)
		m.ownsStats = true
	}

	manualInterval := ns.ManualRefreshInterval
	if manualInterval <= 0 {
		manualInterval = 2 * time.Second
	}

	m.limiter = rate.NewLimiter(rate.Every(manualInterval), 1)
	m.fetcher = NewChainStatusFetcher(logger, m.source, m.stats)
	m.fsm = NewFiniteStateMachine(logger)
	m.state = SyncState{
		ConnectedPeers: []Peer{},
		State:          m.fsm.Current(),
		SessionID:      m.sessionID,
		LastUpdated:    time.Now(),
	}

	return m
}

// SessionID identifies the session this manager belongs to.
func (m *NetworkManager) SessionID() string {
	return m.sessionID
}

// State returns the current lifecycle state.
func (m *NetworkManager) State() string {
	return m.fsm.Current()
}

// Bootstrap discovers peers, falls back to bootstrapNodes when discovery
// fails, and fetches the chain status from the resulting registry.
//
// The outcome is reported through the state, not the error: a fetch failure
// ends in Disconnected with heights reset to 0 and returns nil.
func (m *NetworkManager) Bootstrap(ctx context.Context, bootstrapNodes []string) error {
	if m.closed.Load() {
		return errors.NewSessionClosedError("[NetworkManager] session %s is closed", m.sessionID)
	}

	if !m.inFlight.CompareAndSwap(false, true) {
		return errors.NewSyncInProgressError("[NetworkManager] bootstrap rejected, another sync is running")
	}
	defer m.inFlight.Store(false)

	nodes := make([]string, len(bootstrapNodes))
	copy(nodes, bootstrapNodes)

	if !m.commit(EventBootstrap, func(s *SyncState) {
		s.IsSyncing = true
		s.LastError = ""
	}) {
		return errors.NewSessionClosedError("[NetworkManager] session %s is closed", m.sessionID)
	}

	m.mu.Lock()
	m.bootstrapNodes = nodes
	m.mu.Unlock()

	m.logger.Infof("[NetworkManager] bootstrapping session %s", m.sessionID)

	peers := m.selectPeers(ctx, nodes)

	status, err := m.fetcher.FetchChainStatus(ctx, peers)
	if err != nil {
		prometheusNetSyncBootstrap.WithLabelValues("disconnected").Inc()
		m.logger.Warnf("[NetworkManager] bootstrap could not reach any of %d peers: %v", len(peers), err)

		if !m.commit(EventDisconnect, func(s *SyncState) {
			m.registry.Replace(peers)
			s.ConnectedPeers = peers
			s.IsSyncing = false
			s.CurrentBlockHeight = 0
			s.NetworkBlockHeight = 0
			s.LastError = err.Error()
		}) {
			return errors.NewSessionClosedError("[NetworkManager] session %s closed during bootstrap", m.sessionID)
		}

		return nil
	}

	if !m.commit(EventSynced, func(s *SyncState) {
		m.registry.Replace(peers)
		s.ConnectedPeers = peers
		s.IsSyncing = false
		s.SyncProgress = 1.0
		s.CurrentBlockHeight = status.Height
		s.NetworkBlockHeight = status.Height
		s.LastError = ""
	}) {
		return errors.NewSessionClosedError("[NetworkManager] session %s closed during bootstrap", m.sessionID)
	}

	prometheusNetSyncBootstrap.WithLabelValues("synced").Inc()
	m.logger.Infof("[NetworkManager] synced at height %d with %d peers", status.Height, len(peers))

	return nil
}

// selectPeers returns the discovered peers, or the bootstrap nodes when
// discovery fails. The two sources are never merged. The registry is left
// alone; Bootstrap swaps the result in together with the rest of the state.
func (m *NetworkManager) selectPeers(ctx context.Context, nodes []string) []Peer {
	discovered, err := m.discoverer.DiscoverPeers(ctx)
	if err == nil {
		if len(discovered) == 0 {
			m.logger.Warnf("[NetworkManager] directory returned no peers")
		}

		prometheusNetSyncPeerSource.WithLabelValues("discovery").Inc()
		m.logger.Infof("[NetworkManager] discovered %d peers", len(discovered))

		peers := make([]Peer, len(discovered))
		copy(peers, discovered)

		return peers
	}

	fallback, rejected := ParseBootstrapNodes(nodes)
	for _, node := range rejected {
		m.logger.Warnf("[NetworkManager] ignoring malformed bootstrap node %q", node)
	}

	m.logger.Warnf("[NetworkManager] discovery failed, using %d bootstrap nodes: %v", len(fallback), err)
	prometheusNetSyncPeerSource.WithLabelValues("fallback").Inc()

	if fallback == nil {
		fallback = []Peer{}
	}

	return fallback
}

// Refresh fetches the chain status again from the current registry. It is
// only valid after a bootstrap has completed. On failure the previous state is
// kept, apart from LastError.
func (m *NetworkManager) Refresh(ctx context.Context) error {
	if m.closed.Load() {
		return errors.NewSessionClosedError("[NetworkManager] session %s is closed", m.sessionID)
	}

	if !m.inFlight.CompareAndSwap(false, true) {
		return errors.NewSyncInProgressError("[NetworkManager] refresh rejected, another sync is running")
	}
	defer m.inFlight.Store(false)

	if current := m.fsm.Current(); current != StateSynced && current != StateDisconnected {
		return errors.NewInvalidStateError("[NetworkManager] cannot refresh in state %s", current)
	}

	status, err := m.fetcher.FetchChainStatus(ctx, m.registry.Peers())
	if err != nil {
		prometheusNetSyncRefresh.WithLabelValues("failed").Inc()

		m.commit("", func(s *SyncState) {
			s.LastError = err.Error()
		})

		return errors.NewSyncRefreshFailedError("[NetworkManager] refresh failed", err)
	}

	if !m.commit(EventSynced, func(s *SyncState) {
		s.IsSyncing = false
		s.SyncProgress = 1.0
		s.CurrentBlockHeight = status.Height
		s.NetworkBlockHeight = status.Height
		s.LastError = ""
	}) {
		return errors.NewSessionClosedError("[NetworkManager] session %s closed during refresh", m.sessionID)
	}

	prometheusNetSyncRefresh.WithLabelValues("ok").Inc()
	m.logger.Debugf("[NetworkManager] refreshed, height %d", status.Height)

	return nil
}

// RefreshNow is Refresh for user-triggered requests, throttled by
// netsync_manualRefreshInterval. Calls Refresh would reject anyway are
// rejected before they can use up the allowance.
func (m *NetworkManager) RefreshNow(ctx context.Context) error {
	if err := m.checkRefreshable(); err != nil {
		return err
	}

	if !m.limiter.Allow() {
		return errors.NewThresholdExceededError("[NetworkManager] manual refresh throttled")
	}

	return m.Refresh(ctx)
}

func (m *NetworkManager) checkRefreshable() error {
	if m.closed.Load() {
		return errors.NewSessionClosedError("[NetworkManager] session %s is closed", m.sessionID)
	}

	if m.inFlight.Load() {
		return errors.NewSyncInProgressError("[NetworkManager] refresh rejected, another sync is running")
	}

	if current := m.fsm.Current(); current != StateSynced && current != StateDisconnected {
		return errors.NewInvalidStateError("[NetworkManager] cannot refresh in state %s", current)
	}

	return nil
}

// IsSynced evaluates the synced predicate on one snapshot.
func (m *NetworkManager) IsSynced() bool {
	return m.Snapshot().IsSynced()
}

// Snapshot returns a copy of the whole state taken under the lock.
func (m *NetworkManager) Snapshot() SyncState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.state.clone()
}

// Peers returns the registry contents.
func (m *NetworkManager) Peers() []Peer {
	// the registry is only replaced inside commit, so holding the state lock
	// keeps it in step with Snapshot().ConnectedPeers
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.registry.Peers()
}

// PeerStats returns per-peer request statistics ordered by address.
func (m *NetworkManager) PeerStats() []PeerStats {
	return m.stats.All()
}

// Subscribe returns a channel that receives a snapshot after every state
// change. A subscriber that falls behind only sees the latest snapshot.
func (m *NetworkManager) Subscribe() (<-chan SyncState, func()) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	ch := make(chan SyncState, 1)

	if m.closed.Load() {
		close(ch)
		return ch, func() {}
	}

	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = ch

	var once sync.Once

	return ch, func() {
		once.Do(func() {
			m.subsMu.Lock()
			defer m.subsMu.Unlock()

			if sub, ok := m.subscribers[id]; ok {
				delete(m.subscribers, id)
				close(sub)
			}
		})
	}
}

// Close ends the session. Work still in flight finishes but its results are
// dropped, and subscriber channels are closed.
func (m *NetworkManager) Close() {
	m.mu.Lock()
	alreadyClosed := m.closed.Swap(true)
	m.mu.Unlock()

	if alreadyClosed {
		return
	}

	m.Stop()

	if m.ownsStats {
		m.stats.Stop()
	}

	m.subsMu.Lock()
	for id, ch := range m.subscribers {
		delete(m.subscribers, id)
		close(ch)
	}
	m.subsMu.Unlock()

	m.logger.Infof("[NetworkManager] session %s closed", m.sessionID)
}

// commit applies mutate to a copy of the current state, fires event on the
// state machine when the transition is valid and swaps the result in. It
// returns false once the session is closed.
func (m *NetworkManager) commit(event string, mutate func(*SyncState)) bool {
	m.mu.Lock()

	if m.closed.Load() {
		m.mu.Unlock()
		m.logger.Debugf("[NetworkManager] session %s closed, dropping state update", m.sessionID)

		return false
	}

	if event != "" && m.fsm.Can(event) {
		if err := m.fsm.Event(context.Background(), event); err != nil {
			m.logger.Warnf("[NetworkManager] state transition %s failed: %v", event, err)
		}
	}

	next := m.state.clone()
	mutate(&next)
	next.State = m.fsm.Current()
	next.SessionID = m.sessionID
	next.LastUpdated = time.Now()

	m.state = next
	snapshot := next.clone()

	m.mu.Unlock()

	prometheusNetSyncRegistrySize.Set(float64(m.registry.PeerCount()))
	prometheusNetSyncHeight.Set(float64(snapshot.NetworkBlockHeight))
	prometheusNetSyncSynced.Set(boolGauge(snapshot.IsSynced()))

	m.publish(snapshot)

	return true
}

func (m *NetworkManager) publish(snapshot SyncState) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	for _, ch := range m.subscribers {
		select {
		case ch <- snapshot.clone():
		default:
			// replace the stale snapshot the subscriber has not read yet
			select {
			case <-ch:
			default:
			}

			select {
			case ch <- snapshot.clone():
			default:
			}
		}
	}
}

func (m *NetworkManager) lastBootstrapNodes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	nodes := make([]string, len(m.bootstrapNodes))
	copy(nodes, m.bootstrapNodes)

	return nodes
}
