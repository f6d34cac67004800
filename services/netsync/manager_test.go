package netsync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/timecoin/walletsync/errors"
	"github.com/timecoin/walletsync/ulogger"
	"go.uber.org/atomic"
)

var fallbackNodes = []string{
	"161.35.129.70:24100",
	"178.128.199.144:24100",
	"165.232.154.150:24100",
}

func failingDiscovery() discoverFunc {
	return func(context.Context) ([]Peer, error) {
		return nil, errors.NewDiscoveryFailedError("directory down")
	}
}

func TestNetworkManager_InitialState(t *testing.T) {
	m := newTestManager(t, staticPeers(), &MockStatusSource{})

	snapshot := m.Snapshot()
	assert.Equal(t, StateIdle, snapshot.State)
	assert.Equal(t, StateIdle, m.State())
	assert.False(t, snapshot.IsSyncing)
	assert.Zero(t, snapshot.CurrentBlockHeight)
	assert.Zero(t, snapshot.SyncProgress)
	assert.Empty(t, snapshot.ConnectedPeers)
	assert.False(t, m.IsSynced())
	assert.NotEmpty(t, m.SessionID())
	assert.Equal(t, m.SessionID(), snapshot.SessionID)

	other := newTestManager(t, staticPeers(), &MockStatusSource{})
	assert.NotEqual(t, m.SessionID(), other.SessionID(), "Each session should get its own id")
}

func TestNetworkManager_BootstrapFirstResponderWins(t *testing.T) {
	source := &MockStatusSource{}
	source.On("FetchStatus", mock.Anything, peerA).Return(nil, errors.NewPeerTimeoutError("a timed out"))
	source.On("FetchStatus", mock.Anything, peerB).Return(&ChainStatus{Height: 1000}, nil)

	m := newTestManager(t, staticPeers(peerA, peerB, peerC), source)

	require.NoError(t, m.Bootstrap(context.Background(), fallbackNodes))

	snapshot := m.Snapshot()
	assert.Equal(t, uint64(1000), snapshot.CurrentBlockHeight)
	assert.Equal(t, uint64(1000), snapshot.NetworkBlockHeight)
	assert.Equal(t, 1.0, snapshot.SyncProgress)
	assert.False(t, snapshot.IsSyncing)
	assert.Equal(t, StateSynced, snapshot.State)
	assert.Empty(t, snapshot.LastError)
	assert.Equal(t, []Peer{peerA, peerB, peerC}, snapshot.ConnectedPeers)
	assert.True(t, m.IsSynced())

	source.AssertNotCalled(t, "FetchStatus", mock.Anything, peerC)
	assert.Equal(t, []Peer{peerA, peerB, peerC}, m.Peers(), "Registry should hold the discovered peers, not the fallback")

	stats := m.PeerStats()
	require.Len(t, stats, 2)
	assert.Equal(t, int64(1), stats[0].Failures)
	assert.Equal(t, int64(1), stats[1].Successes)
}

func TestNetworkManager_DiscoveryAndFetchFail(t *testing.T) {
	var contacted []Peer

	var mu sync.Mutex

	source := statusFunc(func(_ context.Context, peer Peer) (*ChainStatus, error) {
		mu.Lock()
		defer mu.Unlock()

		contacted = append(contacted, peer)

		return nil, errors.NewPeerUnreachableError("%s refused", peer)
	})

	m := newTestManager(t, failingDiscovery(), source)

	require.NoError(t, m.Bootstrap(context.Background(), fallbackNodes), "A failed fetch degrades, it is not returned")

	expected := []Peer{
		{Address: "161.35.129.70:24100"},
		{Address: "178.128.199.144:24100"},
		{Address: "165.232.154.150:24100"},
	}

	assert.Equal(t, expected, m.Peers(), "Registry should be the fallback list in input order")
	assert.Equal(t, expected, contacted, "Fallback peers should be tried in order")

	snapshot := m.Snapshot()
	assert.Equal(t, StateDisconnected, snapshot.State)
	assert.False(t, snapshot.IsSyncing)
	assert.Zero(t, snapshot.CurrentBlockHeight)
	assert.Zero(t, snapshot.NetworkBlockHeight)
	assert.Contains(t, snapshot.LastError, "NO_PEERS_RESPONDED")
	assert.False(t, m.IsSynced())
}

func TestNetworkManager_EmptyDiscoveryAndEmptyFallback(t *testing.T) {
	source := &MockStatusSource{}
	m := newTestManager(t, failingDiscovery(), source)

	require.NoError(t, m.Bootstrap(context.Background(), nil))

	snapshot := m.Snapshot()
	assert.Zero(t, snapshot.CurrentBlockHeight)
	assert.False(t, m.IsSynced())
	assert.Equal(t, StateDisconnected, snapshot.State)
	assert.Contains(t, snapshot.LastError, "NO_PEERS_AVAILABLE")
	source.AssertNotCalled(t, "FetchStatus", mock.Anything, mock.Anything)
}

func TestNetworkManager_EmptyDiscoveryDoesNotFallBack(t *testing.T) {
	source := &MockStatusSource{}
	m := newTestManager(t, staticPeers(), source)

	require.NoError(t, m.Bootstrap(context.Background(), fallbackNodes))

	assert.Empty(t, m.Peers(), "A successful empty discovery replaces the registry and skips the fallback")
	assert.Equal(t, StateDisconnected, m.State())
	source.AssertNotCalled(t, "FetchStatus", mock.Anything, mock.Anything)
}

func TestNetworkManager_MalformedFallbackNodesSkipped(t *testing.T) {
	source := &MockStatusSource{}
	source.On("FetchStatus", mock.Anything, Peer{Address: "10.0.0.9:24100"}).Return(&ChainStatus{Height: 5}, nil)

	m := newTestManager(t, failingDiscovery(), source)

	require.NoError(t, m.Bootstrap(context.Background(), []string{"garbage", "10.0.0.9:24100"}))

	assert.Equal(t, []Peer{{Address: "10.0.0.9:24100"}}, m.Peers())
	assert.True(t, m.IsSynced())
}

func TestNetworkManager_RefreshBeforeBootstrap(t *testing.T) {
	m := newTestManager(t, staticPeers(peerA), &MockStatusSource{})

	err := m.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))
	assert.Equal(t, StateIdle, m.State())
}

func TestNetworkManager_RefreshUpdatesHeight(t *testing.T) {
	height := atomic.NewUint64(100)

	source := statusFunc(func(context.Context, Peer) (*ChainStatus, error) {
		return &ChainStatus{Height: height.Load()}, nil
	})

	m := newTestManager(t, staticPeers(peerA), source)
	require.NoError(t, m.Bootstrap(context.Background(), nil))
	require.Equal(t, uint64(100), m.Snapshot().CurrentBlockHeight)

	height.Store(101)
	require.NoError(t, m.Refresh(context.Background()))

	snapshot := m.Snapshot()
	assert.Equal(t, uint64(101), snapshot.CurrentBlockHeight)
	assert.Equal(t, uint64(101), snapshot.NetworkBlockHeight)
	assert.Equal(t, StateSynced, snapshot.State)
}

func TestNetworkManager_RefreshFailureKeepsState(t *testing.T) {
	fail := atomic.NewBool(false)

	source := statusFunc(func(context.Context, Peer) (*ChainStatus, error) {
		if fail.Load() {
			return nil, errors.NewPeerTimeoutError("slow")
		}

		return &ChainStatus{Height: 500}, nil
	})

	m := newTestManager(t, staticPeers(peerA), source)
	require.NoError(t, m.Bootstrap(context.Background(), nil))

	fail.Store(true)

	err := m.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSyncRefreshFailed))
	assert.True(t, errors.Is(err, errors.ErrNoPeersResponded))

	snapshot := m.Snapshot()
	assert.Equal(t, uint64(500), snapshot.CurrentBlockHeight, "A failed refresh should not regress the height")
	assert.Equal(t, 1.0, snapshot.SyncProgress)
	assert.Equal(t, StateSynced, snapshot.State)
	assert.NotEmpty(t, snapshot.LastError)
	assert.True(t, m.IsSynced())
}

func TestNetworkManager_RefreshRecoversDisconnected(t *testing.T) {
	fail := atomic.NewBool(true)

	source := statusFunc(func(context.Context, Peer) (*ChainStatus, error) {
		if fail.Load() {
			return nil, errors.NewPeerUnreachableError("down")
		}

		return &ChainStatus{Height: 42}, nil
	})

	m := newTestManager(t, staticPeers(peerA), source)
	require.NoError(t, m.Bootstrap(context.Background(), nil))
	require.Equal(t, StateDisconnected, m.State())

	fail.Store(false)
	require.NoError(t, m.Refresh(context.Background()))

	assert.Equal(t, StateSynced, m.State())
	assert.True(t, m.IsSynced())
	assert.Equal(t, uint64(42), m.Snapshot().CurrentBlockHeight)
}

func TestNetworkManager_RebootstrapFromSynced(t *testing.T) {
	source := statusFunc(func(context.Context, Peer) (*ChainStatus, error) {
		return &ChainStatus{Height: 9}, nil
	})

	m := newTestManager(t, staticPeers(peerA), source)
	require.NoError(t, m.Bootstrap(context.Background(), nil))
	require.NoError(t, m.Bootstrap(context.Background(), nil))

	assert.Equal(t, StateSynced, m.State())
}

func TestNetworkManager_OverlappingCallsRejected(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	source := statusFunc(func(context.Context, Peer) (*ChainStatus, error) {
		close(entered)
		<-release

		return &ChainStatus{Height: 77}, nil
	})

	m := newTestManager(t, staticPeers(peerA), source)

	done := make(chan error, 1)

	go func() {
		done <- m.Bootstrap(context.Background(), nil)
	}()

	<-entered

	// readers see the in-flight bootstrap without blocking on it
	snapshot := m.Snapshot()
	assert.True(t, snapshot.IsSyncing)
	assert.Equal(t, StateBootstrapping, snapshot.State)
	assert.False(t, m.IsSynced())

	err := m.Bootstrap(context.Background(), nil)
	assert.True(t, errors.Is(err, errors.ErrSyncInProgress))

	err = m.Refresh(context.Background())
	assert.True(t, errors.Is(err, errors.ErrSyncInProgress))

	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, uint64(77), m.Snapshot().CurrentBlockHeight)
}

func TestNetworkManager_SnapshotsNeverTorn(t *testing.T) {
	var n atomic.Uint64

	source := statusFunc(func(context.Context, Peer) (*ChainStatus, error) {
		return &ChainStatus{Height: n.Add(1)}, nil
	})

	m := newTestManager(t, staticPeers(peerA, peerB), source)
	require.NoError(t, m.Bootstrap(context.Background(), nil))

	stop := make(chan struct{})

	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for {
				select {
				case <-stop:
					return
				default:
				}

				s := m.Snapshot()
				if s.CurrentBlockHeight != s.NetworkBlockHeight {
					t.Errorf("torn snapshot: current %d network %d", s.CurrentBlockHeight, s.NetworkBlockHeight)
					return
				}

				if s.IsSynced() && s.CurrentBlockHeight == 0 {
					t.Errorf("synced with zero height")
					return
				}

				if len(s.ConnectedPeers) != 2 {
					t.Errorf("expected 2 connected peers, got %d", len(s.ConnectedPeers))
					return
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		require.NoError(t, m.Refresh(context.Background()))
	}

	close(stop)
	wg.Wait()

	assert.Equal(t, uint64(201), m.Snapshot().CurrentBlockHeight)
}

func TestNetworkManager_Subscribe(t *testing.T) {
	source := statusFunc(func(context.Context, Peer) (*ChainStatus, error) {
		return &ChainStatus{Height: 12}, nil
	})

	m := newTestManager(t, staticPeers(peerA), source)

	updates, unsubscribe := m.Subscribe()

	require.NoError(t, m.Bootstrap(context.Background(), nil))

	var last SyncState

	require.Eventually(t, func() bool {
		select {
		case s := <-updates:
			last = s
		default:
		}

		return last.State == StateSynced
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, uint64(12), last.CurrentBlockHeight)

	unsubscribe()
	unsubscribe()

	_, open := <-updates
	assert.False(t, open, "Unsubscribe should close the channel")
}

func TestNetworkManager_CloseDiscardsInFlightResult(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	source := statusFunc(func(context.Context, Peer) (*ChainStatus, error) {
		close(entered)
		<-release

		return &ChainStatus{Height: 999}, nil
	})

	m := newTestManager(t, staticPeers(peerA), source)
	updates, _ := m.Subscribe()

	done := make(chan error, 1)

	go func() {
		done <- m.Bootstrap(context.Background(), nil)
	}()

	<-entered
	m.Close()
	close(release)

	err := <-done
	assert.True(t, errors.Is(err, errors.ErrSessionClosed))
	assert.Zero(t, m.Snapshot().CurrentBlockHeight, "Results arriving after Close should be dropped")
	assert.False(t, m.IsSynced())

	for range updates {
		// drain until Close closes the channel
	}

	err = m.Bootstrap(context.Background(), nil)
	assert.True(t, errors.Is(err, errors.ErrSessionClosed))

	err = m.Refresh(context.Background())
	assert.True(t, errors.Is(err, errors.ErrSessionClosed))

	closedUpdates, _ := m.Subscribe()
	_, open := <-closedUpdates
	assert.False(t, open)
}

func TestNetworkManager_RefreshNowThrottled(t *testing.T) {
	source := statusFunc(func(context.Context, Peer) (*ChainStatus, error) {
		return &ChainStatus{Height: 1}, nil
	})

	m := newTestManager(t, staticPeers(peerA), source)
	require.NoError(t, m.Bootstrap(context.Background(), nil))

	require.NoError(t, m.RefreshNow(context.Background()))

	err := m.RefreshNow(context.Background())
	assert.True(t, errors.Is(err, errors.ErrThresholdExceeded))
}

func TestNetworkManager_PeersMatchSnapshotDuringBootstrap(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	var once sync.Once

	source := statusFunc(func(context.Context, Peer) (*ChainStatus, error) {
		once.Do(func() { close(entered) })
		<-release

		return &ChainStatus{Height: 50}, nil
	})

	m := newTestManager(t, staticPeers(peerA, peerB), source)

	done := make(chan error, 1)

	go func() {
		done <- m.Bootstrap(context.Background(), nil)
	}()

	<-entered

	assert.Equal(t, m.Snapshot().ConnectedPeers, m.Peers(), "The registry should not change before the state swap")
	assert.Empty(t, m.Peers())

	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, []Peer{peerA, peerB}, m.Peers())
	assert.Equal(t, m.Snapshot().ConnectedPeers, m.Peers())
}

func TestNetworkManager_CloseDuringDiscoveryKeepsRegistry(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	discoverer := discoverFunc(func(context.Context) ([]Peer, error) {
		close(entered)
		<-release

		return []Peer{peerC}, nil
	})

	source := statusFunc(func(context.Context, Peer) (*ChainStatus, error) {
		return &ChainStatus{Height: 7}, nil
	})

	m := newTestManager(t, discoverer, source)

	done := make(chan error, 1)

	go func() {
		done <- m.Bootstrap(context.Background(), nil)
	}()

	<-entered
	m.Close()
	close(release)

	err := <-done
	assert.True(t, errors.Is(err, errors.ErrSessionClosed))
	assert.Empty(t, m.Peers(), "A closed session's registry should not take late results")
	assert.Empty(t, m.Snapshot().ConnectedPeers)
}

func TestNetworkManager_RejectedRefreshNowKeepsAllowance(t *testing.T) {
	source := statusFunc(func(context.Context, Peer) (*ChainStatus, error) {
		return &ChainStatus{Height: 3}, nil
	})

	m := newTestManager(t, staticPeers(peerA), source)

	for i := 0; i < 2; i++ {
		err := m.RefreshNow(context.Background())
		assert.True(t, errors.Is(err, errors.ErrInvalidState), "got %v", err)
	}

	require.NoError(t, m.Bootstrap(context.Background(), nil))
	require.NoError(t, m.RefreshNow(context.Background()), "Rejected calls should not use up the manual refresh allowance")

	err := m.RefreshNow(context.Background())
	assert.True(t, errors.Is(err, errors.ErrThresholdExceeded))
}

func TestNetworkManager_CloseStopsOnlyOwnTracker(t *testing.T) {
	shared := NewPeerStatsTracker(time.Minute)
	defer shared.Stop()

	withShared := NewNetworkManager(ulogger.NewVerboseTestLogger(t), testSettings(),
		WithDiscoverer(staticPeers(peerA)),
		WithStatusSource(&MockStatusSource{}),
		WithPeerStatsTracker(shared),
	)
	withShared.Close()

	assert.False(t, shared.stopped.Load(), "A shared tracker should outlive the session")

	owned := NewNetworkManager(ulogger.NewVerboseTestLogger(t), testSettings(),
		WithDiscoverer(staticPeers(peerA)),
		WithStatusSource(&MockStatusSource{}),
	)
	owned.Close()

	assert.True(t, owned.stats.stopped.Load())
}
