package netsync

import (
	"context"
	"testing"
	"time"

	"github.com/timecoin/walletsync/settings"
	"github.com/timecoin/walletsync/ulogger"
)

type statusFunc func(ctx context.Context, peer Peer) (*ChainStatus, error)

func (f statusFunc) FetchStatus(ctx context.Context, peer Peer) (*ChainStatus, error) {
	return f(ctx, peer)
}

type discoverFunc func(ctx context.Context) ([]Peer, error)

func (f discoverFunc) DiscoverPeers(ctx context.Context) ([]Peer, error) {
	return f(ctx)
}

func testSettings() *settings.Settings {
	return &settings.Settings{
		NetSync: settings.NetSyncSettings{
			Network:               settings.NetworkTestnet,
			StatusPort:            24101,
			DiscoveryTimeout:      time.Second,
			StatusTimeout:         time.Second,
			RefreshInterval:       20 * time.Millisecond,
			InitialBackoff:        10 * time.Millisecond,
			MaxBackoff:            40 * time.Millisecond,
			ManualRefreshInterval: time.Hour,
			PeerStatsTTL:          time.Minute,
		},
	}
}

func newTestManager(t *testing.T, discoverer PeerDiscoverer, source StatusSource) *NetworkManager {
	t.Helper()

	m := NewNetworkManager(ulogger.NewVerboseTestLogger(t), testSettings(),
		WithDiscoverer(discoverer),
		WithStatusSource(source),
	)
	t.Cleanup(m.Close)

	return m
}

func staticPeers(peers ...Peer) discoverFunc {
	return func(context.Context) ([]Peer, error) {
		return peers, nil
	}
}
