package netsync

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockStatusSource is a testify mock of StatusSource.
//
//	source := &MockStatusSource{}
//	source.On("FetchStatus", mock.Anything, Peer{Address: "a:24100"}).Return(&ChainStatus{Height: 10}, nil)
type MockStatusSource struct {
	mock.Mock
}

func (m *MockStatusSource) FetchStatus(ctx context.Context, peer Peer) (*ChainStatus, error) {
	args := m.Called(ctx, peer)

	if status := args.Get(0); status != nil {
		return status.(*ChainStatus), args.Error(1)
	}

	return nil, args.Error(1)
}

// MockDiscoverer is a testify mock of PeerDiscoverer.
type MockDiscoverer struct {
	mock.Mock
}

func (m *MockDiscoverer) DiscoverPeers(ctx context.Context) ([]Peer, error) {
	args := m.Called(ctx)

	if peers := args.Get(0); peers != nil {
		return peers.([]Peer), args.Error(1)
	}

	return nil, args.Error(1)
}
