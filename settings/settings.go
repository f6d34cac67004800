package settings

import (
	"strings"
	"time"
)

const (
	NetworkTestnet = "testnet"
	NetworkMainnet = "mainnet"
)

// DefaultTestnetBootstrapNodes are the well-known testnet seeds.
var DefaultTestnetBootstrapNodes = []string{
	"161.35.129.70:24100",
	"178.128.199.144:24100",
	"165.232.154.150:24100",
}

// DefaultStatusPort returns the port peers of network serve
// /blockchain/info on. It sits one above the network's P2P port
// (24000 on mainnet, 24100 on testnet).
func DefaultStatusPort(network string) int {
	if strings.EqualFold(network, NetworkMainnet) {
		return 24001
	}

	return 24101
}

func defaultBootstrapNodes(network string) []string {
	if network == NetworkTestnet {
		return DefaultTestnetBootstrapNodes
	}

	return nil
}

func NewSettings() *Settings {
	network := strings.ToLower(getString("netsync_network", NetworkTestnet))

	return &Settings{
		ClientName: getString("clientName", "walletsync"),
		LogLevel:   getString("logLevel", "INFO"),
		LoggerType: getString("logger", "zerolog"),
		NetSync: NetSyncSettings{
			Network:               network,
			APIEndpoint:           strings.TrimRight(getString("netsync_apiEndpoint", "https://time-coin.io/api"), "/"),
			BootstrapNodes:        getMultiString("netsync_bootstrapNodes", "|", defaultBootstrapNodes(network)),
			StatusPort:            getInt("netsync_statusPort", DefaultStatusPort(network)),
			DiscoveryTimeout:      getDuration("netsync_discoveryTimeout", 10*time.Second),
			StatusTimeout:         getDuration("netsync_statusTimeout", 3*time.Second),
			ExpectedNetwork:       getString("netsync_expectedNetwork", ""),
			RefreshInterval:       getDuration("netsync_refreshInterval", 30*time.Second),
			InitialBackoff:        getDuration("netsync_initialBackoff", time.Second),
			MaxBackoff:            getDuration("netsync_maxBackoff", 60*time.Second),
			ManualRefreshInterval: getDuration("netsync_manualRefreshInterval", 2*time.Second),
			PeerStatsTTL:          getDuration("netsync_peerStatsTTL", 30*time.Minute),
			DebugListenAddress:    getString("netsync_debugListenAddress", ":8090"),
		},
	}
}

// SetNetwork switches to another network after loading. An explicitly
// configured netsync_statusPort is kept; otherwise the port follows the
// network. The configured bootstrap nodes belong to the loaded network, so a
// different network starts from its own defaults.
func (s *Settings) SetNetwork(network string) {
	ns := &s.NetSync
	network = strings.ToLower(network)

	if network != ns.Network {
		ns.BootstrapNodes = defaultBootstrapNodes(network)
	}

	ns.Network = network
	ns.StatusPort = getInt("netsync_statusPort", DefaultStatusPort(network))
}
