package settings

import "time"

type Settings struct {
	ClientName string
	LogLevel   string
	LoggerType string
	NetSync    NetSyncSettings
}

type NetSyncSettings struct {
	// Network is "testnet" or "mainnet" and selects the port defaults.
	Network string
	// APIEndpoint is the peer directory base URL; peers are read from {APIEndpoint}/peers.
	APIEndpoint string
	// BootstrapNodes is the static "host:port" fallback used when discovery fails.
	BootstrapNodes []string
	// StatusPort is where every peer serves /blockchain/info, regardless of its P2P port.
	StatusPort       int
	DiscoveryTimeout time.Duration
	// StatusTimeout bounds a single peer's status request.
	StatusTimeout time.Duration
	// ExpectedNetwork, when set, rejects status responses reporting another network.
	ExpectedNetwork       string
	RefreshInterval       time.Duration
	InitialBackoff        time.Duration
	MaxBackoff            time.Duration
	ManualRefreshInterval time.Duration
	PeerStatsTTL          time.Duration
	DebugListenAddress    string
}
