package netsync

import (
	"net"
	"strconv"

	"github.com/timecoin/walletsync/errors"
)

// ValidatePeerAddress checks that address is "host:port" with a non-empty host
// and a numeric port. It does not resolve or dial anything.
func ValidatePeerAddress(address string) error {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return errors.NewInvalidArgumentError("peer address %q is not host:port", address, err)
	}

	if host == "" {
		return errors.NewInvalidArgumentError("peer address %q has an empty host", address)
	}

	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return errors.NewInvalidArgumentError("peer address %q has an invalid port", address)
	}

	return nil
}

// ParseBootstrapNodes turns the static fallback list into peers, in input order.
// Malformed entries are returned separately so the caller can log them.
func ParseBootstrapNodes(nodes []string) (peers []Peer, rejected []string) {
	peers = make([]Peer, 0, len(nodes))

	for _, node := range nodes {
		if err := ValidatePeerAddress(node); err != nil {
			rejected = append(rejected, node)
			continue
		}

		peers = append(peers, Peer{Address: node})
	}

	return peers, rejected
}
