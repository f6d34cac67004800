package netsync

import (
	"fmt"
	"strings"
	"time"
)

// Peer health thresholds on success rate, in percent.
const (
	healthyPeerRate = 90.0
	warningPeerRate = 70.0
)

// FormatNetworkStatus renders a short human readable summary of the session.
func FormatNetworkStatus(s SyncState, stats []PeerStats, uptime time.Duration) string {
	var (
		active  int
		latency time.Duration
		sampled int
	)

	for _, ps := range stats {
		if ps.Successes > 0 && !ps.LastSuccess.Before(ps.LastFailure) {
			active++
		}

		if ps.AvgResponseTime > 0 {
			latency += ps.AvgResponseTime
			sampled++
		}
	}

	if sampled > 0 {
		latency /= time.Duration(sampled)
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "Network Status: %s\n", s.State)
	fmt.Fprintf(&sb, "- Peers: %d known (%d active)\n", len(s.ConnectedPeers), active)
	fmt.Fprintf(&sb, "- Sync: %.2f%% complete\n", s.SyncProgress*100)
	fmt.Fprintf(&sb, "- Height: %d / %d\n", s.CurrentBlockHeight, s.NetworkBlockHeight)
	fmt.Fprintf(&sb, "- Avg Latency: %d ms\n", latency.Milliseconds())
	fmt.Fprintf(&sb, "- Uptime: %d seconds", int64(uptime.Seconds()))

	if s.LastError != "" {
		fmt.Fprintf(&sb, "\n- Last Error: %s", s.LastError)
	}

	return sb.String()
}

// FormatSyncStatus renders the sync progress of the session.
func FormatSyncStatus(s SyncState) string {
	status := "Not Started"

	switch {
	case s.IsSynced():
		status = "Synced"
	case s.IsSyncing:
		status = "Syncing"
	case s.State == StateDisconnected:
		status = "Disconnected"
	}

	var behind uint64
	if s.NetworkBlockHeight > s.CurrentBlockHeight {
		behind = s.NetworkBlockHeight - s.CurrentBlockHeight
	}

	return fmt.Sprintf("Blockchain Sync Status: %s\n- Current Height: %d\n- Network Height: %d\n- Blocks Behind: %d\n- Progress: %.2f%%",
		status, s.CurrentBlockHeight, s.NetworkBlockHeight, behind, s.SyncProgress*100)
}

// FormatPeerInfo renders one block per tracked peer.
func FormatPeerInfo(stats []PeerStats) string {
	if len(stats) == 0 {
		return "No peers contacted"
	}

	var sb strings.Builder

	sb.WriteString("Peers:\n")

	for _, ps := range stats {
		rate := ps.SuccessRate() * 100

		health := "Poor"
		if rate > healthyPeerRate {
			health = "Healthy"
		} else if rate > warningPeerRate {
			health = "Warning"
		}

		fmt.Fprintf(&sb, "\n%s [%s]\n", ps.Address, health)
		fmt.Fprintf(&sb, "- Latency: %d ms\n", ps.LastLatency.Milliseconds())
		fmt.Fprintf(&sb, "- Success Rate: %.1f%%\n", rate)
		fmt.Fprintf(&sb, "- Height: %d\n", ps.LastHeight)
		fmt.Fprintf(&sb, "- Failures: %d\n", ps.Failures)

		if ps.LastError != "" {
			fmt.Fprintf(&sb, "- Last Error: %s\n", ps.LastError)
		}
	}

	return sb.String()
}
