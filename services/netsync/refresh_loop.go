package netsync

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/timecoin/walletsync/errors"
)

// Start runs a background loop every netsync_refreshInterval. A Synced
// session gets a plain refresh: the status fetch only, no rediscovery.
// A Disconnected session gets a reconnect instead: a full Bootstrap with the
// last bootstrap nodes, so subscribers see it pass through Bootstrapping with
// IsSyncing set. Failed attempts back off exponentially. Calling Start twice
// is a no-op.
func (m *NetworkManager) Start(ctx context.Context) {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()

	if m.loopCancel != nil || m.closed.Load() {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.loopCancel = cancel

	m.loopWg.Add(1)

	go m.refreshLoop(loopCtx)
}

// Stop stops the refresh loop and waits for it to exit.
func (m *NetworkManager) Stop() {
	m.loopMu.Lock()
	cancel := m.loopCancel
	m.loopCancel = nil
	m.loopMu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	m.loopWg.Wait()
}

func (m *NetworkManager) refreshLoop(ctx context.Context) {
	defer m.loopWg.Done()

	ns := m.settings.NetSync

	interval := ns.RefreshInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 60 * time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0

	if ns.InitialBackoff > 0 {
		b.InitialInterval = ns.InitialBackoff
	}

	if ns.MaxBackoff > 0 {
		b.MaxInterval = ns.MaxBackoff
	}

	b.Reset()

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Infof("[NetworkManager] stopping refresh loop")
			return
		case <-timer.C:
		}

		next := interval

		err := m.refreshOnce(ctx)

		switch {
		case err == nil:
			b.Reset()
		case errors.Is(err, errors.ErrSessionClosed):
			return
		case errors.Is(err, errors.ErrSyncInProgress), errors.Is(err, errors.ErrInvalidState):
			m.logger.Debugf("[NetworkManager] skipping scheduled refresh: %v", err)
		case ctx.Err() != nil:
			return
		default:
			next = b.NextBackOff()
			m.logger.Warnf("[NetworkManager] scheduled refresh failed, retrying in %s: %v", next, err)
		}

		timer.Reset(next)
	}
}

// refreshOnce refreshes a connected session and re-bootstraps a disconnected
// one, so a session that lost every peer can discover new ones.
func (m *NetworkManager) refreshOnce(ctx context.Context) error {
	if m.fsm.Current() != StateDisconnected {
		return m.Refresh(ctx)
	}

	if err := m.Bootstrap(ctx, m.lastBootstrapNodes()); err != nil {
		return err
	}

	if snapshot := m.Snapshot(); !snapshot.IsSynced() {
		return errors.NewNoPeersRespondedError("[NetworkManager] reconnect failed: %s", snapshot.LastError)
	}

	return nil
}
