package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/timecoin/walletsync/errors"
	"github.com/timecoin/walletsync/services/netsync"
	"github.com/timecoin/walletsync/services/netsync/httpapi"
	"github.com/timecoin/walletsync/settings"
	"github.com/timecoin/walletsync/ulogger"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

// loadSettings reads settings.conf and applies the global flags on top.
func loadSettings(c *cli.Context) *settings.Settings {
	tSettings := settings.NewSettings()
	ns := &tSettings.NetSync

	if c.IsSet("network") {
		tSettings.SetNetwork(c.String("network"))
	}

	if c.IsSet("api") {
		ns.APIEndpoint = strings.TrimRight(c.String("api"), "/")
	}

	if c.IsSet("bootstrap") {
		ns.BootstrapNodes = c.StringSlice("bootstrap")
	}

	if c.IsSet("status-port") {
		ns.StatusPort = c.Int("status-port")
	}

	if c.IsSet("log-level") {
		tSettings.LogLevel = c.String("log-level")
	}

	return tSettings
}

func newLogger(c *cli.Context, tSettings *settings.Settings) ulogger.Logger {
	return ulogger.New(tSettings.ClientName,
		ulogger.WithLevel(tSettings.LogLevel),
		ulogger.WithLoggerType(tSettings.LoggerType),
		ulogger.WithWriter(c.App.ErrWriter),
	)
}

func peersCmd(c *cli.Context) error {
	tSettings := loadSettings(c)
	logger := newLogger(c, tSettings)
	ns := tSettings.NetSync

	discovery := netsync.NewDiscoveryClient(logger, ns.APIEndpoint, ns.DiscoveryTimeout)

	peers, err := discovery.DiscoverPeers(c.Context)
	if err != nil {
		fmt.Fprintf(c.App.Writer, "discovery failed: %v\n", err)

		var rejected []string

		peers, rejected = netsync.ParseBootstrapNodes(ns.BootstrapNodes)
		for _, address := range rejected {
			fmt.Fprintf(c.App.Writer, "ignoring invalid bootstrap node %q\n", address)
		}

		fmt.Fprintf(c.App.Writer, "bootstrap peers (%d):\n", len(peers))
	} else {
		fmt.Fprintf(c.App.Writer, "discovered peers from %s (%d):\n", discovery.URL(), len(peers))
	}

	for _, peer := range peers {
		fmt.Fprintf(c.App.Writer, "  %s\n", peer)
	}

	return nil
}

func statusCmd(c *cli.Context) error {
	tSettings := loadSettings(c)
	logger := newLogger(c, tSettings)

	m := netsync.NewNetworkManager(logger, tSettings)
	defer m.Close()

	if err := m.Bootstrap(c.Context, tSettings.NetSync.BootstrapNodes); err != nil {
		return err
	}

	snapshot := m.Snapshot()

	fmt.Fprintln(c.App.Writer, netsync.FormatSyncStatus(snapshot))
	fmt.Fprintln(c.App.Writer, netsync.FormatPeerInfo(m.PeerStats()))

	if !snapshot.IsSynced() {
		return cli.Exit(fmt.Sprintf("not synced: %s", snapshot.LastError), 1)
	}

	return nil
}

func watchCmd(c *cli.Context) error {
	tSettings := loadSettings(c)
	logger := newLogger(c, tSettings)

	listen := c.String("listen")
	if listen == "-" {
		listen = tSettings.NetSync.DebugListenAddress
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := netsync.NewNetworkManager(logger, tSettings)
	defer m.Close()

	updates, unsubscribe := m.Subscribe()
	defer unsubscribe()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		printUpdates(gCtx, c, updates)
		return nil
	})

	if listen != "" {
		api := httpapi.New(logger.New("debugapi"), m)

		g.Go(func() error {
			return api.Start(gCtx, listen)
		})
	}

	g.Go(func() error {
		if err := m.Bootstrap(gCtx, tSettings.NetSync.BootstrapNodes); err != nil {
			return err
		}

		m.Start(gCtx)
		<-gCtx.Done()
		m.Stop()

		return nil
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, errors.ErrSessionClosed) && ctx.Err() == nil {
		return err
	}

	return nil
}

func printUpdates(ctx context.Context, c *cli.Context, updates <-chan netsync.SyncState) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-updates:
			if !ok {
				return
			}

			fmt.Fprintln(c.App.Writer, statusLine(s))
		}
	}
}

func statusLine(s netsync.SyncState) string {
	line := fmt.Sprintf("%s %-13s peers=%d height=%d synced=%t",
		s.LastUpdated.Format(time.RFC3339), s.State, len(s.ConnectedPeers), s.CurrentBlockHeight, s.IsSynced())

	if s.LastError != "" {
		line += " error=" + s.LastError
	}

	return line
}
