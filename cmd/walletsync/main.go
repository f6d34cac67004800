// Package main is the walletsync command line tool. It discovers peers, reports
// the chain status seen by the network and can keep a session synchronized
// while serving the debug API.
//
// Usage:
//
//	walletsync [--network testnet] [--api URL] [--bootstrap host:port]... peers
//	walletsync status
//	walletsync watch --listen :8090
package main

import (
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := newApp()

	if err := app.Run(os.Args); err != nil {
		_, _ = app.ErrWriter.Write([]byte(err.Error() + "\n"))
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "walletsync",
		Usage:     "Keep a wallet session in sync with the TIME Coin network",
		ErrWriter: os.Stderr,
		Writer:    os.Stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "network",
				Usage: "network to join (testnet or mainnet)",
			},
			&cli.StringFlag{
				Name:  "api",
				Usage: "peer discovery endpoint",
			},
			&cli.StringSliceFlag{
				Name:  "bootstrap",
				Usage: "fallback peer address, host:port (repeatable)",
			},
			&cli.IntFlag{
				Name:  "status-port",
				Usage: "port peers serve /blockchain/info on",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "DEBUG, INFO, WARN or ERROR",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "peers",
				Usage:  "Discover peers and print them",
				Action: peersCmd,
			},
			{
				Name:   "status",
				Usage:  "Bootstrap once and print the sync state, exit status 1 when not synced",
				Action: statusCmd,
			},
			{
				Name:   "watch",
				Usage:  "Stay synchronized and serve the debug API until interrupted",
				Action: watchCmd,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Usage: "debug API listen address, empty to disable",
						Value: "-",
					},
				},
			},
		},
	}
}
