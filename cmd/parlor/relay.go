package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/parlorgames/parlor/internal/config"
	"github.com/parlorgames/parlor/internal/relay"
)

var flagRelayListen string

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the relay daemon for server mode",
	Long: `Run the websocket relay that hosts rooms for server-mode clients.

The relay keeps the authoritative roster and game state per room and
hands out short join codes. Clients point at it with the relay.url
config key or the lobby defaults.

Examples:
  parlor relay
  parlor relay --listen :9000`,
	Run: runRelay,
}

func init() {
	relayCmd.Flags().StringVar(&flagRelayListen, "listen", "", "Listen address (host:port)")
}

func runRelay(_ *cobra.Command, _ []string) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	addr := cfg.Relay.ListenAddr
	if flagRelayListen != "" {
		addr = flagRelayListen
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "relay"})
	server := relay.NewServer(logger)

	logger.Info("relay listening", "addr", addr)
	if err := server.ListenAndServe(ctx, addr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
