package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/parlorgames/parlor/internal/platform/tui"
	"github.com/parlorgames/parlor/internal/room"
	"github.com/parlorgames/parlor/internal/session"
)

var flagHostMode string

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Host a room and open the lobby",
	Long: `Create a room on the chosen transport and open the interactive lobby.

Modes:
  single - Just you, no networking
  local  - Everyone shares this device
  online - Guests connect directly to your endpoint; the room id is
           the address shown in the lobby
  server - The room lives on a relay daemon; the room id is a join code

Examples:
  parlor host
  parlor host --mode local
  parlor host --mode online
  parlor host --mode server`,
	Run: runHost,
}

func init() {
	hostCmd.Flags().StringVar(&flagHostMode, "mode", "", "Transport mode: single, local, online, server")
}

func runHost(_ *cobra.Command, _ []string) {
	runLobby("")
}

// runLobby wires config, identity, session, and the Bubble Tea lobby
// together. An empty joinID hosts; otherwise it joins.
func runLobby(joinID string) {
	cfg, profile, err := setup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	mode := room.Mode(flagHostMode)
	if flagHostMode == "" {
		mode = room.Mode(cfg.Session.DefaultMode)
	}
	if !mode.Valid() {
		fmt.Fprintf(os.Stderr, "Error: unknown mode %q\n", flagHostMode)
		os.Exit(1)
	}
	if joinID != "" && mode != room.ModeOnline && mode != room.ModeServer {
		fmt.Fprintln(os.Stderr, "Error: joining a room requires --mode online or --mode server")
		os.Exit(1)
	}

	relay := &notifierRelay{}
	sess := session.New(session.Options{
		LocalPlayer:    profile.Player(),
		Notifier:       relay,
		Logger:         log.NewWithOptions(os.Stderr, log.Options{Prefix: "parlor"}),
		PeerListenAddr: cfg.Peer.ListenAddr,
		RelayURL:       cfg.Relay.URL,
	})
	if err := sess.SetMode(mode); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer sess.Destroy()

	model := tui.New(tui.Options{
		Session:    sess,
		JoinRoomID: joinID,
		RelayURL:   cfg.Relay.URL,
	})
	relay.setTarget(model)

	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
