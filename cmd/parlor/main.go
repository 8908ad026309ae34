// parlor is a multiplayer room layer for terminal party games.
//
// Usage:
//
//	parlor host               - Host a room and open the lobby
//	parlor join <room-id>     - Join an existing room
//	parlor relay              - Run the relay daemon for server mode
//	parlor whoami             - Show or update the local identity
//
// Global flags:
//
//	--config <path>  - Path to a parlor.yaml config file
//	--db <path>      - Identity database path (default: ~/.parlor/identity.db)
//	--nick <name>    - Nickname to use (persisted)
package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/parlorgames/parlor/internal/config"
	"github.com/parlorgames/parlor/internal/identity"
	"github.com/parlorgames/parlor/internal/session"
)

var (
	// Global flags
	flagConfig string
	flagDBPath string
	flagNick   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "parlor",
	Short: "Parlor - multiplayer rooms for terminal party games",
	Long: `Parlor manages multiplayer rooms for turn-based party and card games.
The same room works across four transports: single (just you), local
(shared device), online (direct peer connections), and server (relayed
through a parlor relay daemon).

Examples:
  parlor host --mode local
  parlor host --mode online
  parlor join 127.0.0.1:52114 --mode online
  parlor join K3XQ7A --mode server
  parlor relay --listen :8475
  parlor whoami --nick alice`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config YAML")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "Identity database path")
	rootCmd.PersistentFlags().StringVar(&flagNick, "nick", "", "Nickname (persisted)")

	rootCmd.AddCommand(hostCmd)
	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(relayCmd)
	rootCmd.AddCommand(whoamiCmd)
}

// setup loads the config and the persisted identity profile.
func setup() (config.Config, *identity.Profile, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return cfg, nil, err
	}

	dbPath := cfg.Identity.DBPath
	if flagDBPath != "" {
		dbPath = flagDBPath
	}

	store, err := identity.Open(dbPath)
	if err != nil {
		return cfg, nil, err
	}
	defer store.Close()

	profile, err := store.Ensure(flagNick)
	if err != nil {
		return cfg, nil, err
	}

	return cfg, profile, nil
}

// notifierRelay forwards notifications to a target installed after session
// construction (the lobby model). Until then it logs.
type notifierRelay struct {
	mu     sync.Mutex
	target session.Notifier
}

func (n *notifierRelay) Notify(message string) {
	n.mu.Lock()
	target := n.target
	n.mu.Unlock()

	if target != nil {
		target.Notify(message)
		return
	}
	log.Info(message)
}

func (n *notifierRelay) setTarget(target session.Notifier) {
	n.mu.Lock()
	n.target = target
	n.mu.Unlock()
}
