package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/parlorgames/parlor/internal/config"
	"github.com/parlorgames/parlor/internal/identity"
)

var flagAvatar int

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show or update the local identity",
	Long: `Show the persisted local identity, or update it.

The identity UUID is generated once and never changes, so other
players keep recognizing you after a nickname or avatar change.

Examples:
  parlor whoami
  parlor whoami --nick alice
  parlor whoami --nick alice --avatar 1`,
	Run: runWhoami,
}

func init() {
	whoamiCmd.Flags().IntVar(&flagAvatar, "avatar", 0, "Avatar index (persisted)")
}

func runWhoami(cmd *cobra.Command, _ []string) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	dbPath := cfg.Identity.DBPath
	if flagDBPath != "" {
		dbPath = flagDBPath
	}

	store, err := identity.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	profile, err := store.Ensure(flagNick)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if cmd.Flags().Changed("avatar") && flagAvatar != profile.Avatar {
		profile.Avatar = flagAvatar
		if profile, err = store.Save(*profile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("%s %s\n", identity.Glyph(profile.Avatar), profile.Nickname)
	fmt.Printf("id: %s\n", profile.UUID)
}
