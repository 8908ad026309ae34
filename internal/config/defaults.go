package config

import (
	_ "embed"
	"time"
)

//go:embed defaults/parlor.yaml
var defaultParlorYAML []byte

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Identity: Identity{
			DBPath: "~/.parlor/identity.db",
		},
		Peer: Peer{
			ListenAddr: "127.0.0.1:0",
		},
		Relay: Relay{
			ListenAddr: ":8475",
			URL:        "ws://127.0.0.1:8475/ws",
		},
		Session: Session{
			DefaultMode:   "single",
			CreateTimeout: Duration(5 * time.Second),
			CloseGrace:    Duration(100 * time.Millisecond),
		},
	}
}
