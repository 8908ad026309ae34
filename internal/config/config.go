// Package config provides YAML-based configuration loading for the parlor
// client and relay.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "5s" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the top-level configuration document.
type Config struct {
	Identity Identity `yaml:"identity"`
	Peer     Peer     `yaml:"peer"`
	Relay    Relay    `yaml:"relay"`
	Session  Session  `yaml:"session"`
}

// Identity configures where the local profile is stored.
type Identity struct {
	DBPath string `yaml:"db_path"`
}

// Peer configures the direct (online mode) transport.
type Peer struct {
	// ListenAddr is the address the hosting endpoint binds. Port 0 lets
	// the OS pick one; the resulting address becomes the room id.
	ListenAddr string `yaml:"listen_addr"`
}

// Relay configures both the relay daemon and the client that talks to it.
type Relay struct {
	// ListenAddr is where `parlor relay` serves websockets.
	ListenAddr string `yaml:"listen_addr"`

	// URL is the websocket endpoint clients in server mode dial.
	URL string `yaml:"url"`
}

// Session tunes transport timings.
type Session struct {
	// DefaultMode selects the transport used when none is given on the
	// command line: "single", "local", "online", or "server".
	DefaultMode string `yaml:"default_mode"`

	// CreateTimeout bounds how long room creation may wait for the
	// transport to hand back a room id.
	CreateTimeout Duration `yaml:"create_timeout"`

	// CloseGrace is the delay between announcing a room closure and
	// dropping the underlying connections, so the announcement gets out.
	CloseGrace Duration `yaml:"close_grace"`
}
