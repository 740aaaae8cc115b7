package appconfig

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int            `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string         `mapstructure:"state_dir" yaml:"state_dir"`
	User          string         `mapstructure:"user" yaml:"user"`
	Socket        SocketConfig   `mapstructure:"socket" yaml:"socket"`
	Terminal      TerminalConfig `mapstructure:"terminal" yaml:"terminal"`
	SSH           SSHConfig      `mapstructure:"ssh" yaml:"ssh"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// SocketConfig configures the channel socket.
type SocketConfig struct {
	URL                string            `mapstructure:"url" yaml:"url"`
	Token              string            `mapstructure:"token" yaml:"token"`
	Params             map[string]string `mapstructure:"params" yaml:"params"`
	Headers            map[string]string `mapstructure:"headers" yaml:"headers"`
	Vsn                string            `mapstructure:"vsn" yaml:"vsn"`
	HeartbeatSeconds   int               `mapstructure:"heartbeat_seconds" yaml:"heartbeat_seconds"`
	JoinTimeoutSeconds int               `mapstructure:"join_timeout_seconds" yaml:"join_timeout_seconds"`
	DialTimeoutSeconds int               `mapstructure:"dial_timeout_seconds" yaml:"dial_timeout_seconds"`
}

// Heartbeat returns the heartbeat interval; zero disables heartbeats.
func (c SocketConfig) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatSeconds) * time.Second
}

// JoinTimeout returns the join timeout; zero waits indefinitely.
func (c SocketConfig) JoinTimeout() time.Duration {
	return time.Duration(c.JoinTimeoutSeconds) * time.Second
}

// DialTimeout returns the dial timeout.
func (c SocketConfig) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutSeconds) * time.Second
}

// TerminalConfig controls how sessions render.
type TerminalConfig struct {
	Header     string `mapstructure:"header" yaml:"header"`
	DetachKey  string `mapstructure:"detach_key" yaml:"detach_key"`
	OSCThemes  bool   `mapstructure:"osc_themes" yaml:"osc_themes"`
	CellWidth  int    `mapstructure:"cell_width" yaml:"cell_width"`
	CellHeight int    `mapstructure:"cell_height" yaml:"cell_height"`
}

// SSHConfig configures the SSH gateway.
type SSHConfig struct {
	Addr               string `mapstructure:"addr" yaml:"addr"`
	HostKeyPath        string `mapstructure:"host_key_path" yaml:"host_key_path"`
	AuthorizedKeysPath string `mapstructure:"authorized_keys_path" yaml:"authorized_keys_path"`
	DefaultRoom        string `mapstructure:"default_room" yaml:"default_room"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	user := os.Getenv("USER")
	if user == "" {
		user = "default"
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      filepath.Join(home, ".consoleshell", "state"),
		User:          user,
		Socket: SocketConfig{
			URL:                "ws://localhost:4000/socket",
			Token:              "",
			Params:             map[string]string{},
			Headers:            map[string]string{},
			Vsn:                "2.0.0",
			HeartbeatSeconds:   30,
			JoinTimeoutSeconds: 0,
			DialTimeoutSeconds: 10,
		},
		Terminal: TerminalConfig{
			Header:     "",
			DetachKey:  "ctrl-]",
			OSCThemes:  true,
			CellWidth:  0,
			CellHeight: 0,
		},
		SSH: SSHConfig{
			Addr:               ":27522",
			HostKeyPath:        filepath.Join(home, ".consoleshell", "ssh_host_key"),
			AuthorizedKeysPath: filepath.Join(home, ".consoleshell", "authorized_keys"),
			DefaultRoom:        "",
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".consoleshell", "config.yaml"), nil
}

// PrefsDir returns the directory holding per-user preferences.
func (c Config) PrefsDir() string {
	return filepath.Join(c.StateDir, "prefs")
}
