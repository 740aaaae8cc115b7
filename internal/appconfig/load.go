package appconfig

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("user", cfg.User)
	v.SetDefault("socket.url", cfg.Socket.URL)
	v.SetDefault("socket.token", cfg.Socket.Token)
	v.SetDefault("socket.params", cfg.Socket.Params)
	v.SetDefault("socket.headers", cfg.Socket.Headers)
	v.SetDefault("socket.vsn", cfg.Socket.Vsn)
	v.SetDefault("socket.heartbeat_seconds", cfg.Socket.HeartbeatSeconds)
	v.SetDefault("socket.join_timeout_seconds", cfg.Socket.JoinTimeoutSeconds)
	v.SetDefault("socket.dial_timeout_seconds", cfg.Socket.DialTimeoutSeconds)
	v.SetDefault("terminal.header", cfg.Terminal.Header)
	v.SetDefault("terminal.detach_key", cfg.Terminal.DetachKey)
	v.SetDefault("terminal.osc_themes", cfg.Terminal.OSCThemes)
	v.SetDefault("terminal.cell_width", cfg.Terminal.CellWidth)
	v.SetDefault("terminal.cell_height", cfg.Terminal.CellHeight)
	v.SetDefault("ssh.addr", cfg.SSH.Addr)
	v.SetDefault("ssh.host_key_path", cfg.SSH.HostKeyPath)
	v.SetDefault("ssh.authorized_keys_path", cfg.SSH.AuthorizedKeysPath)
	v.SetDefault("ssh.default_room", cfg.SSH.DefaultRoom)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.InConfig("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
		if !v.InConfig("socket.url") {
			return Config{}, fmt.Errorf("socket.url is required for config_version %d", CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values Load cannot express as defaults.
func Validate(cfg Config) error {
	if err := validateSocketConfig(cfg.Socket); err != nil {
		return err
	}
	if _, err := ParseDetachKey(cfg.Terminal.DetachKey); err != nil {
		return err
	}
	if cfg.Terminal.CellWidth < 0 || cfg.Terminal.CellHeight < 0 {
		return fmt.Errorf("terminal.cell_width and terminal.cell_height must not be negative")
	}
	return nil
}

func validateSocketConfig(cfg SocketConfig) error {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		return fmt.Errorf("socket.url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("socket.url must include scheme and host (e.g. wss://example.com/socket)")
	}
	switch parsed.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return fmt.Errorf("socket.url scheme %q is not supported", parsed.Scheme)
	}
	switch cfg.Vsn {
	case "", "1.0.0", "2.0.0":
	default:
		return fmt.Errorf("unsupported socket.vsn %q", cfg.Vsn)
	}
	if cfg.HeartbeatSeconds < 0 || cfg.JoinTimeoutSeconds < 0 || cfg.DialTimeoutSeconds < 0 {
		return fmt.Errorf("socket timeouts must not be negative")
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.StateDir = expandEnv(cfg.StateDir)
	cfg.User = expandEnv(cfg.User)
	cfg.Socket.URL = expandEnv(cfg.Socket.URL)
	cfg.Socket.Token = expandEnv(cfg.Socket.Token)
	for key, value := range cfg.Socket.Params {
		cfg.Socket.Params[key] = expandEnv(value)
	}
	for key, value := range cfg.Socket.Headers {
		cfg.Socket.Headers[key] = expandEnv(value)
	}
	cfg.SSH.HostKeyPath = expandEnv(cfg.SSH.HostKeyPath)
	cfg.SSH.AuthorizedKeysPath = expandEnv(cfg.SSH.AuthorizedKeysPath)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
