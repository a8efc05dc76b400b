// Package config defines the fieldops client and daemon configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. FIELDOPS_CLIENT_API_URL.
const EnvPrefix = "FIELDOPS"

// Config is the top-level fieldops configuration.
type Config struct {
	Client   ClientConfig `yaml:"client" mapstructure:"client"`
	Notify   NotifyConfig `yaml:"notify" mapstructure:"notify"`
	Server   ServerConfig `yaml:"server" mapstructure:"server"`
	LogLevel string       `yaml:"log_level" mapstructure:"log_level"`
}

// ClientConfig controls the technician client.
type ClientConfig struct {
	APIURL         string        `yaml:"api_url" mapstructure:"api_url"`
	PollInterval   time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	SettleDelay    time.Duration `yaml:"settle_delay" mapstructure:"settle_delay"` // wait before refreshing after a write
	MaxBackoff     time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	Push           bool          `yaml:"push" mapstructure:"push"` // refresh on server-sent task events
	StateDir       string        `yaml:"state_dir" mapstructure:"state_dir"`
}

// NotifyConfig controls transient notifications.
type NotifyConfig struct {
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// ServerConfig controls the reference REST daemon.
type ServerConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"` // listen address, e.g., ":5000"
	DBPath   string `yaml:"db_path" mapstructure:"db_path"`
	SeedDemo bool   `yaml:"seed_demo" mapstructure:"seed_demo"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Client: ClientConfig{
			APIURL:         "http://localhost:5000/api",
			PollInterval:   30 * time.Second,
			SettleDelay:    time.Second,
			MaxBackoff:     5 * time.Minute,
			RequestTimeout: 15 * time.Second,
			StateDir:       DefaultStateDir(),
		},
		Notify: NotifyConfig{
			TTL: 5 * time.Second,
		},
		Server: ServerConfig{
			Addr:     ":5000",
			DBPath:   "./data/fieldops.db",
			SeedDemo: true,
		},
		LogLevel: "info",
	}
}

// DefaultStateDir returns ~/.fieldops, falling back to ./.fieldops.
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".fieldops"
	}
	return filepath.Join(home, ".fieldops")
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	return filepath.Join(DefaultStateDir(), "config.yaml")
}

// Load reads a YAML config file over the defaults and applies FIELDOPS_*
// environment overrides. A missing file at path yields defaults plus
// environment; an empty path skips the file entirely.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	setDefaults(v, cfg)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Client.APIURL = strings.TrimRight(cfg.Client.APIURL, "/")
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("client.api_url", cfg.Client.APIURL)
	v.SetDefault("client.poll_interval", cfg.Client.PollInterval)
	v.SetDefault("client.settle_delay", cfg.Client.SettleDelay)
	v.SetDefault("client.max_backoff", cfg.Client.MaxBackoff)
	v.SetDefault("client.request_timeout", cfg.Client.RequestTimeout)
	v.SetDefault("client.push", cfg.Client.Push)
	v.SetDefault("client.state_dir", cfg.Client.StateDir)
	v.SetDefault("notify.ttl", cfg.Notify.TTL)
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.db_path", cfg.Server.DBPath)
	v.SetDefault("server.seed_demo", cfg.Server.SeedDemo)
	v.SetDefault("log_level", cfg.LogLevel)
}

// WriteDefault writes the default configuration as YAML to path, creating
// parent directories as needed.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// MarshalYAML writes durations in time.ParseDuration form ("30s") rather
// than integer nanoseconds.
func (c ClientConfig) MarshalYAML() (any, error) {
	return struct {
		APIURL         string `yaml:"api_url"`
		PollInterval   string `yaml:"poll_interval"`
		SettleDelay    string `yaml:"settle_delay"`
		MaxBackoff     string `yaml:"max_backoff"`
		RequestTimeout string `yaml:"request_timeout"`
		Push           bool   `yaml:"push"`
		StateDir       string `yaml:"state_dir"`
	}{
		APIURL:         c.APIURL,
		PollInterval:   c.PollInterval.String(),
		SettleDelay:    c.SettleDelay.String(),
		MaxBackoff:     c.MaxBackoff.String(),
		RequestTimeout: c.RequestTimeout.String(),
		Push:           c.Push,
		StateDir:       c.StateDir,
	}, nil
}

// MarshalYAML writes the TTL as a duration string.
func (c NotifyConfig) MarshalYAML() (any, error) {
	return struct {
		TTL string `yaml:"ttl"`
	}{TTL: c.TTL.String()}, nil
}

// Level maps LogLevel onto a slog level; unknown values mean info.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
