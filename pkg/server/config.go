package server

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/NicolasHaas/chatd/pkg/store"
)

const (
	envPrefix         = "CHATD"
	defaultConfigName = "chatd.yaml"
)

// Config holds server configuration.
type Config struct {
	ListenAddr       string        `mapstructure:"listen_addr" yaml:"listen_addr"`             // TCP bind address (e.g. ":9500")
	MaxClients       int           `mapstructure:"max_clients" yaml:"max_clients"`             // session cap checked at login
	DBPath           string        `mapstructure:"db_path" yaml:"db_path"`                     // SQLite database path
	MetricsAddr      string        `mapstructure:"metrics_addr" yaml:"metrics_addr"`           // HTTP bind address for /metrics (empty = disabled)
	MetricsInterval  time.Duration `mapstructure:"metrics_interval" yaml:"metrics_interval"`   // periodic metrics log (0 = disabled)
	Reuseport        bool          `mapstructure:"reuseport" yaml:"reuseport"`                 // bind with SO_REUSEPORT
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout" yaml:"handshake_timeout"` // bound on the pre-session exchange
	WriteTimeout     time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`         // per-frame write deadline
	LogLevel         string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat        string        `mapstructure:"log_format" yaml:"log_format"`

	// Owner account created on first start when the store is empty.
	Owner         string `mapstructure:"owner" yaml:"owner,omitempty"`
	OwnerPassword string `mapstructure:"owner_password" yaml:"owner_password,omitempty"`
}

// Dependencies holds external dependencies for the server.
// Server assumes ownership of Store and will Close() it on shutdown.
type Dependencies struct {
	Store store.UserStore
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:       ":9500",
		MaxClients:       64,
		DBPath:           "chatd.db",
		MetricsAddr:      ":9502",
		MetricsInterval:  60 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("server: config: listen_addr must not be empty")
	}
	if c.MaxClients <= 0 {
		return fmt.Errorf("server: config: max_clients must be positive, got %d", c.MaxClients)
	}
	if c.Owner != "" && c.OwnerPassword == "" {
		return errors.New("server: config: owner_password is required when owner is set")
	}
	return nil
}

// LoadConfig builds configuration from defaults, an optional YAML file and
// CHATD_* environment variables, and returns the resolved file path.
// Precedence: defaults < config file < env vars < caller overrides.
// A missing file is created with the defaults.
func LoadConfig(explicitPath string) (Config, string, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("listen_addr", cfg.ListenAddr)
	v.SetDefault("max_clients", cfg.MaxClients)
	v.SetDefault("db_path", cfg.DBPath)
	v.SetDefault("metrics_addr", cfg.MetricsAddr)
	v.SetDefault("metrics_interval", cfg.MetricsInterval)
	v.SetDefault("reuseport", cfg.Reuseport)
	v.SetDefault("handshake_timeout", cfg.HandshakeTimeout)
	v.SetDefault("write_timeout", cfg.WriteTimeout)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("owner", "")
	v.SetDefault("owner_password", "")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return cfg, configPath, fmt.Errorf("server: read config: %w", err)
		}
		if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil {
			slog.Warn("failed to write default config", "path", configPath, "err", writeErr)
		} else {
			slog.Info("created default config", "path", configPath)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("server: unmarshal config: %w", err)
	}
	return cfg, configPath, nil
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}
	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
