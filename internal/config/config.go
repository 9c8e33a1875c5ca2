// Package config loads the driftstored configuration from defaults, an
// optional config file and DRIFTLOG_* environment variables, in that
// order of precedence (lowest to highest for env).
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	// Listen is the address the websocket endpoint binds to.
	Listen string `mapstructure:"listen"`

	// NodeSeed derives the store's node id. A fixed seed keeps stream
	// ids stable across restarts; empty picks a random node id.
	NodeSeed string `mapstructure:"node_seed"`

	// ChunkSize caps the number of events per delivered chunk.
	// Zero keeps the store default.
	ChunkSize int `mapstructure:"chunk_size"`
}

type MetricsConfig struct {
	// Enabled turns on the Prometheus endpoint.
	Enabled bool `mapstructure:"enabled"`

	// Listen is the address the metrics endpoint binds to.
	Listen string `mapstructure:"listen"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level"`
}

// SlogLevel parses the configured level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// Load reads the configuration. The file is optional; environment
// variables such as DRIFTLOG_SERVER_LISTEN override file values.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("driftlog")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv picks it up even
// without a config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", ":4454")
	v.SetDefault("server.node_seed", "")
	v.SetDefault("server.chunk_size", 0)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", ":9464")
	v.SetDefault("log.level", "info")
}

func (c Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	if c.Server.ChunkSize < 0 {
		return fmt.Errorf("server.chunk_size must not be negative")
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen is required when metrics are enabled")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}
