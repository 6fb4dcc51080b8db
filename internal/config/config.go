// Package config handles configuration management using Viper
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the application configuration. The remote display,
// output and seat identifying strings are host properties read through
// the mpv connection at startup, not config keys; this file carries
// only waylink's own knobs.
type Config struct {
	// Mpv configuration
	Mpv MpvConfig `mapstructure:"mpv"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`
}

// MpvConfig contains host-session settings
type MpvConfig struct {
	// Path of the JSON IPC socket mpv was started with
	// (--input-ipc-server)
	SocketPath string `mapstructure:"socket_path"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	LogLevel string `mapstructure:"log_level"` // Override LOG_LEVEL env var
}

var (
	// DefaultConfig provides sensible defaults
	DefaultConfig = Config{
		Mpv: MpvConfig{
			SocketPath: defaultSocketPath(),
		},
		Logging: LoggingConfig{
			LogLevel: "",
		},
	}

	// Global config instance
	cfg *Config

	// Override config path if set
	configPathOverride string
)

// SetConfigPath allows overriding the config path
func SetConfigPath(path string) {
	configPathOverride = path
}

// Init initializes the configuration system
func Init() error {
	viper.SetConfigName("waylink")
	viper.SetConfigType("toml")

	if configPathOverride != "" {
		viper.SetConfigFile(configPathOverride)
	} else {
		if home := os.Getenv("HOME"); home != "" {
			viper.AddConfigPath(filepath.Join(home, ".config", "waylink"))
		}
		viper.AddConfigPath(".")
	}

	viper.SetDefault("mpv.socket_path", DefaultConfig.Mpv.SocketPath)
	viper.SetDefault("logging.log_level", DefaultConfig.Logging.LogLevel)

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, use defaults
	}

	cfg = &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}

	return nil
}

// Get returns the current configuration
func Get() *Config {
	if cfg == nil {
		return &DefaultConfig
	}
	return cfg
}

// Set sets the current configuration (for testing)
func Set(c *Config) {
	cfg = c
}

func defaultSocketPath() string {
	if runDir := os.Getenv("XDG_RUNTIME_DIR"); runDir != "" {
		return filepath.Join(runDir, "mpv.sock")
	}
	return "/tmp/mpv.sock"
}
