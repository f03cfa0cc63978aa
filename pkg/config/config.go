// Package config loads the stager server configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/stager/internal/bytesize"
	"github.com/marmos91/stager/internal/telemetry"
	"github.com/marmos91/stager/pkg/api"
	"github.com/marmos91/stager/pkg/metrics"
	"github.com/marmos91/stager/pkg/stager/agents"
	"github.com/marmos91/stager/pkg/stager/backend/memory"
	"github.com/marmos91/stager/pkg/stager/backend/s3"
	"github.com/marmos91/stager/pkg/stager/notify"
	"github.com/marmos91/stager/pkg/stager/store"
)

// EnvPrefix prefixes every environment override, e.g. STAGER_LOGGING_LEVEL.
const EnvPrefix = "STAGER"

// Config represents the stager server configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (STAGER_*)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry tracing and Pyroscope profiling
	Telemetry telemetry.Config `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Database is the lifecycle datastore (SQLite or PostgreSQL).
	Database store.Config `mapstructure:"database" yaml:"database"`

	// API configures the REST server
	API api.APIConfig `mapstructure:"api" yaml:"api"`

	// Metrics configures the Prometheus endpoint
	Metrics metrics.Config `mapstructure:"metrics" yaml:"metrics"`

	// Staging holds the pin policy
	Staging StagingConfig `mapstructure:"staging" yaml:"staging"`

	// StorageElements lists the storage elements and the backend serving
	// each. A list keeps names case-sensitive.
	StorageElements []StorageElementConfig `mapstructure:"storage_elements" validate:"dive" yaml:"storage_elements"`

	// Agents configures the background agents
	Agents agents.Config `mapstructure:"agents" yaml:"agents"`

	// Notifier configures how callers learn about finished tasks
	Notifier notify.Config `mapstructure:"notifier" yaml:"notifier"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// StagingConfig holds the pin policy.
type StagingConfig struct {
	// PinLifetime is the pin requested when a recall is submitted.
	// Default: 24h
	PinLifetime time.Duration `mapstructure:"pin_lifetime" validate:"gte=0" yaml:"pin_lifetime"`

	// PinRetention is how long a staged copy stays pinned after completion.
	// Default: 24h
	PinRetention time.Duration `mapstructure:"pin_retention" validate:"gte=0" yaml:"pin_retention"`
}

// StorageElementConfig selects and configures the backend of one storage
// element. Only the section matching Type is used.
type StorageElementConfig struct {
	// Name is the storage element name callers submit files under.
	Name string `mapstructure:"name" validate:"required" yaml:"name"`

	// Quota caps the bytes pinned at this storage element. Zero is unlimited.
	// Supports human-readable sizes: "500Gi", "2TB"
	Quota bytesize.ByteSize `mapstructure:"quota" yaml:"quota,omitempty"`

	// Type is the backend kind
	// Valid values: memory, s3
	Type string `mapstructure:"type" validate:"required,oneof=memory s3" yaml:"type"`

	Memory *memory.Config `mapstructure:"memory" yaml:"memory,omitempty"`
	S3     *s3.Config     `mapstructure:"s3" yaml:"s3,omitempty"`
}

// StorageElement returns the configuration of the named storage element.
func (c *Config) StorageElement(name string) (StorageElementConfig, bool) {
	for _, se := range c.StorageElements {
		if se.Name == name {
			return se, true
		}
	}
	return StorageElementConfig{}, false
}

// Quotas returns the pin quota of every storage element that has one.
func (c *Config) Quotas() map[string]bytesize.ByteSize {
	quotas := make(map[string]bytesize.ByteSize)
	for _, se := range c.StorageElements {
		if se.Quota > 0 {
			quotas[se.Name] = se.Quota
		}
	}
	return quotas
}

// Load loads configuration from file, environment, and defaults.
//
// A missing configuration file is not an error: the defaults are returned.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		return GetDefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration and explains how to create one when the file
// is missing.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  stager config init\n\n"+
				"Or specify a custom config file:\n"+
				"  stager <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  stager config init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to path in YAML format.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Config files may hold database passwords and the API secret.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: STAGER_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings and numbers to bytesize.ByteSize so
// quotas can be written as "500Gi", "2TB" or plain byte counts.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings like "30s", "5m", "1h" to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/stager, ~/.config/stager, or the
// current directory as a last resort.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "stager")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "stager")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
