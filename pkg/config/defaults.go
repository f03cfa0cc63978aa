package config

import (
	"strings"
	"time"

	"github.com/marmos91/stager/internal/telemetry"
	"github.com/marmos91/stager/pkg/api"
	"github.com/marmos91/stager/pkg/metrics"
	"github.com/marmos91/stager/pkg/stager/agents"
	"github.com/marmos91/stager/pkg/stager/backend/memory"
	"github.com/marmos91/stager/pkg/stager/store"
)

// DefaultStorageElement is the simulated archive configured out of the box.
const DefaultStorageElement = "SIMULATED"

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values are replaced with defaults; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	applyDatabaseDefaults(&cfg.Database)
	applyMetricsDefaults(&cfg.Metrics)
	cfg.API.ApplyDefaults()
	applyStagingDefaults(&cfg.Staging)
	applyAgentDefaults(&cfg.Agents)
	applyNotifierDefaults(cfg)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *telemetry.Config) {
	def := telemetry.DefaultConfig()
	if cfg.ServiceName == "" {
		cfg.ServiceName = def.ServiceName
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = def.Endpoint
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = def.Profiling.Endpoint
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		cfg.Profiling.ProfileTypes = def.Profiling.ProfileTypes
	}
}

func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyDatabaseDefaults(cfg *store.Config) {
	cfg.ApplyDefaults()
}

// applyMetricsDefaults fills the port and path. Metrics stay opt-in.
func applyMetricsDefaults(cfg *metrics.Config) {
	def := metrics.DefaultConfig()
	if cfg.Port == 0 {
		cfg.Port = def.Port
	}
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
}

func applyStagingDefaults(cfg *StagingConfig) {
	if cfg.PinLifetime == 0 {
		cfg.PinLifetime = 24 * time.Hour
	}
	if cfg.PinRetention == 0 {
		cfg.PinRetention = 24 * time.Hour
	}
}

// applyAgentDefaults fills intervals and batch sizes. Whether an agent runs
// is taken from the file as written, so an agents section that leaves every
// agent disabled runs none of them.
func applyAgentDefaults(cfg *agents.Config) {
	def := agents.DefaultConfig()
	fill := func(c, d *agents.AgentConfig) {
		if c.Interval == 0 {
			c.Interval = d.Interval
		}
		if c.BatchSize == 0 {
			c.BatchSize = d.BatchSize
		}
	}
	fill(&cfg.Resolve, &def.Resolve)
	fill(&cfg.Submit.AgentConfig, &def.Submit.AgentConfig)
	fill(&cfg.Monitor.AgentConfig, &def.Monitor.AgentConfig)
	fill(&cfg.Finalize, &def.Finalize)
	if cfg.Submit.MaxFilesPerRequest == 0 {
		cfg.Submit.MaxFilesPerRequest = def.Submit.MaxFilesPerRequest
	}
}

func applyNotifierDefaults(cfg *Config) {
	if cfg.Notifier.Type == "" {
		cfg.Notifier.Type = "log"
	}
	if cfg.Notifier.Webhook.Timeout == 0 {
		cfg.Notifier.Webhook.Timeout = 10 * time.Second
	}
}

// GetDefaultConfig returns a Config with all default values applied: a
// SQLite database, every agent enabled and one simulated storage element.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Database: store.Config{
			Type: store.DatabaseTypeSQLite,
		},
		API: api.APIConfig{},
		StorageElements: []StorageElementConfig{{
			Name:   DefaultStorageElement,
			Type:   "memory",
			Memory: &memory.Config{RecallDelay: time.Minute, DefaultSize: 1 << 30},
		}},
		Agents: agents.DefaultConfig(),
	}

	ApplyDefaults(cfg)
	return cfg
}
