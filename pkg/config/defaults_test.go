package config

import (
	"testing"
	"time"

	"github.com/marmos91/stager/pkg/stager/agents"
	"github.com/marmos91/stager/pkg/stager/store"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_API(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.API.Port != 8080 {
		t.Errorf("Expected default API port 8080, got %d", cfg.API.Port)
	}
	if cfg.API.ReadTimeout != 10*time.Second {
		t.Errorf("Expected default read timeout 10s, got %v", cfg.API.ReadTimeout)
	}
	if cfg.API.JWT.Issuer != "stager" {
		t.Errorf("Expected default issuer 'stager', got %q", cfg.API.JWT.Issuer)
	}
}

func TestApplyDefaults_Database(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Database.Type != store.DatabaseTypeSQLite {
		t.Errorf("Expected sqlite by default, got %q", cfg.Database.Type)
	}
	if cfg.Database.SQLite.Path == "" {
		t.Error("Expected default sqlite path")
	}
}

func TestApplyDefaults_Metrics(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Metrics.Port != 9090 || cfg.Metrics.Path != "/metrics" {
		t.Errorf("Unexpected metrics defaults: %+v", cfg.Metrics)
	}
}

func TestApplyDefaults_Agents(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	def := agents.DefaultConfig()
	if cfg.Agents.Monitor.Interval != def.Monitor.Interval {
		t.Errorf("Expected monitor interval %v, got %v", def.Monitor.Interval, cfg.Agents.Monitor.Interval)
	}
	if cfg.Agents.Finalize.BatchSize != def.Finalize.BatchSize {
		t.Errorf("Expected finalize batch size %d, got %d", def.Finalize.BatchSize, cfg.Agents.Finalize.BatchSize)
	}
	if cfg.Agents.Monitor.StageTimeout != 0 {
		t.Errorf("Expected stage timeout disabled by default, got %v", cfg.Agents.Monitor.StageTimeout)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging:         LoggingConfig{Level: "debug", Format: "json", Output: "stderr"},
		ShutdownTimeout: 5 * time.Second,
		Staging:         StagingConfig{PinLifetime: time.Hour},
		Agents: agents.Config{
			Submit: agents.SubmitConfig{MaxFilesPerRequest: 7},
		},
	}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected level normalized to 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Output != "stderr" {
		t.Errorf("Expected explicit logging values preserved, got %+v", cfg.Logging)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("Expected shutdown timeout 5s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Staging.PinLifetime != time.Hour {
		t.Errorf("Expected pin lifetime 1h, got %v", cfg.Staging.PinLifetime)
	}
	if cfg.Staging.PinRetention != 24*time.Hour {
		t.Errorf("Expected default pin retention 24h, got %v", cfg.Staging.PinRetention)
	}
	if cfg.Agents.Submit.MaxFilesPerRequest != 7 {
		t.Errorf("Expected max files per request 7, got %d", cfg.Agents.Submit.MaxFilesPerRequest)
	}
}
