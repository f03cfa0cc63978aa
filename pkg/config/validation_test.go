package config

import (
	"strings"
	"testing"
)

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for invalid log format")
	}
}

func TestValidate_InvalidAPIPort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.API.Port = 70000

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for port out of range")
	}
	if !strings.Contains(err.Error(), "max") {
		t.Errorf("Expected 'max' validation error, got: %v", err)
	}
}

func TestValidate_SampleRate(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.SampleRate = 1.5

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for sample rate above 1")
	}
}

func TestValidate_StorageElements(t *testing.T) {
	tests := []struct {
		name    string
		se      StorageElementConfig
		wantErr string
	}{
		{"unknown type", StorageElementConfig{Name: "X", Type: "tape"}, "oneof"},
		{"missing name", StorageElementConfig{Type: "memory"}, "required"},
		{"s3 without bucket", StorageElementConfig{Name: "X", Type: "s3"}, "bucket"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			cfg.StorageElements = append(cfg.StorageElements, tt.se)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_DuplicateStorageElement(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.StorageElements = append(cfg.StorageElements, cfg.StorageElements[0])

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("Expected duplicate storage element error, got: %v", err)
	}
}

func TestValidate_WebhookRequiresURL(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Notifier.Type = "webhook"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for webhook notifier without URL")
	}

	cfg.Notifier.Webhook.URL = "https://example.org/callbacks/{callback_id}"
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected webhook config to validate, got: %v", err)
	}
}

func TestValidate_ShortJWTSecret(t *testing.T) {
	t.Setenv("STAGER_API_SECRET", "")
	cfg := GetDefaultConfig()
	cfg.API.JWT.Secret = "too-short"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for short JWT secret")
	}
}

func TestValidate_PostgresRequiresHost(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Database.Type = "postgres"
	cfg.Database.ApplyDefaults()

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "host") {
		t.Fatalf("Expected postgres host error, got: %v", err)
	}
}
