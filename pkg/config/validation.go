package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q validation (%s)", fe.Namespace(), fe.Tag(), fe.Param()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	seen := make(map[string]bool, len(cfg.StorageElements))
	for _, se := range cfg.StorageElements {
		if seen[se.Name] {
			return fmt.Errorf("storage_elements: duplicate storage element %q", se.Name)
		}
		seen[se.Name] = true
		if err := validateStorageElement(se); err != nil {
			return err
		}
	}

	if cfg.Notifier.Type == "webhook" && cfg.Notifier.Webhook.URL == "" {
		return fmt.Errorf("notifier.webhook.url is required for the webhook notifier")
	}

	if secret := cfg.API.GetJWTSecret(); secret != "" && len(secret) < 32 {
		return fmt.Errorf("api.jwt.secret must be at least 32 characters")
	}

	return nil
}

func validateStorageElement(se StorageElementConfig) error {
	if strings.TrimSpace(se.Name) == "" {
		return fmt.Errorf("storage_elements: empty storage element name")
	}
	switch se.Type {
	case "s3":
		if se.S3 == nil || se.S3.Bucket == "" {
			return fmt.Errorf("storage_elements.%s: s3 backend requires s3.bucket", se.Name)
		}
	case "memory":
	default:
		return fmt.Errorf("storage_elements.%s: unknown backend type %q", se.Name, se.Type)
	}
	return nil
}
