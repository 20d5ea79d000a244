package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for invalid values.
func Validate(c *Config) error {
	var errors []string

	// Validate release endpoints
	for field, raw := range map[string]string{
		"release.version_url":  c.Release.VersionURL,
		"release.digest_url":   c.Release.DigestURL,
		"release.artifact_url": c.Release.ArtifactURL,
	} {
		if err := validateURL(field, raw); err != nil {
			errors = append(errors, err.Error())
		}
	}

	if err := validateUpdate(c.Update); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		sort.Strings(errors)
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func validateURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ValidationError{Field: field, Message: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ValidationError{Field: field, Message: fmt.Sprintf("unsupported scheme '%s' (must be http or https)", u.Scheme)}
	}
	if u.Host == "" {
		return ValidationError{Field: field, Message: "host is required"}
	}
	return nil
}

func validateUpdate(u Update) error {
	// Validate log level using the type's Validate method
	if u.LogLevel != "" {
		if err := u.LogLevel.Validate(); err != nil {
			return ValidationError{Field: "update.log_level", Message: err.Error()}
		}
	}

	if u.Timeout != "" {
		d, err := time.ParseDuration(u.Timeout)
		if err != nil {
			return ValidationError{Field: "update.timeout", Message: fmt.Sprintf("invalid duration '%s'", u.Timeout)}
		}
		if d <= 0 {
			return ValidationError{Field: "update.timeout", Message: "must be positive"}
		}
	}

	if u.ChunkSize < 0 {
		return ValidationError{Field: "update.chunk_size", Message: "must be positive"}
	}

	return nil
}
