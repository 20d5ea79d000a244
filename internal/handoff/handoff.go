// Package handoff encodes the configuration the CLI passes to the updater
// process on its command line.
package handoff

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/stadtarchiv-lindau/lista-tools/internal/types"
)

// SchemaVersion is the schema written by this build.
const SchemaVersion = 1

var (
	// ErrUnsupportedSchema is returned for configs written by a newer build.
	ErrUnsupportedSchema = errors.New("unsupported handoff schema")

	// ErrInvalid is wrapped by every decoding and validation failure.
	ErrInvalid = errors.New("invalid handoff config")
)

// UpdateConfig controls how the updater behaves. It is produced once by the
// CLI and never modified by the updater.
type UpdateConfig struct {
	Schema          int            `json:"schema"`
	LoggingLevel    types.LogLevel `json:"logging_level"`
	AutoConfirm     bool           `json:"auto_confirm"`
	TargetDirectory string         `json:"target_directory,omitempty"`
	DigestURL       string         `json:"digest_url,omitempty"`
	ArtifactURL     string         `json:"artifact_url,omitempty"`
	ChunkSize       int            `json:"chunk_size,omitempty"`
}

// Default returns the config used when the updater is started without one.
func Default() UpdateConfig {
	return UpdateConfig{
		Schema:       SchemaVersion,
		LoggingLevel: types.LogLevelFull,
	}
}

// Validate checks the config for values the updater cannot act on.
func (c UpdateConfig) Validate() error {
	if c.Schema < 1 {
		return fmt.Errorf("%w: missing schema", ErrInvalid)
	}
	if c.Schema > SchemaVersion {
		return fmt.Errorf("%w %d (this updater understands up to %d); update lista-update manually",
			ErrUnsupportedSchema, c.Schema, SchemaVersion)
	}
	if err := c.LoggingLevel.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.TargetDirectory != "" && !filepath.IsAbs(c.TargetDirectory) {
		return fmt.Errorf("%w: target directory %q is not absolute", ErrInvalid, c.TargetDirectory)
	}
	if c.ChunkSize < 0 {
		return fmt.Errorf("%w: chunk size %d is negative", ErrInvalid, c.ChunkSize)
	}
	for name, raw := range map[string]string{"digest_url": c.DigestURL, "artifact_url": c.ArtifactURL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: %s %q is not an http(s) URL", ErrInvalid, name, raw)
		}
	}
	return nil
}

// Encode serializes c into a single command-line safe argument.
func Encode(c UpdateConfig) (string, error) {
	if c.Schema == 0 {
		c.Schema = SchemaVersion
	}
	c.LoggingLevel = c.LoggingLevel.Default()
	if err := c.Validate(); err != nil {
		return "", err
	}
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encoding handoff config: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Decode parses an argument produced by Encode. An empty argument yields
// Default. Unknown fields are ignored so older updaters accept additions
// that do not bump the schema.
func Decode(s string) (UpdateConfig, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Default(), nil
	}

	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return UpdateConfig{}, fmt.Errorf("%w: not base64url: %v", ErrInvalid, err)
	}

	var c UpdateConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return UpdateConfig{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	c.LoggingLevel = c.LoggingLevel.Default()
	if err := c.Validate(); err != nil {
		return UpdateConfig{}, err
	}
	return c, nil
}
