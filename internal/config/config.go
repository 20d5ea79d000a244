// Package config handles lista-tools configuration parsing and location
// resolution.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/stadtarchiv-lindau/lista-tools/internal/types"
)

const (
	// EnvConfig names an explicit configuration file.
	EnvConfig = "LISTA_TOOLS_CONFIG"

	// DefaultTimeout bounds version and digest requests.
	DefaultTimeout = 30 * time.Second

	// DefaultChunkSize is the download read size.
	DefaultChunkSize = 4096
)

// ErrNotFound is returned when no configuration file exists in any of the
// standard locations.
var ErrNotFound = errors.New("no configuration file found")

// Release holds the endpoints a release is published at. Empty values use
// the built-in defaults.
type Release struct {
	VersionURL  string `yaml:"version_url,omitempty" toml:"version_url,omitempty" json:"version_url,omitempty"`
	DigestURL   string `yaml:"digest_url,omitempty" toml:"digest_url,omitempty" json:"digest_url,omitempty"`
	ArtifactURL string `yaml:"artifact_url,omitempty" toml:"artifact_url,omitempty" json:"artifact_url,omitempty"`
}

// Update controls when and how lista-tools updates itself.
type Update struct {
	CheckOnStart *bool          `yaml:"check_on_start,omitempty" toml:"check_on_start,omitempty" json:"check_on_start,omitempty"`
	AutoConfirm  bool           `yaml:"auto_confirm,omitempty" toml:"auto_confirm,omitempty" json:"auto_confirm,omitempty"`
	LogLevel     types.LogLevel `yaml:"log_level,omitempty" toml:"log_level,omitempty" json:"log_level,omitempty"`
	Timeout      string         `yaml:"timeout,omitempty" toml:"timeout,omitempty" json:"timeout,omitempty"`
	ChunkSize    int            `yaml:"chunk_size,omitempty" toml:"chunk_size,omitempty" json:"chunk_size,omitempty"`
	Updater      string         `yaml:"updater,omitempty" toml:"updater,omitempty" json:"updater,omitempty"` // Path to the updater executable
}

// Config represents the parsed configuration file.
type Config struct {
	Release     Release `yaml:"release" toml:"release" json:"release"`
	Update      Update  `yaml:"update" toml:"update" json:"update"`
	VersionFile string  `yaml:"version_file,omitempty" toml:"version_file,omitempty" json:"version_file,omitempty"`

	path string
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{}
}

// Path returns the file the configuration was loaded from, or "" for
// defaults.
func (c *Config) Path() string {
	return c.path
}

// CheckOnStart returns true unless the update check before each command
// was disabled.
func (c *Config) CheckOnStart() bool {
	return c.Update.CheckOnStart == nil || *c.Update.CheckOnStart
}

// LogLevel returns the configured log level, defaulting to full.
func (c *Config) LogLevel() types.LogLevel {
	return c.Update.LogLevel.Default()
}

// Timeout returns the metadata request timeout.
func (c *Config) Timeout() time.Duration {
	if c.Update.Timeout == "" {
		return DefaultTimeout
	}
	d, err := time.ParseDuration(c.Update.Timeout)
	if err != nil || d <= 0 {
		return DefaultTimeout
	}
	return d
}

// ChunkSize returns the download chunk size.
func (c *Config) ChunkSize() int {
	if c.Update.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return c.Update.ChunkSize
}

// VersionFilePath returns the version marker location. Relative paths are
// resolved against dir, normally the executable's directory.
func (c *Config) VersionFilePath(dir, defaultName string) string {
	if c.VersionFile == "" {
		return filepath.Join(dir, defaultName)
	}
	if filepath.IsAbs(c.VersionFile) {
		return c.VersionFile
	}
	return filepath.Join(dir, c.VersionFile)
}

// Find searches for a configuration file in the standard locations.
// Returns the path to the first file found, or ErrNotFound.
func Find(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("specified config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	// Check LISTA_TOOLS_CONFIG environment variable
	if envPath := os.Getenv(EnvConfig); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	for _, dir := range searchDirs() {
		for _, name := range []string{"config.yaml", "config.yml", "config.toml", "config.json"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
	}

	return "", ErrNotFound
}

func searchDirs() []string {
	var dirs []string

	home, err := os.UserHomeDir()
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" && err == nil {
		xdgConfig = filepath.Join(home, ".config")
	}
	if xdgConfig != "" {
		dirs = append(dirs, filepath.Join(xdgConfig, "lista-tools"))
	}
	if err == nil {
		dirs = append(dirs, filepath.Join(home, ".lista-tools"))
	}
	return dirs
}

// Load reads and parses a configuration file from the given path.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(content, path)
	if err != nil {
		return nil, err
	}
	cfg.path = path
	return cfg, nil
}

// Parse parses and validates configuration content. name is used to pick
// the format by extension and in error messages.
func Parse(content []byte, name string) (*Config, error) {
	format := detectFormat(name, content)
	if format == FormatUnknown {
		return nil, fmt.Errorf("unable to detect file format for %s", name)
	}

	cfg, err := parse(content, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return cfg, nil
}

// DefaultPath returns where lista-tools init writes a new config file.
func DefaultPath() string {
	dirs := searchDirs()
	if len(dirs) == 0 {
		return "config.yaml"
	}
	return filepath.Join(dirs[0], "config.yaml")
}

// LoadOrDefault finds and loads the configuration. A missing file yields
// defaults unless explicitPath was given.
func LoadOrDefault(explicitPath string) (*Config, error) {
	path, err := Find(explicitPath)
	if errors.Is(err, ErrNotFound) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	return Load(path)
}
