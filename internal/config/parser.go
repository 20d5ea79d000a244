package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is the syntax of a configuration file.
type Format int

const (
	FormatUnknown Format = iota
	FormatYAML
	FormatTOML
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "YAML"
	case FormatTOML:
		return "TOML"
	case FormatJSON:
		return "JSON"
	default:
		return "unknown"
	}
}

var formatByExt = map[string]Format{
	".yaml": FormatYAML,
	".yml":  FormatYAML,
	".toml": FormatTOML,
	".json": FormatJSON,
}

// detectFormat picks the format from the file extension, falling back to
// the content for files without a known extension.
func detectFormat(path string, content []byte) Format {
	if f, ok := formatByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return f
	}
	return sniffFormat(content)
}

// tomlTable matches the section headers a lista-tools TOML file starts with.
var tomlTable = regexp.MustCompile(`^\[[A-Za-z_][A-Za-z0-9_.]*\]$`)

// sniffFormat classifies content by its first significant line. A config is
// always an object, so a leading '[' is a TOML table, never a JSON array.
func sniffFormat(content []byte) Format {
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "{") {
			return FormatJSON
		}
		if tomlTable.MatchString(line) {
			return FormatTOML
		}

		eq := strings.Index(line, "=")
		colon := strings.Index(line, ":")
		switch {
		case eq >= 0 && (colon < 0 || eq < colon):
			return FormatTOML
		case colon >= 0:
			return FormatYAML
		}
		return FormatUnknown
	}
	return FormatUnknown
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{[^}]+\}`)

// expandEnvVars substitutes environment references. An unset or empty
// variable takes its default, or the empty string when none is given.
func expandEnvVars(content []byte) []byte {
	return envVarPattern.ReplaceAllFunc(content, func(ref []byte) []byte {
		inner := string(ref[2 : len(ref)-1])
		name, fallback, _ := strings.Cut(inner, ":-")
		if value := os.Getenv(name); value != "" {
			return []byte(value)
		}
		return []byte(fallback)
	})
}

// parse expands environment references and decodes content. Unknown keys
// are rejected so a misspelled setting is reported instead of ignored.
func parse(content []byte, format Format) (*Config, error) {
	content = expandEnvVars(content)
	r := bytes.NewReader(content)

	var cfg Config
	var err error
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err = dec.Decode(&cfg); errors.Is(err, io.EOF) {
			err = nil // Empty file
		}
	case FormatTOML:
		err = toml.NewDecoder(r).DisallowUnknownFields().Decode(&cfg)
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		err = dec.Decode(&cfg)
	default:
		return nil, fmt.Errorf("unknown file format")
	}
	if err != nil {
		return nil, fmt.Errorf("%s parse error: %w", format, err)
	}
	return &cfg, nil
}
