// Package output renders lista-tools reports for people and for scripts,
// and holds the terminal styles and progress bar of the updater.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects how a report is rendered.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// AllFormats returns the formats accepted by -o, default first.
func AllFormats() []Format {
	return []Format{FormatText, FormatJSON, FormatYAML}
}

// FormatNames returns AllFormats as strings, for flag help and completion.
func FormatNames() []string {
	formats := AllFormats()
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	return names
}

// Writer renders reports in one format.
type Writer struct {
	format Format
	w      io.Writer
}

// NewWriter returns a writer rendering to w in format.
func NewWriter(w io.Writer, format Format) *Writer {
	return &Writer{format: format, w: w}
}

// Write renders report. Text uses its String method; JSON and YAML use its
// struct tags, so unexported fields stay out of machine output.
func (w *Writer) Write(report fmt.Stringer) error {
	switch w.format {
	case FormatJSON:
		enc := json.NewEncoder(w.w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case FormatYAML:
		enc := yaml.NewEncoder(w.w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	case FormatText, "":
		_, err := fmt.Fprintln(w.w, report.String())
		return err
	default:
		return fmt.Errorf("unsupported output format %q", w.format)
	}
}

// ParseFormat maps an -o value onto a Format. Empty means text; "yml" is
// accepted for YAML.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "":
		return FormatText, nil
	case "yml":
		return FormatYAML, nil
	}
	for _, f := range AllFormats() {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q (choose from %s)", s, strings.Join(FormatNames(), ", "))
}
