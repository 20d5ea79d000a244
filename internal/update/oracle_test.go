package update

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestNewOracle(t *testing.T) {
	o := NewOracle("/opt/lista/VERSION", "")

	if o.versionURL != DefaultVersionURL {
		t.Errorf("versionURL = %s, want %s", o.versionURL, DefaultVersionURL)
	}
	if o.client == nil {
		t.Error("HTTP client should not be nil")
	}
	if o.client.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", o.client.Timeout, DefaultTimeout)
	}
}

func TestOracleResolveInstalled(t *testing.T) {
	tests := []struct {
		name         string
		marker       *string
		buildVersion string
		want         string
	}{
		{"marker present", strPtr("1.2.0\n"), "", "1.2.0"},
		{"marker wins over build version", strPtr("1.2.0"), "9.9.9", "1.2.0"},
		{"missing marker falls back", nil, "v1.4.0", "1.4.0"},
		{"missing marker without build version", nil, "", "unresolved"},
		{"missing marker with dev build", nil, "dev", "unresolved"},
		{"malformed marker never falls back", strPtr("garbage"), "1.4.0", "unresolved"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), VersionFileName)
			if tt.marker != nil {
				if err := os.WriteFile(path, []byte(*tt.marker), 0o644); err != nil {
					t.Fatal(err)
				}
			}

			got := NewOracle(path, "").WithBuildVersion(tt.buildVersion).ResolveInstalled(context.Background())
			if got.String() != tt.want {
				t.Errorf("ResolveInstalled() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestOracleResolveAvailable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"plain version", http.StatusOK, "1.3.0\n", "1.3.0"},
		{"tagged version", http.StatusOK, "v2.0.0", "2.0.0"},
		{"not found", http.StatusNotFound, "1.3.0", "unresolved"},
		{"server error", http.StatusInternalServerError, "", "unresolved"},
		{"malformed body", http.StatusOK, "<html>rate limited</html>", "unresolved"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			got := NewOracle("", server.URL).ResolveAvailable(context.Background())
			if got.String() != tt.want {
				t.Errorf("ResolveAvailable() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestOracleResolveAvailable_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.WarnLevel})

	got := NewOracle("", url).WithLogger(logger).ResolveAvailable(context.Background())
	if got.IsResolved() {
		t.Fatalf("ResolveAvailable() = %s, want unresolved", got)
	}
	if !strings.Contains(buf.String(), "could not fetch newest version") {
		t.Errorf("expected a warning to be logged, got %q", buf.String())
	}
}

func strPtr(s string) *string { return &s }
