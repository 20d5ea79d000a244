package update

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/stadtarchiv-lindau/lista-tools/internal/logging"
)

const (
	// DefaultVersionURL is where the latest release publishes its version marker.
	DefaultVersionURL = "https://github.com/stadtarchiv-lindau/lista-tools/releases/latest/download/VERSION"

	// VersionFileName is the local version marker shipped next to the executable.
	VersionFileName = "VERSION"

	// DefaultTimeout bounds metadata requests (version and digest).
	DefaultTimeout = 30 * time.Second

	maxMetadataBytes = 64 << 10
)

// Oracle resolves the installed version from a local marker file and the
// latest published version from the release endpoint.
type Oracle struct {
	versionFile  string
	buildVersion string // Injected via ldflags, used when the marker is missing
	versionURL   string
	client       *http.Client
	logger       *log.Logger
}

// NewOracle creates an oracle reading the marker at versionFile and the
// published version at versionURL.
func NewOracle(versionFile, versionURL string) *Oracle {
	if versionURL == "" {
		versionURL = DefaultVersionURL
	}
	return &Oracle{
		versionFile: versionFile,
		versionURL:  versionURL,
		client: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: logging.Discard(),
	}
}

// WithBuildVersion sets the version compiled into the binary. It is only
// consulted when the marker file does not exist.
func (o *Oracle) WithBuildVersion(v string) *Oracle {
	o.buildVersion = v
	return o
}

// WithHTTPClient replaces the client used for the remote lookup.
func (o *Oracle) WithHTTPClient(c *http.Client) *Oracle {
	if c != nil {
		o.client = c
	}
	return o
}

// WithLogger sets the logger failures are reported to.
func (o *Oracle) WithLogger(l *log.Logger) *Oracle {
	if l != nil {
		o.logger = l
	}
	return o
}

// ResolveInstalled reads the local version marker. A missing marker falls
// back to the build version when one was compiled in; a malformed marker
// never does.
func (o *Oracle) ResolveInstalled(_ context.Context) Resolved {
	data, err := os.ReadFile(o.versionFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && o.buildVersion != "" {
			if r := Resolve(o.buildVersion); r.IsResolved() {
				o.logger.Debug("version marker missing, using build version", "path", o.versionFile, "version", r)
				return r
			}
		}
		o.logger.Warn("could not read installed version", "path", o.versionFile, "err", err)
		return Unresolved("", fmt.Errorf("%w: reading %s: %v", ErrUnresolved, o.versionFile, err))
	}

	r := Resolve(string(data))
	if !r.IsResolved() {
		o.logger.Warn("installed version marker is malformed", "path", o.versionFile, "err", r.Err)
	}
	return r
}

// ResolveAvailable fetches the latest published version.
func (o *Oracle) ResolveAvailable(ctx context.Context) Resolved {
	body, err := getText(ctx, o.client, o.versionURL)
	if err != nil {
		o.logger.Warn("could not fetch newest version", "url", o.versionURL, "err", err)
		return Unresolved("", fmt.Errorf("%w: %v", ErrUnresolved, err))
	}

	r := Resolve(body)
	if !r.IsResolved() {
		o.logger.Warn("published version is malformed", "url", o.versionURL, "err", r.Err)
	}
	return r
}

// getText performs a GET request and returns the response body as text.
func getText(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataBytes))
	if err != nil {
		return "", fmt.Errorf("reading response from %s: %w", url, err)
	}
	return strings.TrimSpace(string(data)), nil
}
