package update

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/stadtarchiv-lindau/lista-tools/internal/logging"
)

// DefaultDigestURL is the SHA-256 file published with each release.
const DefaultDigestURL = "https://github.com/stadtarchiv-lindau/lista-tools/releases/latest/download/SHA256"

// ErrDigestAbsent is wrapped by every reason the expected digest is unknown.
var ErrDigestAbsent = errors.New("expected digest unavailable")

// Manifest fetches the expected digest of the release artifact.
type Manifest struct {
	url    string
	client *http.Client
	logger *log.Logger
}

// NewManifest creates a manifest reading the digest published at url.
func NewManifest(url string) *Manifest {
	if url == "" {
		url = DefaultDigestURL
	}
	return &Manifest{
		url:    url,
		client: &http.Client{Timeout: DefaultTimeout},
		logger: logging.Discard(),
	}
}

// WithHTTPClient replaces the client used to fetch the digest.
func (m *Manifest) WithHTTPClient(c *http.Client) *Manifest {
	if c != nil {
		m.client = c
	}
	return m
}

// WithLogger sets the logger failures are reported to.
func (m *Manifest) WithLogger(l *log.Logger) *Manifest {
	if l != nil {
		m.logger = l
	}
	return m
}

// FetchExpectedDigest returns the published digest. The body may be a bare
// hash or a sha256sum line; only the first field is used. Any failure
// yields an absent digest with the reason attached, never an error.
func (m *Manifest) FetchExpectedDigest(ctx context.Context) Digest {
	body, err := getText(ctx, m.client, m.url)
	if err != nil {
		m.logger.Warn("could not fetch expected digest", "url", m.url, "err", err)
		return absentDigest(err)
	}

	d := ParseDigest(body)
	if !d.Present {
		m.logger.Warn("published digest is malformed", "url", m.url, "err", d.Reason)
	}
	return d
}

// ParseDigest extracts a SHA-256 digest from the text of a digest file.
func ParseDigest(text string) Digest {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return absentDigest(errors.New("empty digest file"))
	}

	hash := fields[0]
	if !isValidHexHash(hash) {
		return absentDigest(fmt.Errorf("malformed digest %q", truncate(hash, 80)))
	}
	return Digest{Hex: strings.ToLower(hash), Present: true}
}

func absentDigest(reason error) Digest {
	return Digest{Reason: fmt.Errorf("%w: %v", ErrDigestAbsent, reason)}
}

// isValidHexHash checks if s is a valid 64-character hex-encoded SHA256 hash.
func isValidHexHash(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
