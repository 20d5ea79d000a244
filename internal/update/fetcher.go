package update

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/stadtarchiv-lindau/lista-tools/internal/logging"
)

// DefaultChunkSize is the read size between progress events.
const DefaultChunkSize = 4096

// MaxArtifactSize bounds how much of a release the fetcher buffers.
const MaxArtifactSize = 512 << 20

const (
	legacyArtifactURL  = "http://listatools.kulturlindau.de/lista-tools.exe"
	releaseDownloadURL = "https://github.com/stadtarchiv-lindau/lista-tools/releases/latest/download/"
)

// ErrTruncated is returned when the body ends before its declared length.
var ErrTruncated = errors.New("artifact truncated")

// ErrTooLarge is returned when an artifact exceeds MaxArtifactSize, whether
// declared by the server or counted while reading.
var ErrTooLarge = errors.New("artifact too large")

// DefaultArtifactURL returns the download location of the release
// executable for the platform.
func DefaultArtifactURL(p Platform) string {
	if p.OS == "windows" {
		return legacyArtifactURL
	}
	return releaseDownloadURL + fmt.Sprintf("lista-tools-%s-%s", p.OS, p.Arch)
}

// Percent returns the completed share in percent, or false when the total
// length is unknown.
func (p Progress) Percent() (float64, bool) {
	if p.TotalBytes <= 0 {
		return 0, false
	}
	return float64(p.BytesDone) / float64(p.TotalBytes) * 100, true
}

// HTTPFetcher downloads release artifacts over HTTP
type HTTPFetcher struct {
	client    *http.Client
	chunkSize int
	maxSize   int64
	logger    *log.Logger
}

// NewHTTPFetcher creates a fetcher reading chunkSize bytes between progress
// events. The client has no overall timeout since artifacts may be large;
// cancellation comes from the context.
func NewHTTPFetcher(chunkSize int) *HTTPFetcher {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &HTTPFetcher{
		client:    &http.Client{},
		chunkSize: chunkSize,
		maxSize:   MaxArtifactSize,
		logger:    logging.Discard(),
	}
}

// WithHTTPClient replaces the client used for downloads.
func (f *HTTPFetcher) WithHTTPClient(c *http.Client) *HTTPFetcher {
	if c != nil {
		f.client = c
	}
	return f
}

// WithLogger sets the logger download steps are reported to.
func (f *HTTPFetcher) WithLogger(l *log.Logger) *HTTPFetcher {
	if l != nil {
		f.logger = l
	}
	return f
}

// Fetch downloads the artifact at url, hashing it while it streams in.
// progress, if non-nil, is called after every chunk. Any failure returns
// a nil artifact; partial data is never handed out.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, progress ProgressFunc) (*Artifact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	f.logger.Info("downloading update", "url", url)
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download of %s returned status %d", url, resp.StatusCode)
	}

	declared := resp.ContentLength
	if declared < 0 {
		declared = -1
	}
	if declared > f.maxSize {
		return nil, fmt.Errorf("%w: %s declares %d bytes, limit is %d", ErrTooLarge, url, declared, f.maxSize)
	}

	var buf bytes.Buffer
	if declared > 0 {
		buf.Grow(int(declared))
	}
	hasher := sha256.New()
	sink := io.MultiWriter(&buf, hasher)

	chunk := make([]byte, f.chunkSize)
	var received int64
	for {
		n, rerr := resp.Body.Read(chunk)
		if n > 0 {
			_, _ = sink.Write(chunk[:n])
			received += int64(n)
			if received > f.maxSize {
				return nil, fmt.Errorf("%w: %s sent more than %d bytes", ErrTooLarge, url, f.maxSize)
			}
			if progress != nil {
				progress(Progress{BytesDone: received, TotalBytes: declared})
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, fmt.Errorf("reading %s after %d bytes: %w", url, received, rerr)
		}
	}

	if declared >= 0 && received != declared {
		return nil, fmt.Errorf("%w: received %d of %d bytes", ErrTruncated, received, declared)
	}

	digest := hex.EncodeToString(hasher.Sum(nil))
	f.logger.Debug("download finished", "bytes", received, "sha256", digest)

	return &Artifact{
		Data:     buf.Bytes(),
		Declared: declared,
		Received: received,
		Digest:   digest,
	}, nil
}
