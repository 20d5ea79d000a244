package update

import (
	"context"
	"io/fs"
)

// Platform describes the current system platform
type Platform struct {
	OS   string // Operating system (windows, darwin, linux)
	Arch string // Architecture (amd64, arm64)
}

// Progress is one event of an artifact download.
type Progress struct {
	BytesDone  int64 // Bytes received so far, monotonically increasing
	TotalBytes int64 // Declared length, or -1 when the server sent none
}

// ProgressFunc receives download progress events in order.
type ProgressFunc func(Progress)

// Artifact is a downloaded release executable held in memory.
type Artifact struct {
	Data     []byte
	Declared int64  // Content-Length of the response, -1 if unknown
	Received int64  // Bytes actually read
	Digest   string // Lowercase hex SHA-256 of Data
}

// Digest is the expected artifact hash published by the release manifest.
// An absent digest is not a mismatch: it means integrity cannot be checked.
type Digest struct {
	Hex     string // Lowercase hex SHA-256, empty when absent
	Present bool
	Reason  error // Why the digest is absent
}

// Checker resolves the installed and the latest published version.
type Checker interface {
	ResolveInstalled(ctx context.Context) Resolved
	ResolveAvailable(ctx context.Context) Resolved
}

// ManifestSource provides the expected digest of the release artifact.
type ManifestSource interface {
	FetchExpectedDigest(ctx context.Context) Digest
}

// Fetcher downloads a release artifact.
type Fetcher interface {
	Fetch(ctx context.Context, url string, progress ProgressFunc) (*Artifact, error)
}

// FileSystem is the set of file operations a transaction performs on the
// executable slots.
type FileSystem interface {
	Stat(name string) (fs.FileInfo, error)
	Rename(oldpath, newpath string) error
	Remove(name string) error
	WriteFile(name string, data []byte, perm fs.FileMode) error
}

// Locker guards a target executable against concurrent transactions.
type Locker interface {
	Acquire() error
	Release() error
}

// Spawner starts the updater process. Spawn detaches it so it outlives its
// parent; Run keeps it attached to the terminal and waits for its exit code.
type Spawner interface {
	Spawn(path string, args ...string) error
	Run(path string, args ...string) (int, error)
}
