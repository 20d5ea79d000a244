package update

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/charmbracelet/log"

	"github.com/stadtarchiv-lindau/lista-tools/internal/logging"
	"github.com/stadtarchiv-lindau/lista-tools/internal/types"
)

const defaultExecMode fs.FileMode = 0o755

// OSFileSystem implements FileSystem on the real file system.
type OSFileSystem struct{}

func (OSFileSystem) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }
func (OSFileSystem) Rename(oldpath, newpath string) error  { return os.Rename(oldpath, newpath) }
func (OSFileSystem) Remove(name string) error              { return os.Remove(name) }

// WriteFile writes data to name and syncs it to disk before returning, so a
// staged file is complete before any rename relies on it.
func (OSFileSystem) WriteFile(name string, data []byte, perm fs.FileMode) error {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// OpenFile's perm is subject to umask.
	return os.Chmod(name, perm)
}

// Replacer performs the file operations of a swap on a set of slots.
// Each method is a single step; ordering and recovery are up to the caller.
type Replacer struct {
	slots  Slots
	fs     FileSystem
	logger *log.Logger
}

// NewReplacer creates a replacer for slots. A nil fsys uses the real file
// system.
func NewReplacer(slots Slots, fsys FileSystem, logger *log.Logger) *Replacer {
	if fsys == nil {
		fsys = OSFileSystem{}
	}
	return &Replacer{
		slots:  slots,
		fs:     fsys,
		logger: logging.OrDiscard(logger),
	}
}

// Exists reports whether the named slot is present.
func (r *Replacer) Exists(name types.SlotName) (bool, error) {
	_, err := r.fs.Stat(r.slots.Path(name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("checking %s: %w", r.slots.Path(name), err)
}

// Stage writes data to the new slot with the mode of the current
// executable. A partially written file is removed.
func (r *Replacer) Stage(data []byte) error {
	mode := defaultExecMode
	if info, err := r.fs.Stat(r.slots.Current); err == nil {
		mode = info.Mode().Perm() | 0o100
	}

	r.logger.Debug("staging update", "path", r.slots.New, "bytes", len(data), "mode", mode)
	if err := r.fs.WriteFile(r.slots.New, data, mode); err != nil {
		if rmErr := r.fs.Remove(r.slots.New); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			r.logger.Warn("could not remove partial staged file", "path", r.slots.New, "err", rmErr)
		}
		return fmt.Errorf("writing %s: %w", r.slots.New, err)
	}
	return nil
}

// MoveAside renames the current executable to the old slot.
func (r *Replacer) MoveAside() error {
	r.logger.Debug("moving current executable aside", "from", r.slots.Current, "to", r.slots.Old)
	if err := r.fs.Rename(r.slots.Current, r.slots.Old); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", r.slots.Current, r.slots.Old, err)
	}
	return nil
}

// Promote renames the staged file to the current slot.
func (r *Replacer) Promote() error {
	r.logger.Debug("promoting staged update", "from", r.slots.New, "to", r.slots.Current)
	if err := r.fs.Rename(r.slots.New, r.slots.Current); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", r.slots.New, r.slots.Current, err)
	}
	return nil
}

// Remove deletes the named slot. A slot that is already gone is not an
// error.
func (r *Replacer) Remove(name types.SlotName) error {
	path := r.slots.Path(name)
	if err := r.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}
