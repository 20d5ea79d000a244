package update

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stadtarchiv-lindau/lista-tools/internal/types"
)

// failingWriteFS leaves a partial file behind and then fails.
type failingWriteFS struct {
	OSFileSystem
}

func (failingWriteFS) WriteFile(name string, data []byte, perm fs.FileMode) error {
	_ = os.WriteFile(name, data[:len(data)/2], perm)
	return errors.New("disk full")
}

func TestNewSlots(t *testing.T) {
	dir := t.TempDir()

	slots, err := NewSlots(filepath.Join(dir, "lista-tools.exe"), "")
	if err != nil {
		t.Fatalf("NewSlots() error = %v", err)
	}
	if slots.Old != filepath.Join(dir, "lista-tools.exe.old") {
		t.Errorf("Old = %s", slots.Old)
	}
	if slots.New != filepath.Join(dir, "lista-tools.exe.new") {
		t.Errorf("New = %s", slots.New)
	}
	if slots.Lock() != filepath.Join(dir, "lista-tools.exe.lock") {
		t.Errorf("Lock() = %s", slots.Lock())
	}
	for _, name := range types.AllSlotNames() {
		if slots.Path(name) == "" {
			t.Errorf("Path(%s) is empty", name)
		}
	}
}

func TestNewSlots_RelativeToDirectory(t *testing.T) {
	dir := t.TempDir()

	slots, err := NewSlots("lista-tools", dir)
	if err != nil {
		t.Fatalf("NewSlots() error = %v", err)
	}
	if slots.Current != filepath.Join(dir, "lista-tools") {
		t.Errorf("Current = %s, want it under %s", slots.Current, dir)
	}
}

func TestNewSlots_Empty(t *testing.T) {
	if _, err := NewSlots("", ""); err == nil {
		t.Error("Expected error for empty target")
	}
}

func TestReplacerStage(t *testing.T) {
	slots := setupTarget(t, "version 1")
	if runtime.GOOS != "windows" {
		if err := os.Chmod(slots.Current, 0o750); err != nil {
			t.Fatal(err)
		}
	}

	r := NewReplacer(slots, nil, nil)
	if err := r.Stage([]byte("version 2")); err != nil {
		t.Fatalf("Stage() error = %v", err)
	}

	content, err := os.ReadFile(slots.New)
	if err != nil {
		t.Fatalf("Failed to read staged file: %v", err)
	}
	if string(content) != "version 2" {
		t.Errorf("staged content = %q", content)
	}

	if runtime.GOOS != "windows" {
		info, _ := os.Stat(slots.New)
		if info.Mode().Perm() != 0o750 {
			t.Errorf("staged permissions = %o, want 0750", info.Mode().Perm())
		}
	}
}

func TestReplacerStage_NoCurrentUsesDefaultMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not meaningful on windows")
	}
	slots := setupTarget(t, "")

	if err := NewReplacer(slots, nil, nil).Stage([]byte("x")); err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	info, err := os.Stat(slots.New)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("staged permissions = %o, want 0755", info.Mode().Perm())
	}
}

func TestReplacerStage_RemovesPartialFile(t *testing.T) {
	slots := setupTarget(t, "version 1")

	err := NewReplacer(slots, failingWriteFS{}, nil).Stage([]byte("version 2"))
	if err == nil {
		t.Fatal("Expected staging error")
	}
	if _, err := os.Stat(slots.New); !os.IsNotExist(err) {
		t.Error("partial staged file should be removed")
	}
}

func TestReplacerSwapSteps(t *testing.T) {
	slots := setupTarget(t, "version 1")
	r := NewReplacer(slots, nil, nil)

	if err := r.Stage([]byte("version 2")); err != nil {
		t.Fatal(err)
	}
	if err := r.MoveAside(); err != nil {
		t.Fatalf("MoveAside() error = %v", err)
	}
	if ok, _ := r.Exists(types.SlotCurrent); ok {
		t.Error("current should be gone after MoveAside")
	}
	if err := r.Promote(); err != nil {
		t.Fatalf("Promote() error = %v", err)
	}
	if got, _ := os.ReadFile(slots.Current); string(got) != "version 2" {
		t.Errorf("current = %q, want version 2", got)
	}
	if got, _ := os.ReadFile(slots.Old); string(got) != "version 1" {
		t.Errorf("old = %q, want version 1", got)
	}

	if err := r.Remove(types.SlotOld); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := r.Remove(types.SlotOld); err != nil {
		t.Errorf("removing a missing slot should succeed, got %v", err)
	}
}

func TestReplacerPromote_NothingStaged(t *testing.T) {
	slots := setupTarget(t, "version 1")
	if err := NewReplacer(slots, nil, nil).Promote(); err == nil {
		t.Error("Expected error when nothing is staged")
	}
}

func TestOSFileSystemWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	if err := (OSFileSystem{}).WriteFile(path, []byte("data"), 0o700); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := (OSFileSystem{}).WriteFile(path, []byte("new"), 0o700); err != nil {
		t.Fatalf("WriteFile() overwrite error = %v", err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "new" {
		t.Errorf("content = %q, want truncated overwrite", got)
	}
}
