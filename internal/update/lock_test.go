package update

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestFileLockAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lista-tools.lock")
	lock := NewFileLock(path, nil)

	if err := lock.Acquire(); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("lock file not created: %v", err)
	}
	if strings.TrimSpace(string(data)) != strconv.Itoa(os.Getpid()) {
		t.Errorf("lock contains %q, want our PID", data)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("lock file should be removed after Release()")
	}
	if err := lock.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}
}

func TestFileLockHeldByLiveProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lista-tools.lock")
	first := NewFileLock(path, nil)
	if err := first.Acquire(); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = first.Release() }()

	second := NewFileLock(path, nil)
	err := second.Acquire()
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("Acquire() error = %v, want ErrLocked", err)
	}

	// A failed acquire must not remove someone else's lock.
	if err := second.Release(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("held lock was removed")
	}
}

func TestFileLockStale(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"dead process", "999999\n"},
		{"garbage", "not a pid"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "lista-tools.lock")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}

			lock := NewFileLock(path, nil)
			lock.pidExists = func(int32) (bool, error) { return false, nil }

			if err := lock.Acquire(); err != nil {
				t.Fatalf("Acquire() error = %v, stale lock should be replaced", err)
			}
			_ = lock.Release()
		})
	}
}

func TestFileLockUnknownLiveness(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lista-tools.lock")
	if err := os.WriteFile(path, []byte("1234"), 0o644); err != nil {
		t.Fatal(err)
	}

	lock := NewFileLock(path, nil)
	lock.pidExists = func(int32) (bool, error) { return false, errors.New("permission denied") }

	if err := lock.Acquire(); !errors.Is(err, ErrLocked) {
		t.Errorf("Acquire() error = %v, want ErrLocked when liveness is unknown", err)
	}
}
