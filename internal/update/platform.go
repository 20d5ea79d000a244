package update

import (
	"path/filepath"
	"runtime"
)

// UpdaterName is the base name of the standalone updater shipped next to
// the lista-tools executable.
const UpdaterName = "lista-update"

// Detect returns the current platform (OS and architecture)
func Detect() Platform {
	return Platform{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}
}

// ExecutableName returns base with the platform's executable suffix,
// e.g. "lista-update.exe" on Windows.
func (p Platform) ExecutableName(base string) string {
	if p.OS == "windows" && filepath.Ext(base) != ".exe" {
		return base + ".exe"
	}
	return base
}

// UpdaterPath returns where the standalone updater is expected to live for
// the executable at execPath.
func (p Platform) UpdaterPath(execPath string) string {
	return filepath.Join(filepath.Dir(execPath), p.ExecutableName(UpdaterName))
}

// LocksRunningExecutable returns true if the platform refuses to overwrite
// or delete the file backing a running process. Renaming it is still allowed.
func (p Platform) LocksRunningExecutable() bool {
	return p.OS == "windows"
}
