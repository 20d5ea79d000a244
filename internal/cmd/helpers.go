package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/stadtarchiv-lindau/lista-tools/internal/interactive"
	"github.com/stadtarchiv-lindau/lista-tools/internal/update"
)

// Process lookups, replaced in tests.
var (
	osExecutable   = os.Executable
	evalSymlinks   = filepath.EvalSymlinks
	exitProcess    = os.Exit
	stdinTerminal  = interactive.IsTerminal
	detectPlatform = update.Detect

	spawner update.Spawner = update.ProcessSpawner{}
)

// annotationSkipUpdateCheck marks commands that must not trigger the
// update check before they run.
const annotationSkipUpdateCheck = "lista-tools/skip-update-check"

// executablePath returns the absolute path of the running executable with
// symlinks resolved, which is the file an update replaces.
func executablePath() (string, error) {
	exe, err := osExecutable()
	if err != nil {
		return "", fmt.Errorf("locating the lista-tools executable: %w", err)
	}
	if resolved, err := evalSymlinks(exe); err == nil {
		exe = resolved
	}
	abs, err := filepath.Abs(exe)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", exe, err)
	}
	return abs, nil
}

// skipsUpdateCheck returns true for commands that run without the update
// check: hidden commands, help, and anything annotated.
func skipsUpdateCheck(c *cobra.Command) bool {
	for cur := c; cur != nil; cur = cur.Parent() {
		if cur.Annotations[annotationSkipUpdateCheck] == "true" {
			return true
		}
	}
	return c.Hidden || c.Name() == "help"
}

func skipUpdateCheck() map[string]string {
	return map[string]string{annotationSkipUpdateCheck: "true"}
}

// fprintln writes a line to w, ignoring errors as terminal output does.
func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}
