package update

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/stadtarchiv-lindau/lista-tools/internal/handoff"
	"github.com/stadtarchiv-lindau/lista-tools/internal/logging"
)

// ApplyCommand is the hidden lista-tools subcommand that runs the updater
// from a copy of the CLI when no standalone updater is installed.
const ApplyCommand = "apply-update"

// StartMessage is printed right before the CLI hands over to the updater.
const StartMessage = "Starting update. Please open lista-tools again after the update has finished."

// BridgeConfig holds the collaborators of a Bridge.
type BridgeConfig struct {
	Executable string     // Absolute path of the running CLI, the update target
	Updater    string     // Optional updater path override
	Platform   Platform   // Defaults to Detect()
	Decider    Decider    // Asks whether to start the update
	Spawner    Spawner    // Defaults to ProcessSpawner
	Exit       func(int)  // Defaults to os.Exit
	Out        io.Writer  // Defaults to os.Stdout
	TempDir    string     // Where a fallback updater copy is made; defaults to os.TempDir()
	Logger     *log.Logger
}

// Bridge decides whether the CLI should update and, if so, hands the
// update over to a separate updater process and exits.
type Bridge struct {
	cfg    BridgeConfig
	logger *log.Logger
}

// NewBridge creates a bridge, filling defaults for unset collaborators.
func NewBridge(cfg BridgeConfig) *Bridge {
	if cfg.Platform == (Platform{}) {
		cfg.Platform = Detect()
	}
	if cfg.Decider == nil {
		cfg.Decider = AutoDecider{}
	}
	if cfg.Spawner == nil {
		cfg.Spawner = ProcessSpawner{}
	}
	if cfg.Exit == nil {
		cfg.Exit = os.Exit
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	return &Bridge{cfg: cfg, logger: logging.OrDiscard(cfg.Logger)}
}

// MaybeUpdate starts the updater when forced or when available is newer
// than installed and the user agrees. On a successful handoff it calls the
// exit function, with 0 after a detached spawn or with the updater's own
// exit code after a foreground run, and, if that returns, reports true. It reports false
// when no update is needed or the user declined.
func (b *Bridge) MaybeUpdate(ctx context.Context, installed, available Resolved, forced bool, uc handoff.UpdateConfig) (bool, error) {
	if !forced && !IsUpdateAvailable(installed, available) {
		b.logger.Debug("no update needed", "installed", installed, "available", available)
		return false, nil
	}

	msg := fmt.Sprintf("A new version of lista-tools is available (%s -> %s). Do you want to update?", installed, available)
	if forced {
		msg = fmt.Sprintf("Reinstall lista-tools from the latest release (installed: %s, newest: %s)?", installed, available)
	}
	d, err := b.cfg.Decider.Decide(ctx, Prompt{Gate: GateConfirmUpdate, Message: msg})
	if err != nil {
		return false, fmt.Errorf("asking for update confirmation: %w", err)
	}
	if !d.Proceeds() {
		b.logger.Info("update skipped")
		return false, nil
	}

	if uc.TargetDirectory == "" {
		uc.TargetDirectory = filepath.Dir(b.cfg.Executable)
	}
	encoded, err := handoff.Encode(uc)
	if err != nil {
		return false, err
	}

	path, args, err := b.LocateUpdater()
	if err != nil {
		return false, err
	}
	args = append(args, b.cfg.Executable, encoded)

	_, _ = fmt.Fprintln(b.cfg.Out, StartMessage)

	// A running executable can only be replaced from outside on platforms
	// that lock it. Elsewhere the updater runs in the foreground so its
	// prompts own the terminal instead of racing the shell for input.
	if !b.cfg.Platform.LocksRunningExecutable() {
		b.logger.Debug("running updater", "path", path, "target", b.cfg.Executable)
		code, err := b.cfg.Spawner.Run(path, args...)
		if err != nil {
			return false, fmt.Errorf("starting updater %s: %w", path, err)
		}
		b.cfg.Exit(code)
		return true, nil
	}

	b.logger.Debug("spawning updater", "path", path, "target", b.cfg.Executable)
	if err := b.cfg.Spawner.Spawn(path, args...); err != nil {
		return false, fmt.Errorf("starting updater %s: %w", path, err)
	}

	b.cfg.Exit(0)
	return true, nil
}

// LocateUpdater returns the program to run as the updater and the arguments
// that precede the target path. It prefers the configured override, then a
// lista-update executable next to the CLI, then a temporary copy of the CLI
// itself run with ApplyCommand.
func (b *Bridge) LocateUpdater() (string, []string, error) {
	if b.cfg.Updater != "" {
		if _, err := os.Stat(b.cfg.Updater); err != nil {
			return "", nil, fmt.Errorf("configured updater %s: %w", b.cfg.Updater, err)
		}
		return b.cfg.Updater, nil, nil
	}

	sibling := b.cfg.Platform.UpdaterPath(b.cfg.Executable)
	if _, err := os.Stat(sibling); err == nil {
		return sibling, nil, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", nil, fmt.Errorf("checking updater %s: %w", sibling, err)
	}

	b.logger.Debug("no standalone updater found, using a copy of the CLI", "looked_for", sibling)
	cp, err := b.copySelf()
	if err != nil {
		return "", nil, err
	}
	return cp, []string{ApplyCommand}, nil
}

// copySelf copies the running executable into a fresh temporary directory
// so the copy can replace the original while it runs.
func (b *Bridge) copySelf() (string, error) {
	dir, err := os.MkdirTemp(b.cfg.TempDir, "lista-update-")
	if err != nil {
		return "", fmt.Errorf("creating updater directory: %w", err)
	}
	dst := filepath.Join(dir, b.cfg.Platform.ExecutableName(UpdaterName))

	src, err := os.Open(b.cfg.Executable)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", b.cfg.Executable, err)
	}
	defer func() { _ = src.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, defaultExecMode)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return "", fmt.Errorf("copying updater to %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", dst, err)
	}
	return dst, nil
}

// ProcessSpawner starts updater processes with os/exec.
type ProcessSpawner struct{}

// Spawn starts path with args in a new session so it survives the exit of
// the calling process. It does not wait for the child.
func (ProcessSpawner) Spawn(path string, args ...string) error {
	cmd := exec.Command(path, args...)
	detach(cmd)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

// Run starts path with args attached to the terminal and waits for it. A
// non-zero exit of the child is returned as its code, not as an error.
func (ProcessSpawner) Run(path string, args ...string) (int, error) {
	cmd := exec.Command(path, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return -1, err
	}
	return 0, nil
}
