package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stadtarchiv-lindau/lista-tools/internal/handoff"
	"github.com/stadtarchiv-lindau/lista-tools/internal/update"
)

type spawnCall struct {
	path string
	args []string
}

type recordingSpawner struct {
	calls []spawnCall
}

func (s *recordingSpawner) Spawn(path string, args ...string) error {
	s.calls = append(s.calls, spawnCall{path: path, args: args})
	return nil
}

func (s *recordingSpawner) Run(path string, args ...string) (int, error) {
	s.calls = append(s.calls, spawnCall{path: path, args: args})
	return 0, nil
}

// cliFixture is an installed lista-tools with a sibling updater, a version
// marker and a config file pointing at a fake release server.
type cliFixture struct {
	exe      string
	updater  string
	config   string
	spawner  *recordingSpawner
	exitCode int
	exited   bool
	stdout   bytes.Buffer
	stderr   bytes.Buffer
}

func newCLIFixture(t *testing.T, installed, published string, checkOnStart bool) *cliFixture {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if published == "" {
			http.Error(w, "gone", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(published + "\n"))
	}))
	t.Cleanup(srv.Close)

	dir, err := filepath.Abs(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	f := &cliFixture{
		exe:     filepath.Join(dir, "lista-tools"),
		updater: filepath.Join(dir, "lista-update"),
		config:  filepath.Join(dir, "config.yaml"),
		spawner: &recordingSpawner{},
	}
	for _, p := range []string{f.exe, f.updater} {
		if err := os.WriteFile(p, []byte("binary"), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if installed != "" {
		if err := os.WriteFile(filepath.Join(dir, update.VersionFileName), []byte(installed+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := "release:\n  version_url: " + srv.URL + "/VERSION\nupdate:\n  log_level: none\n"
	if !checkOnStart {
		cfg += "  check_on_start: false\n"
	}
	if err := os.WriteFile(f.config, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	origExe, origEval, origExit, origPlatform, origSpawner := osExecutable, evalSymlinks, exitProcess, detectPlatform, spawner
	t.Cleanup(func() {
		osExecutable, evalSymlinks, exitProcess, detectPlatform, spawner = origExe, origEval, origExit, origPlatform, origSpawner
	})
	osExecutable = func() (string, error) { return f.exe, nil }
	evalSymlinks = func(p string) (string, error) { return p, nil }
	exitProcess = func(code int) { f.exited, f.exitCode = true, code }
	detectPlatform = func() update.Platform { return update.Platform{OS: "linux", Arch: "amd64"} }
	spawner = f.spawner

	return f
}

// run executes the CLI with args, feeding stdin to prompts.
func (f *cliFixture) run(t *testing.T, stdin string, args ...string) error {
	t.Helper()
	f.stdout.Reset()
	f.stderr.Reset()

	root := newRootCmd(&app{version: "dev"})
	root.SetArgs(append(args, "--config", f.config))
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&f.stdout)
	root.SetErr(&f.stderr)
	return root.ExecuteContext(context.Background())
}

func TestUpdateCmd_LaunchesUpdater(t *testing.T) {
	f := newCLIFixture(t, "1.0.0", "1.1.0", true)

	if err := f.run(t, "", "update", "--yes"); err != nil {
		t.Fatalf("update error = %v", err)
	}

	if len(f.spawner.calls) != 1 {
		t.Fatalf("spawned %d processes, want 1", len(f.spawner.calls))
	}
	call := f.spawner.calls[0]
	if call.path != f.updater {
		t.Errorf("spawned %s, want the sibling updater %s", call.path, f.updater)
	}
	if len(call.args) != 2 || call.args[0] != f.exe {
		t.Fatalf("updater args = %v, want [%s <config>]", call.args, f.exe)
	}

	uc, err := handoff.Decode(call.args[1])
	if err != nil {
		t.Fatalf("handoff.Decode() error = %v", err)
	}
	if !uc.AutoConfirm || uc.TargetDirectory != filepath.Dir(f.exe) || uc.LoggingLevel != "none" {
		t.Errorf("handoff config = %+v", uc)
	}
	if !f.exited || f.exitCode != 0 {
		t.Errorf("exit called = %v with %d, want exit 0", f.exited, f.exitCode)
	}
	if !strings.Contains(f.stdout.String(), update.StartMessage) {
		t.Errorf("stdout missing the start message:\n%s", f.stdout.String())
	}
}

func TestUpdateCmd_NoUpdate(t *testing.T) {
	tests := []struct {
		name      string
		installed string
		published string
		stdin     string
		want      string
	}{
		{"up to date", "1.0.0", "1.0.0", "", "lista-tools is up to date (1.0.0)."},
		{"installed is newer", "1.2.0", "1.1.0", "", "up to date"},
		{"published unknown", "1.0.0", "", "", "Could not determine"},
		{"installed unknown", "", "1.1.0", "", "Could not determine"},
		{"declined", "1.0.0", "1.1.0", "n\n", "Update skipped."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCLIFixture(t, tt.installed, tt.published, true)

			if err := f.run(t, tt.stdin, "update"); err != nil {
				t.Fatalf("update error = %v", err)
			}
			if len(f.spawner.calls) != 0 || f.exited {
				t.Errorf("updater started: %v, exited: %v", f.spawner.calls, f.exited)
			}
			if !strings.Contains(f.stdout.String(), tt.want) {
				t.Errorf("stdout missing %q:\n%s", tt.want, f.stdout.String())
			}
		})
	}
}

func TestForceUpdateCmd_SameVersion(t *testing.T) {
	f := newCLIFixture(t, "1.1.0", "1.1.0", true)

	if err := f.run(t, "y\n", "force-update"); err != nil {
		t.Fatalf("force-update error = %v", err)
	}
	if len(f.spawner.calls) != 1 {
		t.Fatalf("spawned %d processes, want 1", len(f.spawner.calls))
	}
	if !strings.Contains(f.stdout.String(), "Reinstall") {
		t.Errorf("force-update should ask to reinstall:\n%s", f.stdout.String())
	}

	uc, err := handoff.Decode(f.spawner.calls[0].args[1])
	if err != nil {
		t.Fatal(err)
	}
	if uc.AutoConfirm {
		t.Error("auto_confirm should stay off without --yes")
	}
}

func TestPreRunUpdateCheck(t *testing.T) {
	t.Run("offers the update before the command", func(t *testing.T) {
		f := newCLIFixture(t, "1.0.0", "1.1.0", true)

		if err := f.run(t, "n\n", "version"); err != nil {
			t.Fatalf("version error = %v", err)
		}
		out := f.stdout.String()
		if !strings.Contains(out, "A new version of lista-tools is available (1.0.0 -> 1.1.0)") {
			t.Errorf("stdout missing the update prompt:\n%s", out)
		}
		if !strings.Contains(out, "Installed version: 1.0.0") {
			t.Errorf("the command should still run after declining:\n%s", out)
		}
	})

	t.Run("hands over when confirmed", func(t *testing.T) {
		f := newCLIFixture(t, "1.0.0", "1.1.0", true)

		if err := f.run(t, "", "version", "-y"); err != nil {
			t.Fatalf("version error = %v", err)
		}
		if len(f.spawner.calls) != 1 || !f.exited {
			t.Errorf("pre-run check should start the updater and exit")
		}
	})

	disabled := []struct {
		name         string
		checkOnStart bool
		args         []string
	}{
		{"flag", true, []string{"version", "--no-update-check"}},
		{"config", false, []string{"version"}},
		{"annotation", true, []string{"completion", "bash"}},
	}
	for _, tt := range disabled {
		t.Run("disabled by "+tt.name, func(t *testing.T) {
			f := newCLIFixture(t, "1.0.0", "1.1.0", tt.checkOnStart)

			if err := f.run(t, "y\n", tt.args...); err != nil {
				t.Fatalf("%v error = %v", tt.args, err)
			}
			if strings.Contains(f.stdout.String(), "A new version") || len(f.spawner.calls) != 0 {
				t.Errorf("no update check expected:\n%s", f.stdout.String())
			}
		})
	}
}

func TestPreRunCheckFailureDoesNotBlock(t *testing.T) {
	f := newCLIFixture(t, "1.0.0", "1.1.0", true)
	osExecutable = func() (string, error) { return "", os.ErrNotExist }

	err := f.run(t, "", "version", "--log-level", "warn")
	if err == nil {
		t.Fatal("version needs the executable path and should fail")
	}
	if !strings.Contains(f.stderr.String(), "update check failed") {
		t.Errorf("stderr should log the failed check:\n%s", f.stderr.String())
	}
}

func TestVersionCmd(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		f := newCLIFixture(t, "1.0.0", "1.1.0", false)

		if err := f.run(t, "", "version", "-o", "json"); err != nil {
			t.Fatalf("version error = %v", err)
		}
		var report map[string]any
		if err := json.Unmarshal(f.stdout.Bytes(), &report); err != nil {
			t.Fatalf("output is not JSON: %v\n%s", err, f.stdout.String())
		}
		if report["installed"] != "1.0.0" || report["newest"] != "1.1.0" || report["update_available"] != true {
			t.Errorf("report = %v", report)
		}
	})

	t.Run("unresolved versions", func(t *testing.T) {
		f := newCLIFixture(t, "", "", false)

		if err := f.run(t, "", "version"); err != nil {
			t.Fatalf("version error = %v", err)
		}
		out := f.stdout.String()
		for _, want := range []string{"Error getting installed version", "Error getting newest version"} {
			if !strings.Contains(out, want) {
				t.Errorf("stdout missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("check", func(t *testing.T) {
		f := newCLIFixture(t, "1.0.0", "1.1.0", false)

		if err := f.run(t, "", "version", "--check"); err != nil {
			t.Fatalf("version error = %v", err)
		}
		if !strings.Contains(f.stdout.String(), "An update is available") {
			t.Errorf("stdout = %s", f.stdout.String())
		}
	})

	t.Run("bad format", func(t *testing.T) {
		f := newCLIFixture(t, "1.0.0", "1.1.0", false)

		if err := f.run(t, "", "version", "-o", "xml"); err == nil {
			t.Error("expected an error for an unknown output format")
		}
	})
}

func TestInvalidLogLevel(t *testing.T) {
	f := newCLIFixture(t, "1.0.0", "1.0.0", false)

	if err := f.run(t, "", "version", "--log-level", "loud"); err == nil {
		t.Error("expected an error for an unknown log level")
	}
}

func TestSkipsUpdateCheck(t *testing.T) {
	root := newRootCmd(&app{})
	tests := map[string]bool{
		"version":           false,
		"update":            true,
		"force-update":      true,
		"completion":        true,
		"init":              true,
		update.ApplyCommand: true,
	}
	for name, want := range tests {
		c, _, err := root.Find([]string{name})
		if err != nil {
			t.Fatalf("Find(%s) error = %v", name, err)
		}
		if got := skipsUpdateCheck(c); got != want {
			t.Errorf("skipsUpdateCheck(%s) = %v, want %v", name, got, want)
		}
	}
}
