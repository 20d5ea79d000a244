package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/stadtarchiv-lindau/lista-tools/internal/config"
	"github.com/stadtarchiv-lindau/lista-tools/internal/handoff"
	"github.com/stadtarchiv-lindau/lista-tools/internal/interactive"
	"github.com/stadtarchiv-lindau/lista-tools/internal/logging"
	"github.com/stadtarchiv-lindau/lista-tools/internal/types"
	"github.com/stadtarchiv-lindau/lista-tools/internal/update"
)

// app carries build information, global flags and the state loaded before
// a command runs.
type app struct {
	version string
	commit  string
	date    string

	// Global flags
	configPath    string
	logLevel      string
	yes           bool
	noUpdateCheck bool

	cfg    *config.Config
	level  types.LogLevel
	logger *log.Logger
}

// Execute runs the lista-tools CLI.
func Execute(ctx context.Context, version, commit, date string) error {
	a := &app{version: version, commit: commit, date: date}
	return fang.Execute(
		ctx,
		newRootCmd(a),
		fang.WithVersion(a.versionString()),
		fang.WithNotifySignal(os.Interrupt),
	)
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lista-tools",
		Short: "Archive housekeeping tools for the Stadtarchiv Lindau",
		Long: `lista-tools bundles the archive housekeeping commands used at the Stadtarchiv Lindau.

Before a command runs, lista-tools checks whether a newer release is published
and offers to install it. Use --no-update-check or update.check_on_start in the
config file to turn the check off.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: none, error, warn, full, debug")
	rootCmd.PersistentFlags().BoolVarP(&a.yes, "yes", "y", false, "Answer yes to every update prompt")
	rootCmd.PersistentFlags().BoolVar(&a.noUpdateCheck, "no-update-check", false, "Skip the update check before the command runs")

	rootCmd.AddCommand(newVersionCmd(a))
	rootCmd.AddCommand(newUpdateCmd(a, false))
	rootCmd.AddCommand(newUpdateCmd(a, true))
	rootCmd.AddCommand(newApplyCmd(a))
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newCompletionCmd())

	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		levels := make([]string, 0, len(types.AllLogLevels()))
		for _, l := range types.AllLogLevels() {
			levels = append(levels, l.String())
		}
		return levels, cobra.ShellCompDirectiveNoFileComp
	})

	return rootCmd
}

func (a *app) versionString() string {
	if a.version == "" || a.version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", a.version, a.commit, a.date)
}

// setup loads the configuration, builds the logger and, unless disabled,
// offers an update before the command runs. A failed update check is logged
// and never blocks the command.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadOrDefault(a.configPath)
	if err != nil {
		return err
	}
	level := cfg.LogLevel()
	if a.logLevel != "" {
		if level, err = types.ParseLogLevel(a.logLevel); err != nil {
			return err
		}
	}

	a.cfg = cfg
	a.level = level
	a.logger = logging.New(cmd.ErrOrStderr(), level)
	if cfg.Path() != "" {
		a.logger.Debug("loaded config", "path", cfg.Path())
	}

	if a.noUpdateCheck || !cfg.CheckOnStart() || skipsUpdateCheck(cmd) {
		return nil
	}
	if _, err := a.launch(cmd, false); err != nil {
		a.logger.Warn("update check failed", "err", err)
	}
	return nil
}

func (a *app) autoConfirm() bool {
	return a.yes || (a.cfg != nil && a.cfg.Update.AutoConfirm)
}

// oracle builds the version oracle for the executable at exe.
func (a *app) oracle(exe string) update.Checker {
	return update.NewOracle(
		a.cfg.VersionFilePath(filepath.Dir(exe), update.VersionFileName),
		a.cfg.Release.VersionURL,
	).
		WithBuildVersion(a.version).
		WithHTTPClient(&http.Client{Timeout: a.cfg.Timeout()}).
		WithLogger(a.logger)
}

func (a *app) decider(cmd *cobra.Command) update.Decider {
	if a.autoConfirm() {
		return update.AutoDecider{}
	}
	return interactive.NewPrompterWithIO(cmd.InOrStdin(), cmd.OutOrStdout())
}

// handoffConfig is the configuration passed to the updater for exe.
func (a *app) handoffConfig(exe string) handoff.UpdateConfig {
	return handoff.UpdateConfig{
		Schema:          handoff.SchemaVersion,
		LoggingLevel:    a.level,
		AutoConfirm:     a.autoConfirm(),
		TargetDirectory: filepath.Dir(exe),
		DigestURL:       a.cfg.Release.DigestURL,
		ArtifactURL:     a.cfg.Release.ArtifactURL,
		ChunkSize:       a.cfg.Update.ChunkSize,
	}
}

// launchResult is what the pre-run check and the update commands learned.
type launchResult struct {
	Installed update.Resolved
	Available update.Resolved
	Started   bool // The updater was spawned
}

// launch compares the installed and the published version and hands over
// to the updater when an update is due or forced.
func (a *app) launch(cmd *cobra.Command, forced bool) (launchResult, error) {
	ctx := cmd.Context()
	exe, err := executablePath()
	if err != nil {
		return launchResult{}, err
	}

	oracle := a.oracle(exe)
	res := launchResult{
		Installed: oracle.ResolveInstalled(ctx),
		Available: oracle.ResolveAvailable(ctx),
	}

	bridge := update.NewBridge(update.BridgeConfig{
		Executable: exe,
		Updater:    a.cfg.Update.Updater,
		Platform:   detectPlatform(),
		Decider:    a.decider(cmd),
		Spawner:    spawner,
		Exit:       exitProcess,
		Out:        cmd.OutOrStdout(),
		Logger:     a.logger,
	})
	res.Started, err = bridge.MaybeUpdate(ctx, res.Installed, res.Available, forced, a.handoffConfig(exe))
	return res, err
}
