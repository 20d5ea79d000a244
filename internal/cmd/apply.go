package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/stadtarchiv-lindau/lista-tools/internal/handoff"
	"github.com/stadtarchiv-lindau/lista-tools/internal/interactive"
	"github.com/stadtarchiv-lindau/lista-tools/internal/logging"
	"github.com/stadtarchiv-lindau/lista-tools/internal/output"
	"github.com/stadtarchiv-lindau/lista-tools/internal/update"
)

// applyParams bundles the inputs of the updater so runApply can be tested
// without a real Cobra command or terminal.
type applyParams struct {
	stdin       io.Reader
	stdout      io.Writer
	stderr      io.Writer
	target      string // Executable to replace
	encoded     string // Encoded handoff config, may be empty
	interactive bool   // stdin is a terminal
	platform    update.Platform
}

// ExecuteUpdater runs the standalone lista-update program.
func ExecuteUpdater(ctx context.Context, version, commit, date string) error {
	a := &app{version: version, commit: commit, date: date}
	root := newApplyCmd(a)
	root.Use = update.UpdaterName + " <target> [<config>]"
	root.Hidden = false
	return fang.Execute(
		ctx,
		root,
		fang.WithVersion(a.versionString()),
		fang.WithNotifySignal(os.Interrupt),
	)
}

func newApplyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   update.ApplyCommand + " <target> [<config>]",
		Short: "Replace a lista-tools executable with the newest release",
		Long: `Download the newest lista-tools release, verify its checksum and replace
the executable at <target> with it.

This is started by lista-tools itself; <config> is the encoded configuration
lista-tools passes along.`,
		Hidden:       true,
		SilenceUsage: true,
		Args:         cobra.ArbitraryArgs,
		// The updater takes its settings from <config> and never re-checks
		// for updates.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			p := applyParams{
				stdin:       cmd.InOrStdin(),
				stdout:      cmd.OutOrStdout(),
				stderr:      cmd.ErrOrStderr(),
				interactive: stdinTerminal(),
				platform:    detectPlatform(),
			}
			if len(args) == 0 || len(args) > 2 {
				err := fmt.Errorf("%w: expected <target> [<config>], got %d arguments", handoff.ErrInvalid, len(args))
				return reportApplyError(p, err)
			}
			p.target = args[0]
			if len(args) == 2 {
				p.encoded = args[1]
			}
			return runApply(cmd.Context(), p)
		},
	}
}

// runApply decodes the handoff, runs one update transaction against the
// target and reports the outcome. A declined prompt is not an error.
func runApply(ctx context.Context, p applyParams) error {
	uc, err := handoff.Decode(p.encoded)
	if err != nil {
		return reportApplyError(p, err)
	}
	if p.target == "" {
		return reportApplyError(p, fmt.Errorf("%w: target path is empty", handoff.ErrInvalid))
	}
	slots, err := update.NewSlots(p.target, uc.TargetDirectory)
	if err != nil {
		return reportApplyError(p, fmt.Errorf("%w: %v", handoff.ErrInvalid, err))
	}

	logger := logging.New(p.stderr, uc.LoggingLevel)

	var prompter *interactive.Prompter
	var decider update.Decider = update.AutoDecider{}
	if !uc.AutoConfirm {
		prompter = interactive.NewPrompterWithIO(p.stdin, p.stdout)
		decider = prompter
	}
	// A new console window on Windows closes as soon as the updater exits.
	holdWindow := prompter != nil && p.interactive && p.platform.OS == "windows"

	artifactURL := uc.ArtifactURL
	if artifactURL == "" {
		artifactURL = update.DefaultArtifactURL(p.platform)
	}

	bar := output.NewProgressBar(p.stdout)
	tx, err := update.NewTransaction(update.TransactionConfig{
		Slots:       slots,
		ArtifactURL: artifactURL,
		Manifest:    update.NewManifest(uc.DigestURL).WithLogger(logger),
		Fetcher:     update.NewHTTPFetcher(uc.ChunkSize).WithLogger(logger),
		Decider:     decider,
		Lock:        update.NewFileLock(slots.Lock(), logger),
		Logger:      logger,
		Progress: func(pr update.Progress) {
			bar.Update(pr.BytesDone, pr.TotalBytes)
		},
	})
	if err != nil {
		return reportApplyError(p, err)
	}

	_, _ = fmt.Fprintf(p.stdout, "Updating %s\n", output.HighlightStyle.Render(slots.Current))
	out, runErr := tx.Run(ctx)
	if out != nil && out.ActualDigest != "" {
		bar.Finish(out.Bytes)
	}

	switch {
	case runErr == nil:
		reportSuccess(p.stdout, out, p.platform)
	case update.IsDeclined(runErr):
		reportDeclined(p.stdout, runErr)
	default:
		err := reportApplyError(p, runErr)
		if holdWindow {
			prompter.WaitForEnter("Press Enter to close this window.")
		}
		return err
	}

	if holdWindow {
		prompter.WaitForEnter("Update complete. Press Enter to close this window.")
	}
	return nil
}

func reportSuccess(w io.Writer, out *update.Outcome, platform update.Platform) {
	fprintln(w, output.SuccessStyle.Render("lista-tools was updated."))
	if out.Verified {
		fprintln(w, output.MutedStyle.Render("Checksum verified (sha256 "+out.ActualDigest+")."))
	} else {
		fprintln(w, output.ErrorStyle.Render("The update was installed UNVERIFIED (sha256 "+out.ActualDigest+")."))
	}
	for _, warning := range out.Warnings {
		fprintln(w, output.WarningStyle.Render("warning: "+warning))
	}
	if len(out.Warnings) > 0 && platform.LocksRunningExecutable() {
		fprintln(w, output.MutedStyle.Render("The previous version was probably still running. Delete the .old file once lista-tools is closed."))
	}
	fprintln(w, "Please open lista-tools again.")
}

func reportDeclined(w io.Writer, err error) {
	fprintln(w, "Update cancelled.")
	var txErr *update.TxError
	if errors.As(err, &txErr) && txErr.Recovery != "" {
		fprintln(w, output.MutedStyle.Render(txErr.Recovery))
	}
}

// reportApplyError prints the full failure with its recovery advice and
// returns an ExitError carrying the classified exit code.
func reportApplyError(p applyParams, err error) error {
	code := classifyApplyExitCode(err)
	fprintln(p.stderr, output.ErrorStyle.Render(formatApplyError(err)))
	return &ExitError{
		Code:    code,
		Err:     err,
		Message: fmt.Sprintf("update failed (exit code %d)", code),
	}
}
