package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stadtarchiv-lindau/lista-tools/internal/update"
)

// newUpdateCmd creates `update`, or `force-update` when forced is set.
func newUpdateCmd(a *app, forced bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Install the newest release if it is newer than this one",
		Long: `Check for a newer lista-tools release and install it.

lista-tools starts the updater and exits. Open lista-tools again after the
update has finished.`,
		Annotations: skipUpdateCheck(),
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLaunch(a, cmd, forced)
		},
	}
	if forced {
		cmd.Use = "force-update"
		cmd.Short = "Reinstall the newest release even if it is not newer"
		cmd.Long = `Download and install the newest lista-tools release regardless of the
installed version. Use this to repair a damaged installation.`
	}
	return cmd
}

func runLaunch(a *app, cmd *cobra.Command, forced bool) error {
	res, err := a.launch(cmd, forced)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case res.Started:
		// The updater owns the terminal now.
	case forced || update.IsUpdateAvailable(res.Installed, res.Available):
		fprintln(out, "Update skipped.")
	case !res.Installed.IsResolved() || !res.Available.IsResolved():
		fprintln(out, "Could not determine whether an update is available. Use 'lista-tools force-update' to reinstall the newest release.")
	default:
		_, _ = fmt.Fprintf(out, "lista-tools is up to date (%s).\n", res.Installed)
	}
	return nil
}
