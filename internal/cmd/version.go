package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stadtarchiv-lindau/lista-tools/internal/output"
	"github.com/stadtarchiv-lindau/lista-tools/internal/update"
)

// versionReport is what the version command prints.
type versionReport struct {
	Installed       string `json:"installed" yaml:"installed"`
	Newest          string `json:"newest" yaml:"newest"`
	UpdateAvailable bool   `json:"update_available" yaml:"update_available"`
	Build           string `json:"build" yaml:"build"`
	check           bool
}

func (r versionReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Installed version: %s\n", r.Installed)
	fmt.Fprintf(&b, "Newest version:    %s", r.Newest)
	if r.check {
		b.WriteString("\n\n")
		if r.UpdateAvailable {
			b.WriteString(output.HighlightStyle.Render("An update is available. Run 'lista-tools update' to install it."))
		} else {
			b.WriteString("No update available.")
		}
	}
	return b.String()
}

// displayVersion renders a resolved version, or the placeholder the user
// sees when it could not be determined.
func displayVersion(v update.Resolved, placeholder string) string {
	if !v.IsResolved() {
		return placeholder
	}
	return v.String()
}

func newVersionCmd(a *app) *cobra.Command {
	var (
		check  bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show the installed and the newest published version",
		Long: `Display the installed lista-tools version and the newest published release.

Examples:
  lista-tools version              # Show both versions
  lista-tools version --check      # Also say whether an update is available
  lista-tools version -o json      # Machine-readable output`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			exe, err := executablePath()
			if err != nil {
				return err
			}

			oracle := a.oracle(exe)
			installed := oracle.ResolveInstalled(cmd.Context())
			newest := oracle.ResolveAvailable(cmd.Context())

			return output.NewWriter(cmd.OutOrStdout(), f).Write(versionReport{
				Installed:       displayVersion(installed, "Error getting installed version"),
				Newest:          displayVersion(newest, "Error getting newest version"),
				UpdateAvailable: update.IsUpdateAvailable(installed, newest),
				Build:           a.versionString(),
				check:           check,
			})
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Report whether an update is available")
	cmd.Flags().StringVarP(&format, "output", "o", string(output.FormatText), "Output format: "+strings.Join(output.FormatNames(), ", "))
	_ = cmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return output.FormatNames(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}
