package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/oshokin/kicad-plugin-install/internal/domain/plugin"
	"github.com/oshokin/kicad-plugin-install/internal/service/verifier"
)

var (
	// repair restores differences found by verify.
	repair bool

	// verifyCmd compares the installed tree with the install manifest.
	verifyCmd = &cobra.Command{
		Use:          "verify [install-base]",
		Short:        "Check the installed plugin against its install manifest",
		Long: "Compare the installed plugin directory with the manifest written by the last install. " +
			"Regular files are compared by SHA-512 checksum and symlinks by target. " +
			"Directories are not tracked, so an empty extra directory is not reported.",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			options := &verifier.Options{
				InstallBase: installBaseArg(args),
				Environment: plugin.EnvironmentFromLookup(os.LookupEnv),
				Settings:    settings,
				Repair:      repair,
			}

			report, err := verifier.Run(cmd.Context(), options)
			if report != nil {
				printReport(cmd.OutOrStdout(), report)
			}

			return err
		},
	}
)

// printReport writes one line per difference, prefixed like a status listing.
// Colors are dropped automatically when stdout is not a terminal.
func printReport(w io.Writer, report *verifier.Report) {
	for _, group := range []struct {
		prefix string
		paint  *color.Color
		names  []string
	}{
		{"missing", color.New(color.FgRed), report.Missing},
		{"modified", color.New(color.FgYellow), report.Modified},
		{"unexpected", color.New(color.FgMagenta), report.Unexpected},
		{"repaired", color.New(color.FgGreen), report.Repaired},
	} {
		for _, name := range group.names {
			_, _ = fmt.Fprintf(w, "%s %s\n", group.paint.Sprintf("%-10s", group.prefix), name)
		}
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	verifyCmd.Flags().BoolVar(&repair, "repair", false, "restore missing and modified files from the recorded source directory")
}
