package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/kicad-plugin-install/internal/domain/plugin"
	"github.com/oshokin/kicad-plugin-install/internal/service/uninstaller"
)

// uninstallCmd removes the installed plugin directory.
var uninstallCmd = &cobra.Command{
	Use:          "uninstall [install-base]",
	Short:        "Remove the installed plugin directory and its manifest",
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		options := &uninstaller.Options{
			InstallBase: installBaseArg(args),
			Environment: plugin.EnvironmentFromLookup(os.LookupEnv),
			Settings:    settings,
		}

		_, err = uninstaller.Run(cmd.Context(), options)

		return err
	},
}
