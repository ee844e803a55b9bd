package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/kicad-plugin-install/internal/domain/plugin"
)

// pathCmd prints the resolved plugin directory without touching the filesystem.
var pathCmd = &cobra.Command{
	Use:          "path [install-base]",
	Short:        "Print the plugin directory an install would write to",
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		env := plugin.EnvironmentFromLookup(os.LookupEnv)

		layout, err := plugin.Resolve(env, installBaseArg(args), settings.PluginName)
		if err != nil {
			return err
		}

		_, err = fmt.Fprintln(cmd.OutOrStdout(), layout.PluginDir)

		return err
	},
}
