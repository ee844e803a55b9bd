package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/kicad-plugin-install/internal/config"
	"github.com/oshokin/kicad-plugin-install/internal/domain/plugin"
	"github.com/oshokin/kicad-plugin-install/internal/logger"
	"github.com/oshokin/kicad-plugin-install/internal/service/installer"
	"github.com/oshokin/kicad-plugin-install/internal/version"
)

const (
	// exitFailure is returned for filesystem and other runtime failures.
	exitFailure = 1
	// exitConfiguration is returned when no plugin directory could be resolved.
	exitConfiguration = 2
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// sourceDir overrides the source directory from the settings.
	sourceDir string
	// logLevel overrides the log level from the settings.
	logLevel string
	// staged enables the copy-then-swap install.
	staged bool

	// rootCmd installs the plugin.
	rootCmd = &cobra.Command{
		Use:   "kicad-plugin-install [install-base]",
		Short: "Install the security_mesh plugin into KiCad's scripting plugin directory",
		Long: "Copy the current directory into <install-base>/scripting/plugins/security_mesh, " +
			"replacing whatever was installed there. The install base defaults to " +
			"$XDG_CONFIG_HOME/kicad, or $HOME/.config/kicad when XDG_CONFIG_HOME is unset.",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("staged") {
				settings.Staged = staged
			}

			options := &installer.Options{
				InstallBase: installBaseArg(args),
				Environment: plugin.EnvironmentFromLookup(os.LookupEnv),
				Settings:    settings,
			}

			_, err = installer.Run(cmd.Context(), options)

			return err
		},
	}
)

// Execute runs the CLI and exits with status 2 for configuration errors and 1 for other failures.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)

	err := rootCmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	if errors.Is(err, plugin.ErrConfiguration) {
		return exitConfiguration
	}

	return exitFailure
}

// installBaseArg returns the optional positional install base.
func installBaseArg(args []string) string {
	if len(args) == 0 {
		return ""
	}

	return args[0]
}

// loadSettings reads the settings file, applies flag overrides and sets the log level.
// The default settings file is optional; an explicitly passed one must exist.
func loadSettings(cmd *cobra.Command) (*config.Config, error) {
	var (
		settings *config.Config
		err      error
	)

	if cmd.Flags().Changed("config") {
		settings, err = config.Load(configPath)
	} else {
		settings, err = config.LoadOptional(configPath)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", plugin.ErrConfiguration, err)
	}

	if cmd.Flags().Changed("source") {
		settings.SourceDir = sourceDir
	}

	if cmd.Flags().Changed("log-level") {
		settings.LogLevel = logLevel
	}

	if err = config.Validate(settings); err != nil {
		return nil, err
	}

	if level, ok := logger.ParseLogLevel(settings.LogLevel); ok {
		logger.SetLevel(level)
	}

	return settings, nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&sourceDir, "source", "s", config.DefaultSourceDir, "directory to install")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&staged, "staged", false, "copy into a staging directory and swap it in with a rename")

	rootCmd.AddCommand(pathCmd, uninstallCmd, verifyCmd)
}
