package uninstaller

import (
	"context"
	"fmt"
	"os"

	"github.com/oshokin/kicad-plugin-install/internal/config"
	"github.com/oshokin/kicad-plugin-install/internal/domain/plugin"
	"github.com/oshokin/kicad-plugin-install/internal/logger"
	"github.com/oshokin/kicad-plugin-install/internal/repository/lock"
	"github.com/oshokin/kicad-plugin-install/internal/repository/manifest"
)

// Options are inputs accepted by the uninstaller entry point.
type Options struct {
	// InstallBase overrides the KiCad configuration root when non-empty.
	InstallBase string
	// Environment holds XDG_CONFIG_HOME and HOME as captured by the caller.
	Environment plugin.Environment
	// Settings selects the plugin name. Nil means config.Default().
	Settings *config.Config
}

// Run removes the plugin directory and its manifest. Removing a plugin that
// is not installed succeeds.
func Run(ctx context.Context, opts *Options) (*plugin.Layout, error) {
	ctx = logger.WithName(ctx, "uninstaller")

	settings := opts.Settings
	if settings == nil {
		settings = config.Default()
	}

	if err := config.Validate(settings); err != nil {
		return nil, err
	}

	layout, err := plugin.Resolve(opts.Environment, opts.InstallBase, settings.PluginName)
	if err != nil {
		return nil, err
	}

	ctx = logger.WithKV(ctx, "plugin_dir", layout.PluginDir)

	installLock := lock.NewFileLock(layout.LockPath())
	if err = installLock.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("acquire install lock: %w", err)
	}

	defer func() {
		if releaseErr := installLock.Release(); releaseErr != nil {
			logger.WarnKV(ctx, "Unable to release install lock", "error", releaseErr)
		}
	}()

	logger.Info(ctx, "Removing plugin directory")

	if err = os.RemoveAll(layout.PluginDir); err != nil {
		return nil, plugin.NewFilesystemError(plugin.OpRemove, layout.PluginDir, err)
	}

	if err = manifest.NewFileRepository(layout.ManifestPath()).Delete(ctx); err != nil {
		return nil, plugin.NewFilesystemError(plugin.OpRemove, layout.ManifestPath(), err)
	}

	logger.Info(ctx, "Plugin removed")

	return layout, nil
}
