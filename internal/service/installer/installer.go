package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/oshokin/kicad-plugin-install/internal/config"
	"github.com/oshokin/kicad-plugin-install/internal/domain/plugin"
	"github.com/oshokin/kicad-plugin-install/internal/logger"
	"github.com/oshokin/kicad-plugin-install/internal/repository/lock"
	"github.com/oshokin/kicad-plugin-install/internal/repository/manifest"
	"github.com/oshokin/kicad-plugin-install/internal/service/common"
)

// Options contains inputs for the installer entry point.
type Options struct {
	// InstallBase overrides the KiCad configuration root when non-empty.
	InstallBase string
	// Environment holds XDG_CONFIG_HOME and HOME as captured by the caller.
	Environment plugin.Environment
	// Settings tunes the install. Nil means config.Default().
	Settings *config.Config
}

// Result describes a finished install.
type Result struct {
	// Layout is the resolved set of paths.
	Layout *plugin.Layout
	// Manifest is the record saved next to the plugin directory.
	Manifest *manifest.Manifest
}

// installer replaces one plugin directory with a copy of the source tree.
// It is unexported: callers should use Run, which resolves paths and holds the lock.
type installer struct {
	// cfg holds the validated settings.
	cfg *config.Config
	// layout is the resolved destination.
	layout *plugin.Layout
	// sourceDir is the absolute source directory.
	sourceDir string
	// manifests stores the install record.
	manifests manifest.Repository
	// rename moves directories during a staged install.
	rename func(oldpath, newpath string) error
}

// errSourceNotDirectory is returned when the source path is a file.
var errSourceNotDirectory = errors.New("source is not a directory")

// Run resolves the plugin directory, replaces it with the source tree and
// records a manifest. Configuration problems are reported before any
// filesystem mutation.
func Run(ctx context.Context, opts *Options) (*Result, error) {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "installer")

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

	inst, err := newInstaller(layout, settings)
	if err != nil {
		return nil, err
	}

	installLock := lock.NewFileLock(layout.LockPath())
	if err = installLock.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("acquire install lock: %w", err)
	}

	defer func() {
		if releaseErr := installLock.Release(); releaseErr != nil {
			logger.WarnKV(ctx, "Unable to release install lock", "error", releaseErr)
		}
	}()

	result, err := inst.Run(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Install failed", "error", err)
		return nil, err
	}

	logger.InfoKV(ctx, "Plugin installed",
		"files", len(result.Manifest.Files),
		"install_size", result.Manifest.InstallSize)

	return result, nil
}

// newInstaller checks the source directory. A missing source fails before
// the old install is deleted. Both paths are compared with symlinks resolved,
// so a source reached through a link is copied as a tree and a link into the
// plugin directory is refused.
func newInstaller(layout *plugin.Layout, settings *config.Config) (*installer, error) {
	sourceDir, err := common.ResolvePath(settings.SourceDir)
	if err != nil {
		return nil, plugin.NewFilesystemError(plugin.OpStat, settings.SourceDir, err)
	}

	info, err := os.Stat(sourceDir)
	if err != nil {
		return nil, plugin.NewFilesystemError(plugin.OpStat, sourceDir, err)
	}

	if !info.IsDir() {
		return nil, plugin.NewFilesystemError(plugin.OpStat, sourceDir, errSourceNotDirectory)
	}

	pluginDir, err := common.ResolvePath(layout.PluginDir)
	if err != nil {
		return nil, plugin.NewFilesystemError(plugin.OpStat, layout.PluginDir, err)
	}

	inside, err := isWithin(pluginDir, sourceDir)
	if err != nil {
		return nil, plugin.NewFilesystemError(plugin.OpStat, layout.PluginDir, err)
	}

	if inside {
		return nil, fmt.Errorf("%w: source %s is inside the plugin directory %s",
			plugin.ErrConfiguration, sourceDir, layout.PluginDir)
	}

	return &installer{
		cfg:       settings,
		layout:    layout,
		sourceDir: sourceDir,
		manifests: manifest.NewFileRepository(layout.ManifestPath()),
		rename:    os.Rename,
	}, nil
}

// Run installs the tree with the configured strategy and saves the manifest.
func (i *installer) Run(ctx context.Context) (*Result, error) {
	logger.InfoKV(ctx, "Installing plugin", "source", i.sourceDir, "staged", i.cfg.Staged)

	var err error
	if i.cfg.Staged {
		err = i.installStaged(ctx)
	} else {
		err = i.installInPlace(ctx)
	}

	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "Recording install manifest")

	record, err := i.writeManifest(ctx)
	if err != nil {
		return nil, err
	}

	return &Result{
		Layout:   i.layout,
		Manifest: record,
	}, nil
}

// installInPlace deletes the plugin directory, recreates it and copies the
// source into it. A failure after the delete leaves the plugin uninstalled.
func (i *installer) installInPlace(ctx context.Context) error {
	pluginDir := i.layout.PluginDir

	logger.Debug(ctx, "Removing previous install")

	if err := os.RemoveAll(pluginDir); err != nil {
		return plugin.NewFilesystemError(plugin.OpRemove, pluginDir, err)
	}

	if err := os.MkdirAll(pluginDir, common.DefaultDirMode); err != nil {
		return plugin.NewFilesystemError(plugin.OpCreate, pluginDir, err)
	}

	logger.Debug(ctx, "Copying source tree")

	if err := common.CopyTree(ctx, i.sourceDir, pluginDir, i.copyOptions()); err != nil {
		return plugin.NewFilesystemError(plugin.OpCopy, pluginDir, err)
	}

	return nil
}

// installStaged copies into a sibling directory and swaps it in with renames,
// so a failed copy leaves the previous install untouched.
func (i *installer) installStaged(ctx context.Context) error {
	root := i.layout.PluginsRoot
	pluginDir := i.layout.PluginDir

	if err := os.MkdirAll(root, common.DefaultDirMode); err != nil {
		return plugin.NewFilesystemError(plugin.OpCreate, root, err)
	}

	staging, err := os.MkdirTemp(root, i.layout.StagingPattern())
	if err != nil {
		return plugin.NewFilesystemError(plugin.OpCreate, root, err)
	}

	// Cleans up after a failure; after a successful swap staging no longer exists.
	defer func() {
		_ = os.RemoveAll(staging)
	}()

	if err = os.Chmod(staging, common.DefaultDirMode); err != nil {
		return plugin.NewFilesystemError(plugin.OpCreate, staging, err)
	}

	logger.DebugKV(ctx, "Copying source tree into staging", "staging", staging)

	opts := i.copyOptions()
	opts.SkipPaths = append(opts.SkipPaths, staging)

	if err = common.CopyTree(ctx, i.sourceDir, staging, opts); err != nil {
		return plugin.NewFilesystemError(plugin.OpCopy, staging, err)
	}

	previous, err := i.parkPrevious()
	if err != nil {
		return err
	}

	if err = i.rename(staging, pluginDir); err != nil {
		if previous != "" {
			if rollbackErr := i.rename(previous, pluginDir); rollbackErr != nil {
				logger.ErrorKV(ctx, "Unable to restore the previous install, it is kept aside",
					"previous", previous,
					"error", rollbackErr)
			}
		}

		return plugin.NewFilesystemError(plugin.OpRename, pluginDir, err)
	}

	if previous != "" {
		if err = os.RemoveAll(previous); err != nil {
			logger.WarnKV(ctx, "Unable to remove the replaced install", "path", previous, "error", err)
		}
	}

	return nil
}

// parkPrevious moves an existing plugin directory aside and returns its new
// location, or an empty string when there was nothing to move.
func (i *installer) parkPrevious() (string, error) {
	pluginDir := i.layout.PluginDir

	if _, err := os.Lstat(pluginDir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}

		return "", plugin.NewFilesystemError(plugin.OpStat, pluginDir, err)
	}

	previous := i.layout.PreviousPath(uuid.NewString())
	if err := i.rename(pluginDir, previous); err != nil {
		return "", plugin.NewFilesystemError(plugin.OpRename, pluginDir, err)
	}

	return previous, nil
}

// copyOptions never copies the destination or its sidecar files into itself
// when the plugins root sits inside the source tree.
func (i *installer) copyOptions() common.CopyOptions {
	return common.CopyOptions{
		Exclude: i.cfg.Exclude,
		SkipPaths: []string{
			i.layout.PluginDir,
			i.layout.LockPath(),
			i.layout.ManifestPath(),
		},
	}
}

// writeManifest checksums the installed tree and saves the record.
func (i *installer) writeManifest(ctx context.Context) (*manifest.Manifest, error) {
	record := manifest.New(i.layout, i.sourceDir)

	files, size, err := common.TreeChecksums(ctx, i.layout.PluginDir)
	if err != nil {
		return nil, plugin.NewFilesystemError(plugin.OpChecksum, i.layout.PluginDir, err)
	}

	links, err := common.TreeLinks(ctx, i.layout.PluginDir)
	if err != nil {
		return nil, plugin.NewFilesystemError(plugin.OpChecksum, i.layout.PluginDir, err)
	}

	record.Files = files
	record.Links = links
	record.InstallSize = size

	if err = i.manifests.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("save manifest: %w", err)
	}

	return record, nil
}

// isWithin reports whether target equals dir or lies below it.
func isWithin(dir, target string) (bool, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false, err
	}

	relative, err := filepath.Rel(absDir, target)
	if err != nil {
		return false, nil
	}

	return relative == "." || (relative != ".." && !strings.HasPrefix(relative, ".."+string(filepath.Separator))), nil
}
