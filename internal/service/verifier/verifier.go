package verifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/kicad-plugin-install/internal/config"
	"github.com/oshokin/kicad-plugin-install/internal/domain/plugin"
	"github.com/oshokin/kicad-plugin-install/internal/logger"
	"github.com/oshokin/kicad-plugin-install/internal/repository/lock"
	"github.com/oshokin/kicad-plugin-install/internal/repository/manifest"
	"github.com/oshokin/kicad-plugin-install/internal/service/common"
)

var (
	// ErrNotInstalled is returned when no manifest exists for the plugin.
	ErrNotInstalled = errors.New("plugin is not installed")
	// ErrTreeMismatch is returned when the installed tree differs from the manifest.
	ErrTreeMismatch = errors.New("installed tree does not match the manifest")
)

// Options are inputs accepted by the verifier entry point.
type Options struct {
	// InstallBase overrides the KiCad configuration root when non-empty.
	InstallBase string
	// Environment holds XDG_CONFIG_HOME and HOME as captured by the caller.
	Environment plugin.Environment
	// Settings selects the plugin name. Nil means config.Default().
	Settings *config.Config
	// Repair restores the tree from the recorded source directory.
	Repair bool
}

// Report lists the differences between the manifest and the installed tree.
// Paths are slash-separated and relative to the plugin directory.
type Report struct {
	// Layout is the resolved set of paths.
	Layout *plugin.Layout
	// Manifest is the record the tree was compared against.
	Manifest *manifest.Manifest
	// Missing files are listed in the manifest but absent.
	Missing []string
	// Modified files exist with a different checksum.
	Modified []string
	// Unexpected files exist but are not listed in the manifest.
	Unexpected []string
	// Repaired files were restored or removed by a repair.
	Repaired []string
}

// Clean reports whether the tree matches the manifest.
func (r *Report) Clean() bool {
	return len(r.Missing) == 0 && len(r.Modified) == 0 && len(r.Unexpected) == 0
}

// verifier checks one installed plugin.
type verifier struct {
	// layout is the resolved destination.
	layout *plugin.Layout
	// record is the manifest of the last install.
	record *manifest.Manifest
}

// Run compares the installed tree with its manifest and optionally repairs it.
// It returns the report together with ErrTreeMismatch when differences remain.
func Run(ctx context.Context, opts *Options) (*Report, error) {
	ctx = logger.WithName(ctx, "verifier")

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

	record, err := manifest.NewFileRepository(layout.ManifestPath()).Load(ctx)
	if errors.Is(err, manifest.ErrNotFound) {
		return nil, fmt.Errorf("%w: no manifest at %s", ErrNotInstalled, layout.ManifestPath())
	}

	if err != nil {
		return nil, err
	}

	v := &verifier{
		layout: layout,
		record: record,
	}

	report, err := v.compare(ctx)
	if err != nil {
		return nil, err
	}

	if opts.Repair && !report.Clean() {
		if report, err = v.repairUnderLock(ctx, report); err != nil {
			return report, err
		}
	}

	if !report.Clean() {
		logger.WarnKV(ctx, "Installed tree differs from the manifest",
			"missing", len(report.Missing),
			"modified", len(report.Modified),
			"unexpected", len(report.Unexpected))

		return report, ErrTreeMismatch
	}

	logger.InfoKV(ctx, "Installed tree matches the manifest", "files", len(record.Files))

	return report, nil
}

// compare checksums the plugin directory and diffs it with the manifest.
// Regular files are compared by checksum and symlinks by target.
// A missing plugin directory reports every manifest entry as missing.
func (v *verifier) compare(ctx context.Context) (*Report, error) {
	files, _, err := common.TreeChecksums(ctx, v.layout.PluginDir)
	if errors.Is(err, fs.ErrNotExist) {
		files = map[string]string{}
	} else if err != nil {
		return nil, plugin.NewFilesystemError(plugin.OpChecksum, v.layout.PluginDir, err)
	}

	links, err := common.TreeLinks(ctx, v.layout.PluginDir)
	if errors.Is(err, fs.ErrNotExist) {
		links = map[string]string{}
	} else if err != nil {
		return nil, plugin.NewFilesystemError(plugin.OpStat, v.layout.PluginDir, err)
	}

	report := &Report{
		Layout:   v.layout,
		Manifest: v.record,
	}

	report.diff(v.record.Files, files)
	report.diff(v.record.Links, links)

	slices.Sort(report.Missing)
	slices.Sort(report.Modified)
	slices.Sort(report.Unexpected)

	return report, nil
}

// diff appends the differences between the recorded and current entries.
func (r *Report) diff(recorded, current map[string]string) {
	for name, want := range recorded {
		got, found := current[name]

		switch {
		case !found:
			r.Missing = append(r.Missing, name)
		case got != want:
			r.Modified = append(r.Modified, name)
		}
	}

	for name := range current {
		if _, found := recorded[name]; !found {
			r.Unexpected = append(r.Unexpected, name)
		}
	}
}

// repairUnderLock holds the install lock while repairing and re-verifies afterwards.
func (v *verifier) repairUnderLock(ctx context.Context, report *Report) (*Report, error) {
	installLock := lock.NewFileLock(v.layout.LockPath())
	if err := installLock.Acquire(ctx); err != nil {
		return report, fmt.Errorf("acquire install lock: %w", err)
	}

	defer func() {
		if releaseErr := installLock.Release(); releaseErr != nil {
			logger.WarnKV(ctx, "Unable to release install lock", "error", releaseErr)
		}
	}()

	repaired, err := v.repair(ctx, report)
	if err != nil {
		report.Repaired = repaired

		return report, err
	}

	fresh, err := v.compare(ctx)
	if err != nil {
		return report, err
	}

	fresh.Repaired = repaired

	return fresh, nil
}

// repair removes unexpected entries first, so a path whose kind changed
// can be restored, then restores missing and modified ones.
func (v *verifier) repair(ctx context.Context, report *Report) ([]string, error) {
	restore := slices.Concat(report.Missing, report.Modified)
	repaired := make([]string, 0, len(restore)+len(report.Unexpected))

	for _, name := range report.Unexpected {
		logger.InfoKV(ctx, "Removing unexpected file", "file", name)

		target := filepath.Join(v.layout.PluginDir, filepath.FromSlash(name))
		if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
			return repaired, plugin.NewFilesystemError(plugin.OpRemove, target, err)
		}

		repaired = append(repaired, name)
	}

	for _, name := range restore {
		logger.InfoKV(ctx, "Restoring file", "file", name)

		var err error

		if linkTarget, isLink := v.record.Links[name]; isLink {
			err = v.restoreLink(name, linkTarget)
		} else {
			err = v.restoreFile(name)
		}

		if err != nil {
			return repaired, err
		}

		repaired = append(repaired, name)
	}

	return repaired, nil
}

// restoreLink recreates one symlink with its recorded target.
func (v *verifier) restoreLink(name, linkTarget string) error {
	target := filepath.Join(v.layout.PluginDir, filepath.FromSlash(name))

	if err := os.MkdirAll(filepath.Dir(target), common.DefaultDirMode); err != nil {
		return plugin.NewFilesystemError(plugin.OpCreate, filepath.Dir(target), err)
	}

	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return plugin.NewFilesystemError(plugin.OpRemove, target, err)
	}

	if err := os.Symlink(linkTarget, target); err != nil {
		return plugin.NewFilesystemError(plugin.OpCreate, target, err)
	}

	return nil
}

// restoreFile copies one file from the recorded source with go-update. The
// manifest checksum is verified before the target is touched, so a source
// that changed since the install is refused.
func (v *verifier) restoreFile(name string) error {
	source := filepath.Join(v.record.SourceDir, filepath.FromSlash(name))
	target := filepath.Join(v.layout.PluginDir, filepath.FromSlash(name))

	checksum, err := common.DecodeChecksum(v.record.Files[name])
	if err != nil {
		return fmt.Errorf("decode checksum for %s: %w", name, err)
	}

	info, err := os.Stat(source)
	if err != nil {
		return plugin.NewFilesystemError(plugin.OpStat, source, err)
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return plugin.NewFilesystemError(plugin.OpCopy, source, err)
	}

	if err = os.MkdirAll(filepath.Dir(target), common.DefaultDirMode); err != nil {
		return plugin.NewFilesystemError(plugin.OpCreate, filepath.Dir(target), err)
	}

	// go-update renames the existing target aside, so it has to exist.
	placeholder := false

	if _, err = os.Lstat(target); errors.Is(err, os.ErrNotExist) {
		if err = os.WriteFile(target, nil, info.Mode().Perm()); err != nil {
			return plugin.NewFilesystemError(plugin.OpCreate, target, err)
		}

		placeholder = true
	}

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: info.Mode().Perm(),
		Checksum:   checksum,
		Hash:       common.ChecksumFunction,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		if placeholder {
			_ = os.Remove(target)
		}

		return plugin.NewFilesystemError(plugin.OpCopy, target, err)
	}

	return nil
}
