package manifest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/kicad-plugin-install/internal/domain/plugin"
)

// TestFileRepository_NotFound verifies Load returns ErrNotFound for a missing file.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "missing.yaml"))
	m, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, m)
}

// TestFileRepository_SaveLoadDelete ensures Save followed by Load returns the same manifest.
func TestFileRepository_SaveLoadDelete(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, ".security_mesh.manifest.yaml")
	repo := NewFileRepository(file)

	layout, err := plugin.Resolve(plugin.Environment{}, dir, "")
	require.NoError(t, err)

	want := New(layout, "/src/kimesh")
	want.Files["mesh_plugin.py"] = "c2hh"
	want.Files["deps/pyclipper/__init__.py"] = "YWJj"
	want.InstallSize = 42

	require.NoError(t, repo.Save(context.Background(), want))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, want.InstallID, got.InstallID)
	require.Equal(t, want.PluginDir, got.PluginDir)
	require.Equal(t, want.SourceDir, got.SourceDir)
	require.Equal(t, want.InstallSize, got.InstallSize)
	require.Equal(t, want.Files, got.Files)
	require.Equal(t, want.InstalledAt.Unix(), got.InstalledAt.Unix())

	_, err = os.Stat(file + ".tmp")
	require.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, repo.Delete(context.Background()))
	require.NoError(t, repo.Delete(context.Background()))

	_, err = repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
}

// TestNew_UniqueInstallID gives every install its own id.
func TestNew_UniqueInstallID(t *testing.T) {
	t.Parallel()

	layout, err := plugin.Resolve(plugin.Environment{Home: "/home/u"}, "", "")
	require.NoError(t, err)

	a, b := New(layout, "/src"), New(layout, "/src")
	require.NotEqual(t, a.InstallID, b.InstallID)
	require.Equal(t, plugin.DefaultName, a.Plugin)
}
