package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/kicad-plugin-install/internal/domain/plugin"
)

// run executes the root command with args and returns its stdout.
// Flags are package globals, so these tests do not run in parallel.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	color.NoColor = true

	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)

	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())

	return out.String(), err
}

// TestExitCode maps configuration errors to 2 and everything else to 1.
func TestExitCode(t *testing.T) {
	t.Parallel()

	require.Equal(t, exitConfiguration, exitCode(plugin.ErrConfiguration))
	require.Equal(t, exitFailure, exitCode(plugin.NewFilesystemError(plugin.OpCopy, "/x", os.ErrPermission)))
	require.Equal(t, exitFailure, exitCode(errors.New("boom")))
}

// TestPathCommand prints the plugin directory resolved from HOME.
func TestPathCommand(t *testing.T) {
	t.Setenv(plugin.EnvConfigHome, "")
	t.Setenv(plugin.EnvHome, "/home/u")

	out, err := run(t, "path")
	require.NoError(t, err)
	require.Equal(t, filepath.FromSlash("/home/u/.config/kicad/scripting/plugins/security_mesh"), strings.TrimSpace(out))

	out, err = run(t, "path", "/opt/kicad-config")
	require.NoError(t, err)
	require.Equal(t, filepath.FromSlash("/opt/kicad-config/scripting/plugins/security_mesh"), strings.TrimSpace(out))
}

// TestPathCommand_MissingConfiguration fails with a configuration error.
func TestPathCommand_MissingConfiguration(t *testing.T) {
	t.Setenv(plugin.EnvConfigHome, "")
	t.Setenv(plugin.EnvHome, "")

	_, err := run(t, "path")
	require.ErrorIs(t, err, plugin.ErrConfiguration)
	require.Equal(t, exitConfiguration, exitCode(err))
}

// TestInstallVerifyUninstall drives the full command surface against temporary directories.
func TestInstallVerifyUninstall(t *testing.T) {
	src := t.TempDir()
	base := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(src, "mesh_plugin.py"), []byte("class MeshPlugin: pass\n"), 0o644))

	_, err := run(t, "--source", src, base)
	require.NoError(t, err)

	pluginDir := filepath.Join(base, "scripting", "plugins", plugin.DefaultName)

	_, err = os.Stat(filepath.Join(pluginDir, "mesh_plugin.py"))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, "extra.py"), []byte("x"), 0o644))

	out, err := run(t, "verify", base)
	require.Error(t, err)
	require.Contains(t, out, "unexpected extra.py")

	_, err = run(t, "uninstall", base)
	require.NoError(t, err)

	_, err = os.Stat(pluginDir)
	require.ErrorIs(t, err, os.ErrNotExist)
}
