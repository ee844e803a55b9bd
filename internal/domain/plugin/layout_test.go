package plugin

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestResolve_Scenarios covers the documented resolution rules.
func TestResolve_Scenarios(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		env      Environment
		override string
		want     string
	}{
		{
			name: "home only",
			env:  Environment{Home: "/home/u"},
			want: "/home/u/.config/kicad/scripting/plugins/security_mesh",
		},
		{
			name: "xdg wins over home",
			env:  Environment{ConfigHome: "/xdg", Home: "/home/u"},
			want: "/xdg/kicad/scripting/plugins/security_mesh",
		},
		{
			name: "empty xdg falls back to home",
			env:  Environment{ConfigHome: "", Home: "/home/u"},
			want: "/home/u/.config/kicad/scripting/plugins/security_mesh",
		},
		{
			name:     "override wins over everything",
			env:      Environment{ConfigHome: "/xdg", Home: "/home/u"},
			override: "/opt/kicad-config",
			want:     "/opt/kicad-config/scripting/plugins/security_mesh",
		},
		{
			name:     "override without any home",
			override: "/opt/kicad-config",
			want:     "/opt/kicad-config/scripting/plugins/security_mesh",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			layout, err := Resolve(tc.env, tc.override, "")
			require.NoError(t, err)
			require.Equal(t, filepath.FromSlash(tc.want), layout.PluginDir)
			require.Equal(t, DefaultName, layout.PluginName)
		})
	}
}

// TestResolve_MissingConfiguration ensures an empty environment without override is rejected.
func TestResolve_MissingConfiguration(t *testing.T) {
	t.Parallel()

	layout, err := Resolve(Environment{}, "", "")
	require.ErrorIs(t, err, ErrConfiguration)
	require.Nil(t, layout)
}

// TestResolve_InvalidName rejects names that would escape the plugins root.
func TestResolve_InvalidName(t *testing.T) {
	t.Parallel()

	for _, name := range []string{".", "..", "a/b", `a\b`} {
		_, err := Resolve(Environment{Home: "/home/u"}, "", name)
		require.ErrorIs(t, err, ErrConfiguration, name)
	}
}

// TestLayout_SidecarPaths checks that lock and manifest live beside the plugin directory.
func TestLayout_SidecarPaths(t *testing.T) {
	t.Parallel()

	layout, err := Resolve(Environment{Home: "/home/u"}, "", "")
	require.NoError(t, err)

	require.Equal(t, layout.PluginsRoot, filepath.Dir(layout.LockPath()))
	require.Equal(t, layout.PluginsRoot, filepath.Dir(layout.ManifestPath()))
	require.Equal(t, layout.PluginsRoot, filepath.Dir(layout.PreviousPath("x")))
	require.NotEqual(t, layout.PluginDir, layout.LockPath())
}

// TestEnvironmentFromLookup reads only the two relevant variables.
func TestEnvironmentFromLookup(t *testing.T) {
	t.Parallel()

	vars := map[string]string{
		EnvHome: "/home/u",
		"OTHER": "ignored",
	}

	env := EnvironmentFromLookup(func(key string) (string, bool) {
		value, ok := vars[key]
		return value, ok
	})

	require.Equal(t, Environment{Home: "/home/u"}, env)
}

// TestResolve_Property checks the composition rule for arbitrary inputs.
func TestResolve_Property(t *testing.T) {
	t.Parallel()

	segment := rapid.StringMatching(`[a-z0-9_-]{0,8}`)

	rapid.Check(t, func(t *rapid.T) {
		env := Environment{
			ConfigHome: segment.Draw(t, "xdg"),
			Home:       segment.Draw(t, "home"),
		}
		override := segment.Draw(t, "override")

		layout, err := Resolve(env, override, "")

		var base string

		switch {
		case override != "":
			base = override
		case env.ConfigHome != "":
			base = filepath.Join(env.ConfigHome, "kicad")
		case env.Home != "":
			base = filepath.Join(env.Home, ".config", "kicad")
		default:
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}

			return
		}

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := filepath.Join(base, "scripting", "plugins", DefaultName)
		if layout.PluginDir != want {
			t.Fatalf("plugin dir %q, want %q", layout.PluginDir, want)
		}
	})
}

// TestFilesystemError_Unwrap ensures the wrapped cause is reachable.
func TestFilesystemError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk full")
	err := NewFilesystemError(OpCopy, "/x", cause)

	var fsErr *FilesystemError

	require.ErrorAs(t, err, &fsErr)
	require.Equal(t, OpCopy, fsErr.Op)
	require.ErrorIs(t, err, cause)
	require.NoError(t, NewFilesystemError(OpCopy, "/x", nil))
}
