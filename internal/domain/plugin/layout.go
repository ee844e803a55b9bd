package plugin

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	// DefaultName is the identifier of the plugin installed by default.
	DefaultName = "security_mesh"

	// EnvConfigHome names the variable overriding the configuration home.
	EnvConfigHome = "XDG_CONFIG_HOME"
	// EnvHome names the variable holding the user's home directory.
	EnvHome = "HOME"

	configDirName    = ".config"
	kicadDirName     = "kicad"
	scriptingDirName = "scripting"
	pluginsDirName   = "plugins"
)

// Environment carries the environment values the resolution depends on.
type Environment struct {
	// ConfigHome is the value of XDG_CONFIG_HOME.
	ConfigHome string
	// Home is the value of HOME.
	Home string
}

// EnvironmentFromLookup captures the relevant variables using lookup,
// typically os.LookupEnv.
func EnvironmentFromLookup(lookup func(string) (string, bool)) Environment {
	var env Environment

	if value, ok := lookup(EnvConfigHome); ok {
		env.ConfigHome = value
	}

	if value, ok := lookup(EnvHome); ok {
		env.Home = value
	}

	return env
}

// ConfigHomeDir returns XDG_CONFIG_HOME when non-empty, otherwise HOME/.config.
// It returns an empty string when neither is available.
func (e Environment) ConfigHomeDir() string {
	if e.ConfigHome != "" {
		return e.ConfigHome
	}

	if e.Home != "" {
		return filepath.Join(e.Home, configDirName)
	}

	return ""
}

// Layout is the resolved set of paths for one plugin installation.
type Layout struct {
	// PluginName is the directory name of the plugin.
	PluginName string
	// ConfigHome is the resolved configuration home. Empty when the install
	// base came from an override and no home was resolvable.
	ConfigHome string
	// InstallBase is the root of the KiCad configuration tree.
	InstallBase string
	// PluginsRoot is InstallBase/scripting/plugins.
	PluginsRoot string
	// PluginDir is PluginsRoot/PluginName.
	PluginDir string
}

// Resolve computes the Layout for the plugin called name.
// An empty name selects DefaultName, an empty override selects ConfigHome/kicad.
func Resolve(env Environment, installBaseOverride, name string) (*Layout, error) {
	if name == "" {
		name = DefaultName
	}

	if err := ValidateName(name); err != nil {
		return nil, err
	}

	configHome := env.ConfigHomeDir()

	installBase := installBaseOverride
	if installBase == "" {
		if configHome == "" {
			return nil, fmt.Errorf("%w: neither %s nor %s is set and no install base was given",
				ErrConfiguration, EnvConfigHome, EnvHome)
		}

		installBase = filepath.Join(configHome, kicadDirName)
	}

	pluginsRoot := filepath.Join(installBase, scriptingDirName, pluginsDirName)

	return &Layout{
		PluginName:  name,
		ConfigHome:  configHome,
		InstallBase: installBase,
		PluginsRoot: pluginsRoot,
		PluginDir:   filepath.Join(pluginsRoot, name),
	}, nil
}

// ValidateName checks that name is usable as a single directory name.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: plugin name is empty", ErrConfiguration)
	case name == "." || name == "..":
		return fmt.Errorf("%w: plugin name %q is not a directory name", ErrConfiguration, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: plugin name %q contains a path separator", ErrConfiguration, name)
	}

	return nil
}

// ManifestPath is where the record of the last install is kept.
// It sits next to PluginDir so the plugin directory stays an exact copy of the source.
func (l *Layout) ManifestPath() string {
	return filepath.Join(l.PluginsRoot, "."+l.PluginName+".manifest.yaml")
}

// LockPath is the marker file that serializes installs of this plugin.
func (l *Layout) LockPath() string {
	return filepath.Join(l.PluginsRoot, "."+l.PluginName+".lock")
}

// StagingPattern is the os.MkdirTemp pattern for staged installs.
func (l *Layout) StagingPattern() string {
	return "." + l.PluginName + ".staging-"
}

// PreviousPath is where a staged install parks the directory it replaces.
func (l *Layout) PreviousPath(suffix string) string {
	return filepath.Join(l.PluginsRoot, "."+l.PluginName+".previous-"+suffix)
}
