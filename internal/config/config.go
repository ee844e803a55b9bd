package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/kicad-plugin-install/internal/domain/plugin"
	"github.com/oshokin/kicad-plugin-install/internal/logger"
)

// Config holds the installer settings. Every field is optional.
type Config struct {
	// PluginName is the directory created under scripting/plugins.
	PluginName string `yaml:"plugin_name"`
	// SourceDir is the tree copied into the plugin directory.
	SourceDir string `yaml:"source_dir"`
	// Staged copies into a sibling directory first and swaps it in with a rename.
	Staged bool `yaml:"staged"`
	// Exclude lists path.Match patterns matched against relative slash paths and base names.
	Exclude []string `yaml:"exclude,omitempty"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultConfigFilename is the settings file looked up in the working directory.
	DefaultConfigFilename = "kicad-plugin-install.yaml"

	// DefaultSourceDir installs the current working directory.
	DefaultSourceDir = "."

	// DefaultLogLevel is used when no level is configured.
	DefaultLogLevel = "info"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownLogLevel is returned for a log level zap does not know.
	errUnknownLogLevel = errors.New("unknown log level")
)

// Default returns settings that reproduce the plain install: the default
// plugin name, the working directory as source, no staging and no excludes.
func Default() *Config {
	return &Config{
		PluginName: plugin.DefaultName,
		SourceDir:  DefaultSourceDir,
		LogLevel:   DefaultLogLevel,
	}
}

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadOptional is Load that returns Default when the file does not exist.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	return cfg, err
}

// Save writes the settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks the plugin name, exclude patterns and log level.
// Invalid settings are reported as plugin.ErrConfiguration.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.PluginName == "" {
		settings.PluginName = plugin.DefaultName
	}

	if err := plugin.ValidateName(settings.PluginName); err != nil {
		return err
	}

	if settings.SourceDir == "" {
		settings.SourceDir = DefaultSourceDir
	}

	if settings.LogLevel == "" {
		settings.LogLevel = DefaultLogLevel
	}

	if _, ok := logger.ParseLogLevel(settings.LogLevel); !ok {
		return fmt.Errorf("%w: %w %q", plugin.ErrConfiguration, errUnknownLogLevel, settings.LogLevel)
	}

	for _, pattern := range settings.Exclude {
		if _, err := path.Match(pattern, ""); err != nil {
			return fmt.Errorf("%w: exclude pattern %q: %w", plugin.ErrConfiguration, pattern, err)
		}
	}

	return nil
}
