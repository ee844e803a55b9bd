package manifest

import (
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/kicad-plugin-install/internal/domain/plugin"
	"github.com/oshokin/kicad-plugin-install/internal/version"
)

// Manifest records what an install wrote.
type Manifest struct {
	// InstallID identifies one install run.
	InstallID string `yaml:"install_id"`
	// Plugin is the plugin directory name.
	Plugin string `yaml:"plugin"`
	// PluginDir is the directory the tree was installed into.
	PluginDir string `yaml:"plugin_dir"`
	// SourceDir is the absolute source directory, used by repairs.
	SourceDir string `yaml:"source_dir"`
	// InstalledAt is when the install finished.
	InstalledAt time.Time `yaml:"installed_at"`
	// InstallerVersion is the version of the installer that wrote the tree.
	InstallerVersion string `yaml:"installer_version"`
	// InstallSize is the sum of regular file sizes in bytes.
	InstallSize int64 `yaml:"install_size"`
	// Files maps slash-separated relative paths to base64 SHA-512 checksums.
	Files map[string]string `yaml:"files"`
	// Links maps slash-separated relative paths of symlinks to their targets.
	Links map[string]string `yaml:"links,omitempty"`
}

// New returns a Manifest for layout with a fresh install id.
func New(layout *plugin.Layout, sourceDir string) *Manifest {
	return &Manifest{
		InstallID:        uuid.NewString(),
		Plugin:           layout.PluginName,
		PluginDir:        layout.PluginDir,
		SourceDir:        sourceDir,
		InstalledAt:      time.Now().UTC(),
		InstallerVersion: version.Short(),
		Files:            make(map[string]string),
		Links:            make(map[string]string),
	}
}
