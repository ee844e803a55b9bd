package manifest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultFilePermissions is applied to manifest files.
const DefaultFilePermissions = 0o644

// Repository defines persistence operations for install manifests.
type Repository interface {
	Load(ctx context.Context) (*Manifest, error)
	Save(ctx context.Context, m *Manifest) error
	Delete(ctx context.Context) error
}

// FileRepository persists a manifest to a YAML file on disk.
type FileRepository struct {
	// path is the filesystem location of the manifest.
	path string
	// mu protects concurrent access to the manifest file.
	mu sync.Mutex
}

var (
	// ErrNotFound is returned when no manifest was written yet.
	ErrNotFound = errors.New("manifest not found")
	// errNilManifest is returned when saving a nil manifest.
	errNilManifest = errors.New("manifest is not set")
)

// NewFileRepository creates a repository that reads and writes YAML at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Path returns the manifest location.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads the manifest from disk.
func (r *FileRepository) Load(_ context.Context) (*Manifest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err = yaml.Unmarshal(contents, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	if m.Files == nil {
		m.Files = make(map[string]string)
	}

	if m.Links == nil {
		m.Links = make(map[string]string)
	}

	return &m, nil
}

// Save writes the manifest through a temporary file and a rename.
func (r *FileRepository) Save(_ context.Context, m *Manifest) error {
	if m == nil {
		return errNilManifest
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	temporary := r.path + ".tmp"
	if err = os.WriteFile(temporary, data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	if err = os.Rename(temporary, r.path); err != nil {
		_ = os.Remove(temporary)

		return fmt.Errorf("replace manifest: %w", err)
	}

	return nil
}

// Delete removes the manifest. A missing manifest is not an error.
func (r *FileRepository) Delete(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove manifest: %w", err)
	}

	return nil
}
