//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"crypto"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	cp "github.com/otiai10/copy"

	// Ensure SHA512 available for checksum calculation.
	_ "crypto/sha512"
)

const (
	// DefaultDirMode is applied to directories the installer creates itself.
	DefaultDirMode os.FileMode = 0o755

	// ChecksumFunction is used for manifest checksums and repair verification.
	ChecksumFunction crypto.Hash = crypto.SHA512
)

var errHashUnavailable = errors.New("hash function unavailable")

// CopyOptions tunes CopyTree.
type CopyOptions struct {
	// Exclude holds path.Match patterns. A pattern matching either the
	// slash-separated path relative to the source or the base name skips the entry.
	Exclude []string
	// SkipPaths are absolute paths never copied, such as a destination nested in the source.
	SkipPaths []string
}

// CopyTree copies the contents of src into dest, preserving relative
// structure and file modes. Symlinks inside the tree are copied as links;
// a symlinked src itself is followed.
// The walk stops with ctx.Err() once ctx is done.
func CopyTree(ctx context.Context, src, dest string, opts CopyOptions) error {
	absSource, err := ResolvePath(src)
	if err != nil {
		return fmt.Errorf("resolve source: %w", err)
	}

	skipped := make(map[string]struct{}, len(opts.SkipPaths))

	for _, p := range opts.SkipPaths {
		var resolved string

		resolved, err = ResolvePath(p)
		if err != nil {
			return fmt.Errorf("resolve skipped path: %w", err)
		}

		skipped[resolved] = struct{}{}
	}

	options := cp.Options{
		OnSymlink: func(string) cp.SymlinkAction {
			return cp.Shallow
		},
		Skip: func(info os.FileInfo, srcPath, _ string) (bool, error) {
			if err := ctx.Err(); err != nil {
				return false, err
			}

			if _, found := skipped[srcPath]; found {
				return true, nil
			}

			relative, err := filepath.Rel(absSource, srcPath)
			if err != nil {
				return false, err
			}

			if relative == "." {
				return false, nil
			}

			return IsExcluded(opts.Exclude, filepath.ToSlash(relative), info.Name())
		},
	}

	return cp.Copy(absSource, dest, options)
}

// ResolvePath returns p as an absolute path with symlinks resolved.
// Trailing components that do not exist yet are kept as given, so the
// result is stable for directories that are about to be created.
func ResolvePath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}

	existing, missing := abs, ""

	for {
		resolved, err := filepath.EvalSymlinks(existing)
		if err == nil {
			return filepath.Join(resolved, missing), nil
		}

		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}

		parent := filepath.Dir(existing)
		if parent == existing {
			return abs, nil
		}

		missing = filepath.Join(filepath.Base(existing), missing)
		existing = parent
	}
}

// IsExcluded reports whether relative or base matches any of patterns.
func IsExcluded(patterns []string, relative, base string) (bool, error) {
	for _, pattern := range patterns {
		for _, candidate := range [...]string{relative, base} {
			matched, err := path.Match(pattern, candidate)
			if err != nil {
				return false, fmt.Errorf("exclude pattern %q: %w", pattern, err)
			}

			if matched {
				return true, nil
			}
		}
	}

	return false, nil
}

// FileChecksum returns the checksum of a file using ChecksumFunction.
func FileChecksum(path string) ([]byte, error) {
	if !ChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = file.Close()
	}()

	hasher := ChecksumFunction.New()
	if _, err = io.Copy(hasher, file); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}

// EncodeChecksum renders a checksum the way manifests store it.
func EncodeChecksum(sum []byte) string {
	return base64.StdEncoding.EncodeToString(sum)
}

// DecodeChecksum parses a checksum stored in a manifest.
func DecodeChecksum(encoded string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(encoded)
}

// TreeChecksums walks root and returns the encoded checksum of every regular
// file keyed by its slash-separated relative path, plus the total size.
// Directories and symlinks are not listed.
func TreeChecksums(ctx context.Context, root string) (map[string]string, int64, error) {
	var (
		files = make(map[string]string)
		size  int64
	)

	err := filepath.WalkDir(root, func(current string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if !entry.Type().IsRegular() {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}

		relative, err := filepath.Rel(root, current)
		if err != nil {
			return err
		}

		sum, err := FileChecksum(current)
		if err != nil {
			return err
		}

		files[filepath.ToSlash(relative)] = EncodeChecksum(sum)
		size += info.Size()

		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	return files, size, nil
}

// TreeLinks walks root and returns the target of every symlink keyed by its
// slash-separated relative path. Links are recorded, not followed.
func TreeLinks(ctx context.Context, root string) (map[string]string, error) {
	links := make(map[string]string)

	err := filepath.WalkDir(root, func(current string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if current == root || entry.Type()&fs.ModeSymlink == 0 {
			return nil
		}

		relative, err := filepath.Rel(root, current)
		if err != nil {
			return err
		}

		target, err := os.Readlink(current)
		if err != nil {
			return err
		}

		links[filepath.ToSlash(relative)] = target

		return nil
	})
	if err != nil {
		return nil, err
	}

	return links, nil
}
