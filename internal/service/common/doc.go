// Package common holds filesystem helpers shared by the installer, the
// uninstaller and the verifier.
//
// CopyTree copies a source directory with github.com/otiai10/copy, honoring
// exclude patterns and cancellation. TreeChecksums and FileChecksum produce
// the SHA-512 digests recorded in install manifests.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
