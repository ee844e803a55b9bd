// Package verifier compares an installed plugin directory against the
// manifest written by the installer.
//
// With Repair set, missing and modified files are restored from the recorded
// source directory through github.com/doitdistributed/go-update, which
// checks the manifest checksum before replacing the target atomically.
// Files that the manifest does not list are removed.
package verifier
