// Package version exposes build metadata for the installer.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags. Short is recorded in every install manifest so a later
// verify run can tell which installer produced the tree.
package version
