// Package plugin describes where a KiCad scripting plugin lives on disk.
//
// Resolve turns an explicit Environment (XDG_CONFIG_HOME and HOME values),
// an optional install base override and a plugin name into a Layout. The
// resolution is a pure function so it can be tested without touching the
// process environment.
//
// The package also owns the error taxonomy shared by the services:
// ErrConfiguration for inputs that cannot produce a path and FilesystemError
// for failed filesystem steps.
package plugin
