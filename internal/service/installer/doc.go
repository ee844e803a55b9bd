// Package installer replaces a KiCad plugin directory with a copy of the
// source tree.
//
// Run resolves the destination from an explicit environment, takes the
// install lock, then either deletes and recreates the plugin directory before
// copying (the default) or copies into a staging directory and swaps it in
// with renames. Every install ends by recording a checksum manifest.
package installer
