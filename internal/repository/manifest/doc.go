// Package manifest persists the record of the last install.
//
// The FileRepository stores a Manifest as YAML next to the plugin directory.
// The verifier compares the installed tree against the recorded checksums.
package manifest
