// Package lock serializes installs of one plugin with a PID marker file.
//
// The marker lives next to the plugin directory. A marker whose process is
// gone (looked up with github.com/mitchellh/go-ps) is considered stale and
// is replaced, so a crashed install does not block the next one.
package lock
