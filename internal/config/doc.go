// Package config defines the installer settings and provides helpers to
// load, validate and save them in YAML format.
//
// The settings file is optional: LoadOptional falls back to Default, which
// installs the working directory as the security_mesh plugin.
package config
