// Package uninstaller blindly removes an installed plugin directory together
// with its manifest.
package uninstaller
