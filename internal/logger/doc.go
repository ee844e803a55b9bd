// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a console encoder writing to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing utilities,
//   - convenience functions (InfoKV, ErrorKV and friends).
//
// Services accept a context and extract the logger from it, so the plugin
// directory and the service name travel with every entry.
package logger
