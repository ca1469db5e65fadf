// Package logger wraps zap for the libdeploy binaries:
//   - a global sugared logger writing human-readable lines to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing for the --log-level flag,
//   - context-aware shorthands (Info, WarnKV, ErrorKV, ...).
//
// Stdout is left to command output so that `libdeploy path` can be piped.
package logger
