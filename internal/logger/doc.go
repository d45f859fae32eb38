// Package logger wraps zap to provide:
//   - a global sugared logger writing a console encoding to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing utilities,
//   - convenience functions (Infof, ErrorKV, etc.).
//
// Every pipeline stage takes a context and extracts the logger from it, so
// asset and target fields attached once are carried through all log lines.
package logger
