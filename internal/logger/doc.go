// Package logger wraps zap for the expo-up commands:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV/WithFields),
//   - level parsing for the --log-level flag and the settings file,
//   - convenience functions (Infof, ErrorKV, etc.).
//
// Every workflow step receives a context and logs through it, so messages
// carry the command name and request-scoped fields.
package logger
