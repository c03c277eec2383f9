// Package logging provides structured logging for kvmswitch.
//
// This package wraps a global zap logger with convenience functions. It is
// used by the command-line tool, the terminal UI and the switch simulator.
// The protocol client in package kvm never logs; callers decide how to
// present its errors.
//
// # Log Levels
//
//   - Debug: Frame hex dumps, connection open/close
//   - Info: Commands issued, simulator start/stop
//   - Warn: Recoverable problems (malformed frames from a controller)
//   - Error: Failures that abort an operation
//
// # Configuration
//
// Logging is silent unless a level is given, either explicitly or via the
// KVMSWITCH_LOG_LEVEL environment variable:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// Console output goes to stderr so that command output on stdout stays
// scriptable. Options.File adds a rotating JSON log file.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging
