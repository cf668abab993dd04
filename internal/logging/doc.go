// Package logging provides structured logging helpers built on log/slog.
//
// It defines the attribute keys shared across the codebase and small
// constructors for common attributes, so log output stays consistent and
// personally identifying values (mailbox owners) are hashed before logging.
package logging
