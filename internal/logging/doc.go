// Package logging provides structured logging utilities for gcalkit.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Structured logging with slog
//   - PII sanitization (email and calendar ID anonymization)
//   - Consistent attribute naming across the codebase
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "calendar.delete")
//	logger.Info("batch sent",
//	    logging.BatchSize(len(requests)),
//	    logging.Status("success"))
//
// Calendar IDs that are email addresses are hashed before logging:
//
//	logger.Debug("event fetched",
//	    logging.Calendar(calendarID))
//
// # Security Considerations
//
// This package is designed with security in mind:
//   - Email-shaped calendar IDs are hashed to prevent PII leakage while allowing correlation
//   - Tokens are never logged
package logging
