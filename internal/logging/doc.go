// Package logging provides structured logging for incidentdesk.
//
// This package wraps a zap logger with convenience functions for the logging
// patterns used across the client: modal transitions, hash changes, wizard
// submissions and bridge connections.
//
// # Log Levels
//
//   - Debug: Detailed debugging info (stale responses, queued transitions)
//   - Info: Normal operations (transitions, submissions, bridge clients)
//   - Warn: Non-fatal issues (unknown modal names, retries)
//   - Error: Failures that the user will see as a notification
//
// # Silent By Default
//
// The interactive TUI owns stdout, so logging is disabled unless a level is
// given explicitly or via INCIDENTDESK_LOG_LEVEL. Interactive runs should log
// to a file:
//
//	if err := logging.InitializeToFile("debug", "/tmp/incidentdesk.log"); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// # Structured Logging
//
//	logging.Info("Modal opened",
//	    zap.String("modal", "settings"),
//	    zap.String("fragment", "settings:account"),
//	)
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The router queue worker,
// the bridge goroutines and the bubbletea program all log through the same
// package-level logger.
package logging
