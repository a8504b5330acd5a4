// Package ui renders the styled, non-interactive output of the incidentdesk
// subcommands (scan, route, config, version).
//
// Components are plain strings built with Lipgloss so they can be written to
// any io.Writer and asserted on in tests:
//
//   - Header: command banner with title, invocation and parameters
//   - Result: success, failure or warning box with details
//   - Table: aligned rows, used for discovered backends and router traces
//
// Printer ties them to an output stream. The interactive interface lives in
// package tui.
//
// Logging is controlled separately through INCIDENTDESK_LOG_LEVEL; when it is
// unset zap stays silent and only these components reach the terminal.
package ui
