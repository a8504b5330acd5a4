// Package config provides user configuration management for incidentdesk.
//
// This package manages a YAML-based configuration file that stores
// application preferences, the signed-in account (the session store's
// persistent backing) and the last URL fragment so an open modal survives a
// restart. The configuration follows OS-specific conventions for storage
// location.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/incidentdesk/config.yaml or $HOME/.config/incidentdesk/config.yaml
//   - macOS: $HOME/.config/incidentdesk/config.yaml
//   - Windows: %LOCALAPPDATA%\incidentdesk\config.yaml
//
// # Security
//
// Passwords are NEVER stored. The session token is stored with user-only
// permissions (0600), the same way a browser keeps its cookie jar.
//
// # Precedence
//
// Resolve merges built-in defaults, the registry and INCIDENTDESK_*
// environment variables, in that order. Command-line flags are applied on
// top by the caller.
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File operations are protected by a mutex to ensure atomic writes.
package config
