// Incidentdesk is a terminal client for the incident-reporting backend.
//
// It hosts the account, incident, category and role flows as modals driven
// by a URL-style fragment, can mirror that fragment to browser tabs through
// a small local bridge, and discovers backends on the LAN over mDNS.
//
// Usage:
//
//	incidentdesk [command] [flags]
//
// Running without arguments launches the interactive interface.
// See 'incidentdesk --help' for available commands.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/muurk/incidentdesk/internal/config"
	"github.com/muurk/incidentdesk/internal/logging"
	"github.com/muurk/incidentdesk/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	apiURL     string
	logLevel   string
	logFile    string
	bridgeAddr string
	discover   bool
)

var rootCmd = &cobra.Command{
	Use:   "incidentdesk",
	Short: "Incident reporting from the terminal",
	Long: `A terminal client for the incident-reporting backend.

Sign up, sign in, report incidents and manage categories and roles from
modal flows. Every modal has an address (#signup, #settings:verify-email)
that survives restarts and can be mirrored to a browser tab with --bridge.

If no command is specified, the interactive interface will launch.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, err := logPath(cmd)
		if err != nil {
			return err
		}
		return logging.InitializeToFile(logLevel, path)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
	RunE: runInteractive,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "Backend base URL (overrides config and INCIDENTDESK_API_URL)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when unset")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file (interactive runs default to incidentdesk.log in the config dir)")
	rootCmd.PersistentFlags().StringVar(&bridgeAddr, "bridge", "", "Also serve the hash bridge on this address")
	rootCmd.PersistentFlags().BoolVar(&discover, "discover", false, "Discover a backend over mDNS when none is configured")

	rootCmd.AddCommand(versionCmd)
}

// logPath returns where logs go. The interactive interface owns stdout, so
// when it runs with logging enabled and no --log-file, logs go to the config
// directory instead.
func logPath(cmd *cobra.Command) (string, error) {
	if logFile != "" || cmd.HasParent() || logging.EffectiveLevel(logLevel) == "" {
		return logFile, nil
	}
	dir, err := config.GetConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}
	return filepath.Join(dir, "incidentdesk.log"), nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("incidentdesk %s\n", version.Full())
	},
}
