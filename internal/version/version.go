package version

import (
	"fmt"
	"runtime/debug"
	"time"
)

// Set at build time:
//
//	go build -ldflags="-X github.com/muurk/incidentdesk/internal/version.Version=v1.2.3 \
//	                   -X github.com/muurk/incidentdesk/internal/version.Commit=abc123"
//
// When unset they are filled from VCS build info, or fall back to "dev".
var (
	// Version is the semantic version of the application
	Version = ""
	// Commit is the git commit hash
	Commit = ""
)

func init() {
	if Version == "" || Commit == "" {
		applyBuildInfo()
	}
	if Version == "" {
		Version = fmt.Sprintf("dev-%s", time.Now().Format("20060102-150405"))
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

func applyBuildInfo() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version, commit := fromSettings(info.Settings)
	if Version == "" {
		Version = version
	}
	if Commit == "" {
		Commit = commit
	}
}

// fromSettings derives a dev version and a short commit from vcs.* settings.
func fromSettings(settings []debug.BuildSetting) (version, commit string) {
	var revision, modified, when string
	for _, setting := range settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			modified = setting.Value
		case "vcs.time":
			when = setting.Value
		}
	}

	if revision != "" {
		commit = revision
		if len(commit) > 7 {
			commit = commit[:7]
		}
		if modified == "true" {
			commit += "-dirty"
		}
	}

	if when != "" {
		if t, err := time.Parse(time.RFC3339, when); err == nil {
			version = fmt.Sprintf("dev-%s", t.Format("20060102"))
		}
	}
	return version, commit
}

// Full returns the full version string including commit
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// UserAgent is sent on every backend request.
func UserAgent() string {
	return "incidentdesk/" + Version
}
