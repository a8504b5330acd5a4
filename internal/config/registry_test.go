package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestGetConfigDir(t *testing.T) {
	if runtime.GOOS == "linux" {
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")
	}

	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if !strings.Contains(configDir, "incidentdesk") {
		t.Errorf("GetConfigDir() = %v, should contain 'incidentdesk'", configDir)
	}

	if runtime.GOOS == "linux" && configDir != filepath.Join("/tmp/xdg-test", "incidentdesk") {
		t.Errorf("GetConfigDir() = %v, want XDG_CONFIG_HOME/incidentdesk", configDir)
	}
}

func TestGetConfigPath(t *testing.T) {
	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}

	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	if reg.Version != 1 {
		t.Errorf("NewRegistry().Version = %v, want 1", reg.Version)
	}
	if reg.Preferences == nil {
		t.Fatal("NewRegistry().Preferences should not be nil")
	}
	if reg.Preferences.CloseGrace != 300*time.Millisecond {
		t.Errorf("CloseGrace = %v, want 300ms", reg.Preferences.CloseGrace)
	}
	if reg.Preferences.ReplaceGrace != 100*time.Millisecond {
		t.Errorf("ReplaceGrace = %v, want 100ms", reg.Preferences.ReplaceGrace)
	}
	if !reg.Preferences.RestoreFragment {
		t.Error("RestoreFragment should be on by default")
	}
	if reg.Session != nil {
		t.Error("NewRegistry() should start signed out")
	}
}

func TestRegistrySession(t *testing.T) {
	reg := NewRegistry()

	reg.SetSession("tok", AccountMeta{ID: "a1", Username: "jo"})
	if reg.Session == nil || reg.Session.Account.ID != "a1" || reg.Session.Token != "tok" {
		t.Fatalf("Session = %+v", reg.Session)
	}
	if reg.Session.Since.IsZero() {
		t.Error("Since should be set")
	}

	reg.ClearSession()
	if reg.Session != nil {
		t.Error("ClearSession() should remove the session")
	}
}

func TestRegistryRecordBackend(t *testing.T) {
	reg := NewRegistry()

	reg.RecordBackend("old", "http://10.0.0.1:8080", "1.0")
	reg.Backends["old"].LastSeen = time.Now().Add(-time.Hour)
	reg.RecordBackend("new", "http://10.0.0.2:8080", "1.1")

	best := reg.MostRecentBackend()
	if best == nil || best.URL != "http://10.0.0.2:8080" {
		t.Errorf("MostRecentBackend() = %+v, want the new backend", best)
	}

	if NewRegistry().MostRecentBackend() != nil {
		t.Error("MostRecentBackend() on an empty registry should be nil")
	}
}

func TestRegistrySaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	reg := NewRegistry()
	reg.Preferences.APIBaseURL = "http://incidents.local/api"
	reg.Preferences.CloseGrace = 250 * time.Millisecond
	reg.SetSession("tok", AccountMeta{ID: "a1", Username: "jo", EmailVerified: true})
	reg.LastFragment = "settings:account"

	if err := reg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file missing: %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
		t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should be renamed away")
	}

	loaded, err := LoadRegistryFrom(path)
	if err != nil {
		t.Fatalf("LoadRegistryFrom() error = %v", err)
	}

	if loaded.Preferences.APIBaseURL != "http://incidents.local/api" {
		t.Errorf("APIBaseURL = %q", loaded.Preferences.APIBaseURL)
	}
	if loaded.Preferences.CloseGrace != 250*time.Millisecond {
		t.Errorf("CloseGrace = %v, want 250ms", loaded.Preferences.CloseGrace)
	}
	if loaded.Session == nil || !loaded.Session.Account.EmailVerified {
		t.Errorf("Session = %+v", loaded.Session)
	}
	if loaded.LastFragment != "settings:account" {
		t.Errorf("LastFragment = %q", loaded.LastFragment)
	}
}

func TestLoadRegistryFrom_Missing(t *testing.T) {
	reg, err := LoadRegistryFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadRegistryFrom() error = %v", err)
	}
	if reg.Version != 1 || reg.Preferences == nil {
		t.Errorf("missing file should yield defaults, got %+v", reg)
	}
}

func TestLoadRegistryFrom_UnsupportedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("version: 2\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadRegistryFrom(path); err == nil || !strings.Contains(err.Error(), "unsupported config version") {
		t.Errorf("LoadRegistryFrom() error = %v, want version error", err)
	}
}

func TestLoadRegistryFrom_FillsPreferences(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("version: 1\nlast_fragment: report\n"), 0600); err != nil {
		t.Fatal(err)
	}

	reg, err := LoadRegistryFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if reg.Preferences == nil || reg.Preferences.DiscoverTimeout != DefaultDiscoverTimeout {
		t.Errorf("Preferences = %+v, want defaults", reg.Preferences)
	}
	if reg.Backends == nil {
		t.Error("Backends should be initialised")
	}
}

func BenchmarkGetConfigDir(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = GetConfigDir()
	}
}
