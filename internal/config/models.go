package config

import "time"

const (
	// DefaultCloseGrace is the default wait before a closing modal unmounts.
	DefaultCloseGrace = 300 * time.Millisecond

	// DefaultReplaceGrace is the default wait when one modal replaces another.
	DefaultReplaceGrace = 100 * time.Millisecond

	// DefaultDiscoverTimeout is the default mDNS browse duration in seconds.
	DefaultDiscoverTimeout = 5

	// DefaultBridgeAddr is where the hash bridge listens when enabled without an address.
	DefaultBridgeAddr = "127.0.0.1:7420"
)

// Registry represents the entire user configuration file.
type Registry struct {
	Version      int                 `yaml:"version"`
	Preferences  *Preferences        `yaml:"preferences,omitempty"`
	Session      *Session            `yaml:"session,omitempty"`
	LastFragment string              `yaml:"last_fragment,omitempty"` // Restored on next start
	Backends     map[string]*Backend `yaml:"backends,omitempty"`      // Keyed by advertised instance name
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	APIBaseURL      string        `yaml:"api_base_url,omitempty"`  // Incident backend root
	AutoDiscover    bool          `yaml:"auto_discover"`           // Browse mDNS when no API URL is set
	DiscoverTimeout int           `yaml:"discover_timeout"`        // mDNS discovery timeout in seconds
	CloseGrace      time.Duration `yaml:"close_grace,omitempty"`   // Exit animation window on close
	ReplaceGrace    time.Duration `yaml:"replace_grace,omitempty"` // Exit animation window on replace
	BridgeAddr      string        `yaml:"bridge_addr,omitempty"`   // Hash bridge listen address
	RestoreFragment bool          `yaml:"restore_fragment"`        // Reopen the last modal on start
}

// Session is the persisted "current account".
type Session struct {
	Token   string      `yaml:"token,omitempty"`
	Account AccountMeta `yaml:"account"`
	Since   time.Time   `yaml:"since,omitempty"`
}

// AccountMeta is the subset of the account kept locally for gating and display.
type AccountMeta struct {
	ID            string `yaml:"id"`
	Username      string `yaml:"username"`
	Email         string `yaml:"email,omitempty"`
	FirstName     string `yaml:"first_name,omitempty"`
	LastName      string `yaml:"last_name,omitempty"`
	EmailVerified bool   `yaml:"email_verified"`
}

// Backend is an incident backend seen on the LAN.
type Backend struct {
	URL      string    `yaml:"url"`
	Version  string    `yaml:"version,omitempty"`
	LastSeen time.Time `yaml:"last_seen,omitempty"`
}

func defaultPreferences() *Preferences {
	return &Preferences{
		AutoDiscover:    true,
		DiscoverTimeout: DefaultDiscoverTimeout,
		CloseGrace:      DefaultCloseGrace,
		ReplaceGrace:    DefaultReplaceGrace,
		RestoreFragment: true,
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Preferences: defaultPreferences(),
		Backends:    make(map[string]*Backend),
	}
}

// SetSession records the signed-in account.
func (r *Registry) SetSession(token string, account AccountMeta) {
	r.Session = &Session{
		Token:   token,
		Account: account,
		Since:   time.Now(),
	}
}

// ClearSession forgets the signed-in account.
func (r *Registry) ClearSession() {
	r.Session = nil
}

// RecordBackend updates the last seen timestamp and URL for a discovered backend.
func (r *Registry) RecordBackend(name, url, version string) {
	if r.Backends == nil {
		r.Backends = make(map[string]*Backend)
	}
	r.Backends[name] = &Backend{
		URL:      url,
		Version:  version,
		LastSeen: time.Now(),
	}
}

// MostRecentBackend returns the backend seen most recently, or nil.
func (r *Registry) MostRecentBackend() *Backend {
	var best *Backend
	for _, b := range r.Backends {
		if best == nil || b.LastSeen.After(best.LastSeen) {
			best = b
		}
	}
	return best
}
