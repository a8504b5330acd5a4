package config

import (
	"testing"
	"time"
)

func TestParseEnv(t *testing.T) {
	t.Setenv("INCIDENTDESK_API_URL", "http://env.local")
	t.Setenv("INCIDENTDESK_CLOSE_GRACE", "450ms")
	t.Setenv("INCIDENTDESK_BRIDGE_ADDR", ":9000")

	o, err := ParseEnv()
	if err != nil {
		t.Fatalf("ParseEnv() error = %v", err)
	}
	if o.APIBaseURL != "http://env.local" {
		t.Errorf("APIBaseURL = %q", o.APIBaseURL)
	}
	if o.CloseGrace != 450*time.Millisecond {
		t.Errorf("CloseGrace = %v, want 450ms", o.CloseGrace)
	}
	if o.BridgeAddr != ":9000" {
		t.Errorf("BridgeAddr = %q", o.BridgeAddr)
	}
}

func TestParseEnv_InvalidDuration(t *testing.T) {
	t.Setenv("INCIDENTDESK_REPLACE_GRACE", "soon")

	if _, err := ParseEnv(); err == nil {
		t.Error("ParseEnv() should reject an invalid duration")
	}
}

func TestResolve_Precedence(t *testing.T) {
	tests := []struct {
		name             string
		reg              *Registry
		env              EnvOverrides
		wantURL          string
		wantCloseGrace   time.Duration
		wantReplaceGrace time.Duration
	}{
		{
			name:             "defaults",
			wantCloseGrace:   DefaultCloseGrace,
			wantReplaceGrace: DefaultReplaceGrace,
		},
		{
			name: "registry over defaults",
			reg: &Registry{Version: 1, Preferences: &Preferences{
				APIBaseURL: "http://reg.local",
				CloseGrace: 200 * time.Millisecond,
			}},
			wantURL:          "http://reg.local",
			wantCloseGrace:   200 * time.Millisecond,
			wantReplaceGrace: DefaultReplaceGrace,
		},
		{
			name: "env over registry",
			reg: &Registry{Version: 1, Preferences: &Preferences{
				APIBaseURL: "http://reg.local",
				CloseGrace: 200 * time.Millisecond,
			}},
			env:              EnvOverrides{APIBaseURL: "http://env.local", ReplaceGrace: 50 * time.Millisecond},
			wantURL:          "http://env.local",
			wantCloseGrace:   200 * time.Millisecond,
			wantReplaceGrace: 50 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Resolve(tt.reg, tt.env)
			if s.APIBaseURL != tt.wantURL {
				t.Errorf("APIBaseURL = %q, want %q", s.APIBaseURL, tt.wantURL)
			}
			if s.CloseGrace != tt.wantCloseGrace {
				t.Errorf("CloseGrace = %v, want %v", s.CloseGrace, tt.wantCloseGrace)
			}
			if s.ReplaceGrace != tt.wantReplaceGrace {
				t.Errorf("ReplaceGrace = %v, want %v", s.ReplaceGrace, tt.wantReplaceGrace)
			}
		})
	}
}
