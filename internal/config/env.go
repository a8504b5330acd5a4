package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvOverrides are the INCIDENTDESK_* environment variables. Zero values mean
// "not set".
type EnvOverrides struct {
	APIBaseURL      string        `env:"INCIDENTDESK_API_URL"`
	CloseGrace      time.Duration `env:"INCIDENTDESK_CLOSE_GRACE"`
	ReplaceGrace    time.Duration `env:"INCIDENTDESK_REPLACE_GRACE"`
	BridgeAddr      string        `env:"INCIDENTDESK_BRIDGE_ADDR"`
	DiscoverTimeout time.Duration `env:"INCIDENTDESK_DISCOVER_TIMEOUT"`
}

// ParseEnv loads overrides from the environment.
func ParseEnv() (EnvOverrides, error) {
	var o EnvOverrides
	if err := env.Parse(&o); err != nil {
		return EnvOverrides{}, fmt.Errorf("parse env: %w", err)
	}
	return o, nil
}

// Settings is the effective configuration after merging every source.
type Settings struct {
	APIBaseURL      string
	AutoDiscover    bool
	DiscoverTimeout time.Duration
	CloseGrace      time.Duration
	ReplaceGrace    time.Duration
	BridgeAddr      string
	RestoreFragment bool
}

// Resolve merges defaults, the registry and env overrides, in increasing
// precedence. reg may be nil.
func Resolve(reg *Registry, o EnvOverrides) Settings {
	s := Settings{
		AutoDiscover:    true,
		DiscoverTimeout: DefaultDiscoverTimeout * time.Second,
		CloseGrace:      DefaultCloseGrace,
		ReplaceGrace:    DefaultReplaceGrace,
		RestoreFragment: true,
	}

	if reg != nil && reg.Preferences != nil {
		p := reg.Preferences
		s.APIBaseURL = p.APIBaseURL
		s.AutoDiscover = p.AutoDiscover
		s.RestoreFragment = p.RestoreFragment
		s.BridgeAddr = p.BridgeAddr
		if p.DiscoverTimeout > 0 {
			s.DiscoverTimeout = time.Duration(p.DiscoverTimeout) * time.Second
		}
		if p.CloseGrace > 0 {
			s.CloseGrace = p.CloseGrace
		}
		if p.ReplaceGrace > 0 {
			s.ReplaceGrace = p.ReplaceGrace
		}
	}

	if o.APIBaseURL != "" {
		s.APIBaseURL = o.APIBaseURL
	}
	if o.CloseGrace > 0 {
		s.CloseGrace = o.CloseGrace
	}
	if o.ReplaceGrace > 0 {
		s.ReplaceGrace = o.ReplaceGrace
	}
	if o.BridgeAddr != "" {
		s.BridgeAddr = o.BridgeAddr
	}
	if o.DiscoverTimeout > 0 {
		s.DiscoverTimeout = o.DiscoverTimeout
	}

	return s
}
