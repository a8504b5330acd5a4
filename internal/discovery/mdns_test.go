package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func TestParseServiceEntry(t *testing.T) {
	tests := []struct {
		name         string
		entry        *zeroconf.ServiceEntry
		wantNil      bool
		wantInstance string
		wantIP       string
		wantPort     int
	}{
		{
			name: "IPv4 backend",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "Riverside\\ Ops"},
				HostName:      "incidents.local.",
				Port:          8080,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.1.20")},
				Text:          []string{"path=/api", "version=2.3"},
			},
			wantInstance: "Riverside Ops",
			wantIP:       "192.168.1.20",
			wantPort:     8080,
		},
		{
			name: "IPv6 fallback and default port",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "lab"},
				HostName:      "lab.local.",
				AddrIPv6:      []net.IP{net.ParseIP("fe80::1")},
			},
			wantInstance: "lab",
			wantIP:       "fe80::1",
			wantPort:     DefaultPort,
		},
		{
			name: "instance falls back to hostname",
			entry: &zeroconf.ServiceEntry{
				HostName: "desk.local.",
				Port:     80,
				AddrIPv4: []net.IP{net.ParseIP("10.0.0.5")},
			},
			wantInstance: "desk.local",
			wantIP:       "10.0.0.5",
			wantPort:     80,
		},
		{
			name: "no address",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "ghost"},
				Port:          80,
			},
			wantNil: true,
		},
		{
			name:    "nil entry",
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := parseServiceEntry(tt.entry)

			if tt.wantNil {
				if b != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", b)
				}
				return
			}
			if b == nil {
				t.Fatal("parseServiceEntry() = nil, want backend")
			}
			if b.Instance != tt.wantInstance {
				t.Errorf("Instance = %q, want %q", b.Instance, tt.wantInstance)
			}
			if b.IP != tt.wantIP {
				t.Errorf("IP = %q, want %q", b.IP, tt.wantIP)
			}
			if b.Port != tt.wantPort {
				t.Errorf("Port = %d, want %d", b.Port, tt.wantPort)
			}
			if time.Since(b.DiscoveredAt) > time.Second {
				t.Errorf("DiscoveredAt is not recent: %v", b.DiscoveredAt)
			}
		})
	}
}

func TestParseServiceEntry_Metadata(t *testing.T) {
	b := parseServiceEntry(&zeroconf.ServiceEntry{
		HostName: "incidents.local.",
		Port:     80,
		AddrIPv4: []net.IP{net.ParseIP("192.168.1.20")},
		Text:     []string{"path=/api", "tls=1", "flag", "version=2.3"},
	})
	if b == nil {
		t.Fatal("parseServiceEntry() = nil")
	}

	expected := map[string]string{
		"path":    "/api",
		"tls":     "1",
		"flag":    "",
		"version": "2.3",
	}
	if len(b.Metadata) != len(expected) {
		t.Errorf("Metadata has %d entries, want %d", len(b.Metadata), len(expected))
	}
	for key, want := range expected {
		if got, ok := b.Metadata[key]; !ok || got != want {
			t.Errorf("Metadata[%q] = %q, want %q", key, got, want)
		}
	}
	if b.Version() != "2.3" {
		t.Errorf("Version() = %q", b.Version())
	}
}

func TestBackend_BaseURL(t *testing.T) {
	tests := []struct {
		name    string
		backend Backend
		want    string
	}{
		{"plain", Backend{IP: "10.0.0.5", Port: 8080}, "http://10.0.0.5:8080"},
		{"root path", Backend{IP: "10.0.0.5", Port: 80, Metadata: map[string]string{"path": "/"}}, "http://10.0.0.5:80"},
		{"api path", Backend{IP: "10.0.0.5", Port: 80, Metadata: map[string]string{"path": "api"}}, "http://10.0.0.5:80/api"},
		{"tls", Backend{IP: "10.0.0.5", Port: 443, Metadata: map[string]string{"tls": "1"}}, "https://10.0.0.5:443"},
		{"ipv6", Backend{IP: "fe80::1", Port: 80}, "http://[fe80::1]:80"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.backend.BaseURL(); got != tt.want {
				t.Errorf("BaseURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBackend_GetMetadata_NilMap(t *testing.T) {
	b := &Backend{}
	if b.GetMetadata("path") != "" {
		t.Error("GetMetadata on nil map should return empty string")
	}
}

func TestNewScanner(t *testing.T) {
	scanner := NewScanner()

	if scanner.Timeout != DefaultScanTimeout {
		t.Errorf("scanner.Timeout = %v, want %v", scanner.Timeout, DefaultScanTimeout)
	}
	if scanner.Service != ServiceType {
		t.Errorf("scanner.Service = %q, want %q", scanner.Service, ServiceType)
	}
}

func TestPortOf(t *testing.T) {
	if got := PortOf(&net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 7420}); got != 7420 {
		t.Errorf("PortOf() = %d, want 7420", got)
	}
	if got := PortOf(&net.UDPAddr{Port: 53}); got != 0 {
		t.Errorf("PortOf(udp) = %d, want 0", got)
	}
}
