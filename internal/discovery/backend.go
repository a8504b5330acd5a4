package discovery

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Backend represents an incident backend advertised on the network
type Backend struct {
	// Instance is the advertised instance name (e.g., "Riverside Ops")
	Instance string

	// Hostname is the mDNS hostname (e.g., "incidents.local.")
	Hostname string

	// IP is the preferred address, IPv4 when available
	IP string

	// Port is the HTTP port
	Port int

	// Metadata contains the mDNS TXT record data
	// Known keys: "path" (API root), "tls" ("1" for https), "version"
	Metadata map[string]string

	// DiscoveredAt is when the backend was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the backend
func (b *Backend) String() string {
	return fmt.Sprintf("%s (%s) at %s", b.Instance, strings.TrimSuffix(b.Hostname, "."), b.BaseURL())
}

// BaseURL returns the API root advertised by the backend
func (b *Backend) BaseURL() string {
	scheme := "http"
	if b.GetMetadata("tls") == "1" {
		scheme = "https"
	}

	path := b.GetMetadata("path")
	if path == "/" {
		path = ""
	}
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return fmt.Sprintf("%s://%s%s", scheme, net.JoinHostPort(b.IP, strconv.Itoa(b.Port)), path)
}

// Version returns the advertised backend version, if any
func (b *Backend) Version() string {
	return b.GetMetadata("version")
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (b *Backend) GetMetadata(key string) string {
	if b.Metadata == nil {
		return ""
	}
	return b.Metadata[key]
}
