package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/incidentdesk/internal/logging"
)

const (
	// ServiceType is the mDNS service type incident backends advertise
	ServiceType = "_incidentdesk._tcp"

	// BridgeServiceType is the mDNS service type of a running hash bridge
	BridgeServiceType = "_incidentdesk-bridge._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for backend discovery
	DefaultScanTimeout = 5 * time.Second

	// DefaultPort is used when an entry advertises no port
	DefaultPort = 80
)

// ErrNotFound is returned when no backend answered before the timeout.
var ErrNotFound = errors.New("no incident backend found")

// Scanner handles mDNS backend discovery
type Scanner struct {
	// Timeout is the maximum time to wait for discovery
	Timeout time.Duration

	// Service is the service type to browse, ServiceType by default
	Service string
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
		Service: ServiceType,
	}
}

// Scan discovers every backend that answers before the timeout. Results are
// sorted by instance name.
func (s *Scanner) Scan(ctx context.Context) ([]*Backend, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var mu sync.Mutex
	seen := make(map[string]*Backend)

	err := s.browse(ctx, func(b *Backend) bool {
		mu.Lock()
		seen[b.Instance] = b
		mu.Unlock()
		return true
	})
	if err != nil {
		return nil, err
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	backends := make([]*Backend, 0, len(seen))
	for _, b := range seen {
		backends = append(backends, b)
	}
	sort.Slice(backends, func(i, j int) bool { return backends[i].Instance < backends[j].Instance })
	return backends, nil
}

// FindFirst returns the first backend that answers.
func (s *Scanner) FindFirst(ctx context.Context) (*Backend, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	found := make(chan *Backend, 1)
	err := s.browse(ctx, func(b *Backend) bool {
		select {
		case found <- b:
		default:
		}
		cancel()
		return false
	})
	if err != nil {
		return nil, err
	}

	select {
	case b := <-found:
		return b, nil
	case <-ctx.Done():
		select {
		case b := <-found:
			return b, nil
		default:
		}
		return nil, fmt.Errorf("%w within %s", ErrNotFound, s.Timeout)
	}
}

// browse feeds parsed entries to fn until fn returns false or ctx ends.
func (s *Scanner) browse(ctx context.Context, fn func(*Backend) bool) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		for entry := range entries {
			b := parseServiceEntry(entry)
			if b == nil {
				continue
			}
			logging.Debug("Discovered backend",
				zap.String("instance", b.Instance),
				zap.String("url", b.BaseURL()),
			)
			if !fn(b) {
				// Keep draining so the resolver never blocks.
				for range entries {
				}
				return
			}
		}
	}()

	service := s.Service
	if service == "" {
		service = ServiceType
	}
	if err := resolver.Browse(ctx, service, ServiceDomain, entries); err != nil {
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}
	return nil
}

// parseServiceEntry converts a zeroconf service entry to a Backend.
// Returns nil if the entry has no usable address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Backend {
	if entry == nil {
		return nil
	}

	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}

	instance := entry.Instance
	if instance == "" {
		instance = strings.TrimSuffix(entry.HostName, ".")
	}

	return &Backend{
		Instance:     unescapeInstance(instance),
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// unescapeInstance undoes DNS-SD escaping of spaces and dots.
func unescapeInstance(s string) string {
	return strings.NewReplacer(`\ `, " ", `\.`, ".").Replace(s)
}

// Advertise registers a service on the LAN until the returned stop function
// is called.
func Advertise(instance, service string, port int, txt []string) (stop func(), err error) {
	server, err := zeroconf.Register(instance, service, ServiceDomain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}
	logging.Info("Advertising service",
		zap.String("instance", instance),
		zap.String("service", service),
		zap.Int("port", port),
	)
	return server.Shutdown, nil
}

// PortOf extracts the numeric port from a listen address.
func PortOf(addr net.Addr) int {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}
