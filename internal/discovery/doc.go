// Package discovery finds incident backends on the local network with mDNS.
//
// Backends advertise the "_incidentdesk._tcp" service type. TXT records carry
// the API path ("path=/api"), whether TLS is used ("tls=1") and the backend
// version. A running hash bridge advertises "_incidentdesk-bridge._tcp" so
// other tools on the LAN can find it.
//
// # Usage Example
//
//	scanner := discovery.NewScanner()
//	backend, err := scanner.FindFirst(ctx)
//	if err != nil {
//	    return err
//	}
//	client := service.NewClient(backend.BaseURL())
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Backends must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
