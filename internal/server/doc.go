// Package server implements the hash bridge: a small HTTP server that keeps
// browser tabs and the terminal UI on the same URL fragment.
//
// # Routes
//
//	GET /healthz  liveness and version
//	GET /state    current fragment and the modal router's {current, mounted} pair
//	GET /ws       WebSocket carrying fragment updates in both directions
//	GET /         a minimal page that mirrors location.hash over /ws
//
// # Wire format
//
// Every WebSocket frame is a JSON text message:
//
//	{"fragment": "signup", "source": "internal"}
//
// On connect the hub sends a "snapshot" frame with the current fragment.
// Fragments received from a tab are applied with source "external", which
// drives the modal router exactly like a browser hashchange event. Echoes
// are suppressed by the hash state itself: setting an unchanged fragment
// produces no change notification.
//
// # Discovery
//
// When Config.Advertise is set the bridge registers itself as
// _incidentdesk-bridge._tcp so other machines on the LAN can find it.
package server
