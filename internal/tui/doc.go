// Package tui is the interactive terminal interface for incidentdesk.
//
// The interface has one home screen and a set of modals. Which modal is on
// screen is never decided here: every open, close, history step and bridged
// browser tab writes the URL fragment, the modal router turns fragment
// changes into serialised {Current, Mounted} transitions, and AppModel only
// renders what the router publishes.
//
// # Rendering
//
//   - Mounted == None: the home screen.
//   - Current == Mounted: the modal, framed and active.
//   - Current == None, Mounted set: the same modal in a dimmed frame while
//     its close grace runs.
//
// # Modals
//
//	signup      five-step wizard; errors from the final submission are
//	            routed back to the step that owns each field
//	signin      single-step wizard that stores the session
//	report      incident report wizard
//	category    create an incident category
//	role        create a role
//	settings    account page; settings:verify-email for the code flow.
//	            Closes itself when nobody is signed in.
//
// Subscriber callbacks from the router and the hash state reach the program
// through an ordered, non-blocking mailbox, so Update can change the hash
// without deadlocking on its own notifications.
package tui
