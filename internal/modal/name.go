package modal

import (
	"strings"

	"github.com/muurk/incidentdesk/internal/hashstate"
)

// Separator delimits the modal name from its sub-view segments.
const Separator = ":"

// Name identifies a modal. It may be composite ("settings:account"); only the
// first segment selects the modal.
type Name string

// None is the empty slot.
const None Name = ""

// Base returns the first colon segment.
func (n Name) Base() Name {
	s := string(n)
	if i := strings.Index(s, Separator); i >= 0 {
		return Name(s[:i])
	}
	return n
}

// Sub returns the segments after the first, or nil.
func (n Name) Sub() []string {
	s := string(n)
	i := strings.Index(s, Separator)
	if i < 0 {
		return nil
	}
	rest := s[i+1:]
	if rest == "" {
		return nil
	}
	return strings.Split(rest, Separator)
}

// String implements fmt.Stringer
func (n Name) String() string {
	return string(n)
}

// ParseFragment splits a fragment ("#settings:account") into the modal it
// selects and the opaque sub-view segments. An empty fragment selects None.
func ParseFragment(fragment string) (Name, []string) {
	n := Name(hashstate.Normalize(fragment))
	return n.Base(), n.Sub()
}

// Fragment builds a fragment (without '#') from a modal and its sub-view.
func Fragment(name Name, sub ...string) string {
	if name == None {
		return ""
	}
	parts := append([]string{string(name.Base())}, sub...)
	return strings.Join(parts, Separator)
}
