package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/muurk/incidentdesk/internal/logging"
	"github.com/muurk/incidentdesk/internal/modal"
)

// modalView is the content rendered inside a mounted modal. Views are
// pointers: the app keeps one per modal name for the life of the program.
type modalView interface {
	// Open runs when the modal becomes current. sub holds the fragment
	// segments after the modal name.
	Open(sub []string) tea.Cmd
	// Route runs when the sub-view segments change while the modal is open.
	Route(sub []string) tea.Cmd
	Update(msg tea.Msg) tea.Cmd
	View() string
	Keys() help.KeyMap
}

// namedMsg is delivered to the view it names even when that view is no
// longer mounted.
type namedMsg interface {
	target() modal.Name
}

// flashMsg shows a transient line on the home screen.
type flashMsg string

func flash(text string) tea.Cmd {
	return func() tea.Msg { return flashMsg(text) }
}

// navigator is how views move between modals. Every move goes through the
// hash, so it is recorded in history and mirrored to the bridge.
type navigator struct {
	router *modal.Router
}

// Open shows name, optionally at a sub-view.
func (n navigator) Open(name modal.Name, sub ...string) {
	if err := n.router.Open(name, sub...); err != nil {
		logging.Warn("Could not open modal", zap.String("modal", name.String()), zap.Error(err))
	}
}

// Close hides whatever modal is current.
func (n navigator) Close() {
	if err := n.router.Close(); err != nil {
		logging.Warn("Could not close modal", zap.Error(err))
	}
}

// missingView stands in for a modal name nothing can render. It renders
// nothing; esc and history keys still leave it.
type missingView struct {
	name modal.Name
	keys globalKeyMap
}

func (v *missingView) Open([]string) tea.Cmd  { return nil }
func (v *missingView) Route([]string) tea.Cmd { return nil }
func (v *missingView) Update(tea.Msg) tea.Cmd { return nil }
func (v *missingView) View() string           { return "" }
func (v *missingView) Keys() help.KeyMap      { return closeOnlyKeys(v.keys) }

type closeOnlyKeys globalKeyMap

func (k closeOnlyKeys) ShortHelp() []key.Binding  { return []key.Binding{k.Close, k.Back} }
func (k closeOnlyKeys) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }
