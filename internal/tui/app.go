package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/incidentdesk/internal/hashstate"
	"github.com/muurk/incidentdesk/internal/modal"
	"github.com/muurk/incidentdesk/internal/service"
	"github.com/muurk/incidentdesk/internal/session"
)

// Deps are the collaborators the interface drives.
type Deps struct {
	Router  *modal.Router
	Hash    *hashstate.State
	Client  *service.Client
	Session session.Store
	// Backend is shown on the home screen.
	Backend string
}

// menuItem is one entry on the home screen.
type menuItem struct {
	label string
	name  modal.Name
	sub   []string
	// signedIn selects when the entry is offered: nil always, otherwise
	// only when the session state matches.
	signedIn *bool
}

var (
	yes = true
	no  = false
)

var menu = []menuItem{
	{label: "Create account", name: ModalSignup, signedIn: &no},
	{label: "Sign in", name: ModalSignin, signedIn: &no},
	{label: "Report an incident", name: ModalReport},
	{label: "New category", name: ModalCategory, signedIn: &yes},
	{label: "New role", name: ModalRole, signedIn: &yes},
	{label: "Account settings", name: ModalSettings, sub: []string{subAccount}, signedIn: &yes},
	{label: "Verify email", name: ModalSettings, sub: []string{subVerifyEmail}, signedIn: &yes},
}

// AppModel renders the home screen and, on top of it, whichever modal the
// router has mounted. All modal changes come in as router state messages;
// the model never decides on its own which modal is showing.
type AppModel struct {
	deps  Deps
	nav   navigator
	feed  *feed
	stop  func()
	views map[modal.Name]modalView

	state    modal.State
	fragment string
	cursor   int
	flash    string

	Width  int
	Height int

	help   help.Model
	global globalKeyMap
	keys   homeKeyMap
}

// NewAppModel wires the model to the router and hash state. Call Stop once
// the program exits.
func NewAppModel(ctx context.Context, deps Deps) (AppModel, error) {
	global := newGlobalKeyMap()
	nav := navigator{router: deps.Router}

	// subscribe before the snapshot so no transition falls in between
	f := newFeed()
	stop := f.watch(deps.Router, deps.Hash)

	m := AppModel{
		deps:     deps,
		nav:      nav,
		feed:     f,
		stop:     stop,
		views:    make(map[modal.Name]modalView),
		state:    deps.Router.State(),
		fragment: deps.Hash.Get(),
		Width:    MinTerminalWidth,
		Height:   24,
		help:     help.New(),
		global:   global,
		keys:     newHomeKeyMap(global),
	}

	flows := []flowSpec{
		signupFlow(deps.Client),
		signinFlow(deps.Client, deps.Session),
		reportFlow(deps.Client),
		categoryFlow(deps.Client),
		roleFlow(deps.Client),
	}
	for _, spec := range flows {
		w, err := newWizardModal(ctx, spec, nav, global)
		if err != nil {
			stop()
			return AppModel{}, err
		}
		m.views[spec.Name] = w
	}
	m.views[ModalSettings] = newSettingsModal(ctx, deps.Client, deps.Session, nav, global)
	return m, nil
}

// Stop detaches the model from the router and hash state.
func (m AppModel) Stop() {
	if m.stop != nil {
		m.stop()
	}
}

// Init opens the modal already selected by the router, if any.
func (m AppModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.feed.Next()}
	if m.state.Current != modal.None {
		_, sub := modal.ParseFragment(m.fragment)
		cmds = append(cmds, m.view(m.state.Current).Open(sub))
	}
	return tea.Batch(cmds...)
}

func (m AppModel) view(name modal.Name) modalView {
	if v, ok := m.views[name]; ok {
		return v
	}
	return &missingView{name: name, keys: m.global}
}

// Update handles all messages and routes them to the mounted modal
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case routerStateMsg:
		return m.applyState(modal.State(msg))

	case hashChangedMsg:
		m.fragment = msg.Fragment
		var cmd tea.Cmd
		name, sub := modal.ParseFragment(msg.Fragment)
		if name != modal.None && name == m.state.Current {
			cmd = m.view(name).Route(sub)
		}
		return m, tea.Batch(cmd, m.feed.Next())

	case flashMsg:
		m.flash = string(msg)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case namedMsg:
		return m, m.view(msg.target()).Update(msg)
	}

	if m.state.Mounted != modal.None {
		return m, m.view(m.state.Mounted).Update(msg)
	}
	return m, nil
}

// applyState records the router's slot pair and opens the view that just
// became current.
func (m AppModel) applyState(next modal.State) (tea.Model, tea.Cmd) {
	prev := m.state
	m.state = next

	var cmd tea.Cmd
	if next.Current != modal.None && next.Current != prev.Current {
		m.flash = ""
		_, sub := modal.ParseFragment(m.deps.Hash.Get())
		cmd = m.view(next.Current).Open(sub)
	}
	return m, tea.Batch(cmd, m.feed.Next())
}

func (m AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.global.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.global.Back):
		m.deps.Hash.Back()
		return m, nil
	case key.Matches(msg, m.global.Forward):
		m.deps.Hash.Forward()
		return m, nil
	}

	if m.state.Current != modal.None {
		if key.Matches(msg, m.global.Close) {
			m.nav.Close()
			return m, nil
		}
		return m, m.view(m.state.Current).Update(msg)
	}

	items := m.menuItems()
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(items)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Enter):
		if m.cursor < len(items) {
			item := items[m.cursor]
			m.nav.Open(item.name, item.sub...)
		}
	}
	return m, nil
}

func (m AppModel) menuItems() []menuItem {
	_, signedIn := m.deps.Session.Current()
	items := make([]menuItem, 0, len(menu))
	for _, it := range menu {
		if it.signedIn == nil || *it.signedIn == signedIn {
			items = append(items, it)
		}
	}
	return items
}

// View renders the home screen, or the mounted modal over it. A modal name
// nothing can render leaves the home screen as it is.
func (m AppModel) View() string {
	if v, ok := m.views[m.state.Mounted]; ok {
		closing := m.state.Current != m.state.Mounted
		content := v.View() + "\n" + m.help.View(v.Keys())
		return RenderModal(content, closing, m.Width, m.Height)
	}

	return RenderApplicationContainer(m.renderHome(), m.help.View(m.keys), m.fragment, m.Width, m.Height)
}

func (m AppModel) renderHome() string {
	var b strings.Builder

	if account, ok := m.deps.Session.Current(); ok {
		b.WriteString(RenderTitle("Signed in as " + account.DisplayName()))
	} else {
		b.WriteString(RenderTitle("Welcome"))
	}
	b.WriteString("\n")
	backend := m.deps.Backend
	if backend == "" {
		backend = "no backend configured"
	}
	b.WriteString(RenderSubtitle("Backend: " + backend))
	b.WriteString("\n\n")

	items := m.menuItems()
	cursor := min(m.cursor, max(len(items)-1, 0))
	for i, it := range items {
		b.WriteString(RenderMenuItem(it.label, i == cursor))
		b.WriteString("\n")
	}

	if m.flash != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(SecondaryColor).Render(m.flash))
		b.WriteString("\n")
	}
	return b.String()
}

// Run starts the interactive program and blocks until the user quits or ctx
// is cancelled.
func Run(ctx context.Context, deps Deps, opts ...tea.ProgramOption) error {
	m, err := NewAppModel(ctx, deps)
	if err != nil {
		return err
	}
	defer m.Stop()

	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(m, opts...)
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}
