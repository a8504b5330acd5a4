package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
)

// globalKeyMap holds bindings that work on every screen.
type globalKeyMap struct {
	Back    key.Binding
	Forward key.Binding
	Close   key.Binding
	Quit    key.Binding
}

func newGlobalKeyMap() globalKeyMap {
	return globalKeyMap{
		Back: key.NewBinding(
			key.WithKeys("alt+left", "alt+b"),
			key.WithHelp("alt+←", "history back"),
		),
		Forward: key.NewBinding(
			key.WithKeys("alt+right", "alt+f"),
			key.WithHelp("alt+→", "history forward"),
		),
		Close: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

// homeKeyMap defines key bindings for the home screen
type homeKeyMap struct {
	Up    key.Binding
	Down  key.Binding
	Enter key.Binding
	Quit  key.Binding

	global globalKeyMap
}

func newHomeKeyMap(global globalKeyMap) homeKeyMap {
	return homeKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		global: global,
	}
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k homeKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.global.Back, k.global.Forward, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k homeKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter},
		{k.global.Back, k.global.Forward, k.Quit},
	}
}

// wizardKeyMap defines key bindings inside a wizard modal
type wizardKeyMap struct {
	Next     key.Binding
	Prev     key.Binding
	Submit   key.Binding
	StepBack key.Binding
	Dismiss  key.Binding

	global globalKeyMap
}

func newWizardKeyMap(global globalKeyMap) wizardKeyMap {
	return wizardKeyMap{
		Next: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("tab", "next field"),
		),
		Prev: key.NewBinding(
			key.WithKeys("shift+tab", "up"),
			key.WithHelp("shift+tab", "prev field"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "continue"),
		),
		StepBack: key.NewBinding(
			key.WithKeys("ctrl+b"),
			key.WithHelp("ctrl+b", "previous step"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("ctrl+x", "dismiss notice"),
		),
		global: global,
	}
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k wizardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Next, k.StepBack, k.global.Close}
}

// FullHelp returns keybindings for the expanded help view
func (k wizardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Submit, k.Next, k.Prev},
		{k.StepBack, k.Dismiss, k.global.Close},
	}
}

// settingsKeyMap defines key bindings inside the settings modal
type settingsKeyMap struct {
	Verify  key.Binding
	Refresh key.Binding
	SignOut key.Binding
	Send    key.Binding
	Resend  key.Binding
	Confirm key.Binding
	Account key.Binding

	global globalKeyMap
	sub    string
}

func newSettingsKeyMap(global globalKeyMap) settingsKeyMap {
	return settingsKeyMap{
		Verify: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "verify email"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		SignOut: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "sign out"),
		),
		Send: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "send code"),
		),
		Resend: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "resend code"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "verify"),
		),
		Account: key.NewBinding(
			key.WithKeys("ctrl+b"),
			key.WithHelp("ctrl+b", "account"),
		),
		global: global,
	}
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k settingsKeyMap) ShortHelp() []key.Binding {
	if k.sub == subVerifyEmail {
		return []key.Binding{k.Confirm, k.Send, k.Resend, k.Account, k.global.Close}
	}
	return []key.Binding{k.Verify, k.Refresh, k.SignOut, k.global.Close}
}

// FullHelp returns keybindings for the expanded help view
func (k settingsKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var (
	_ help.KeyMap = homeKeyMap{}
	_ help.KeyMap = wizardKeyMap{}
	_ help.KeyMap = settingsKeyMap{}
)
