package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/muurk/incidentdesk/internal/logging"
	"github.com/muurk/incidentdesk/internal/modal"
	"github.com/muurk/incidentdesk/internal/service"
	"github.com/muurk/incidentdesk/internal/session"
	"github.com/muurk/incidentdesk/internal/wizard"
)

// Settings sub-views, selected by the fragment segment after "settings".
const (
	subAccount     = "account"
	subVerifyEmail = "verify-email"
)

// settingsAction names a backend call made from the settings modal.
type settingsAction string

const (
	actionSend    settingsAction = "send"
	actionResend  settingsAction = "resend"
	actionVerify  settingsAction = "verify"
	actionRefresh settingsAction = "refresh"
	actionSignOut settingsAction = "signout"
)

// settingsResultMsg reports a finished settings call.
type settingsResultMsg struct {
	action  settingsAction
	resp    service.Response
	account *service.Account
}

func (settingsResultMsg) target() modal.Name { return ModalSettings }

// settingsModal shows the signed-in account and the email verification
// sub-view. It refuses to stay open without an account.
type settingsModal struct {
	client *service.Client
	store  session.Store
	nav    navigator
	ctx    context.Context

	sub     string
	account service.Account
	code    textinput.Model
	notice  string
	codeErr string
	pending settingsAction
	keys    settingsKeyMap
}

func newSettingsModal(ctx context.Context, client *service.Client, store session.Store, nav navigator, global globalKeyMap) *settingsModal {
	code := textinput.New()
	code.Placeholder = "123456"
	code.CharLimit = 12
	code.Width = 20

	return &settingsModal{
		client: client,
		store:  store,
		nav:    nav,
		ctx:    ctx,
		sub:    subAccount,
		code:   code,
		keys:   newSettingsKeyMap(global),
	}
}

// Open loads the account from the session store, or force-closes.
func (s *settingsModal) Open(sub []string) tea.Cmd {
	account, ok := s.store.Current()
	if !ok {
		s.nav.Close()
		return flash("Sign in to view settings")
	}
	s.account = account
	s.notice = ""
	s.codeErr = ""
	s.pending = ""
	s.code.Reset()
	return s.Route(sub)
}

// Route switches sub-view. Unknown sub-views fall back to the account page.
func (s *settingsModal) Route(sub []string) tea.Cmd {
	next := subAccount
	if len(sub) > 0 && sub[0] == subVerifyEmail {
		next = subVerifyEmail
	}
	s.sub = next
	s.keys.sub = next
	s.notice = ""

	if next == subVerifyEmail {
		return s.code.Focus()
	}
	s.code.Blur()
	return nil
}

func (s *settingsModal) Keys() help.KeyMap { return s.keys }

// Update handles keys and call results.
func (s *settingsModal) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case settingsResultMsg:
		return s.handleResult(msg)
	case tea.KeyMsg:
		if s.sub == subVerifyEmail {
			return s.handleVerifyKey(msg)
		}
		return s.handleAccountKey(msg)
	}
	return nil
}

func (s *settingsModal) handleAccountKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, s.keys.Verify):
		s.nav.Open(ModalSettings, subVerifyEmail)
	case key.Matches(msg, s.keys.Refresh):
		return s.call(actionRefresh, func(ctx context.Context) (service.Response, *service.Account) {
			res := s.client.CurrentAccount(ctx)
			return res, accountOf(res)
		})
	case key.Matches(msg, s.keys.SignOut):
		return s.call(actionSignOut, func(ctx context.Context) (service.Response, *service.Account) {
			return s.client.Signout(ctx), nil
		})
	}
	return nil
}

func (s *settingsModal) handleVerifyKey(msg tea.KeyMsg) tea.Cmd {
	email := s.account.Email

	switch {
	case key.Matches(msg, s.keys.Account):
		s.nav.Open(ModalSettings, subAccount)
		return nil
	case key.Matches(msg, s.keys.Send):
		return s.call(actionSend, func(ctx context.Context) (service.Response, *service.Account) {
			return s.client.SendVerificationCode(ctx, email), nil
		})
	case key.Matches(msg, s.keys.Resend):
		return s.call(actionResend, func(ctx context.Context) (service.Response, *service.Account) {
			return s.client.ResendVerificationCode(ctx, email), nil
		})
	case key.Matches(msg, s.keys.Confirm):
		code := strings.TrimSpace(s.code.Value())
		return s.call(actionVerify, func(ctx context.Context) (service.Response, *service.Account) {
			res := s.client.VerifyEmail(ctx, code)
			return res, accountOf(res)
		})
	}

	var cmd tea.Cmd
	before := s.code.Value()
	s.code, cmd = s.code.Update(msg)
	if s.code.Value() != before {
		s.codeErr = ""
	}
	return cmd
}

func (s *settingsModal) call(action settingsAction, fn func(ctx context.Context) (service.Response, *service.Account)) tea.Cmd {
	if s.pending != "" {
		return nil
	}
	s.pending = action
	s.notice = ""
	ctx := s.ctx
	return func() tea.Msg {
		resp, account := fn(ctx)
		return settingsResultMsg{action: action, resp: resp, account: account}
	}
}

func accountOf(res service.Result[service.Account]) *service.Account {
	if !res.IsOK() {
		return nil
	}
	a := res.Value()
	return &a
}

func (s *settingsModal) handleResult(msg settingsResultMsg) tea.Cmd {
	s.pending = ""
	logging.Debug("Settings call finished",
		zap.String("action", string(msg.action)),
		zap.String("kind", msg.resp.Kind().String()),
	)

	if msg.action == actionSignOut {
		if err := s.store.SignOut(); err != nil {
			logging.Error("Failed to clear session", zap.Error(err))
		}
		s.nav.Close()
		return flash("Signed out")
	}

	switch msg.resp.Kind() {
	case service.KindOK:
		if msg.account != nil {
			s.account = *msg.account
			if err := s.store.Update(*msg.account); err != nil {
				logging.Error("Failed to persist account", zap.Error(err))
			}
		}
		switch msg.action {
		case actionSend, actionResend:
			s.notice = fmt.Sprintf("Code sent to %s", s.account.Email)
		case actionVerify:
			s.code.Reset()
			s.nav.Open(ModalSettings, subAccount)
			return flash("Email verified")
		case actionRefresh:
			s.notice = "Account refreshed"
		}

	case service.KindFieldValidation:
		if e, ok := msg.resp.FieldErrors()["code"]; ok && msg.action == actionVerify {
			s.codeErr = e
		} else {
			s.notice = noticeText(msg.resp)
		}

	default:
		s.notice = noticeText(msg.resp)
	}
	return nil
}

func noticeText(resp service.Response) string {
	if m := strings.TrimSpace(resp.Message()); m != "" {
		return m
	}
	return wizard.DefaultNotice
}

// View renders the active sub-view.
func (s *settingsModal) View() string {
	var b strings.Builder
	b.WriteString(RenderTitle("Settings"))
	b.WriteString("\n")

	tabs := []string{subAccount, subVerifyEmail}
	for i, t := range tabs {
		if i > 0 {
			b.WriteString("  ")
		}
		if t == s.sub {
			b.WriteString(CurrentStepMarkerStyle.Render("● " + t))
		} else {
			b.WriteString(StepMarkerStyle.Render("· " + t))
		}
	}
	b.WriteString("\n\n")

	if s.sub == subVerifyEmail {
		s.renderVerify(&b)
	} else {
		s.renderAccount(&b)
	}

	if s.pending != "" {
		b.WriteString(RenderSubtitle("Working..."))
		b.WriteString("\n")
	}
	if s.notice != "" {
		b.WriteString(NoticeStyle.Render(s.notice))
		b.WriteString("\n")
	}
	return b.String()
}

func (s *settingsModal) renderAccount(b *strings.Builder) {
	verified := "no"
	if s.account.EmailVerified {
		verified = "yes"
	}
	rows := [][2]string{
		{"Name", s.account.DisplayName()},
		{"Username", s.account.Username},
		{"Email", s.account.Email},
		{"Verified", verified},
	}
	for _, r := range rows {
		fmt.Fprintf(b, "%s %s\n", LabelStyle.Width(10).Render(r[0]), r[1])
	}
	b.WriteString("\n")
}

func (s *settingsModal) renderVerify(b *strings.Builder) {
	if s.account.EmailVerified {
		b.WriteString(SuccessStyle.Render("✓ " + s.account.Email + " is verified"))
		b.WriteString("\n\n")
	} else {
		b.WriteString(RenderSubtitle("Enter the code we emailed to " + s.account.Email))
		b.WriteString("\n\n")
	}
	b.WriteString(FocusedLabelStyle.Render("Code"))
	b.WriteString("\n")
	b.WriteString(s.code.View())
	b.WriteString("\n")
	if s.codeErr != "" {
		b.WriteString(FieldErrorStyle.Render("✗ " + s.codeErr))
		b.WriteString("\n")
	}
	b.WriteString("\n")
}
