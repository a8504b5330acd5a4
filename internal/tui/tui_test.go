package tui

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/incidentdesk/internal/hashstate"
	"github.com/muurk/incidentdesk/internal/modal"
	"github.com/muurk/incidentdesk/internal/service"
	"github.com/muurk/incidentdesk/internal/session"
	"github.com/muurk/incidentdesk/internal/wizard"
)

const testGrace = 5 * time.Millisecond

type fixture struct {
	router *modal.Router
	hash   *hashstate.State
	store  *session.MemoryStore
	nav    navigator
}

func newFixture(t *testing.T, fragment string) *fixture {
	t.Helper()
	r := modal.New(modal.WithCloseGrace(testGrace), modal.WithReplaceGrace(testGrace), modal.WithKnown(KnownModals...))
	t.Cleanup(r.Shutdown)
	h := hashstate.New(fragment)
	r.Bind(h)
	return &fixture{router: r, hash: h, store: session.NewMemoryStore(), nav: navigator{router: r}}
}

func (f *fixture) settle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := f.router.Settle(ctx); err != nil {
		t.Fatalf("Settle() error = %v", err)
	}
}

// collect runs cmd and any batch it expands to, returning every message.
// Only use it on commands that do not sleep.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func findMsg[T any](t *testing.T, msgs []tea.Msg) T {
	t.Helper()
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			return v
		}
	}
	var zero T
	t.Fatalf("no %T in %v", zero, msgs)
	return zero
}

func TestFeed_DeliversInOrder(t *testing.T) {
	f := newFeed()
	f.Push(flashMsg("a"))
	f.Push(flashMsg("b"))
	f.Push(flashMsg("c"))

	var got []tea.Msg
	for i := 0; i < 3; i++ {
		got = append(got, f.Next()())
	}
	want := []tea.Msg{flashMsg("a"), flashMsg("b"), flashMsg("c")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("messages = %v, want %v", got, want)
	}
}

func TestFeed_CloseReleasesListener(t *testing.T) {
	f := newFeed()
	done := make(chan tea.Msg, 1)
	go func() { done <- f.Next()() }()

	f.Close()
	select {
	case msg := <-done:
		if msg != nil {
			t.Errorf("Next() after Close = %v, want nil", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("listener still blocked after Close")
	}
}

func TestFeed_WatchForwardsRouterAndHash(t *testing.T) {
	r := modal.New(modal.WithCloseGrace(testGrace), modal.WithReplaceGrace(testGrace))
	defer r.Shutdown()
	h := hashstate.New("")

	// subscribe before binding so the hash change is queued first
	f := newFeed()
	stop := f.watch(r, h)
	defer stop()
	r.Bind(h)

	h.Set("signin")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Settle(ctx); err != nil {
		t.Fatalf("Settle() error = %v", err)
	}

	first := f.Next()()
	if c, ok := first.(hashChangedMsg); !ok || c.Fragment != "signin" {
		t.Fatalf("first message = %#v, want hash change to signin", first)
	}
	second := f.Next()()
	if s, ok := second.(routerStateMsg); !ok || s.Current != ModalSignin {
		t.Fatalf("second message = %#v, want signin current", second)
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{" a , ,b ", []string{"a", "b"}},
	}
	for _, tt := range tests {
		if got := splitList(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSubmitFunc_SkipsEmptyValidateOnlySteps(t *testing.T) {
	var calls int
	spec := flowSpec{
		Steps: []stepSpec{
			{Title: "Intro"},
			{Title: "Data", Fields: []fieldSpec{{Name: "a"}}},
		},
		Call: func(context.Context, map[string]string, bool) service.Response {
			calls++
			return service.OK(struct{}{})
		},
	}
	submit := spec.submitFunc()

	submit(context.Background(), wizard.Payload{Step: 1, ValidateOnly: true})
	if calls != 0 {
		t.Errorf("intro step called backend %d times", calls)
	}
	submit(context.Background(), wizard.Payload{Step: 2, ValidateOnly: false})
	if calls != 1 {
		t.Errorf("data step calls = %d, want 1", calls)
	}
}

// scriptedCall answers each submission with the next queued response.
type scriptedCall struct {
	mu        sync.Mutex
	responses []service.Response
	seen      []bool // validateOnly per call
}

func (s *scriptedCall) call(_ context.Context, _ map[string]string, validateOnly bool) service.Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, validateOnly)
	if len(s.responses) == 0 {
		return service.OK(struct{}{})
	}
	r := s.responses[0]
	s.responses = s.responses[1:]
	return r
}

func testSignupSpec(call CallFunc) flowSpec {
	spec := signupFlow(nil)
	spec.Call = call
	spec.Next = modal.None
	spec.Done = "Account created"
	return spec
}

func newTestWizard(t *testing.T, fx *fixture, spec flowSpec) *wizardModal {
	t.Helper()
	w, err := newWizardModal(context.Background(), spec, fx.nav, newGlobalKeyMap())
	if err != nil {
		t.Fatalf("newWizardModal() error = %v", err)
	}
	w.Open(nil)
	return w
}

func (w *wizardModal) fill(values map[string]string) {
	for name, v := range values {
		in := w.inputs[name]
		in.SetValue(v)
		w.inputs[name] = in
	}
}

func submitAndApply(t *testing.T, w *wizardModal) wizard.Outcome {
	t.Helper()
	done := findMsg[submitDoneMsg](t, collect(w.submit()))
	w.Update(done)
	return done.outcome
}

func TestWizardModal_RoutesCommitErrorsBack(t *testing.T) {
	fx := newFixture(t, "signup")
	fx.settle(t)

	script := &scriptedCall{responses: []service.Response{
		service.OK(struct{}{}), // step 2 validate
		service.OK(struct{}{}), // step 3 validate
		service.FieldValidation[struct{}](map[string]string{
			"email":    "already registered",
			"password": "too weak",
		}, ""),
	}}
	w := newTestWizard(t, fx, testSignupSpec(script.call))

	submitAndApply(t, w) // intro, no backend call
	w.fill(map[string]string{"username": "jdoe", "email": "j@example.com"})
	submitAndApply(t, w)
	w.fill(map[string]string{"firstName": "J", "lastName": "Doe"})
	submitAndApply(t, w)
	w.fill(map[string]string{"password": "x", "confirmPassword": "x"})
	out := submitAndApply(t, w)

	if out.Status != wizard.StatusRouted || out.Step != 2 {
		t.Fatalf("outcome = %+v, want routed to step 2", out)
	}
	if !reflect.DeepEqual(script.seen, []bool{true, true, false}) {
		t.Errorf("validateOnly per call = %v, want [true true false]", script.seen)
	}
	if w.focus != 1 {
		t.Errorf("focus = %d, want 1 (email)", w.focus)
	}
	view := w.View()
	if !strings.Contains(view, "already registered") {
		t.Errorf("view missing routed error:\n%s", view)
	}
	if strings.Contains(view, "too weak") {
		t.Error("password error shown before reaching its step")
	}
	if w.submitting {
		t.Error("still submitting after outcome")
	}
}

func TestWizardModal_TypingClearsFieldError(t *testing.T) {
	fx := newFixture(t, "")
	script := &scriptedCall{responses: []service.Response{
		service.FieldValidation[struct{}](map[string]string{"name": "required"}, ""),
	}}
	spec := categoryFlow(nil)
	spec.Call = script.call
	w := newTestWizard(t, fx, spec)

	submitAndApply(t, w)
	if w.ctrl.FieldError("name") != "required" {
		t.Fatalf("FieldError(name) = %q, want required", w.ctrl.FieldError("name"))
	}

	w.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	if got := w.ctrl.FieldError("name"); got != "" {
		t.Errorf("FieldError(name) after typing = %q, want empty", got)
	}
	if got := w.ctrl.Value("name"); got != "x" {
		t.Errorf("Value(name) = %q, want x", got)
	}
}

func TestWizardModal_NoticeForGeneralFailure(t *testing.T) {
	fx := newFixture(t, "")
	script := &scriptedCall{responses: []service.Response{
		service.General[struct{}]("Server error (HTTP 503)"),
	}}
	spec := roleFlow(nil)
	spec.Call = script.call
	w := newTestWizard(t, fx, spec)

	out := submitAndApply(t, w)
	if out.Status != wizard.StatusNotified {
		t.Fatalf("status = %v, want notified", out.Status)
	}
	if !strings.Contains(w.View(), "Server error (HTTP 503)") {
		t.Error("notice not rendered")
	}

	w.Update(tea.KeyMsg{Type: tea.KeyCtrlX})
	if w.ctrl.Notice() != "" {
		t.Error("notice not dismissed")
	}
}

func TestWizardModal_CompletionClosesModal(t *testing.T) {
	fx := newFixture(t, "category")
	fx.settle(t)

	spec := categoryFlow(nil)
	spec.Call = (&scriptedCall{}).call
	w := newTestWizard(t, fx, spec)
	w.fill(map[string]string{"name": "Fire"})

	done := findMsg[submitDoneMsg](t, collect(w.submit()))
	cmd := w.Update(done)

	if !w.done {
		t.Error("flow not marked done")
	}
	if got := fx.hash.Get(); got != "" {
		t.Errorf("fragment = %q, want empty after completion", got)
	}
	if msg := findMsg[flashMsg](t, collect(cmd)); msg != "Category created" {
		t.Errorf("flash = %q", msg)
	}
	fx.settle(t)
	if s := fx.router.State(); s != (modal.State{}) {
		t.Errorf("router state = %+v, want closed", s)
	}
}

func TestWizardModal_RetreatMakesInFlightResponseStale(t *testing.T) {
	fx := newFixture(t, "")
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	spec := testSignupSpec(func(ctx context.Context, _ map[string]string, _ bool) service.Response {
		entered <- struct{}{}
		<-release
		return service.FieldValidation[struct{}](map[string]string{"username": "taken"}, "")
	})
	w := newTestWizard(t, fx, spec)
	submitAndApply(t, w) // to step 2

	w.fill(map[string]string{"username": "jdoe", "email": "j@example.com"})
	cmd := w.submit()
	results := make(chan []tea.Msg, 1)
	go func() { results <- collect(cmd) }()

	<-entered
	w.Update(tea.KeyMsg{Type: tea.KeyCtrlB})
	close(release)

	done := findMsg[submitDoneMsg](t, <-results)
	w.Update(done)
	if done.outcome.Status != wizard.StatusStale {
		t.Fatalf("status = %v, want stale", done.outcome.Status)
	}
	if w.ctrl.Index() != 1 {
		t.Errorf("step = %d, want 1", w.ctrl.Index())
	}
	if len(w.ctrl.Errors()) != 0 || len(w.ctrl.Withheld()) != 0 {
		t.Error("stale response leaked errors")
	}
}

func TestSettingsModal_ForceClosesWithoutAccount(t *testing.T) {
	fx := newFixture(t, "settings:account")
	fx.settle(t)

	s := newSettingsModal(context.Background(), service.NewClient(""), fx.store, fx.nav, newGlobalKeyMap())
	cmd := s.Open([]string{subAccount})

	if got := fx.hash.Get(); got != "" {
		t.Errorf("fragment = %q, want cleared", got)
	}
	if msg := findMsg[flashMsg](t, collect(cmd)); !strings.Contains(string(msg), "Sign in") {
		t.Errorf("flash = %q", msg)
	}
}

func TestSettingsModal_SubViews(t *testing.T) {
	fx := newFixture(t, "")
	if err := fx.store.SignIn(service.Session{
		Token:   "t",
		Account: service.Account{Username: "jdoe", Email: "j@example.com", FirstName: "J"},
	}); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	s := newSettingsModal(context.Background(), service.NewClient(""), fx.store, fx.nav, newGlobalKeyMap())
	s.Open([]string{"bogus"})
	if s.sub != subAccount {
		t.Errorf("unknown sub-view selected %q, want account", s.sub)
	}
	if !strings.Contains(s.View(), "j@example.com") {
		t.Error("account view missing email")
	}

	s.Route([]string{subVerifyEmail})
	if s.sub != subVerifyEmail || !s.code.Focused() {
		t.Errorf("sub = %q focused = %v, want verify-email focused", s.sub, s.code.Focused())
	}

	s.Update(settingsResultMsg{
		action: actionResend,
		resp:   service.General[struct{}]("Email is already verified"),
	})
	if !strings.Contains(s.View(), "Email is already verified") {
		t.Error("business-rule failure not shown as notice")
	}

	s.Update(settingsResultMsg{
		action: actionVerify,
		resp:   service.FieldValidation[service.Account](map[string]string{"code": "invalid code"}, ""),
	})
	if s.codeErr != "invalid code" {
		t.Errorf("codeErr = %q, want invalid code", s.codeErr)
	}
}

func TestAppModel_FollowsRouterState(t *testing.T) {
	fx := newFixture(t, "")
	m, err := NewAppModel(context.Background(), Deps{
		Router:  fx.router,
		Hash:    fx.hash,
		Client:  service.NewClient(""),
		Session: fx.store,
	})
	if err != nil {
		t.Fatalf("NewAppModel() error = %v", err)
	}
	defer m.Stop()

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = updated.(AppModel)
	if !strings.Contains(m.View(), "Create account") {
		t.Fatal("home menu not rendered")
	}

	updated, _ = m.Update(routerStateMsg{Current: ModalSignin, Mounted: ModalSignin})
	m = updated.(AppModel)
	if !strings.Contains(m.View(), "Credentials") {
		t.Error("signin modal not rendered while open")
	}

	updated, _ = m.Update(routerStateMsg{Current: modal.None, Mounted: ModalSignin})
	m = updated.(AppModel)
	if !strings.Contains(m.View(), "Credentials") {
		t.Error("signin modal not rendered while closing")
	}

	updated, _ = m.Update(routerStateMsg{})
	m = updated.(AppModel)
	if strings.Contains(m.View(), "Credentials") {
		t.Error("signin modal still rendered after unmount")
	}
}

func TestAppModel_MenuOpensThroughHash(t *testing.T) {
	fx := newFixture(t, "")
	m, err := NewAppModel(context.Background(), Deps{
		Router:  fx.router,
		Hash:    fx.hash,
		Client:  service.NewClient(""),
		Session: fx.store,
	})
	if err != nil {
		t.Fatalf("NewAppModel() error = %v", err)
	}
	defer m.Stop()

	// signed out: first entry is signup, second is signin
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = updated.(AppModel)
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	if got := fx.hash.Get(); got != "signin" {
		t.Errorf("fragment = %q, want signin", got)
	}
	fx.settle(t)
	if s := fx.router.State(); s.Current != ModalSignin {
		t.Errorf("router current = %q, want signin", s.Current)
	}
}

func TestAppModel_EscClosesCurrentModal(t *testing.T) {
	fx := newFixture(t, "report")
	fx.settle(t)

	m, err := NewAppModel(context.Background(), Deps{
		Router:  fx.router,
		Hash:    fx.hash,
		Client:  service.NewClient(""),
		Session: fx.store,
	})
	if err != nil {
		t.Fatalf("NewAppModel() error = %v", err)
	}
	defer m.Stop()

	if m.state.Current != ModalReport {
		t.Fatalf("initial state = %+v, want report open", m.state)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if got := fx.hash.Get(); got != "" {
		t.Errorf("fragment = %q, want cleared", got)
	}
	fx.settle(t)
	if s := fx.router.State(); s != (modal.State{}) {
		t.Errorf("router state = %+v, want closed", s)
	}
}

func TestAppModel_UnknownModalRendersNothing(t *testing.T) {
	fx := newFixture(t, "")
	m, err := NewAppModel(context.Background(), Deps{
		Router:  fx.router,
		Hash:    fx.hash,
		Client:  service.NewClient(""),
		Session: fx.store,
	})
	if err != nil {
		t.Fatalf("NewAppModel() error = %v", err)
	}
	defer m.Stop()

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = updated.(AppModel)
	home := m.View()

	updated, _ = m.Update(routerStateMsg{Current: "nope", Mounted: "nope"})
	m = updated.(AppModel)
	if got := m.View(); got != home {
		t.Errorf("unknown modal changed the screen:\n%s", got)
	}

	fx.hash.Set("nope")
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if got := fx.hash.Get(); got != "" {
		t.Errorf("fragment = %q, esc should still close an unknown modal", got)
	}
}

func pendingMsgs(f *feed) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

func TestAppModel_SeesTransitionsDuringConstruction(t *testing.T) {
	for i := 0; i < 50; i++ {
		r := modal.New(modal.WithCloseGrace(time.Millisecond), modal.WithReplaceGrace(time.Millisecond), modal.WithKnown(KnownModals...))
		h := hashstate.New("report")
		r.Bind(h)

		m, err := NewAppModel(context.Background(), Deps{
			Router:  r,
			Hash:    h,
			Client:  service.NewClient(""),
			Session: session.NewMemoryStore(),
		})
		if err != nil {
			t.Fatalf("NewAppModel() error = %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := r.Settle(ctx); err != nil {
			t.Fatalf("Settle() error = %v", err)
		}
		cancel()

		// the snapshot plus whatever the feed holds must reach the settled state
		for pendingMsgs(m.feed) > 0 {
			updated, _ := m.Update(m.feed.Next()())
			m = updated.(AppModel)
		}
		if m.state != r.State() {
			t.Fatalf("iteration %d: model state = %+v, router = %+v", i, m.state, r.State())
		}

		m.Stop()
		r.Shutdown()
	}
}
