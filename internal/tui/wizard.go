package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/muurk/incidentdesk/internal/logging"
	"github.com/muurk/incidentdesk/internal/modal"
	"github.com/muurk/incidentdesk/internal/service"
	"github.com/muurk/incidentdesk/internal/wizard"
)

// fieldSpec describes one text input.
type fieldSpec struct {
	Name        string
	Label       string
	Placeholder string
	Secret      bool
	CharLimit   int
}

// stepSpec is a wizard step with presentation details.
type stepSpec struct {
	Title  string
	Intro  string
	Fields []fieldSpec
}

// CallFunc performs the backend request for a flow.
type CallFunc func(ctx context.Context, values map[string]string, validateOnly bool) service.Response

// flowSpec declares a wizard-driven modal.
type flowSpec struct {
	Name   modal.Name
	Title  string
	Steps  []stepSpec
	Commit int // 0 selects the last step with fields
	Call   CallFunc
	// Done is shown once the final step succeeds.
	Done string
	// Next, when set, is opened instead of closing on completion.
	Next modal.Name
}

func (s flowSpec) table() []wizard.Step {
	steps := make([]wizard.Step, len(s.Steps))
	for i, st := range s.Steps {
		fields := make([]string, len(st.Fields))
		for j, f := range st.Fields {
			fields[j] = f.Name
		}
		steps[i] = wizard.Step{Title: st.Title, Fields: fields}
	}
	return steps
}

// submitFunc skips the backend for validate-only submissions of steps that
// collect nothing.
func (s flowSpec) submitFunc() wizard.SubmitFunc {
	return func(ctx context.Context, p wizard.Payload) service.Response {
		if p.ValidateOnly && len(s.Steps[p.Step-1].Fields) == 0 {
			return service.OK(struct{}{})
		}
		return s.Call(ctx, p.Values, p.ValidateOnly)
	}
}

// submitDoneMsg reports a finished submission back to its modal.
type submitDoneMsg struct {
	name    modal.Name
	outcome wizard.Outcome
	err     error
}

func (m submitDoneMsg) target() modal.Name { return m.name }

// wizardModal hosts a wizard.Controller inside a modal.
type wizardModal struct {
	spec flowSpec
	ctrl *wizard.Controller
	nav  navigator
	ctx  context.Context

	inputs     map[string]textinput.Model
	focus      int
	submitting bool
	done       bool
	spinner    spinner.Model
	keys       wizardKeyMap
}

func newWizardModal(ctx context.Context, spec flowSpec, nav navigator, global globalKeyMap) (*wizardModal, error) {
	opts := []wizard.Option{wizard.WithName(spec.Name.String())}
	if spec.Commit > 0 {
		opts = append(opts, wizard.WithCommitStep(spec.Commit))
	}

	w := &wizardModal{
		spec:   spec,
		nav:    nav,
		ctx:    ctx,
		inputs: make(map[string]textinput.Model),
		keys:   newWizardKeyMap(global),
	}
	opts = append(opts, wizard.WithOnComplete(func() {
		logging.Info("Flow completed", zap.String("flow", spec.Name.String()))
	}))

	ctrl, err := wizard.New(spec.table(), spec.submitFunc(), opts...)
	if err != nil {
		return nil, fmt.Errorf("flow %s: %w", spec.Name, err)
	}
	w.ctrl = ctrl

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle
	w.spinner = s

	w.resetInputs()
	return w, nil
}

func (w *wizardModal) resetInputs() {
	for _, st := range w.spec.Steps {
		for _, f := range st.Fields {
			in := textinput.New()
			in.Placeholder = f.Placeholder
			in.CharLimit = f.CharLimit
			if in.CharLimit == 0 {
				in.CharLimit = 256
			}
			in.Width = 40
			if f.Secret {
				in.EchoMode = textinput.EchoPassword
				in.EchoCharacter = '•'
			}
			w.inputs[f.Name] = in
		}
	}
}

// Open starts the flow from the beginning.
func (w *wizardModal) Open([]string) tea.Cmd {
	w.ctrl.Reset()
	w.resetInputs()
	w.submitting = false
	w.done = false
	w.focus = 0
	return w.focusCurrent()
}

// Route ignores sub-views; flows have none.
func (w *wizardModal) Route([]string) tea.Cmd { return nil }

func (w *wizardModal) Keys() help.KeyMap { return w.keys }

func (w *wizardModal) currentFields() []fieldSpec {
	return w.spec.Steps[w.ctrl.Index()-1].Fields
}

// focusCurrent focuses the input at w.focus on the current step and blurs
// every other input.
func (w *wizardModal) focusCurrent() tea.Cmd {
	fields := w.currentFields()
	if w.focus >= len(fields) {
		w.focus = max(len(fields)-1, 0)
	}

	var cmd tea.Cmd
	for name, in := range w.inputs {
		in.Blur()
		w.inputs[name] = in
	}
	if len(fields) > 0 {
		in := w.inputs[fields[w.focus].Name]
		cmd = in.Focus()
		w.inputs[fields[w.focus].Name] = in
	}
	return cmd
}

// focusFirstError puts the cursor on the first field of the current step
// that carries an error, or the first field.
func (w *wizardModal) focusFirstError() tea.Cmd {
	w.focus = 0
	errs := w.ctrl.Errors()
	for i, f := range w.currentFields() {
		if _, ok := errs[f.Name]; ok {
			w.focus = i
			break
		}
	}
	return w.focusCurrent()
}

func (w *wizardModal) stepValues() map[string]string {
	values := make(map[string]string)
	for _, f := range w.currentFields() {
		values[f.Name] = strings.TrimSpace(w.inputs[f.Name].Value())
	}
	return values
}

func (w *wizardModal) submit() tea.Cmd {
	if w.submitting || w.done {
		return nil
	}
	w.submitting = true

	ctrl, ctx, name := w.ctrl, w.ctx, w.spec.Name
	values := w.stepValues()
	call := func() tea.Msg {
		out, err := ctrl.Submit(ctx, values)
		return submitDoneMsg{name: name, outcome: out, err: err}
	}
	return tea.Batch(call, w.spinner.Tick)
}

// Update handles keys and submission results.
func (w *wizardModal) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case submitDoneMsg:
		return w.handleOutcome(msg)

	case spinner.TickMsg:
		if !w.submitting {
			return nil
		}
		var cmd tea.Cmd
		w.spinner, cmd = w.spinner.Update(msg)
		return cmd

	case tea.KeyMsg:
		return w.handleKey(msg)
	}
	return nil
}

func (w *wizardModal) handleKey(msg tea.KeyMsg) tea.Cmd {
	fields := w.currentFields()

	switch {
	case key.Matches(msg, w.keys.Submit):
		if w.focus < len(fields)-1 {
			w.focus++
			return w.focusCurrent()
		}
		return w.submit()

	case key.Matches(msg, w.keys.Next):
		if len(fields) > 0 {
			w.focus = (w.focus + 1) % len(fields)
		}
		return w.focusCurrent()

	case key.Matches(msg, w.keys.Prev):
		if len(fields) > 0 {
			w.focus = (w.focus - 1 + len(fields)) % len(fields)
		}
		return w.focusCurrent()

	case key.Matches(msg, w.keys.StepBack):
		if err := w.ctrl.Retreat(); err != nil {
			return nil
		}
		w.submitting = false
		return w.focusFirstError()

	case key.Matches(msg, w.keys.Dismiss):
		w.ctrl.DismissNotice()
		return nil
	}

	if len(fields) == 0 || w.done {
		return nil
	}

	name := fields[w.focus].Name
	in := w.inputs[name]
	before := in.Value()
	var cmd tea.Cmd
	in, cmd = in.Update(msg)
	w.inputs[name] = in
	if in.Value() != before {
		w.ctrl.Edit(name, strings.TrimSpace(in.Value()))
	}
	return cmd
}

func (w *wizardModal) handleOutcome(msg submitDoneMsg) tea.Cmd {
	if msg.err != nil {
		if !errors.Is(msg.err, wizard.ErrCompleted) {
			logging.Warn("Submission failed", zap.String("flow", w.spec.Name.String()), zap.Error(msg.err))
		}
		w.submitting = false
		return nil
	}

	switch msg.outcome.Status {
	case wizard.StatusStale:
		// a newer submission or a step change owns the spinner now
		return nil

	case wizard.StatusCompleted:
		w.submitting = false
		w.done = true
		if w.spec.Next != modal.None {
			w.nav.Open(w.spec.Next)
		} else {
			w.nav.Close()
		}
		if w.spec.Done != "" {
			return flash(w.spec.Done)
		}
		return nil

	case wizard.StatusAdvanced:
		w.submitting = false
		w.focus = 0
		return w.focusCurrent()

	case wizard.StatusRouted:
		w.submitting = false
		return w.focusFirstError()

	default:
		w.submitting = false
		return nil
	}
}

// View renders the step rail, the current step and any notice.
func (w *wizardModal) View() string {
	var b strings.Builder

	b.WriteString(RenderTitle(w.spec.Title))
	b.WriteString("\n")
	b.WriteString(w.renderRail())
	b.WriteString("\n\n")

	index := w.ctrl.Index()
	step := w.spec.Steps[index-1]
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(step.Title))
	b.WriteString("\n")
	if step.Intro != "" {
		b.WriteString(RenderSubtitle(step.Intro))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	errs := w.ctrl.Errors()
	for i, f := range step.Fields {
		label := LabelStyle.Render(f.Label)
		if i == w.focus {
			label = FocusedLabelStyle.Render(f.Label)
		}
		b.WriteString(label)
		b.WriteString("\n")
		b.WriteString(w.inputs[f.Name].View())
		b.WriteString("\n")
		if msg, ok := errs[f.Name]; ok {
			b.WriteString(FieldErrorStyle.Render("✗ " + msg))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if w.done && w.spec.Done != "" {
		b.WriteString(SuccessStyle.Render("✓ " + w.spec.Done))
		b.WriteString("\n")
	}
	if notice := w.ctrl.Notice(); notice != "" {
		b.WriteString(NoticeStyle.Render(notice))
		b.WriteString("\n")
	}
	if w.submitting {
		b.WriteString(w.spinner.View() + " Checking...")
		b.WriteString("\n")
	}

	return b.String()
}

func (w *wizardModal) renderRail() string {
	index := w.ctrl.Index()
	parts := make([]string, len(w.spec.Steps))
	for i, st := range w.spec.Steps {
		label := fmt.Sprintf("%d %s", i+1, st.Title)
		if i+1 == index {
			parts[i] = CurrentStepMarkerStyle.Render("● " + label)
		} else {
			parts[i] = StepMarkerStyle.Render("· " + label)
		}
	}
	return strings.Join(parts, "  ")
}
