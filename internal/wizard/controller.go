package wizard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/incidentdesk/internal/logging"
	"github.com/muurk/incidentdesk/internal/service"
)

var (
	// ErrInvalidStepTable is returned by New when the steps do not partition
	// the form's fields.
	ErrInvalidStepTable = errors.New("invalid step table")

	// ErrStepOutOfRange is returned by navigation past either end.
	ErrStepOutOfRange = errors.New("step out of range")

	// ErrCompleted is returned by Submit once the flow has completed.
	ErrCompleted = errors.New("flow already completed")
)

// DefaultNotice is shown for a failure that carries no message.
const DefaultNotice = "Something went wrong. Please try again."

// Step is one page of a wizard. Fields may be empty for informational or
// confirmation steps.
type Step struct {
	Title  string
	Fields []string
}

// Owns reports whether field belongs to s.
func (s Step) Owns(field string) bool {
	for _, f := range s.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// Direction is the slide direction of the last move. Cosmetic only.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionForward
	DirectionBackward
)

// String returns a human-readable name for the direction
func (d Direction) String() string {
	switch d {
	case DirectionForward:
		return "forward"
	case DirectionBackward:
		return "backward"
	default:
		return "none"
	}
}

// Payload is what a SubmitFunc receives.
type Payload struct {
	// Step is the 1-indexed step being submitted.
	Step int
	// Values holds every value collected so far, across all steps.
	Values map[string]string
	// ValidateOnly selects the non-mutating backend variant.
	ValidateOnly bool
}

// SubmitFunc performs the backend call for one step.
type SubmitFunc func(ctx context.Context, p Payload) service.Response

// Status summarises what a submission did to the wizard.
type Status int

const (
	// StatusAdvanced means the step passed and the wizard moved forward.
	StatusAdvanced Status = iota
	// StatusCompleted means the final step passed.
	StatusCompleted
	// StatusRouted means field errors were routed to their owning step.
	StatusRouted
	// StatusNotified means a notice was raised and the step did not change.
	StatusNotified
	// StatusStale means the response arrived too late and was dropped.
	StatusStale
)

// String returns a human-readable name for the status
func (s Status) String() string {
	switch s {
	case StatusAdvanced:
		return "advanced"
	case StatusCompleted:
		return "completed"
	case StatusRouted:
		return "routed"
	case StatusNotified:
		return "notified"
	case StatusStale:
		return "stale"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Outcome is the result of Submit.
type Outcome struct {
	Status Status
	// Step is the current step after the response was applied.
	Step int
	// Notice is the transient, non-field message, if any.
	Notice string
}

// Option configures a Controller.
type Option func(*Controller)

// WithCommitStep sets the step that performs the real mutation. Earlier
// steps submit validate-only; later steps do not call the backend at all.
// Defaults to the last step that owns fields.
func WithCommitStep(step int) Option {
	return func(c *Controller) { c.commit = step }
}

// WithOnComplete registers fn to run once the flow completes.
func WithOnComplete(fn func()) Option {
	return func(c *Controller) { c.onComplete = fn }
}

// WithName labels the flow in logs.
func WithName(name string) Option {
	return func(c *Controller) { c.name = name }
}

// Controller drives a linear, back-navigable multi-step form.
type Controller struct {
	name       string
	steps      []Step
	owner      map[string]int
	commit     int
	submit     SubmitFunc
	onComplete func()

	mu        sync.Mutex
	index     int
	direction Direction
	values    map[string]string
	visible   map[string]string
	withheld  map[string]string
	deferred  map[string]string
	notice    string
	completed bool
	seq       uint64
}

// New builds a controller over steps. Every field must be owned by exactly
// one step.
func New(steps []Step, submit SubmitFunc, opts ...Option) (*Controller, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: no steps", ErrInvalidStepTable)
	}
	if submit == nil {
		return nil, fmt.Errorf("%w: nil submit function", ErrInvalidStepTable)
	}

	c := &Controller{
		name:     "wizard",
		steps:    make([]Step, len(steps)),
		owner:    make(map[string]int),
		submit:   submit,
		index:    1,
		values:   make(map[string]string),
		visible:  make(map[string]string),
		withheld: make(map[string]string),
		deferred: make(map[string]string),
	}

	for i, s := range steps {
		fields := make([]string, len(s.Fields))
		copy(fields, s.Fields)
		c.steps[i] = Step{Title: s.Title, Fields: fields}

		for _, f := range fields {
			if f == "" {
				return nil, fmt.Errorf("%w: step %d has an empty field name", ErrInvalidStepTable, i+1)
			}
			if prev, dup := c.owner[f]; dup {
				return nil, fmt.Errorf("%w: field %q owned by steps %d and %d", ErrInvalidStepTable, f, prev, i+1)
			}
			c.owner[f] = i + 1
		}
		if len(fields) > 0 {
			c.commit = i + 1
		}
	}
	if c.commit == 0 {
		c.commit = len(steps)
	}

	for _, opt := range opts {
		opt(c)
	}
	if c.commit < 1 || c.commit > len(c.steps) {
		return nil, fmt.Errorf("%w: commit step %d outside 1..%d", ErrInvalidStepTable, c.commit, len(c.steps))
	}

	return c, nil
}

// Name returns the flow label.
func (c *Controller) Name() string { return c.name }

// Len returns the number of steps.
func (c *Controller) Len() int { return len(c.steps) }

// CommitStep returns the step that performs the real mutation.
func (c *Controller) CommitStep() int { return c.commit }

// Step returns the step at the 1-indexed position i.
func (c *Controller) Step(i int) (Step, bool) {
	if i < 1 || i > len(c.steps) {
		return Step{}, false
	}
	return c.steps[i-1], true
}

// OwnerOf returns the step owning field, or 0.
func (c *Controller) OwnerOf(field string) int {
	return c.owner[field]
}

// Index returns the current 1-indexed step.
func (c *Controller) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// Current returns the current step.
func (c *Controller) Current() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.steps[c.index-1]
}

// Direction returns the direction of the last move.
func (c *Controller) Direction() Direction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.direction
}

// Completed reports whether the final step has been submitted successfully.
func (c *Controller) Completed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed
}

// Notice returns the current transient message.
func (c *Controller) Notice() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notice
}

// DismissNotice clears the transient message.
func (c *Controller) DismissNotice() {
	c.mu.Lock()
	c.notice = ""
	c.mu.Unlock()
}

// Errors returns the visible field errors: those owned by the current step
// or an earlier one.
func (c *Controller) Errors() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]string)
	for f, msg := range c.visible {
		if c.owner[f] <= c.index {
			out[f] = msg
		}
	}
	return out
}

// FieldError returns the visible error for field, if any.
func (c *Controller) FieldError(field string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.owner[field] > c.index {
		return ""
	}
	return c.visible[field]
}

// Withheld returns errors held back for steps the user has not reached.
// Errors from a validate-only submission for later steps are included; they
// are not shown on arrival, only replaced by that step's own submission.
func (c *Controller) Withheld() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]string, len(c.withheld)+len(c.deferred))
	for f, msg := range c.deferred {
		out[f] = msg
	}
	for f, msg := range c.withheld {
		out[f] = msg
	}
	return out
}

// Value returns the collected value for field.
func (c *Controller) Value(field string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[field]
}

// Values returns a copy of every collected value.
func (c *Controller) Values() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyMap(c.values)
}

// Edit records a new value for field and clears its displayed error.
func (c *Controller) Edit(field, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[field] = value
	delete(c.visible, field)
}

// Advance moves to the next step.
func (c *Controller) Advance() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index >= len(c.steps) {
		return ErrStepOutOfRange
	}
	c.moveTo(c.index + 1)
	return nil
}

// Retreat moves to the previous step.
func (c *Controller) Retreat() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index <= 1 {
		return ErrStepOutOfRange
	}
	c.moveTo(c.index - 1)
	return nil
}

// JumpTo moves to step i. Jumping to the current step is a no-op.
func (c *Controller) JumpTo(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 1 || i > len(c.steps) {
		return fmt.Errorf("%w: %d", ErrStepOutOfRange, i)
	}
	c.moveTo(i)
	return nil
}

// Reset returns to step 1 and forgets values, errors and completion.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = 1
	c.direction = DirectionNone
	c.values = make(map[string]string)
	c.visible = make(map[string]string)
	c.withheld = make(map[string]string)
	c.deferred = make(map[string]string)
	c.notice = ""
	c.completed = false
	c.seq++
}

// moveTo must be called with mu held. Any move invalidates in-flight
// submissions and surfaces withheld errors for the steps now reached.
func (c *Controller) moveTo(i int) {
	if i == c.index {
		return
	}
	if i > c.index {
		c.direction = DirectionForward
	} else {
		c.direction = DirectionBackward
	}
	c.index = i
	c.seq++

	for f, msg := range c.withheld {
		if c.owner[f] <= i {
			c.visible[f] = msg
			delete(c.withheld, f)
		}
	}
}

// Submit merges values into the collected form values and submits the
// current step. It blocks for the duration of the backend call; navigation
// from other goroutines during the call makes the response stale.
func (c *Controller) Submit(ctx context.Context, values map[string]string) (Outcome, error) {
	c.mu.Lock()
	if c.completed {
		c.mu.Unlock()
		return Outcome{}, ErrCompleted
	}

	for k, v := range values {
		c.values[k] = v
	}
	c.visible = make(map[string]string)
	for f := range c.withheld {
		if c.owner[f] <= c.index {
			delete(c.withheld, f)
		}
	}
	for f := range c.deferred {
		if c.owner[f] <= c.index {
			delete(c.deferred, f)
		}
	}
	c.notice = ""
	c.seq++

	token := c.seq
	index := c.index
	payload := Payload{
		Step:         index,
		Values:       copyMap(c.values),
		ValidateOnly: index < c.commit,
	}
	skip := index > c.commit
	c.mu.Unlock()

	var resp service.Response = service.OK(struct{}{})
	if !skip {
		resp = c.call(ctx, payload)
	}

	c.mu.Lock()
	if token != c.seq || index != c.index {
		current := c.index
		c.mu.Unlock()
		logging.Debug("Dropping stale submission response",
			zap.String("flow", c.name),
			zap.Int("submitted_step", index),
			zap.String("kind", resp.Kind().String()),
		)
		return Outcome{Status: StatusStale, Step: current}, nil
	}

	out := c.apply(index, payload.ValidateOnly, resp)
	onComplete := c.onComplete
	c.mu.Unlock()

	logging.LogSubmission(c.name, index, payload.ValidateOnly, out.Status.String())
	if out.Status == StatusCompleted && onComplete != nil {
		onComplete()
	}
	return out, nil
}

// call runs the submit function and converts a panic or a nil response into
// a General failure.
func (c *Controller) call(ctx context.Context, p Payload) (resp service.Response) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Submit function panicked",
				zap.String("flow", c.name),
				zap.Int("step", p.Step),
				zap.Any("panic", r),
			)
			resp = service.General[struct{}](DefaultNotice)
		}
	}()

	resp = c.submit(ctx, p)
	if resp == nil {
		resp = service.General[struct{}](DefaultNotice)
	}
	return resp
}

// apply must be called with mu held.
func (c *Controller) apply(index int, validateOnly bool, resp service.Response) Outcome {
	switch resp.Kind() {
	case service.KindOK:
		if !validateOnly {
			c.deferred = make(map[string]string)
		}
		return c.succeed(index)

	case service.KindFieldValidation:
		if len(resp.FieldErrors()) > 0 {
			return c.route(index, validateOnly, resp)
		}
		fallthrough

	default:
		c.notice = noticeFor(resp.Message())
		return Outcome{Status: StatusNotified, Step: c.index, Notice: c.notice}
	}
}

func (c *Controller) succeed(index int) Outcome {
	if index >= len(c.steps) {
		c.completed = true
		c.seq++
		return Outcome{Status: StatusCompleted, Step: c.index}
	}
	c.moveTo(index + 1)
	return Outcome{Status: StatusAdvanced, Step: c.index}
}

// route sends field errors to the earliest step owning one of them. On a
// validate-only submission, errors for steps after the submitted one are
// deferred: those fields have not been filled in yet.
func (c *Controller) route(index int, validateOnly bool, resp service.Response) Outcome {
	routed := make(map[string]string)
	var unknown []string

	for f, msg := range resp.FieldErrors() {
		owner, ok := c.owner[f]
		switch {
		case !ok:
			unknown = append(unknown, f)
		case validateOnly && owner > index:
			c.deferred[f] = msg
		default:
			routed[f] = msg
		}
	}

	if len(routed) == 0 {
		if len(unknown) == 0 {
			return c.succeed(index)
		}
		c.notice = unknownNotice(resp.Message(), unknown)
		return Outcome{Status: StatusNotified, Step: c.index, Notice: c.notice}
	}

	target := len(c.steps)
	for f := range routed {
		if owner := c.owner[f]; owner < target {
			target = owner
		}
	}

	if !validateOnly {
		c.withheld = make(map[string]string)
		c.deferred = make(map[string]string)
	}
	c.moveTo(target)

	for f, msg := range routed {
		if c.owner[f] == target {
			c.visible[f] = msg
		} else {
			c.withheld[f] = msg
		}
	}

	if len(unknown) > 0 {
		c.notice = unknownNotice(resp.Message(), unknown)
		logging.Warn("Field errors for fields no step owns",
			zap.String("flow", c.name),
			zap.Strings("fields", unknown),
		)
	}

	return Outcome{Status: StatusRouted, Step: c.index, Notice: c.notice}
}

func noticeFor(message string) string {
	if strings.TrimSpace(message) == "" {
		return DefaultNotice
	}
	return message
}

func unknownNotice(message string, fields []string) string {
	if strings.TrimSpace(message) != "" {
		return message
	}
	sort.Strings(fields)
	return "Please check: " + strings.Join(fields, ", ")
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
