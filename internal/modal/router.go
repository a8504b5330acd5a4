package modal

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/incidentdesk/internal/hashstate"
	"github.com/muurk/incidentdesk/internal/logging"
)

const (
	// DefaultCloseGrace is how long a closing modal stays mounted so its exit
	// animation can finish.
	DefaultCloseGrace = 300 * time.Millisecond

	// DefaultReplaceGrace is the shorter wait used when one modal is closed
	// only to make room for another.
	DefaultReplaceGrace = 100 * time.Millisecond
)

// State is the router's slot pair. None means empty.
type State struct {
	Current Name `json:"current"`
	Mounted Name `json:"mounted"`
}

// IsOpen reports whether the modal selected by n is the visually active one.
func (s State) IsOpen(n Name) bool {
	return n != None && s.Current == n.Base()
}

// IsMounted reports whether the modal selected by n should be rendered.
func (s State) IsMounted(n Name) bool {
	return n != None && s.Mounted == n.Base()
}

// Phase is the lifecycle position of a single modal.
type Phase int

const (
	PhaseClosed Phase = iota
	PhaseOpening
	PhaseOpen
	PhaseClosing
)

// String returns a human-readable name for the phase
func (p Phase) String() string {
	switch p {
	case PhaseClosed:
		return "closed"
	case PhaseOpening:
		return "opening"
	case PhaseOpen:
		return "open"
	case PhaseClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Option configures a Router.
type Option func(*Router)

// WithCloseGrace sets the wait between Current and Mounted being cleared on close.
func WithCloseGrace(d time.Duration) Option {
	return func(r *Router) { r.closeGrace = d }
}

// WithReplaceGrace sets the wait used when another modal is open during OpenModal.
func WithReplaceGrace(d time.Duration) Option {
	return func(r *Router) { r.replaceGrace = d }
}

// WithKnown registers the modal names the host can render. Opening any other
// name still goes through the queue but is logged as a warning.
func WithKnown(names ...Name) Option {
	return func(r *Router) {
		for _, n := range names {
			r.known[n.Base()] = struct{}{}
		}
	}
}

// Router serialises modal transitions and exposes the resulting State.
type Router struct {
	queue        *Queue
	closeGrace   time.Duration
	replaceGrace time.Duration
	known        map[Name]struct{}

	mu        sync.RWMutex
	state     State
	opening   Name
	stopped   bool
	observers map[int]func(State)
	nextID    int

	hash   *hashstate.State
	unbind func()
}

// New creates a router with both slots empty.
func New(opts ...Option) *Router {
	r := &Router{
		queue:        NewQueue(),
		closeGrace:   DefaultCloseGrace,
		replaceGrace: DefaultReplaceGrace,
		known:        make(map[Name]struct{}),
		observers:    make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns a snapshot of the slot pair.
func (r *Router) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Phase derives where the modal selected by name is in its lifecycle.
func (r *Router) Phase(name Name) Phase {
	name = name.Base()
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch {
	case name == None:
		return PhaseClosed
	case r.state.Current == name:
		return PhaseOpen
	case r.state.Mounted == name:
		return PhaseClosing
	case r.opening == name:
		return PhaseOpening
	default:
		return PhaseClosed
	}
}

// Subscribe registers fn for every state change. fn runs on the queue worker,
// in transition order, and must not block on the router.
func (r *Router) Subscribe(fn func(State)) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.observers[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.observers, id)
		r.mu.Unlock()
	}
}

// OpenModal enqueues a transition that makes name current and mounted,
// closing any other current modal first.
func (r *Router) OpenModal(name Name) error {
	name = name.Base()
	if name == None {
		return r.CloseModal()
	}
	if len(r.known) > 0 {
		if _, ok := r.known[name]; !ok {
			logging.Warn("Opening unknown modal", zap.String("modal", name.String()))
		}
	}

	if !r.queue.Enqueue(func(ctx context.Context) { r.open(ctx, name) }) {
		return ErrClosed
	}
	return nil
}

// CloseModal enqueues a transition that clears Current, waits CloseGrace,
// then clears Mounted. Closing when nothing is open is a no-op.
func (r *Router) CloseModal() error {
	if !r.queue.Enqueue(r.close) {
		return ErrClosed
	}
	return nil
}

// Settle waits until every transition enqueued so far has finished.
func (r *Router) Settle(ctx context.Context) error {
	return r.queue.Drain(ctx)
}

// Bind attaches the router to h. From then on every change of the first
// fragment segment enqueues a transition. If h already selects a modal it is
// opened, which is how deep links survive a restart.
func (r *Router) Bind(h *hashstate.State) {
	r.mu.Lock()
	if r.unbind != nil {
		r.unbind()
	}
	r.hash = h
	r.mu.Unlock()

	unbind := h.Subscribe(func(c hashstate.Change) {
		prev, _ := ParseFragment(c.Previous)
		next, _ := ParseFragment(c.Fragment)
		if prev == next {
			return
		}
		if next == None {
			_ = r.CloseModal()
			return
		}
		_ = r.OpenModal(next)
	})

	r.mu.Lock()
	r.unbind = unbind
	r.mu.Unlock()

	if initial, _ := ParseFragment(h.Get()); initial != None {
		_ = r.OpenModal(initial)
	}
}

// Open writes the fragment for name (and sub-view) and lets the binding
// enqueue the transition. When the first segment does not change, nothing
// reaches the binding, so the open is enqueued directly.
func (r *Router) Open(name Name, sub ...string) error {
	h := r.boundHash()
	if h == nil {
		return r.OpenModal(name)
	}

	fragment := Fragment(name.Base(), append(name.Sub(), sub...)...)
	before, _ := ParseFragment(h.Get())
	changed := h.Set(fragment)
	if !changed || before == name.Base() {
		return r.OpenModal(name)
	}
	return nil
}

// Close clears the fragment, which enqueues CloseModal through the binding.
func (r *Router) Close() error {
	h := r.boundHash()
	if h == nil || !h.Set("") {
		return r.CloseModal()
	}
	return nil
}

// Shutdown detaches from the hash state, cancels a pending grace wait and
// stops the queue. No state changes are published afterwards.
func (r *Router) Shutdown() {
	r.mu.Lock()
	r.stopped = true
	unbind := r.unbind
	r.unbind = nil
	r.mu.Unlock()

	if unbind != nil {
		unbind()
	}
	r.queue.Close()
}

func (r *Router) boundHash() *hashstate.State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hash
}

func (r *Router) open(ctx context.Context, name Name) {
	current := r.State().Current
	if current == name {
		return
	}

	if current != None {
		r.mu.Lock()
		r.opening = name
		r.mu.Unlock()
		defer func() {
			r.mu.Lock()
			r.opening = None
			r.mu.Unlock()
		}()

		if !r.set(ctx, State{Current: None, Mounted: current}) {
			return
		}
		if !Sleep(ctx, r.replaceGrace) {
			return
		}
		if !r.set(ctx, State{}) {
			return
		}
	}

	r.set(ctx, State{Current: name, Mounted: name})
}

func (r *Router) close(ctx context.Context) {
	current := r.State().Current
	if current == None {
		return
	}

	if !r.set(ctx, State{Current: None, Mounted: current}) {
		return
	}
	if !Sleep(ctx, r.closeGrace) {
		return
	}
	r.set(ctx, State{})
}

// set publishes next unless the router has been shut down.
func (r *Router) set(ctx context.Context, next State) bool {
	r.mu.Lock()
	if r.stopped || ctx.Err() != nil {
		r.mu.Unlock()
		return false
	}
	prev := r.state
	if prev == next {
		r.mu.Unlock()
		return true
	}
	r.state = next
	fns := make([]func(State), 0, len(r.observers))
	for id := 0; id < r.nextID; id++ {
		if fn, ok := r.observers[id]; ok {
			fns = append(fns, fn)
		}
	}
	r.mu.Unlock()

	logging.LogTransition(prev.Current.String(), prev.Mounted.String(), next.Current.String(), next.Mounted.String())
	for _, fn := range fns {
		fn(next)
	}
	return true
}
