package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/incidentdesk/internal/hashstate"
	"github.com/muurk/incidentdesk/internal/modal"
)

// routerStateMsg carries a router state change into the program.
type routerStateMsg modal.State

// hashChangedMsg carries a fragment change into the program.
type hashChangedMsg hashstate.Change

// feed is an unbounded, ordered mailbox between subscriber callbacks and the
// bubbletea event loop. Push never blocks, so it is safe to call from inside
// a hash notification triggered by Update itself.
type feed struct {
	mu      sync.Mutex
	pending []tea.Msg
	ready   chan struct{}
	done    chan struct{}
	once    sync.Once
}

func newFeed() *feed {
	return &feed{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Push appends msg and wakes the listener.
func (f *feed) Push(msg tea.Msg) {
	f.mu.Lock()
	f.pending = append(f.pending, msg)
	f.mu.Unlock()

	select {
	case f.ready <- struct{}{}:
	default:
	}
}

// Next returns a command that yields the oldest pending message. Every
// message handled from the feed must re-issue Next.
func (f *feed) Next() tea.Cmd {
	return func() tea.Msg {
		for {
			f.mu.Lock()
			if len(f.pending) > 0 {
				msg := f.pending[0]
				f.pending = f.pending[1:]
				more := len(f.pending) > 0
				f.mu.Unlock()
				if more {
					select {
					case f.ready <- struct{}{}:
					default:
					}
				}
				return msg
			}
			f.mu.Unlock()

			select {
			case <-f.ready:
			case <-f.done:
				return nil
			}
		}
	}
}

// Close releases a blocked listener.
func (f *feed) Close() {
	f.once.Do(func() { close(f.done) })
}

// watch subscribes the feed to the router and the hash state and returns a
// function that undoes both subscriptions.
func (f *feed) watch(router *modal.Router, hash *hashstate.State) (stop func()) {
	unRouter := router.Subscribe(func(s modal.State) {
		f.Push(routerStateMsg(s))
	})
	unHash := hash.Subscribe(func(c hashstate.Change) {
		f.Push(hashChangedMsg(c))
	})
	return func() {
		unRouter()
		unHash()
		f.Close()
	}
}
