// Package session holds the "current account" that gates which modals are
// reachable. The registry-backed store persists it across runs the way a
// browser keeps a cookie.
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/muurk/incidentdesk/internal/config"
	"github.com/muurk/incidentdesk/internal/service"
)

// ErrSignedOut is returned by Update when there is no session.
var ErrSignedOut = errors.New("not signed in")

// Store reads and writes the current account.
type Store interface {
	// Current returns the signed-in account, or false when signed out.
	Current() (service.Account, bool)
	// Token returns the session token, empty when signed out.
	Token() string
	// SignIn records a session.
	SignIn(s service.Session) error
	// Update replaces the stored account, keeping the token.
	Update(a service.Account) error
	// SignOut forgets the session.
	SignOut() error
}

// MemoryStore keeps the session in memory only.
type MemoryStore struct {
	mu      sync.RWMutex
	account *service.Account
	token   string
}

// NewMemoryStore creates a signed-out store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Current() (service.Account, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.account == nil {
		return service.Account{}, false
	}
	return *m.account, true
}

func (m *MemoryStore) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

func (m *MemoryStore) SignIn(s service.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := s.Account
	m.account = &a
	m.token = s.Token
	return nil
}

func (m *MemoryStore) Update(a service.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.account == nil {
		return ErrSignedOut
	}
	m.account = &a
	return nil
}

func (m *MemoryStore) SignOut() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.account = nil
	m.token = ""
	return nil
}

// Saver persists a registry. *config.Registry satisfies it via Save.
type Saver func(*config.Registry) error

// RegistryStore keeps the session in the YAML registry.
type RegistryStore struct {
	mu   sync.Mutex
	reg  *config.Registry
	save Saver
}

// NewRegistryStore wraps reg. save is called after every change; nil uses
// Registry.Save.
func NewRegistryStore(reg *config.Registry, save Saver) *RegistryStore {
	if save == nil {
		save = (*config.Registry).Save
	}
	return &RegistryStore{reg: reg, save: save}
}

func (r *RegistryStore) Current() (service.Account, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reg.Session == nil || r.reg.Session.Account.ID == "" {
		return service.Account{}, false
	}
	return fromMeta(r.reg.Session.Account), true
}

func (r *RegistryStore) Token() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reg.Session == nil {
		return ""
	}
	return r.reg.Session.Token
}

func (r *RegistryStore) SignIn(s service.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reg.SetSession(s.Token, toMeta(s.Account))
	return r.persist()
}

func (r *RegistryStore) Update(a service.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reg.Session == nil {
		return ErrSignedOut
	}
	r.reg.Session.Account = toMeta(a)
	return r.persist()
}

func (r *RegistryStore) SignOut() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reg.ClearSession()
	return r.persist()
}

func (r *RegistryStore) persist() error {
	if err := r.save(r.reg); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

func toMeta(a service.Account) config.AccountMeta {
	return config.AccountMeta{
		ID:            a.ID,
		Username:      a.Username,
		Email:         a.Email,
		FirstName:     a.FirstName,
		LastName:      a.LastName,
		EmailVerified: a.EmailVerified,
	}
}

func fromMeta(m config.AccountMeta) service.Account {
	return service.Account{
		ID:            m.ID,
		Username:      m.Username,
		Email:         m.Email,
		FirstName:     m.FirstName,
		LastName:      m.LastName,
		EmailVerified: m.EmailVerified,
	}
}
