// Package session holds the signed-in identity and notifies listeners when it changes.
package session

import (
	"strings"
	"sync"
)

type State string

const (
	StateLoading   State = "loading"
	StateSignedOut State = "signed_out"
	StateSignedIn  State = "signed_in"
)

// Session is the authenticated identity handed over by the auth collaborator.
type Session struct {
	ProfileID string            `json:"profile_id"`
	Email     string            `json:"email"`
	Name      string            `json:"name,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Snapshot is what listeners receive.
type Snapshot struct {
	State   State    `json:"state"`
	Session *Session `json:"session,omitempty"`
}

// SignedIn reports whether the snapshot carries a usable identity.
func (s Snapshot) SignedIn() bool {
	return s.State == StateSignedIn && s.Session != nil
}

type listener struct {
	fn func(Snapshot)
}

// Manager starts in the loading state until the first Set or Clear.
type Manager struct {
	mu        sync.RWMutex
	state     State
	current   *Session
	listeners map[*listener]struct{}
	closed    bool
}

func NewManager() *Manager {
	return &Manager{
		state:     StateLoading,
		listeners: map[*listener]struct{}{},
	}
}

// Current returns the present state.
func (m *Manager) Current() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	snap := Snapshot{State: m.state}
	if m.current != nil {
		cp := *m.current
		if m.current.Metadata != nil {
			cp.Metadata = make(map[string]string, len(m.current.Metadata))
			for k, v := range m.current.Metadata {
				cp.Metadata[k] = v
			}
		}
		snap.Session = &cp
	}
	return snap
}

// Set signs in. A session without a profile id is treated as a sign-out.
func (m *Manager) Set(s Session) {
	if strings.TrimSpace(s.ProfileID) == "" {
		m.Clear()
		return
	}
	m.update(StateSignedIn, &s)
}

// Clear signs out.
func (m *Manager) Clear() {
	m.update(StateSignedOut, nil)
}

func (m *Manager) update(state State, s *Session) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.state = state
	m.current = s
	snap := m.snapshotLocked()
	subs := m.snapshotListeners()
	m.mu.Unlock()
	for _, l := range subs {
		l.fn(snap)
	}
}

func (m *Manager) snapshotListeners() []*listener {
	if len(m.listeners) == 0 {
		return nil
	}
	items := make([]*listener, 0, len(m.listeners))
	for l := range m.listeners {
		items = append(items, l)
	}
	return items
}

// Subscribe registers fn for every later change. The returned func removes it
// and is safe to call more than once.
func (m *Manager) Subscribe(fn func(Snapshot)) func() {
	if fn == nil {
		return func() {}
	}
	l := &listener{fn: fn}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return func() {}
	}
	m.listeners[l] = struct{}{}
	m.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, l)
			m.mu.Unlock()
		})
	}
}

// Close drops every listener; later changes are ignored.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.listeners = map[*listener]struct{}{}
}
