// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session keeps per-browser state for the web form: the identity
// of the last upload, its conversion result and a one-shot flash message.
package session

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/cvat2labelme/internal/convert"
)

// CookieName is the cookie carrying the session id.
const CookieName = "cvat2labelme_session"

// FlashLevel distinguishes success and error messages.
type FlashLevel string

const (
	FlashSuccess FlashLevel = "success"
	FlashError   FlashLevel = "error"
)

// Flash is a message shown once on the next page render.
type Flash struct {
	Level   FlashLevel
	Message string
}

// State is the data held for one session.
type State struct {
	// LastUpload identifies the last uploaded file as "name_size".
	LastUpload string
	// Result is the last successful conversion, nil if none.
	Result *convert.Result
	// Flash is shown once and then dropped.
	Flash *Flash

	lastSeen time.Time
}

// Reset forgets the stored result and upload identity.
func (s *State) Reset() {
	s.LastUpload = ""
	s.Result = nil
}

// Manager hands out sessions keyed by a cookie. Sessions unused for longer
// than the TTL are dropped.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*State
	ttl      time.Duration
	now      func() time.Time
}

// NewManager returns a Manager whose sessions expire after ttl. A ttl of
// zero or less never expires sessions.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]*State),
		ttl:      ttl,
		now:      time.Now,
	}
}

// ID returns the session id of r, issuing a new id and cookie on w when r
// carries none or an unknown one.
func (m *Manager) ID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil {
		m.mu.Lock()
		_, ok := m.lookup(c.Value)
		m.mu.Unlock()
		if ok {
			return c.Value
		}
	}

	id := uuid.New().String()
	m.mu.Lock()
	m.sessions[id] = &State{lastSeen: m.now()}
	m.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// Update runs fn on the state of session id under the manager's lock,
// creating the state if needed.
func (m *Manager) Update(id string, fn func(*State)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.lookup(id)
	if !ok {
		st = &State{}
		m.sessions[id] = st
	}
	st.lastSeen = m.now()
	fn(st)
}

// Snapshot returns a copy of the state of session id and consumes its
// flash message.
func (m *Manager) Snapshot(id string) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.lookup(id)
	if !ok {
		return State{}
	}
	st.lastSeen = m.now()
	out := *st
	st.Flash = nil
	return out
}

// Result returns the stored result of session id.
func (m *Manager) Result(id string) (*convert.Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.lookup(id)
	if !ok || st.Result == nil {
		return nil, false
	}
	st.lastSeen = m.now()
	return st.Result, true
}

// Clear deletes session id.
func (m *Manager) Clear(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()
	return len(m.sessions)
}

// Sweep drops expired sessions.
func (m *Manager) Sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()
}

// lookup returns the unexpired state for id. The caller holds mu.
func (m *Manager) lookup(id string) (*State, bool) {
	st, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	if m.expired(st) {
		delete(m.sessions, id)
		return nil, false
	}
	return st, true
}

func (m *Manager) sweep() {
	for id, st := range m.sessions {
		if m.expired(st) {
			delete(m.sessions, id)
		}
	}
}

func (m *Manager) expired(st *State) bool {
	return m.ttl > 0 && m.now().Sub(st.lastSeen) > m.ttl
}
