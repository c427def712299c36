// Package registry maps chat users to their live device session. It is the
// only shared mutable structure in the process; entries are rebuilt empty on
// restart, so users re-authenticate after the bot restarts.
package registry

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"hotspotctl/internal/device"
)

// Registry enforces at most one live session per chat user. The lock is held
// only for map operations; the displaced session's disconnect runs outside
// the critical section since it may block on the transport.
type Registry struct {
	mu       sync.Mutex
	sessions map[int64]*device.Session
	log      zerolog.Logger
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		sessions: make(map[int64]*device.Session),
		log:      log.With().Str("component", "registry").Logger(),
	}
}

// Get returns the user's live session, or nil.
func (r *Registry) Get(userID int64) *device.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[userID]
}

// Put installs the session for the user. A previously installed session is
// disconnected first so its transport handle cannot leak.
func (r *Registry) Put(userID int64, s *device.Session) {
	r.mu.Lock()
	old := r.sessions[userID]
	r.sessions[userID] = s
	r.mu.Unlock()

	if old != nil && old != s {
		r.log.Warn().Int64("user_id", userID).Msg("replacing live session")
		old.Disconnect()
	}
}

// Remove drops and disconnects the user's session, if any.
func (r *Registry) Remove(userID int64) {
	r.mu.Lock()
	old := r.sessions[userID]
	delete(r.sessions, userID)
	r.mu.Unlock()

	if old != nil {
		old.Disconnect()
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Shutdown disconnects every session. Called on process exit.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	sessions := make([]*device.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[int64]*device.Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Disconnect()
	}
}
