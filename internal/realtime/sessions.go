package realtime

import (
	"errors"
	"sync"

	"github.com/Harsha29-kns/hackforge-backend/internal/ws"
)

// ErrAlreadyActive denies a login while another connection holds the lock.
var ErrAlreadyActive = errors.New("this team is already logged in on another device or contact sector incharge")

// Registry guarantees a team is controlled from at most one live connection
// at a time. The map is process-local and deliberately not persisted: a
// restart clears all locks.
//
// Every check-then-set runs under the mutex, so the grant decision and the
// record are one indivisible step even with many connection goroutines.
type Registry struct {
	mu      sync.Mutex
	holders map[string]ws.Subscriber
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{holders: make(map[string]ws.Subscriber)}
}

// Login grants the session lock unless another connection already holds it.
// A repeat login from the holder itself succeeds and changes nothing.
func (r *Registry) Login(teamID string, conn ws.Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.holders[teamID]; ok && current != conn {
		return ErrAlreadyActive
	}
	r.holders[teamID] = conn
	return nil
}

// Logout releases the lock only when conn is the current holder, so a stale
// duplicate connection can never release another's session. Returns whether
// a release happened. Connection loss goes through the same guard.
func (r *Registry) Logout(teamID string, conn ws.Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.holders[teamID]; ok && current == conn {
		delete(r.holders, teamID)
		return true
	}
	return false
}

// ForceLogout unconditionally evicts a team's session and returns the prior
// holder so the caller can signal it. A team with no session is a no-op.
func (r *Registry) ForceLogout(teamID string) (ws.Subscriber, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	holder, ok := r.holders[teamID]
	if ok {
		delete(r.holders, teamID)
	}
	return holder, ok
}

// Clear evicts every session and reports how many were held.
func (r *Registry) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cleared := len(r.holders)
	r.holders = make(map[string]ws.Subscriber)
	return cleared
}

// Count reports the number of held locks.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.holders)
}

// Holds reports whether the team currently has an active session.
func (r *Registry) Holds(teamID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.holders[teamID]
	return ok
}

// ActiveTeams returns the team ids currently holding sessions.
func (r *Registry) ActiveTeams() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.holders))
	for id := range r.holders {
		ids = append(ids, id)
	}
	return ids
}
