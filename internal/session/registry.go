package session

import (
	"sync"
)

// Registry tracks which users currently hold at least one session, for
// concurrent-session bookkeeping and admin visibility. A user may hold
// several sessions (multiple browsers); the registry counts them.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]int
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]int),
	}
}

// Login records one more session for the user.
func (r *Registry) Login(userID string) {
	r.mu.Lock()
	r.sessions[userID]++
	r.mu.Unlock()
}

// Logout releases one session for the user. Unknown users are ignored.
func (r *Registry) Logout(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if count, ok := r.sessions[userID]; ok {
		if count <= 1 {
			delete(r.sessions, userID)
		} else {
			r.sessions[userID] = count - 1
		}
	}
}

// SessionCount returns the number of live sessions for the user.
func (r *Registry) SessionCount(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[userID]
}

// LoggedInUsers returns the ids of all users with at least one session.
func (r *Registry) LoggedInUsers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		users = append(users, id)
	}
	return users
}
