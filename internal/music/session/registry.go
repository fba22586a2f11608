package session

import "sync"

// Registry holds at most one live session per guild. Sessions remove
// themselves on teardown through the OnClose hook, so a lookup never
// returns a disconnected one for long.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	build    func(guildID string) Config
}

// NewRegistry creates a registry. build produces the Config for a
// guild's new session; the registry fills in GuildID and chains its own
// OnClose in front of any hook build set.
func NewRegistry(build func(guildID string) Config) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		build:    build,
	}
}

// GetOrCreate returns the guild's live session, creating one when none
// exists. Concurrent callers for the same guild get the same session.
func (r *Registry) GetOrCreate(guildID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[guildID]; ok {
		return s
	}
	cfg := r.build(guildID)
	cfg.GuildID = guildID
	next := cfg.OnClose
	cfg.OnClose = func(dead *Session) {
		r.remove(dead)
		if next != nil {
			next(dead)
		}
	}
	s := New(cfg)
	r.sessions[guildID] = s
	return s
}

// Get returns the guild's session without creating one.
func (r *Registry) Get(guildID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[guildID]
	return s, ok
}

// Len reports how many sessions are live.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// remove drops dead from the map. The pointer comparison keeps a
// tearing-down session from evicting a successor that already took over
// its guild slot.
func (r *Registry) remove(dead *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[dead.GuildID()]; ok && cur == dead {
		delete(r.sessions, dead.GuildID())
	}
}

// Statuses snapshots every live session, ordered by guild. The map is
// copied first and the sessions queried outside the lock; a session
// tearing down mid-iteration calls back into remove, which would
// otherwise deadlock.
func (r *Registry) Statuses() []Status {
	r.mu.Lock()
	live := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		live = append(live, s)
	}
	r.mu.Unlock()

	out := make([]Status, 0, len(live))
	for _, s := range live {
		out = append(out, s.Status())
	}
	sortStatuses(out)
	return out
}

// Shutdown kills every live session, for process stop.
func (r *Registry) Shutdown(reason DisconnectReason) {
	r.mu.Lock()
	live := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		live = append(live, s)
	}
	r.mu.Unlock()

	for _, s := range live {
		s.Kill(reason)
	}
}
