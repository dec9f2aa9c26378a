// Package session holds the in-memory authentication state observed by the
// rest of the application. State is a plain container with named setters and
// an explicit subscribe interface; there is no hidden reactivity.
package session

import "sync"

// User is the display shape of the authenticated account.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// Snapshot is an immutable view of the session state.
type Snapshot struct {
	User          *User
	Authenticated bool
	Loading       bool
	Err           string
}

// State is the single source of truth for the session. All mutation goes
// through the named setters; callers are trusted and no validation is
// performed. Safe for concurrent use.
type State struct {
	mu     sync.RWMutex
	cur    Snapshot
	subs   map[int]func(Snapshot)
	nextID int
}

// New creates a State in the initial unauthenticated condition.
func New() *State {
	return &State{subs: make(map[int]func(Snapshot))}
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSnapshot(s.cur)
}

// User returns the current user, or nil when no profile is loaded.
func (s *State) User() *User {
	return s.Snapshot().User
}

// IsAuthenticated reports whether a token is currently believed valid.
func (s *State) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.Authenticated
}

// IsLoading reports whether an auth operation is in flight.
func (s *State) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.Loading
}

// Err returns the current user-facing error message, or "".
func (s *State) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.Err
}

// Subscribe registers a listener invoked with a snapshot after every
// mutation. The returned cancel func removes the listener.
func (s *State) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// UpdateUser sets the current user.
func (s *State) UpdateUser(u User) {
	s.mutate(func(snap *Snapshot) { snap.User = &u })
}

// SetAuthenticated sets the authenticated flag.
func (s *State) SetAuthenticated(v bool) {
	s.mutate(func(snap *Snapshot) { snap.Authenticated = v })
}

// SetLoading sets the loading flag.
func (s *State) SetLoading(v bool) {
	s.mutate(func(snap *Snapshot) { snap.Loading = v })
}

// SetError sets the user-facing error message.
func (s *State) SetError(msg string) {
	s.mutate(func(snap *Snapshot) { snap.Err = msg })
}

// ClearError clears the user-facing error message.
func (s *State) ClearError() {
	s.mutate(func(snap *Snapshot) { snap.Err = "" })
}

// Reset returns the state to its initial values.
func (s *State) Reset() {
	s.mutate(func(snap *Snapshot) { *snap = Snapshot{} })
}

// mutate applies fn under the lock and notifies listeners outside of it.
func (s *State) mutate(fn func(*Snapshot)) {
	s.mu.Lock()
	fn(&s.cur)
	snap := cloneSnapshot(s.cur)
	listeners := make([]func(Snapshot), 0, len(s.subs))
	for _, sub := range s.subs {
		listeners = append(listeners, sub)
	}
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

func cloneSnapshot(snap Snapshot) Snapshot {
	if snap.User != nil {
		u := *snap.User
		snap.User = &u
	}
	return snap
}
