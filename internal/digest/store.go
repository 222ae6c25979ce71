package digest

import (
	"strings"
	"sync"
)

// anonymousKey stores preferences of callers without an e-mail.
const anonymousKey = "anonymous"

// Store keeps preferences in memory, keyed by e-mail. Nothing is persisted.
type Store struct {
	mu    sync.RWMutex
	prefs map[string]Preferences
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{prefs: make(map[string]Preferences)}
}

// Get returns the saved preferences for email, or the defaults.
func (s *Store) Get(email string) Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.prefs[key(email)]; ok {
		return p
	}
	return DefaultPreferences()
}

// Save replaces the preferences for email.
func (s *Store) Save(email string, p Preferences) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prefs[key(email)] = p
}

// Update applies a to the current preferences of email atomically.
func (s *Store) Update(email string, a Action) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(email)
	cur, ok := s.prefs[k]
	if !ok {
		cur = DefaultPreferences()
	}

	next, err := Apply(cur, a)
	if err != nil {
		return cur, err
	}
	s.prefs[k] = next
	return next, nil
}

func key(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return anonymousKey
	}
	return email
}
