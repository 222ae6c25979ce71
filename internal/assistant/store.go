package assistant

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bissquit/incident-portal/internal/domain"
)

// Store errors.
var (
	ErrNotFound  = errors.New("conversation not found")
	ErrStoreFull = errors.New("too many open conversations")
)

const (
	defaultConversationTTL  = time.Hour
	defaultMaxConversations = 10000
	minSweepInterval        = time.Second
)

// StoreConfig configures the conversation store.
type StoreConfig struct {
	TTL         time.Duration
	Max         int
	TypingDelay time.Duration
}

// Store holds live conversations in memory. Idle conversations expire after TTL.
type Store struct {
	responder Responder
	cfg       StoreConfig
	now       func() time.Time

	mu            sync.RWMutex
	conversations map[string]*Conversation
}

// NewStore creates an empty store.
func NewStore(responder Responder, cfg StoreConfig) *Store {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultConversationTTL
	}
	if cfg.Max <= 0 {
		cfg.Max = defaultMaxConversations
	}
	return &Store{
		responder:     responder,
		cfg:           cfg,
		now:           time.Now,
		conversations: make(map[string]*Conversation),
	}
}

// Create starts a conversation for owner restricted to scope.
func (s *Store) Create(owner string, scope domain.AccessScope) (*Conversation, error) {
	if s.Len() >= s.cfg.Max {
		s.Sweep()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.conversations) >= s.cfg.Max {
		return nil, ErrStoreFull
	}

	c := newConversation(owner, scope, s.responder, s.cfg.TypingDelay, s.now)
	s.conversations[c.ID()] = c
	conversationsGauge.Set(float64(len(s.conversations)))
	return c, nil
}

// Get returns the conversation with id.
func (s *Store) Get(id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

// Len returns the number of held conversations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}

// Sweep removes conversations idle for longer than TTL. Conversations with a
// pending answer are never removed. Returns the number removed.
func (s *Store) Sweep() int {
	cutoff := s.now().Add(-s.cfg.TTL)

	s.mu.Lock()
	var expired []*Conversation
	for id, c := range s.conversations {
		if last, idle := c.idleSince(); idle && last.Before(cutoff) {
			expired = append(expired, c)
			delete(s.conversations, id)
		}
	}
	conversationsGauge.Set(float64(len(s.conversations)))
	s.mu.Unlock()

	for _, c := range expired {
		c.Close()
	}
	return len(expired)
}

// Run sweeps expired conversations until ctx is done, then closes every
// conversation.
func (s *Store) Run(ctx context.Context) {
	interval := max(s.cfg.TTL/4, minSweepInterval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				slog.Debug("expired conversations removed", "count", n)
			}
		}
	}
}

func (s *Store) closeAll() {
	s.mu.Lock()
	all := make([]*Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		all = append(all, c)
	}
	clear(s.conversations)
	conversationsGauge.Set(0)
	s.mu.Unlock()

	for _, c := range all {
		c.Close()
	}
}
