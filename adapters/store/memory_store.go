package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/agriauth/core"
	"github.com/layer-3/agriauth/ports"
)

// MemoryChallengeStore is an in-memory implementation of ports.ChallengeStore.
// Expired and terminal challenges stay until Purge removes them, at least
// retention past their expiry.
type MemoryChallengeStore struct {
	challenges map[string]core.Challenge
	retention  time.Duration
	mu         sync.Mutex
}

var (
	_ ports.ChallengeStore  = (*MemoryChallengeStore)(nil)
	_ ports.ChallengePurger = (*MemoryChallengeStore)(nil)
)

// NewMemoryChallengeStore creates a new in-memory challenge store
func NewMemoryChallengeStore() *MemoryChallengeStore {
	return &MemoryChallengeStore{
		challenges: make(map[string]core.Challenge),
		retention:  DefaultRetention,
	}
}

// Put replaces the principal's challenge
func (s *MemoryChallengeStore) Put(ctx context.Context, c *core.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.challenges[c.PrincipalID] = *c
	return nil
}

// Get returns a copy of the principal's challenge
func (s *MemoryChallengeStore) Get(ctx context.Context, principalID string) (*core.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[principalID]
	if !ok {
		return nil, core.ErrNoChallenge
	}
	return &c, nil
}

// Update applies fn under the store lock
func (s *MemoryChallengeStore) Update(ctx context.Context, principalID string, fn func(c *core.Challenge) error) (*core.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[principalID]
	if !ok {
		return nil, core.ErrNoChallenge
	}
	err := fn(&c)
	s.challenges[principalID] = c
	return &c, err
}

// Delete removes the principal's challenge
func (s *MemoryChallengeStore) Delete(ctx context.Context, principalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.challenges, principalID)
	return nil
}

// Purge removes challenges that expired more than the retention before now
func (s *MemoryChallengeStore) Purge(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, c := range s.challenges {
		if c.Stale(now, s.retention) {
			delete(s.challenges, id)
			n++
		}
	}
	return n, nil
}

// MemorySessionStore is an in-memory implementation of ports.SessionStore.
type MemorySessionStore struct {
	sessions map[string]core.Session
	mu       sync.RWMutex
	nowF     func() time.Time
}

var _ ports.SessionStore = (*MemorySessionStore)(nil)

// NewMemorySessionStore creates a new in-memory session store
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]core.Session),
		nowF:     time.Now,
	}
}

// Save records a session
func (s *MemorySessionStore) Save(ctx context.Context, session *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *session
	stored.Token = ""
	s.sessions[session.ID] = stored
	return nil
}

// Get returns a live session; expired entries are dropped on read
func (s *MemorySessionStore) Get(ctx context.Context, id string) (*core.Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, core.ErrSessionRevoked
	}
	if session.Expired(s.nowF()) {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return nil, core.ErrTokenExpired
	}
	return &session, nil
}

// Delete revokes a session
func (s *MemorySessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}
