package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/layer-3/agriauth/core"
	"github.com/layer-3/agriauth/ports"
)

// SessionIssuer mints session tokens with a role specific lifetime.
type SessionIssuer struct {
	tokenizer ports.Tokenizer
	store     ports.SessionStore
	ttls      map[core.Role]time.Duration
	now       Clock
}

// NewSessionIssuer creates a session issuer. ttls maps each role to its
// session lifetime.
func NewSessionIssuer(tokenizer ports.Tokenizer, store ports.SessionStore, ttls map[core.Role]time.Duration, now Clock) *SessionIssuer {
	return &SessionIssuer{
		tokenizer: tokenizer,
		store:     store,
		ttls:      ttls,
		now:       now,
	}
}

// Issue creates and records a session for p.
func (s *SessionIssuer) Issue(ctx context.Context, p *core.Principal) (*core.Session, error) {
	ttl, ok := s.ttls[p.Role]
	if !ok || ttl <= 0 {
		return nil, fmt.Errorf("no session lifetime for role %q: %w", p.Role, core.ErrInvalidCredential)
	}

	now := s.now()
	session := &core.Session{
		ID:          uuid.NewString(),
		PrincipalID: p.ID,
		Role:        p.Role,
		IssuedAt:    now,
		ExpiresAt:   now.Add(ttl),
	}

	token, err := s.tokenizer.SessionToToken(session)
	if err != nil {
		return nil, fmt.Errorf("failed to create session token: %w", err)
	}
	session.Token = token

	if err := s.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	return session, nil
}

// Validate parses token and checks the session is neither expired nor revoked.
func (s *SessionIssuer) Validate(ctx context.Context, token string) (*core.Session, error) {
	claimed, err := s.tokenizer.TokenToSession(token)
	if err != nil {
		return nil, err
	}
	if claimed.Expired(s.now()) {
		return nil, core.ErrTokenExpired
	}

	stored, err := s.store.Get(ctx, claimed.ID)
	if err != nil {
		return nil, err
	}
	if stored.PrincipalID != claimed.PrincipalID {
		return nil, core.ErrInvalidToken
	}
	stored.Token = token
	return stored, nil
}

// Revoke deletes the session behind token. Expired tokens revoke nothing.
func (s *SessionIssuer) Revoke(ctx context.Context, token string) (*core.Session, error) {
	claimed, err := s.tokenizer.TokenToSession(token)
	if err != nil {
		if errors.Is(err, core.ErrTokenExpired) {
			return nil, nil
		}
		return nil, err
	}
	if err := s.store.Delete(ctx, claimed.ID); err != nil {
		return nil, fmt.Errorf("failed to revoke session: %w", err)
	}
	return claimed, nil
}
