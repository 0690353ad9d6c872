package ports

import (
	"context"
	"time"

	"github.com/layer-3/agriauth/core"
)

// ChallengeStore keeps at most one challenge per principal, keyed by
// principal id.
type ChallengeStore interface {
	// Put stores c, replacing any challenge held for the same principal.
	Put(ctx context.Context, c *core.Challenge) error

	// Get returns the principal's challenge or core.ErrNoChallenge.
	Get(ctx context.Context, principalID string) (*core.Challenge, error)

	// Update loads the principal's challenge, applies fn and stores the result
	// as one atomic step. The mutated challenge is stored even when fn returns
	// an error; that error is returned unchanged.
	Update(ctx context.Context, principalID string, fn func(c *core.Challenge) error) (*core.Challenge, error)

	// Delete removes the principal's challenge. Missing challenges are not an error.
	Delete(ctx context.Context, principalID string) error
}

// ChallengePurger is implemented by stores that need explicit housekeeping.
type ChallengePurger interface {
	Purge(ctx context.Context, now time.Time) (int, error)
}

// SessionStore records issued sessions so they can be revoked before expiry.
type SessionStore interface {
	Save(ctx context.Context, s *core.Session) error
	// Get returns core.ErrSessionRevoked when the session is unknown.
	Get(ctx context.Context, id string) (*core.Session, error)
	Delete(ctx context.Context, id string) error
}
