package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/layer-3/agriauth/core"
	"github.com/layer-3/agriauth/internal/otp"
	"github.com/layer-3/agriauth/ports"
)

// ChallengeIssuer creates one-time challenges. Delivering the code is left to
// the caller.
type ChallengeIssuer struct {
	store    ports.ChallengeStore
	ttl      time.Duration
	attempts int
	digits   int
	now      Clock
}

// NewChallengeIssuer creates an issuer storing challenges in store.
func NewChallengeIssuer(store ports.ChallengeStore, ttl time.Duration, attempts, digits int, now Clock) *ChallengeIssuer {
	return &ChallengeIssuer{
		store:    store,
		ttl:      ttl,
		attempts: attempts,
		digits:   digits,
		now:      now,
	}
}

// Issue generates a fresh challenge for principalID and returns it with the
// plain code. Any challenge previously held for the principal is replaced.
func (i *ChallengeIssuer) Issue(ctx context.Context, principalID string) (*core.Challenge, string, error) {
	code, err := otp.Generate(i.digits)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate code: %w", err)
	}

	now := i.now()
	challenge := &core.Challenge{
		ID:           uuid.NewString(),
		PrincipalID:  principalID,
		CodeHash:     otp.Hash(code),
		CreatedAt:    now,
		ExpiresAt:    now.Add(i.ttl),
		AttemptsLeft: i.attempts,
		Status:       core.ChallengePending,
	}

	if err := i.store.Put(ctx, challenge); err != nil {
		return nil, "", fmt.Errorf("failed to store challenge: %w", err)
	}
	return challenge, code, nil
}

// ChallengeVerifier checks submitted codes against the stored challenge.
type ChallengeVerifier struct {
	store ports.ChallengeStore
	now   Clock
}

// NewChallengeVerifier creates a verifier reading challenges from store.
func NewChallengeVerifier(store ports.ChallengeStore, now Clock) *ChallengeVerifier {
	return &ChallengeVerifier{store: store, now: now}
}

// Verify applies one attempt of code to the principal's challenge. It returns
// the updated challenge together with nil (verified), core.ErrMismatch,
// core.ErrExpired, core.ErrExhausted or core.ErrNoChallenge.
func (v *ChallengeVerifier) Verify(ctx context.Context, principalID, code string) (*core.Challenge, error) {
	now := v.now()
	return v.store.Update(ctx, principalID, func(c *core.Challenge) error {
		return c.Attempt(code, now)
	})
}
