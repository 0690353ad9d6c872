package core

import (
	"time"

	"github.com/layer-3/agriauth/internal/otp"
)

// ChallengeStatus is the lifecycle state of a Challenge.
type ChallengeStatus string

const (
	ChallengePending   ChallengeStatus = "pending"
	ChallengeVerified  ChallengeStatus = "verified"
	ChallengeExpired   ChallengeStatus = "expired"
	ChallengeExhausted ChallengeStatus = "exhausted"
)

// Challenge represents a one-time verification code issued to a principal.
// Only the hash of the code is kept.
type Challenge struct {
	ID           string          `json:"id"`
	PrincipalID  string          `json:"principal_id"`
	CodeHash     string          `json:"code_hash"`
	CreatedAt    time.Time       `json:"created_at"`
	ExpiresAt    time.Time       `json:"expires_at"`
	AttemptsLeft int             `json:"attempts_left"`
	Status       ChallengeStatus `json:"status"`
}

// Terminal reports whether the challenge can no longer be verified.
func (c *Challenge) Terminal() bool {
	return c.Status != ChallengePending
}

// Stale reports whether the challenge may be discarded at now, i.e. more than
// retention past its expiry. Terminal challenges are kept until then so
// repeated attempts keep reporting the same error.
func (c *Challenge) Stale(now time.Time, retention time.Duration) bool {
	return now.After(c.ExpiresAt.Add(retention))
}

// Attempt checks code against the challenge and advances its state. It returns
// nil when the code matches, ErrMismatch while attempts remain, and
// ErrExpired or ErrExhausted once the challenge is terminal. Terminal
// challenges keep returning the same error.
func (c *Challenge) Attempt(code string, now time.Time) error {
	switch c.Status {
	case ChallengeExhausted:
		return ErrExhausted
	case ChallengeExpired, ChallengeVerified:
		return ErrExpired
	}

	if now.After(c.ExpiresAt) {
		c.Status = ChallengeExpired
		return ErrExpired
	}
	if c.AttemptsLeft <= 0 {
		c.AttemptsLeft = 0
		c.Status = ChallengeExhausted
		return ErrExhausted
	}

	if otp.Equal(code, c.CodeHash) {
		c.Status = ChallengeVerified
		return nil
	}

	c.AttemptsLeft--
	if c.AttemptsLeft == 0 {
		c.Status = ChallengeExhausted
		return ErrExhausted
	}
	return ErrMismatch
}
