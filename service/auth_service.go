package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/layer-3/agriauth/core"
	"github.com/layer-3/agriauth/internal/keylock"
	"github.com/layer-3/agriauth/internal/otp"
	"github.com/layer-3/agriauth/internal/security"
	"github.com/layer-3/agriauth/ports"
)

// Clock returns the current time.
type Clock func() time.Time

// Config holds the authentication policy.
type Config struct {
	ChallengeTTL      time.Duration
	ChallengeAttempts int
	CodeDigits        int
	SessionTTL        map[core.Role]time.Duration
}

// DefaultConfig returns the policy used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		ChallengeTTL:      5 * time.Minute,
		ChallengeAttempts: 3,
		CodeDigits:        otp.DefaultDigits,
		SessionTTL: map[core.Role]time.Duration{
			core.RoleLender:           time.Hour,
			core.RoleInstitutionAdmin: 8 * time.Hour,
		},
	}
}

// Dependencies are the adapters the AuthService talks to. Events, Logger and
// Clock are optional.
type Dependencies struct {
	Principals ports.PrincipalRepository
	Challenges ports.ChallengeStore
	Sessions   ports.SessionStore
	Tokenizer  ports.Tokenizer
	Deliverer  ports.ChallengeDeliverer
	Events     ports.EventPublisher
	Hasher     *security.Hasher
	Logger     watermill.LoggerAdapter
	Clock      Clock
}

// ChallengeResult is the outcome of StartChallenge.
type ChallengeResult struct {
	Flow      *core.Flow
	Principal *core.Principal
	Challenge *core.Challenge
}

// LoginResult is the outcome of VerifyChallenge and LoginDirect. Session is
// set only when Flow is Authenticated.
type LoginResult struct {
	Flow         *core.Flow
	Principal    *core.Principal
	Session      *core.Session
	AttemptsLeft int
}

// AuthService coordinates the challenge and direct-credential login flows
type AuthService struct {
	registry   *IdentityRegistry
	issuer     *ChallengeIssuer
	verifier   *ChallengeVerifier
	sessions   *SessionIssuer
	challenges ports.ChallengeStore
	deliverer  ports.ChallengeDeliverer
	eventPub   ports.EventPublisher
	hasher     *security.Hasher
	locks      *keylock.Locker
	logger     watermill.LoggerAdapter
	now        Clock
}

// NewAuthService creates a new authentication service
func NewAuthService(deps Dependencies, cfg Config) *AuthService {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	hasher := deps.Hasher
	if hasher == nil {
		hasher = security.NewHasher(0)
	}
	if cfg.CodeDigits == 0 {
		cfg.CodeDigits = otp.DefaultDigits
	}

	return &AuthService{
		registry:   NewIdentityRegistry(deps.Principals),
		issuer:     NewChallengeIssuer(deps.Challenges, cfg.ChallengeTTL, cfg.ChallengeAttempts, cfg.CodeDigits, now),
		verifier:   NewChallengeVerifier(deps.Challenges, now),
		sessions:   NewSessionIssuer(deps.Tokenizer, deps.Sessions, cfg.SessionTTL, now),
		challenges: deps.Challenges,
		deliverer:  deps.Deliverer,
		eventPub:   deps.Events,
		hasher:     hasher,
		locks:      keylock.New(),
		logger:     logger,
		now:        now,
	}
}

// StartChallenge resolves a lender credential, issues a challenge and hands
// the code to the deliverer. On success the flow is AwaitingVerification.
// Resolution failures leave the flow in Idle so the caller can retry.
func (s *AuthService) StartChallenge(ctx context.Context, kind core.CredentialKind, value string) (*ChallengeResult, error) {
	flow := core.NewFlow(core.FlowChallenge)
	res := &ChallengeResult{Flow: flow}

	principal, err := s.registry.Resolve(ctx, kind, value)
	if err != nil {
		return res, err
	}
	if principal.Role != core.RoleLender {
		return res, fmt.Errorf("challenge login is for lenders: %w", core.ErrInvalidCredential)
	}
	res.Principal = principal
	flow.PrincipalID = principal.ID
	if err := flow.To(core.StateAwaitingChallenge, nil); err != nil {
		return res, err
	}

	unlock := s.locks.Lock(principal.ID)
	challenge, code, err := s.issuer.Issue(ctx, principal.ID)
	unlock()
	if err != nil {
		_ = flow.Fail(err)
		return res, err
	}
	res.Challenge = challenge
	if err := flow.To(core.StateAwaitingVerification, nil); err != nil {
		return res, err
	}

	s.logger.Info("Challenge issued", watermill.LogFields{
		"principal_id": principal.ID,
		"challenge_id": challenge.ID,
		"expires_at":   challenge.ExpiresAt,
	})
	s.publish(ctx, core.Event{
		Type:        core.EventChallengeIssued,
		PrincipalID: principal.ID,
		ChallengeID: challenge.ID,
	})

	if err := s.deliverer.Deliver(ctx, principal, challenge, code); err != nil {
		s.logger.Error("Challenge delivery failed", err, watermill.LogFields{
			"principal_id": principal.ID,
			"challenge_id": challenge.ID,
		})
		return res, fmt.Errorf("%w: %v", core.ErrDeliveryFailed, err)
	}
	return res, nil
}

// VerifyChallenge submits code for the principal's pending challenge. A
// mismatch keeps the flow in AwaitingVerification; an expired, exhausted or
// missing challenge fails it and the caller has to restart.
func (s *AuthService) VerifyChallenge(ctx context.Context, principalID, code string) (*LoginResult, error) {
	flow := core.ResumeFlow(core.FlowChallenge, principalID, core.StateAwaitingVerification)
	res := &LoginResult{Flow: flow}

	principal, err := s.registry.ResolveID(ctx, principalID)
	if err != nil {
		_ = flow.Fail(err)
		return res, err
	}
	if principal.Role != core.RoleLender {
		err := fmt.Errorf("challenge login is for lenders: %w", core.ErrInvalidCredential)
		_ = flow.Fail(err)
		return res, err
	}
	res.Principal = principal

	unlock := s.locks.Lock(principal.ID)
	challenge, err := s.verifier.Verify(ctx, principal.ID, code)
	unlock()
	if challenge != nil {
		res.AttemptsLeft = challenge.AttemptsLeft
	}

	switch {
	case err == nil:
	case errors.Is(err, core.ErrMismatch):
		if terr := flow.To(core.StateAwaitingVerification, nil); terr != nil {
			return res, terr
		}
		s.logger.Debug("Challenge mismatch", watermill.LogFields{
			"principal_id":  principal.ID,
			"attempts_left": res.AttemptsLeft,
		})
		return res, err
	case core.RequiresRestart(err):
		_ = flow.Fail(err)
		ev := core.Event{Type: core.EventChallengeFailed, PrincipalID: principal.ID, Reason: err.Error()}
		if challenge != nil {
			ev.ChallengeID = challenge.ID
		}
		s.logger.Info("Challenge failed", watermill.LogFields{
			"principal_id": principal.ID,
			"reason":       err.Error(),
		})
		s.publish(ctx, ev)
		return res, err
	default:
		return res, err
	}

	return s.authenticate(ctx, res, principal)
}

// LoginDirect authenticates an institution admin with institution code,
// account number and secret.
func (s *AuthService) LoginDirect(ctx context.Context, kind core.CredentialKind, value, secret string) (*LoginResult, error) {
	flow := core.NewFlow(core.FlowDirect)
	res := &LoginResult{Flow: flow}

	fail := func(err error) (*LoginResult, error) {
		_ = flow.Fail(err)
		s.logger.Info("Direct login failed", watermill.LogFields{
			"principal_id": flow.PrincipalID,
			"reason":       err.Error(),
		})
		s.publish(ctx, core.Event{
			Type:        core.EventLoginFailed,
			PrincipalID: flow.PrincipalID,
			Reason:      err.Error(),
		})
		return res, err
	}

	if kind != core.CredentialInstitution {
		return fail(fmt.Errorf("direct login needs an institution credential: %w", core.ErrInvalidCredential))
	}
	principal, err := s.registry.Resolve(ctx, kind, value)
	if err != nil {
		return fail(err)
	}
	flow.PrincipalID = principal.ID
	res.Principal = principal

	if principal.Role != core.RoleInstitutionAdmin || principal.SecretHash == "" {
		return fail(core.ErrInvalidCredential)
	}
	if err := s.hasher.Compare(principal.SecretHash, []byte(secret)); err != nil {
		return fail(core.ErrInvalidCredential)
	}

	return s.authenticate(ctx, res, principal)
}

// authenticate issues the session for a flow whose credential check passed.
func (s *AuthService) authenticate(ctx context.Context, res *LoginResult, principal *core.Principal) (*LoginResult, error) {
	session, err := s.sessions.Issue(ctx, principal)
	if err != nil {
		_ = res.Flow.Fail(err)
		return res, err
	}
	if err := res.Flow.To(core.StateAuthenticated, nil); err != nil {
		return res, err
	}
	res.Session = session

	s.logger.Info("Session issued", watermill.LogFields{
		"principal_id": principal.ID,
		"session_id":   session.ID,
		"role":         principal.Role,
		"flow":         res.Flow.Kind,
	})
	s.publish(ctx, core.Event{
		Type:        core.EventSessionIssued,
		PrincipalID: principal.ID,
		SessionID:   session.ID,
		Role:        principal.Role,
	})
	return res, nil
}

// Authenticate validates a bearer token and returns its live session.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*core.Session, error) {
	return s.sessions.Validate(ctx, token)
}

// Logout revokes the session behind token.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	session, err := s.sessions.Revoke(ctx, token)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}

	s.publish(ctx, core.Event{
		Type:        core.EventSessionRevoked,
		PrincipalID: session.PrincipalID,
		SessionID:   session.ID,
		Role:        session.Role,
	})
	return nil
}

// PurgeChallenges drops expired and terminal challenges when the store needs
// explicit housekeeping. Stores with native expiry report zero.
func (s *AuthService) PurgeChallenges(ctx context.Context) (int, error) {
	purger, ok := s.challenges.(ports.ChallengePurger)
	if !ok {
		return 0, nil
	}
	n, err := purger.Purge(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Debug("Purged challenges", watermill.LogFields{"count": n})
	}
	return n, nil
}

// publish sends event without failing the caller; the state change already happened.
func (s *AuthService) publish(ctx context.Context, event core.Event) {
	if s.eventPub == nil {
		return
	}
	event.OccurredAt = s.now()
	if err := s.eventPub.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish event", err, watermill.LogFields{"type": event.Type})
	}
}
