// Package agriauth is a Go client for the agriauth login API.
package agriauth

import (
	"context"
)

// Client represents the public interface for interacting with the auth service
type Client interface {
	// Challenge sends a one-time code to the lender behind the credential
	Challenge(ctx context.Context, kind, value string) (*ChallengeResponse, error)

	// Verify submits a code and returns a session once it matches
	Verify(ctx context.Context, principalID, code string) (*SessionResponse, error)

	// Direct logs an institution admin in with a secret
	Direct(ctx context.Context, kind, value, secret string) (*SessionResponse, error)

	// Me describes the session behind token
	Me(ctx context.Context, token string) (*Me, error)

	// Logout revokes the session behind token
	Logout(ctx context.Context, token string) error
}
