package core

import "errors"

var (
	ErrNotFound          = errors.New("principal not found")
	ErrDisabled          = errors.New("principal is disabled")
	ErrExpired           = errors.New("challenge expired")
	ErrExhausted         = errors.New("challenge attempts exhausted")
	ErrMismatch          = errors.New("challenge code mismatch")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrNoChallenge       = errors.New("no active challenge")
	ErrInvalidTransition = errors.New("invalid flow transition")
	ErrDeliveryFailed    = errors.New("challenge delivery failed")

	ErrInvalidToken         = errors.New("invalid token")
	ErrTokenExpired         = errors.New("token has expired")
	ErrSessionRevoked       = errors.New("session has been revoked")
	ErrStoreOperationFailed = errors.New("store operation failed")
)

// RequiresRestart reports whether err ends the current flow so the caller has
// to start again from Idle.
func RequiresRestart(err error) bool {
	return errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrExhausted) ||
		errors.Is(err, ErrNoChallenge)
}
