package agriauth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/layer-3/agriauth/core"
)

// APIError is returned for every non-2xx response.
type APIError struct {
	Status       int    `json:"-"`
	Message      string `json:"error"`
	State        string `json:"state,omitempty"`
	AttemptsLeft *int   `json:"attempts_left,omitempty"`
	Restart      bool   `json:"restart,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("agriauth: %d %s", e.Status, e.Message)
}

// Is maps the status back to the matching core error so callers can use
// errors.Is(err, core.ErrMismatch) and friends.
func (e *APIError) Is(target error) bool {
	switch e.Status {
	case http.StatusNotFound:
		return target == core.ErrNotFound
	case http.StatusForbidden:
		return target == core.ErrDisabled
	case http.StatusGone:
		return target == ErrRestart
	case http.StatusBadGateway:
		return target == core.ErrDeliveryFailed
	case http.StatusUnauthorized:
		if e.AttemptsLeft != nil {
			return target == core.ErrMismatch
		}
		return target == ErrUnauthorized
	}
	return false
}

var (
	// ErrRestart means the challenge is gone and the login has to start over.
	ErrRestart = errors.New("login must be restarted")

	// ErrUnauthorized covers rejected credentials and tokens.
	ErrUnauthorized = errors.New("unauthorized")
)
