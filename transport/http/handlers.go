package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/agriauth/adapters/delivery"
	"github.com/layer-3/agriauth/core"
	"github.com/layer-3/agriauth/service"
)

const (
	ctxSession = "session"
	ctxToken   = "token"
)

// CodeInbox exposes delivered codes in development mode.
type CodeInbox interface {
	Latest(principalID string) (delivery.Delivered, bool)
}

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
	}
}

type credentialRequest struct {
	CredentialKind  string `json:"credential_kind" binding:"required"`
	CredentialValue string `json:"credential_value" binding:"required"`
}

// Challenge starts the challenge flow for a lender credential
func (h *AuthHandlers) Challenge(c *gin.Context) {
	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	res, err := h.authService.StartChallenge(c.Request.Context(), core.CredentialKind(req.CredentialKind), req.CredentialValue)
	if err != nil {
		writeError(c, err, gin.H{"state": res.Flow.State})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":            true,
		"principal_id":  res.Principal.ID,
		"challenge_id":  res.Challenge.ID,
		"expires_at":    res.Challenge.ExpiresAt,
		"attempts_left": res.Challenge.AttemptsLeft,
		"state":         res.Flow.State,
	})
}

// Verify submits a code for the principal's pending challenge
func (h *AuthHandlers) Verify(c *gin.Context) {
	var req struct {
		PrincipalID string `json:"principal_id" binding:"required"`
		Code        string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	res, err := h.authService.VerifyChallenge(c.Request.Context(), req.PrincipalID, req.Code)
	if err != nil {
		extra := gin.H{"state": res.Flow.State}
		if errors.Is(err, core.ErrMismatch) {
			extra["attempts_left"] = res.AttemptsLeft
		}
		writeError(c, err, extra)
		return
	}

	writeSession(c, res)
}

// Direct authenticates an institution admin with a secret
func (h *AuthHandlers) Direct(c *gin.Context) {
	var req struct {
		CredentialKind  string `json:"credential_kind" binding:"required"`
		CredentialValue string `json:"credential_value" binding:"required"`
		Secret          string `json:"secret" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	res, err := h.authService.LoginDirect(c.Request.Context(), core.CredentialKind(req.CredentialKind), req.CredentialValue, req.Secret)
	if err != nil {
		writeError(c, err, gin.H{"state": res.Flow.State})
		return
	}

	writeSession(c, res)
}

// Logout revokes the bearer session
func (h *AuthHandlers) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context(), c.GetString(ctxToken)); err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me returns information about the authenticated principal
func (h *AuthHandlers) Me(c *gin.Context) {
	session, ok := sessionFrom(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Session not found in context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"principal_id": session.PrincipalID,
		"role":         session.Role,
		"expires_at":   session.ExpiresAt,
		"landing_path": session.Role.LandingPath(),
	})
}

// Authorize checks if a principal is authorized
func (h *AuthHandlers) Authorize(c *gin.Context) {
	// The middleware already validated the session.
	session, ok := sessionFrom(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Session not found in context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authorized":   true,
		"principal_id": session.PrincipalID,
		"role":         session.Role,
	})
}

// Health reports liveness
func (h *AuthHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// DevChallenge returns the last code delivered to a principal
func DevChallenge(inbox CodeInbox) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, ok := inbox.Latest(c.Param("principal_id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "No code delivered"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"challenge_id": d.ChallengeID,
			"code":         d.Code,
			"expires_at":   d.ExpiresAt,
		})
	}
}

func sessionFrom(c *gin.Context) (*core.Session, bool) {
	v, ok := c.Get(ctxSession)
	if !ok {
		return nil, false
	}
	session, ok := v.(*core.Session)
	return session, ok
}

func writeSession(c *gin.Context, res *service.LoginResult) {
	c.JSON(http.StatusOK, gin.H{
		"session_token": res.Session.Token,
		"token_type":    "Bearer",
		"expires_at":    res.Session.ExpiresAt,
		"expires_in":    int(time.Until(res.Session.ExpiresAt).Seconds()),
		"principal_id":  res.Session.PrincipalID,
		"role":          res.Session.Role,
		"landing_path":  res.Session.Role.LandingPath(),
		"state":         res.Flow.State,
	})
}

// writeError maps service errors to status codes. extra is merged into the body.
func writeError(c *gin.Context, err error, extra gin.H) {
	statusCode := http.StatusInternalServerError
	errorMsg := "Authentication failed"

	switch {
	case errors.Is(err, core.ErrNotFound):
		statusCode = http.StatusNotFound
		errorMsg = "Account not found"
	case errors.Is(err, core.ErrDisabled):
		statusCode = http.StatusForbidden
		errorMsg = "Account disabled"
	case errors.Is(err, core.ErrMismatch):
		statusCode = http.StatusUnauthorized
		errorMsg = "Incorrect code"
	case errors.Is(err, core.ErrInvalidCredential):
		statusCode = http.StatusUnauthorized
		errorMsg = "Invalid credentials"
	case errors.Is(err, core.ErrExpired):
		statusCode = http.StatusGone
		errorMsg = "Code expired"
	case errors.Is(err, core.ErrExhausted):
		statusCode = http.StatusGone
		errorMsg = "Too many attempts"
	case errors.Is(err, core.ErrNoChallenge):
		statusCode = http.StatusGone
		errorMsg = "No pending code"
	case errors.Is(err, core.ErrTokenExpired):
		statusCode = http.StatusUnauthorized
		errorMsg = "Token expired"
	case errors.Is(err, core.ErrInvalidToken), errors.Is(err, core.ErrSessionRevoked):
		statusCode = http.StatusUnauthorized
		errorMsg = "Invalid token"
	case errors.Is(err, core.ErrDeliveryFailed):
		statusCode = http.StatusBadGateway
		errorMsg = "Could not deliver code"
	}

	body := gin.H{"error": errorMsg}
	if core.RequiresRestart(err) {
		body["restart"] = true
	}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(statusCode, body)
}
