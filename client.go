package agriauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

// ChallengeResponse is returned by POST /auth/challenge.
type ChallengeResponse struct {
	PrincipalID  string    `json:"principal_id"`
	ChallengeID  string    `json:"challenge_id"`
	ExpiresAt    time.Time `json:"expires_at"`
	AttemptsLeft int       `json:"attempts_left"`
	State        string    `json:"state"`
}

// SessionResponse is returned by the verify and direct endpoints.
type SessionResponse struct {
	SessionToken string    `json:"session_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	PrincipalID  string    `json:"principal_id"`
	Role         string    `json:"role"`
	LandingPath  string    `json:"landing_path"`
	State        string    `json:"state"`
}

// Me is returned by GET /api/me.
type Me struct {
	PrincipalID string    `json:"principal_id"`
	Role        string    `json:"role"`
	ExpiresAt   time.Time `json:"expires_at"`
	LandingPath string    `json:"landing_path"`
}

// HTTPClient talks to an agriauth server over HTTP.
type HTTPClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient returns a client for the server at baseURL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Challenge implements Client
func (c *HTTPClient) Challenge(ctx context.Context, kind, value string) (*ChallengeResponse, error) {
	var out ChallengeResponse
	err := c.do(ctx, http.MethodPost, "/auth/challenge", "", map[string]string{
		"credential_kind":  kind,
		"credential_value": value,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Verify implements Client
func (c *HTTPClient) Verify(ctx context.Context, principalID, code string) (*SessionResponse, error) {
	var out SessionResponse
	err := c.do(ctx, http.MethodPost, "/auth/verify", "", map[string]string{
		"principal_id": principalID,
		"code":         code,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Direct implements Client
func (c *HTTPClient) Direct(ctx context.Context, kind, value, secret string) (*SessionResponse, error) {
	var out SessionResponse
	err := c.do(ctx, http.MethodPost, "/auth/direct", "", map[string]string{
		"credential_kind":  kind,
		"credential_value": value,
		"secret":           secret,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Me implements Client
func (c *HTTPClient) Me(ctx context.Context, token string) (*Me, error) {
	var out Me
	if err := c.do(ctx, http.MethodGet, "/api/me", token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout implements Client
func (c *HTTPClient) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", token, nil, nil)
}

// DevCode reads the last code delivered to principalID from a server running
// with OTP_DELIVERY=dev.
func (c *HTTPClient) DevCode(ctx context.Context, principalID string) (string, error) {
	var out struct {
		Code string `json:"code"`
	}
	if err := c.do(ctx, http.MethodGet, "/dev/challenges/"+url.PathEscape(principalID), "", nil, &out); err != nil {
		return "", err
	}
	return out.Code, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path, token string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("agriauth: decode response: %w", err)
	}
	return nil
}
