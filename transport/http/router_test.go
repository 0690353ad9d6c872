package http

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/agriauth/adapters/delivery"
	"github.com/layer-3/agriauth/adapters/identity"
	"github.com/layer-3/agriauth/adapters/store"
	"github.com/layer-3/agriauth/adapters/tokenizer"
	"github.com/layer-3/agriauth/core"
	"github.com/layer-3/agriauth/internal/security"
	"github.com/layer-3/agriauth/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T, opts ...Option) (*gin.Engine, *delivery.DevInbox) {
	t.Helper()

	hasher := security.NewHasher(4)
	secretHash, err := hasher.Hash([]byte("s3cret"))
	require.NoError(t, err)

	repo := identity.NewMemoryRepository()
	require.NoError(t, repo.Add(&core.Principal{ID: "lender-1", Role: core.RoleLender, Status: core.StatusActive, Phone: "+254700000001"}))
	require.NoError(t, repo.Add(&core.Principal{ID: "lender-off", Role: core.RoleLender, Status: core.StatusDisabled, Phone: "+254700000009"}))
	require.NoError(t, repo.Add(&core.Principal{
		ID: "admin-1", Role: core.RoleInstitutionAdmin, Status: core.StatusActive,
		InstitutionCode: "EQB", AccountNumber: "77", SecretHash: secretHash,
	}))

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	inbox := delivery.NewDevInbox(nil)
	svc := service.NewAuthService(service.Dependencies{
		Principals: repo,
		Challenges: store.NewMemoryChallengeStore(),
		Sessions:   store.NewMemorySessionStore(),
		Tokenizer:  tokenizer.NewJWTTokenizer(key, "agriauth"),
		Deliverer:  inbox,
		Hasher:     hasher,
	}, service.DefaultConfig())

	return SetupRouter(svc, append([]Option{WithDevInbox(inbox)}, opts...)...), inbox
}

func do(t *testing.T, r *gin.Engine, method, path string, body interface{}, token string) (int, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	out := map[string]interface{}{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w.Code, out
}

func TestChallengeVerifyFlow(t *testing.T) {
	r, inbox := newRouter(t)

	status, body := do(t, r, http.MethodPost, "/auth/challenge", gin.H{
		"credential_kind":  "phone",
		"credential_value": "+254 700 000 001",
	}, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "lender-1", body["principal_id"])
	assert.Equal(t, "awaiting_verification", body["state"])
	assert.EqualValues(t, 3, body["attempts_left"])

	delivered, ok := inbox.Latest("lender-1")
	require.True(t, ok)

	bad := "000000"
	if delivered.Code == bad {
		bad = "111111"
	}
	status, body = do(t, r, http.MethodPost, "/auth/verify", gin.H{"principal_id": "lender-1", "code": bad}, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.EqualValues(t, 2, body["attempts_left"])
	assert.Equal(t, "awaiting_verification", body["state"])

	status, body = do(t, r, http.MethodGet, "/dev/challenges/lender-1", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, delivered.Code, body["code"])

	status, body = do(t, r, http.MethodPost, "/auth/verify", gin.H{"principal_id": "lender-1", "code": delivered.Code}, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "lender", body["role"])
	assert.Equal(t, "/lender/dashboard", body["landing_path"])
	assert.Equal(t, "authenticated", body["state"])
	token, _ := body["session_token"].(string)
	require.NotEmpty(t, token)

	status, body = do(t, r, http.MethodGet, "/api/me", nil, token)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "lender-1", body["principal_id"])

	// replaying the code asks the client to restart
	status, body = do(t, r, http.MethodPost, "/auth/verify", gin.H{"principal_id": "lender-1", "code": delivered.Code}, "")
	assert.Equal(t, http.StatusGone, status)
	assert.Equal(t, true, body["restart"])
	assert.Equal(t, "failed", body["state"])
}

func TestChallengeErrors(t *testing.T) {
	r, _ := newRouter(t)

	tests := []struct {
		name   string
		body   gin.H
		status int
	}{
		{"missing fields", gin.H{"credential_kind": "phone"}, http.StatusBadRequest},
		{"unknown phone", gin.H{"credential_kind": "phone", "credential_value": "+254711111111"}, http.StatusNotFound},
		{"disabled", gin.H{"credential_kind": "phone", "credential_value": "+254700000009"}, http.StatusForbidden},
		{"malformed phone", gin.H{"credential_kind": "phone", "credential_value": "abc"}, http.StatusUnauthorized},
		{"unknown kind", gin.H{"credential_kind": "email", "credential_value": "a@b.c"}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := do(t, r, http.MethodPost, "/auth/challenge", tt.body, "")
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestVerifyWithoutChallenge(t *testing.T) {
	r, _ := newRouter(t)

	status, body := do(t, r, http.MethodPost, "/auth/verify", gin.H{"principal_id": "lender-1", "code": "123456"}, "")
	assert.Equal(t, http.StatusGone, status)
	assert.Equal(t, true, body["restart"])
}

func TestDirectLoginAndLogout(t *testing.T) {
	r, _ := newRouter(t)

	status, body := do(t, r, http.MethodPost, "/auth/direct", gin.H{
		"credential_kind":  "institution",
		"credential_value": "eqb:77",
		"secret":           "nope",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "failed", body["state"])

	status, body = do(t, r, http.MethodPost, "/auth/direct", gin.H{
		"credential_kind":  "institution",
		"credential_value": "eqb:77",
		"secret":           "s3cret",
	}, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "institution-admin", body["role"])
	assert.Equal(t, "/admin/dashboard", body["landing_path"])
	token := body["session_token"].(string)

	status, body = do(t, r, http.MethodGet, "/api/authorize", nil, token)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["authorized"])

	status, _ = do(t, r, http.MethodPost, "/auth/logout", nil, token)
	require.Equal(t, http.StatusOK, status)

	status, _ = do(t, r, http.MethodGet, "/api/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestProtectedRoutesRequireBearer(t *testing.T) {
	r, _ := newRouter(t)

	status, _ := do(t, r, http.MethodGet, "/api/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = do(t, r, http.MethodGet, "/api/authorize", nil, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestHealthAndDevInbox(t *testing.T) {
	r, _ := newRouter(t)

	status, body := do(t, r, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, _ = do(t, r, http.MethodGet, "/dev/challenges/nobody", nil, "")
	assert.Equal(t, http.StatusNotFound, status)
}
