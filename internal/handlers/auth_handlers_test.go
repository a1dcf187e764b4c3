package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/satecha/satecha/internal/models"
	"github.com/satecha/satecha/pkg/utils"
)

func signUp(t *testing.T, env *testEnv, email, password string, data map[string]any) map[string]any {
	t.Helper()
	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/signup", map[string]any{
		"email":    email,
		"password": password,
		"data":     data,
	}, apiKeyHeaders())
	assertStatus(t, resp, http.StatusCreated)
	return dataMap(t, decodeJSONMap(t, resp))
}

func TestSignUpThenSignIn(t *testing.T) {
	env := setupTestEnv(t)

	session := signUp(t, env, "A@X.com", "secret1", map[string]any{"username": "alice", "language": "my"})
	if session["accessToken"] == "" || session["refreshToken"] == "" {
		t.Fatalf("expected tokens, got %+v", session)
	}
	user := session["user"].(map[string]any)
	if user["email"] != "a@x.com" {
		t.Fatalf("expected normalized email, got %v", user["email"])
	}

	var profile models.Profile
	if err := env.db.Joins("JOIN users ON users.id = profiles.user_id").Where("users.email = ?", "a@x.com").First(&profile).Error; err != nil {
		t.Fatalf("expected profile row: %v", err)
	}
	if profile.Username != "alice" || profile.Language != "my" || profile.Role != models.UserRoleUser {
		t.Fatalf("unexpected profile %+v", profile)
	}

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/signin", map[string]any{
		"email":    "a@x.com",
		"password": "secret1",
	}, apiKeyHeaders())
	assertStatus(t, resp, http.StatusOK)
	signedIn := dataMap(t, decodeJSONMap(t, resp))
	if signedIn["user"].(map[string]any)["email"] != "a@x.com" {
		t.Fatalf("expected sign-in to return the same identity, got %+v", signedIn)
	}
}

func TestSignUpValidation(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		name    string
		payload map[string]any
		status  int
		message string
	}{
		{"short password", map[string]any{"email": "a@x.com", "password": "12345"}, http.StatusBadRequest, "password must be at least 6 characters"},
		{"short multibyte password", map[string]any{"email": "a@x.com", "password": "ကခဂ"}, http.StatusBadRequest, "password must be at least 6 characters"},
		{"bad email", map[string]any{"email": "nope", "password": "secret1"}, http.StatusBadRequest, "invalid email address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/signup", tt.payload, apiKeyHeaders())
			assertStatus(t, resp, tt.status)
			assertEnvelopeError(t, decodeJSONMap(t, resp), tt.message)
		})
	}
}

func TestSignUpDuplicate(t *testing.T) {
	env := setupTestEnv(t)
	signUp(t, env, "a@x.com", "secret1", nil)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/signup", map[string]any{
		"email":    "a@x.com",
		"password": "another1",
	}, apiKeyHeaders())
	assertStatus(t, resp, http.StatusConflict)
	assertEnvelopeError(t, decodeJSONMap(t, resp), "user already registered")
}

func TestSignUpDisabled(t *testing.T) {
	cfg := testAuthConfig()
	cfg.AllowSignup = false
	env := setupTestEnvWithAuth(t, cfg)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/signup", map[string]any{
		"email":    "a@x.com",
		"password": "secret1",
	}, apiKeyHeaders())
	assertStatus(t, resp, http.StatusForbidden)
	assertEnvelopeError(t, decodeJSONMap(t, resp), "signups not allowed")
}

func TestSignUpRequiresAPIKey(t *testing.T) {
	env := setupTestEnv(t)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/signup", map[string]any{
		"email":    "a@x.com",
		"password": "secret1",
	}, nil)
	assertStatus(t, resp, http.StatusUnauthorized)
	assertEnvelopeError(t, decodeJSONMap(t, resp), "invalid api key")
}

func TestSignInInvalidCredentials(t *testing.T) {
	env := setupTestEnv(t)
	createTestUser(t, env.db, "a@x.com", "secret1", models.UserRoleUser)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", "a@x.com", "wrong-password"},
		{"unknown email", "ghost@x.com", "secret1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/signin", map[string]any{
				"email":    tt.email,
				"password": tt.password,
			}, apiKeyHeaders())
			assertStatus(t, resp, http.StatusUnauthorized)
			assertEnvelopeError(t, decodeJSONMap(t, resp), "invalid login credentials")
		})
	}
}

func TestSignInPasswordlessAccount(t *testing.T) {
	env := setupTestEnv(t)
	user := &models.User{Email: "otp@x.com"}
	if err := env.db.Create(user).Error; err != nil {
		t.Fatalf("failed creating user: %v", err)
	}

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/signin", map[string]any{
		"email":    "otp@x.com",
		"password": "",
	}, apiKeyHeaders())
	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestRefreshRotatesToken(t *testing.T) {
	env := setupTestEnv(t)
	session := signUp(t, env, "a@x.com", "secret1", nil)
	refresh := session["refreshToken"].(string)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/refresh", map[string]any{"refreshToken": refresh}, apiKeyHeaders())
	assertStatus(t, resp, http.StatusOK)
	rotated := dataMap(t, decodeJSONMap(t, resp))
	if rotated["refreshToken"] == refresh {
		t.Fatal("expected a new refresh token")
	}

	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/auth/refresh", map[string]any{"refreshToken": refresh}, apiKeyHeaders())
	assertStatus(t, resp, http.StatusUnauthorized)
	assertEnvelopeError(t, decodeJSONMap(t, resp), "invalid refresh token")
}

func TestUpdateUserMetadataSealsSecret(t *testing.T) {
	env := setupTestEnv(t)
	user, token := createTestUser(t, env.db, "a@x.com", "secret1", models.UserRoleUser)

	resp := performJSONRequest(t, env.app, http.MethodPut, "/api/auth/user", map[string]any{
		"data": map[string]any{
			"twoFactorSecret":  "JBSWY3DPEHPK3PXP",
			"twoFactorEnabled": false,
			"username":         "alice",
		},
	}, authHeaders(token))
	assertStatus(t, resp, http.StatusOK)
	metadata := dataMap(t, decodeJSONMap(t, resp))["metadata"].(map[string]any)
	if metadata["twoFactorSecret"] != "JBSWY3DPEHPK3PXP" {
		t.Fatalf("expected secret returned opened, got %v", metadata["twoFactorSecret"])
	}

	var stored models.User
	if err := env.db.First(&stored, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("failed loading user: %v", err)
	}
	sealed, _ := stored.Metadata["twoFactorSecret"].(string)
	if !utils.IsSealed(sealed) {
		t.Fatalf("expected stored secret to be sealed, got %q", sealed)
	}
	if stored.Metadata["username"] != "alice" {
		t.Fatalf("expected username to merge, got %v", stored.Metadata)
	}

	resp = performJSONRequest(t, env.app, http.MethodPut, "/api/auth/user", map[string]any{
		"data": map[string]any{"twoFactorSecret": nil},
	}, authHeaders(token))
	assertStatus(t, resp, http.StatusOK)
	metadata = dataMap(t, decodeJSONMap(t, resp))["metadata"].(map[string]any)
	if _, ok := metadata["twoFactorSecret"]; ok {
		t.Fatalf("expected secret to be removed, got %v", metadata)
	}
	if metadata["username"] != "alice" {
		t.Fatalf("expected untouched keys to remain, got %v", metadata)
	}
}

func TestGetUser(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.db, "a@x.com", "secret1", models.UserRoleUser)

	resp := performRequest(t, env.app, http.MethodGet, "/api/auth/user", nil, authHeaders(token))
	assertStatus(t, resp, http.StatusOK)
	if got := dataMap(t, decodeJSONMap(t, resp))["email"]; got != "a@x.com" {
		t.Fatalf("expected a@x.com, got %v", got)
	}

	resp = performRequest(t, env.app, http.MethodGet, "/api/auth/user", nil, nil)
	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestSignOutRevokesRefreshTokens(t *testing.T) {
	env := setupTestEnv(t)
	session := signUp(t, env, "a@x.com", "secret1", nil)

	resp := performRequest(t, env.app, http.MethodPost, "/api/auth/signout", nil, authHeaders(session["accessToken"].(string)))
	assertStatus(t, resp, http.StatusOK)

	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/auth/refresh", map[string]any{"refreshToken": session["refreshToken"]}, apiKeyHeaders())
	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestHealthAndVersion(t *testing.T) {
	env := setupTestEnv(t)

	resp := performRequest(t, env.app, http.MethodGet, "/health", nil, nil)
	assertStatus(t, resp, http.StatusOK)

	resp = performRequest(t, env.app, http.MethodGet, "/api/version", nil, nil)
	assertStatus(t, resp, http.StatusOK)
	data := dataMap(t, decodeJSONMap(t, resp))
	if !strings.HasPrefix(data["goVersion"].(string), "go") {
		t.Fatalf("expected go version, got %v", data["goVersion"])
	}
}
