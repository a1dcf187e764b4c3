package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/satecha/satecha/internal/chat"
	"github.com/satecha/satecha/internal/config"
	"github.com/satecha/satecha/internal/database"
	"github.com/satecha/satecha/internal/mailer"
	"github.com/satecha/satecha/internal/middleware"
	"github.com/satecha/satecha/internal/models"
	"github.com/satecha/satecha/internal/services"
	"github.com/satecha/satecha/pkg/logger"
	"github.com/satecha/satecha/pkg/utils"
	"gorm.io/gorm"
)

const testAnonKey = "test-anon-key"

type testEnv struct {
	app    *fiber.App
	db     *gorm.DB
	mailer *mailer.Recorder
	otp    *services.OTPService
	audit  *services.AuditService
}

var testSetupOnce sync.Once

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		AnonKey:           testAnonKey,
		MinPasswordLength: 6,
		AllowSignup:       true,
	}
}

func setupTestEnv(t *testing.T) *testEnv {
	return setupTestEnvWithAuth(t, testAuthConfig())
}

func setupTestEnvWithAuth(t *testing.T, authCfg config.AuthConfig) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.SetOutput(io.Discard)
		utils.ConfigureJWT("test-secret", time.Hour)
		utils.ConfigureSealing("test-sealing-secret")
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	rec := &mailer.Recorder{}
	otpService := services.NewOTPService(db, rec, config.OTPConfig{
		TTL:            10 * time.Minute,
		ResendInterval: time.Minute,
		MaxAttempts:    5,
		Digits:         6,
	})
	sessionService := services.NewSessionService(db, 24*time.Hour)
	auditService := services.NewAuditService(db, 100)
	t.Cleanup(auditService.Close)

	authHandler := NewAuthHandler(db, sessionService, otpService, auditService, authCfg)
	profilesHandler := NewProfilesHandler(db)
	usersHandler := NewUsersHandler(db, auditService)
	chatHandler := NewChatHandler(chat.NewKeywordResponder())
	authMiddleware := middleware.NewAuthMiddleware(db, authCfg.AnonKey)

	app := fiber.New()
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	Routes{
		Auth:     authHandler,
		Profiles: profilesHandler,
		Users:    usersHandler,
		Chat:     chatHandler,
		Guard:    authMiddleware,
	}.Register(app)

	return &testEnv{app: app, db: db, mailer: rec, otp: otpService, audit: auditService}
}

func createTestUser(t *testing.T, db *gorm.DB, email, password string, role models.UserRole) (*models.User, string) {
	t.Helper()

	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		Metadata:     map[string]interface{}{},
		Profile:      &models.Profile{Username: "tester", Role: role, Language: "en"},
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	token, _, err := utils.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		t.Fatalf("failed generating auth token: %v", err)
	}

	return user, token
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func apiKeyHeaders() map[string]string {
	return map[string]string{"apikey": testAnonKey}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if got, _ := body["error"].(string); got != expected {
		t.Fatalf("expected error %q, got %q", expected, got)
	}
}

func dataMap(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object, got %+v", body)
	}
	return data
}
