package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/satecha/satecha/internal/config"
	"github.com/satecha/satecha/internal/emailutil"
	"github.com/satecha/satecha/internal/i18n"
	"github.com/satecha/satecha/internal/middleware"
	"github.com/satecha/satecha/internal/models"
	"github.com/satecha/satecha/internal/services"
	"github.com/satecha/satecha/pkg/logger"
	"github.com/satecha/satecha/pkg/utils"
	"gorm.io/gorm"
)

var errUserExists = errors.New("user already registered")

type AuthHandler struct {
	DB       *gorm.DB
	Sessions *services.SessionService
	OTP      *services.OTPService
	Audit    *services.AuditService
	Config   config.AuthConfig
}

func NewAuthHandler(db *gorm.DB, sessions *services.SessionService, otp *services.OTPService, audit *services.AuditService, cfg config.AuthConfig) *AuthHandler {
	return &AuthHandler{DB: db, Sessions: sessions, OTP: otp, Audit: audit, Config: cfg}
}

type credentialsRequest struct {
	Email    string                 `json:"email"`
	Password string                 `json:"password"`
	Data     map[string]interface{} `json:"data"`
}

func (h *AuthHandler) SignUp(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if !h.Config.AllowSignup {
		return utils.Error(c, fiber.StatusForbidden, "signups not allowed")
	}
	email := emailutil.Normalize(req.Email)
	if !emailutil.Plausible(email) {
		return utils.Error(c, fiber.StatusBadRequest, "invalid email address")
	}
	if utf8.RuneCountInString(req.Password) < h.Config.MinPasswordLength {
		return utils.Error(c, fiber.StatusBadRequest, fmt.Sprintf("password must be at least %d characters", h.Config.MinPasswordLength))
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to hash password")
	}

	user, err := h.createUser(c.UserContext(), email, hash, req.Data)
	if errors.Is(err, errUserExists) {
		h.audit(c, nil, "user.signup_failed", email, map[string]interface{}{"reason": "duplicate"})
		return utils.Error(c, fiber.StatusConflict, errUserExists.Error())
	}
	if err != nil {
		logger.Error("signup_failed", err, map[string]interface{}{"email": email})
		return utils.Error(c, fiber.StatusInternalServerError, "failed to create user")
	}

	return h.respondWithSession(c, fiber.StatusCreated, user, "user.signup")
}

func (h *AuthHandler) SignIn(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	email := emailutil.Normalize(req.Email)

	var user models.User
	if err := h.DB.Where("email = ?", email).First(&user).Error; err != nil {
		h.audit(c, nil, "user.signin_failed", email, map[string]interface{}{"reason": "unknown email"})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid login credentials")
	}
	if !user.HasPassword() || !utils.CheckPassword(req.Password, user.PasswordHash) {
		h.audit(c, &user, "user.signin_failed", email, map[string]interface{}{"reason": "bad password"})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid login credentials")
	}

	return h.respondWithSession(c, fiber.StatusOK, &user, "user.signin")
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
		return utils.Error(c, fiber.StatusBadRequest, "refreshToken is required")
	}

	issued, user, err := h.Sessions.Refresh(c.UserContext(), req.RefreshToken)
	if errors.Is(err, services.ErrInvalidRefreshToken) {
		return utils.Error(c, fiber.StatusUnauthorized, "invalid refresh token")
	}
	if err != nil {
		logger.Error("session_refresh_failed", err, nil)
		return utils.Error(c, fiber.StatusInternalServerError, "failed to refresh session")
	}

	return utils.Success(c, fiber.StatusOK, toSessionResponse(issued, user))
}

func (h *AuthHandler) GetUser(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	return utils.Success(c, fiber.StatusOK, toUserResponse(user))
}

type updateUserRequest struct {
	Data map[string]interface{} `json:"data"`
}

func (h *AuthHandler) UpdateUser(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req updateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.Data) == 0 {
		return utils.Success(c, fiber.StatusOK, toUserResponse(user))
	}

	merged, err := mergeMetadata(user.Metadata, req.Data)
	if err != nil {
		logger.ErrorWithUser(user.ID.String(), "metadata_seal_failed", err, nil)
		return utils.Error(c, fiber.StatusInternalServerError, "failed to update user")
	}
	if err := h.DB.Model(user).Select("metadata").Updates(&models.User{Metadata: merged}).Error; err != nil {
		logger.ErrorWithUser(user.ID.String(), "metadata_update_failed", err, nil)
		return utils.Error(c, fiber.StatusInternalServerError, "failed to update user")
	}
	user.Metadata = merged

	keys := make([]string, 0, len(req.Data))
	for k := range req.Data {
		keys = append(keys, k)
	}
	h.audit(c, user, "user.metadata_updated", user.Email, map[string]interface{}{"keys": keys})

	return utils.Success(c, fiber.StatusOK, toUserResponse(user))
}

func (h *AuthHandler) SignOut(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	if err := h.Sessions.RevokeAll(c.UserContext(), user.ID); err != nil {
		logger.ErrorWithUser(user.ID.String(), "signout_failed", err, nil)
		return utils.Error(c, fiber.StatusInternalServerError, "failed to sign out")
	}
	h.audit(c, user, "user.signout", user.Email, nil)
	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "signed out"})
}

// createUser inserts the user with its profile row. Username and language
// in the sign-up data seed the profile.
func (h *AuthHandler) createUser(ctx context.Context, email, passwordHash string, data map[string]interface{}) (*models.User, error) {
	metadata, err := sealMetadata(copyMap(data))
	if err != nil {
		return nil, err
	}

	username, _ := metadata["username"].(string)
	if username == "" {
		username = emailutil.LocalPart(email)
	}
	language := i18n.Default()
	if pref, ok := metadata["language"].(string); ok {
		language = i18n.Match(pref)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: passwordHash,
		Metadata:     metadata,
		Profile: &models.Profile{
			Username: username,
			Role:     models.UserRoleUser,
			Language: i18n.Code(language),
		},
	}

	err = h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errUserExists
		}
		return tx.Create(user).Error
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (h *AuthHandler) respondWithSession(c *fiber.Ctx, status int, user *models.User, action string) error {
	now := time.Now().UTC()
	if err := h.DB.Model(user).Update("last_sign_in_at", now).Error; err != nil {
		logger.ErrorWithUser(user.ID.String(), "last_sign_in_update_failed", err, nil)
	}
	user.LastSignInAt = &now

	issued, err := h.Sessions.Issue(c.UserContext(), user)
	if err != nil {
		logger.ErrorWithUser(user.ID.String(), "session_issue_failed", err, nil)
		return utils.Error(c, fiber.StatusInternalServerError, "failed to create session")
	}

	h.audit(c, user, action, user.Email, nil)
	logger.InfoWithUser(user.ID.String(), action, map[string]interface{}{
		"email": user.Email,
		"ip":    c.IP(),
	})
	return utils.Success(c, status, toSessionResponse(issued, user))
}

func (h *AuthHandler) audit(c *fiber.Ctx, user *models.User, action, email string, details map[string]interface{}) {
	if h.Audit == nil {
		return
	}
	h.Audit.LogAsync(services.AuditEntry{
		UserID:    auditUserID(user),
		Action:    action,
		Email:     email,
		Details:   details,
		IPAddress: c.IP(),
		RequestID: middleware.GetRequestID(c),
	})
}

func copyMap(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
