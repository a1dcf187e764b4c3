package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/satecha/satecha/internal/i18n"
	"github.com/satecha/satecha/internal/middleware"
	"github.com/satecha/satecha/internal/models"
	"github.com/satecha/satecha/pkg/logger"
	"github.com/satecha/satecha/pkg/utils"
	"gorm.io/gorm"
)

type ProfilesHandler struct {
	DB *gorm.DB
}

func NewProfilesHandler(db *gorm.DB) *ProfilesHandler {
	return &ProfilesHandler{DB: db}
}

type updateProfileRequest struct {
	Username *string `json:"username"`
	Language *string `json:"language"`
}

func (h *ProfilesHandler) GetMine(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	return h.respondProfile(c, user.ID)
}

func (h *ProfilesHandler) Get(c *fiber.Ctx) error {
	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}
	return h.respondProfile(c, userID)
}

func (h *ProfilesHandler) UpdateMine(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		if username == "" || len(username) > 50 {
			return utils.Error(c, fiber.StatusBadRequest, "username must be between 1 and 50 characters")
		}
		updates["username"] = username
	}
	if req.Language != nil {
		tag, ok := i18n.Parse(*req.Language)
		if !ok {
			return utils.Error(c, fiber.StatusBadRequest, "unsupported language")
		}
		updates["language"] = i18n.Code(tag)
	}
	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no fields to update")
	}

	profile, err := h.findOrCreate(user)
	if err != nil {
		logger.ErrorWithUser(user.ID.String(), "profile_load_failed", err, nil)
		return utils.Error(c, fiber.StatusInternalServerError, "failed to load profile")
	}
	if err := h.DB.Model(profile).Updates(updates).Error; err != nil {
		logger.ErrorWithUser(user.ID.String(), "profile_update_failed", err, nil)
		return utils.Error(c, fiber.StatusInternalServerError, "failed to update profile")
	}

	logger.InfoWithUser(user.ID.String(), "profile_updated", updates)
	return h.respondProfile(c, user.ID)
}

func (h *ProfilesHandler) respondProfile(c *fiber.Ctx, userID uuid.UUID) error {
	var profile models.Profile
	err := h.DB.Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.Error(c, fiber.StatusNotFound, "profile not found")
	}
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to load profile")
	}
	return utils.Success(c, fiber.StatusOK, profile)
}

func (h *ProfilesHandler) findOrCreate(user *models.User) (*models.Profile, error) {
	var profile models.Profile
	err := h.DB.Where("user_id = ?", user.ID).First(&profile).Error
	if err == nil {
		return &profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	profile = models.Profile{UserID: user.ID, Role: models.UserRoleUser, Language: "en"}
	if err := h.DB.Create(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}
