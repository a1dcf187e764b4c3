package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/satecha/satecha/internal/middleware"
	"github.com/satecha/satecha/internal/models"
	"github.com/satecha/satecha/internal/services"
	"github.com/satecha/satecha/pkg/logger"
	"github.com/satecha/satecha/pkg/utils"
	"gorm.io/gorm"
)

type UsersHandler struct {
	DB    *gorm.DB
	Audit *services.AuditService
}

func NewUsersHandler(db *gorm.DB, audit *services.AuditService) *UsersHandler {
	return &UsersHandler{DB: db, Audit: audit}
}

type adminUserResponse struct {
	ID           uuid.UUID       `json:"id"`
	Email        string          `json:"email"`
	Username     string          `json:"username"`
	Role         models.UserRole `json:"role"`
	Language     string          `json:"language"`
	LastSignInAt *time.Time      `json:"lastSignInAt,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

func toAdminUserResponse(user *models.User) adminUserResponse {
	resp := adminUserResponse{
		ID:           user.ID,
		Email:        user.Email,
		Role:         models.UserRoleUser,
		Language:     "en",
		LastSignInAt: user.LastSignInAt,
		CreatedAt:    user.CreatedAt,
	}
	if user.Profile != nil {
		resp.Username = user.Profile.Username
		resp.Role = user.Profile.Role
		resp.Language = user.Profile.Language
	}
	return resp
}

func (h *UsersHandler) List(c *fiber.Ctx) error {
	page := utils.PageFromQuery(c)
	search := strings.TrimSpace(c.Query("search"))

	query := h.DB.Model(&models.User{})
	if search != "" {
		searchValue := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(email) LIKE ? OR id IN (?)",
			searchValue,
			h.DB.Model(&models.Profile{}).Select("user_id").Where("LOWER(username) LIKE ?", searchValue),
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting users")
	}

	var users []models.User
	if err := query.Preload("Profile").Order("created_at DESC").Scopes(page.Scope).Find(&users).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing users")
	}

	out := make([]adminUserResponse, 0, len(users))
	for i := range users {
		out = append(out, toAdminUserResponse(&users[i]))
	}
	return utils.Paginated(c, out, page, total)
}

type updateRoleRequest struct {
	Role models.UserRole `json:"role"`
}

func (h *UsersHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var req updateRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if !req.Role.Valid() {
		return utils.Error(c, fiber.StatusBadRequest, "role must be admin or user")
	}
	if currentUser != nil && currentUser.ID == userID && req.Role != models.UserRoleAdmin {
		return utils.Error(c, fiber.StatusBadRequest, "cannot remove your own admin role")
	}

	var user models.User
	if err := h.DB.Preload("Profile").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed to load user")
	}

	if user.Profile == nil {
		user.Profile = &models.Profile{UserID: user.ID, Role: req.Role, Language: "en"}
		err = h.DB.Create(user.Profile).Error
	} else {
		err = h.DB.Model(user.Profile).Update("role", req.Role).Error
		user.Profile.Role = req.Role
	}
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to update role")
	}

	h.audit(c, currentUser, "admin.role_changed", user.Email, map[string]interface{}{
		"target_user_id": user.ID.String(),
		"role":           string(req.Role),
	})
	return utils.Success(c, fiber.StatusOK, toAdminUserResponse(&user))
}

func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}
	if currentUser != nil && currentUser.ID == userID {
		return utils.Error(c, fiber.StatusBadRequest, "cannot delete your own account")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed to load user")
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.RefreshToken{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Profile{}).Error; err != nil {
			return err
		}
		if err := tx.Where("email = ?", user.Email).Delete(&models.OTPCode{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		logger.Error("user_delete_failed", err, map[string]interface{}{"user_id": user.ID.String()})
		return utils.Error(c, fiber.StatusInternalServerError, "failed to delete user")
	}

	h.audit(c, currentUser, "admin.user_deleted", user.Email, map[string]interface{}{
		"target_user_id": user.ID.String(),
	})
	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "user deleted"})
}

func (h *UsersHandler) audit(c *fiber.Ctx, actor *models.User, action, email string, details map[string]interface{}) {
	if h.Audit == nil {
		return
	}
	h.Audit.LogAsync(services.AuditEntry{
		UserID:    auditUserID(actor),
		Action:    action,
		Email:     email,
		Details:   details,
		IPAddress: c.IP(),
		RequestID: middleware.GetRequestID(c),
	})
}
