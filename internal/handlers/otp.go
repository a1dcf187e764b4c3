package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/satecha/satecha/internal/emailutil"
	"github.com/satecha/satecha/internal/models"
	"github.com/satecha/satecha/internal/services"
	"github.com/satecha/satecha/pkg/logger"
	"github.com/satecha/satecha/pkg/utils"
	"gorm.io/gorm"
)

type sendOTPRequest struct {
	Email   string                 `json:"email"`
	Purpose models.OTPPurpose      `json:"purpose"`
	Data    map[string]interface{} `json:"data"`
}

type verifyOTPRequest struct {
	Email   string            `json:"email"`
	Code    string            `json:"code"`
	Purpose models.OTPPurpose `json:"purpose"`
}

func (h *AuthHandler) SendOTP(c *fiber.Ctx) error {
	var req sendOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	email := emailutil.Normalize(req.Email)
	if !emailutil.Plausible(email) {
		return utils.Error(c, fiber.StatusBadRequest, "invalid email address")
	}
	if !req.Purpose.Valid() {
		return utils.Error(c, fiber.StatusBadRequest, "purpose must be signup or signin")
	}
	if req.Purpose == models.OTPPurposeSignup && !h.Config.AllowSignup {
		return utils.Error(c, fiber.StatusForbidden, "signups not allowed")
	}

	err := h.OTP.Issue(c.UserContext(), email, req.Purpose, req.Data)
	switch {
	case errors.Is(err, services.ErrOTPThrottled):
		return utils.Error(c, fiber.StatusTooManyRequests, err.Error())
	case errors.Is(err, services.ErrOTPSignupDisabled):
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	case err != nil:
		logger.Error("otp_send_failed", err, map[string]interface{}{"email": email})
		return utils.Error(c, fiber.StatusInternalServerError, "failed to send code")
	}

	h.audit(c, nil, "otp.sent", email, map[string]interface{}{"purpose": string(req.Purpose)})
	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "code sent"})
}

func (h *AuthHandler) VerifyOTP(c *fiber.Ctx) error {
	var req verifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	email := emailutil.Normalize(req.Email)
	if !req.Purpose.Valid() {
		return utils.Error(c, fiber.StatusBadRequest, "purpose must be signup or signin")
	}
	if len(req.Code) != 6 {
		return utils.Error(c, fiber.StatusBadRequest, "code must be 6 digits")
	}

	row, err := h.OTP.Verify(c.UserContext(), email, req.Code, req.Purpose)
	switch {
	case errors.Is(err, services.ErrOTPInvalid):
		h.audit(c, nil, "otp.verify_failed", email, map[string]interface{}{"purpose": string(req.Purpose)})
		return utils.Error(c, fiber.StatusUnauthorized, "token has expired or is invalid")
	case errors.Is(err, services.ErrOTPTooManyAttempts):
		return utils.Error(c, fiber.StatusTooManyRequests, err.Error())
	case err != nil:
		logger.Error("otp_verify_failed", err, map[string]interface{}{"email": email})
		return utils.Error(c, fiber.StatusInternalServerError, "failed to verify code")
	}

	var user models.User
	err = h.DB.Where("email = ?", email).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if req.Purpose != models.OTPPurposeSignup {
			return utils.Error(c, fiber.StatusBadRequest, services.ErrOTPSignupDisabled.Error())
		}
		created, createErr := h.createUser(c.UserContext(), email, "", row.Data)
		if createErr != nil && !errors.Is(createErr, errUserExists) {
			logger.Error("otp_signup_failed", createErr, map[string]interface{}{"email": email})
			return utils.Error(c, fiber.StatusInternalServerError, "failed to create user")
		}
		if createErr == nil {
			user = *created
			h.audit(c, &user, "user.signup", email, map[string]interface{}{"method": "otp"})
		} else if err := h.DB.Where("email = ?", email).First(&user).Error; err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed to load user")
		}
	case err != nil:
		return utils.Error(c, fiber.StatusInternalServerError, "failed to load user")
	}

	if user.EmailConfirmedAt == nil {
		now := time.Now().UTC()
		if err := h.DB.Model(&user).Update("email_confirmed_at", now).Error; err != nil {
			logger.ErrorWithUser(user.ID.String(), "email_confirm_failed", err, nil)
		}
		user.EmailConfirmedAt = &now
	}

	return h.respondWithSession(c, fiber.StatusOK, &user, "user.otp_verified")
}
