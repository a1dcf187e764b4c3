package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/satecha/satecha/internal/config"
	"github.com/satecha/satecha/internal/emailutil"
	"github.com/satecha/satecha/internal/mailer"
	"github.com/satecha/satecha/internal/models"
	"github.com/satecha/satecha/pkg/logger"
	"github.com/satecha/satecha/pkg/utils"
	"gorm.io/gorm"
)

var (
	ErrOTPThrottled       = errors.New("please wait before requesting another code")
	ErrOTPInvalid         = errors.New("code is invalid or has expired")
	ErrOTPTooManyAttempts = errors.New("too many attempts, request a new code")
	ErrOTPSignupDisabled  = errors.New("signups not allowed for otp")
)

type OTPService struct {
	DB     *gorm.DB
	Mailer mailer.Mailer
	Config config.OTPConfig
	Now    func() time.Time
}

func NewOTPService(db *gorm.DB, m mailer.Mailer, cfg config.OTPConfig) *OTPService {
	return &OTPService{DB: db, Mailer: m, Config: cfg, Now: time.Now}
}

// Issue emails a fresh code for the email and purpose. Any earlier unused
// code for the same pair stops being valid.
func (s *OTPService) Issue(ctx context.Context, email string, purpose models.OTPPurpose, data map[string]interface{}) error {
	now := s.Now().UTC()
	email = emailutil.Normalize(email)

	if purpose == models.OTPPurposeSignin {
		var count int64
		if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrOTPSignupDisabled
		}
	}

	var latest models.OTPCode
	err := s.DB.WithContext(ctx).
		Where("email = ? AND purpose = ?", email, purpose).
		Order("created_at DESC").
		First(&latest).Error
	if err == nil && now.Sub(latest.CreatedAt) < s.Config.ResendInterval {
		return ErrOTPThrottled
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	code, err := utils.GenerateNumericCode(s.Config.Digits)
	if err != nil {
		return err
	}
	hash, err := utils.HashPassword(code)
	if err != nil {
		return err
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.OTPCode{}).
			Where("email = ? AND purpose = ? AND consumed_at IS NULL", email, purpose).
			Update("consumed_at", now).Error; err != nil {
			return err
		}
		row := models.OTPCode{
			BaseModel: models.BaseModel{CreatedAt: now, UpdatedAt: now},
			Email:     email,
			Purpose:   purpose,
			CodeHash:  hash,
			Data:      data,
			ExpiresAt: now.Add(s.Config.TTL),
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return err
	}

	if err := s.Mailer.SendCode(ctx, mailer.CodeMessage{
		To:      email,
		Code:    code,
		Purpose: string(purpose),
		TTL:     s.Config.TTL,
	}); err != nil {
		logger.Error("otp_delivery_failed", err, map[string]interface{}{
			"email":   email,
			"purpose": string(purpose),
		})
		return err
	}

	logger.Info("otp_issued", map[string]interface{}{
		"email":   email,
		"purpose": string(purpose),
	})
	return nil
}

// Verify consumes the newest code for the pair when it matches. Each call
// reserves one attempt before the code is compared, and only one caller can
// consume a matching code.
func (s *OTPService) Verify(ctx context.Context, email, code string, purpose models.OTPPurpose) (*models.OTPCode, error) {
	now := s.Now().UTC()
	email = emailutil.Normalize(email)
	db := s.DB.WithContext(ctx)

	var row models.OTPCode
	err := db.Where("email = ? AND purpose = ? AND consumed_at IS NULL", email, purpose).
		Order("created_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOTPInvalid
	}
	if err != nil {
		return nil, err
	}
	if row.Expired(now) {
		return nil, ErrOTPInvalid
	}

	reserved := db.Model(&models.OTPCode{}).
		Where("id = ? AND attempts < ? AND consumed_at IS NULL", row.ID, s.Config.MaxAttempts).
		Update("attempts", gorm.Expr("attempts + 1"))
	if reserved.Error != nil {
		return nil, reserved.Error
	}
	if reserved.RowsAffected == 0 {
		return nil, s.exhausted(ctx, row.ID)
	}

	if !utils.CheckPassword(code, row.CodeHash) {
		logger.Warn("otp_verify_failed", map[string]interface{}{
			"email":   email,
			"purpose": string(purpose),
		})
		return nil, ErrOTPInvalid
	}

	consumed := db.Model(&models.OTPCode{}).
		Where("id = ? AND consumed_at IS NULL", row.ID).
		Update("consumed_at", now)
	if consumed.Error != nil {
		return nil, consumed.Error
	}
	if consumed.RowsAffected != 1 {
		return nil, ErrOTPInvalid
	}
	row.ConsumedAt = &now
	return &row, nil
}

// exhausted tells a code used up by attempts from one already consumed.
func (s *OTPService) exhausted(ctx context.Context, id uuid.UUID) error {
	var row models.OTPCode
	if err := s.DB.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return ErrOTPInvalid
	}
	if row.ConsumedAt != nil {
		return ErrOTPInvalid
	}
	return ErrOTPTooManyAttempts
}

func (s *OTPService) CleanupExpired(ctx context.Context) error {
	return s.DB.WithContext(ctx).Where("expires_at < ?", s.Now().UTC().Add(-time.Hour)).Delete(&models.OTPCode{}).Error
}
