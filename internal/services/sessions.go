package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/satecha/satecha/internal/models"
	"github.com/satecha/satecha/pkg/utils"
	"gorm.io/gorm"
)

var ErrInvalidRefreshToken = errors.New("invalid refresh token")

type IssuedSession struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	TokenType    string    `json:"tokenType"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type SessionService struct {
	DB         *gorm.DB
	RefreshTTL time.Duration
	Now        func() time.Time
}

func NewSessionService(db *gorm.DB, refreshTTL time.Duration) *SessionService {
	return &SessionService{DB: db, RefreshTTL: refreshTTL, Now: time.Now}
}

func (s *SessionService) Issue(ctx context.Context, user *models.User) (*IssuedSession, error) {
	return s.issue(s.DB.WithContext(ctx), user)
}

func (s *SessionService) issue(tx *gorm.DB, user *models.User) (*IssuedSession, error) {
	access, expiresAt, err := utils.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	refresh, hash, err := utils.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	row := models.RefreshToken{
		UserID:    user.ID,
		TokenHash: hash,
		ExpiresAt: s.Now().UTC().Add(s.RefreshTTL),
	}
	if err := tx.Create(&row).Error; err != nil {
		return nil, err
	}
	return &IssuedSession{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresAt:    expiresAt,
	}, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued for its user.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*IssuedSession, *models.User, error) {
	now := s.Now().UTC()
	var issued *IssuedSession
	var user models.User

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.RefreshToken
		if err := tx.First(&row, "token_hash = ?", utils.HashToken(refreshToken)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidRefreshToken
			}
			return err
		}
		if !row.Usable(now) {
			return ErrInvalidRefreshToken
		}
		if err := tx.First(&user, "id = ?", row.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidRefreshToken
			}
			return err
		}
		if err := tx.Model(&row).Update("revoked_at", now).Error; err != nil {
			return err
		}
		var err error
		issued, err = s.issue(tx, &user)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return issued, &user, nil
}

func (s *SessionService) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	return s.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", s.Now().UTC()).Error
}
