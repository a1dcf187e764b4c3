package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/satecha/satecha/internal/models"
	"github.com/satecha/satecha/internal/services"
	"github.com/satecha/satecha/pkg/logger"
	"github.com/satecha/satecha/pkg/utils"
)

// Metadata keys whose values are sealed before they are stored.
var sealedMetadataKeys = []string{"twoFactorSecret"}

type userResponse struct {
	ID               uuid.UUID              `json:"id"`
	Email            string                 `json:"email"`
	Metadata         map[string]interface{} `json:"metadata"`
	EmailConfirmedAt *time.Time             `json:"emailConfirmedAt,omitempty"`
	LastSignInAt     *time.Time             `json:"lastSignInAt,omitempty"`
	CreatedAt        time.Time              `json:"createdAt"`
}

type sessionResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	TokenType    string       `json:"tokenType"`
	ExpiresAt    time.Time    `json:"expiresAt"`
	User         userResponse `json:"user"`
}

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

func toUserResponse(user *models.User) userResponse {
	return userResponse{
		ID:               user.ID,
		Email:            user.Email,
		Metadata:         openMetadata(user.Metadata),
		EmailConfirmedAt: user.EmailConfirmedAt,
		LastSignInAt:     user.LastSignInAt,
		CreatedAt:        user.CreatedAt,
	}
}

func toSessionResponse(issued *services.IssuedSession, user *models.User) sessionResponse {
	return sessionResponse{
		AccessToken:  issued.AccessToken,
		RefreshToken: issued.RefreshToken,
		TokenType:    issued.TokenType,
		ExpiresAt:    issued.ExpiresAt,
		User:         toUserResponse(user),
	}
}

// mergeMetadata applies patch onto current. A nil value removes the key.
func mergeMetadata(current, patch map[string]interface{}) (map[string]interface{}, error) {
	merged := make(map[string]interface{}, len(current)+len(patch))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range patch {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	return sealMetadata(merged)
}

func sealMetadata(metadata map[string]interface{}) (map[string]interface{}, error) {
	if metadata == nil {
		return map[string]interface{}{}, nil
	}
	for _, key := range sealedMetadataKeys {
		value, ok := metadata[key].(string)
		if !ok || value == "" || utils.IsSealed(value) {
			continue
		}
		sealed, err := utils.Seal(value)
		if errors.Is(err, utils.ErrSealingNotConfigured) {
			logger.Warn("metadata_stored_unsealed", map[string]interface{}{"key": key})
			continue
		}
		if err != nil {
			return nil, err
		}
		metadata[key] = sealed
	}
	return metadata, nil
}

func openMetadata(metadata map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	for _, key := range sealedMetadataKeys {
		value, ok := out[key].(string)
		if !ok || !utils.IsSealed(value) {
			continue
		}
		opened, err := utils.Open(value)
		if err != nil {
			logger.Error("metadata_open_failed", err, map[string]interface{}{"key": key})
			delete(out, key)
			continue
		}
		out[key] = opened
	}
	return out
}

func auditUserID(user *models.User) *uuid.UUID {
	if user == nil {
		return nil
	}
	id := user.ID
	return &id
}
