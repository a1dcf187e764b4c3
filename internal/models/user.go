package models

import "time"

// User is the identity record owned by the provider. Metadata is an open
// key/value bag written by clients; the server only seals secret values.
type User struct {
	BaseModel
	Email            string                 `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash     string                 `json:"-" gorm:"type:text;not null;default:''"`
	Metadata         map[string]interface{} `json:"metadata" gorm:"type:jsonb;serializer:json"`
	EmailConfirmedAt *time.Time             `json:"emailConfirmedAt,omitempty"`
	LastSignInAt     *time.Time             `json:"lastSignInAt,omitempty"`
	Profile          *Profile               `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// HasPassword reports whether the account can sign in with a password.
// Accounts created through an emailed code have none until one is set.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}
