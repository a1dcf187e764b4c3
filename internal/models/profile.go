package models

import "github.com/google/uuid"

type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleUser  UserRole = "user"
)

func (r UserRole) Valid() bool {
	return r == UserRoleAdmin || r == UserRoleUser
}

type Profile struct {
	BaseModel
	UserID   uuid.UUID `json:"userID" gorm:"type:uuid;uniqueIndex;not null"`
	Username string    `json:"username" gorm:"type:varchar(50);not null;default:''"`
	Role     UserRole  `json:"role" gorm:"type:varchar(20);not null;default:'user'"`
	Language string    `json:"language" gorm:"type:varchar(10);not null;default:'en'"`
}
