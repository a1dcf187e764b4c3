package models

import "time"

type OTPPurpose string

const (
	OTPPurposeSignup OTPPurpose = "signup"
	OTPPurposeSignin OTPPurpose = "signin"
)

func (p OTPPurpose) Valid() bool {
	return p == OTPPurposeSignup || p == OTPPurposeSignin
}

// OTPCode is one emailed passcode. Only the newest unconsumed row for an
// email and purpose is ever accepted.
type OTPCode struct {
	BaseModel
	Email      string                 `json:"-" gorm:"type:varchar(255);not null;index:idx_otp_email_purpose"`
	Purpose    OTPPurpose             `json:"-" gorm:"type:varchar(10);not null;index:idx_otp_email_purpose"`
	CodeHash   string                 `json:"-" gorm:"type:text;not null"`
	Data       map[string]interface{} `json:"-" gorm:"type:jsonb;serializer:json"`
	ExpiresAt  time.Time              `json:"-" gorm:"not null;index"`
	Attempts   int                    `json:"-" gorm:"not null;default:0"`
	ConsumedAt *time.Time             `json:"-"`
}

func (o *OTPCode) Expired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}
