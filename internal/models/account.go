package models

import "time"

// Account is a registered identity that can receive anonymous messages.
type Account struct {
	BaseModel

	Username     string `gorm:"uniqueIndex;size:20;not null" json:"username"`
	Email        string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`

	VerifyCode       string    `gorm:"size:6;not null" json:"-"`
	VerifyCodeExpiry time.Time `gorm:"not null" json:"verify_code_expiry"`

	IsVerified          bool `gorm:"not null;default:false;index" json:"is_verified"`
	IsAcceptingMessages bool `gorm:"not null;default:true" json:"is_accepting_messages"`

	Messages []Message `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}
