package models

import "time"

// User is an account that owns an inbox of anonymous messages. The username
// doubles as the public handle in the profile link, so it is unique and
// matched case-insensitively at the service layer.
type User struct {
	BaseModel

	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`

	IsVerified          bool       `gorm:"default:false" json:"is_verified"`
	VerifyCode          string     `json:"-"`
	VerifyCodeExpiresAt *time.Time `json:"-"`

	IsAcceptingMessages bool `gorm:"default:true" json:"is_accepting_messages"`

	Messages []Message `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Sessions []Session `gorm:"foreignKey:UserID" json:"-"`

	LastLoginAt *time.Time `json:"last_login_at"`
}
