package models

import (
	"time"

	"gorm.io/gorm"
)

// DefaultAvatar is the avatar reference used until the user uploads one.
const DefaultAvatar = "default.png"

// Profile is the one-to-one extension of a User. It is created lazily the
// first time the profile page is viewed, not at signup.
type Profile struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"not null;uniqueIndex" json:"user_id"`
	AvatarURL string         `gorm:"default:default.png" json:"avatar_url"`
	Bio       string         `gorm:"type:text" json:"bio"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
