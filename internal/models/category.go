package models

import (
	"time"

	"gorm.io/gorm"
)

// Category is a named tag a post may optionally belong to.
type Category struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"not null" json:"name"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Posts []Post `gorm:"foreignKey:CategoryID" json:"posts,omitempty"`
}
