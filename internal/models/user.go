// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a registered account. Staff users may access the admin
// dashboard; everyone else is a regular author.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"unique;not null" json:"username"`
	Email     string         `gorm:"unique;not null" json:"email"`
	Password  string         `gorm:"not null" json:"-"`
	FirstName string         `json:"first_name"`
	LastName  string         `json:"last_name"`
	IsStaff   bool           `gorm:"default:false" json:"is_staff"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Posts   []Post   `gorm:"foreignKey:UserID" json:"posts,omitempty"`
	Profile *Profile `gorm:"foreignKey:UserID" json:"profile,omitempty"`
}
