package database

import "quill/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Profile{},
		&models.Category{},
		&models.Post{},
		&models.Comment{},
		&models.Like{},
	}
}
