package repository

import (
	"testing"
	"time"

	"quill/internal/database"
	"quill/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens a fresh in-memory SQLite store with the full schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "hashed",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestPost(t *testing.T, db *gorm.DB, user *models.User, title string, createdAt time.Time) *models.Post {
	t.Helper()

	post := &models.Post{
		Title:     title,
		Content:   "content of " + title,
		Slug:      title,
		UserID:    user.ID,
		CreatedAt: createdAt,
	}
	require.NoError(t, db.Create(post).Error)
	return post
}
