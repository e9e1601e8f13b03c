// Package bootstrap wires up runtime dependencies (database, Redis, dev
// provisioning) before the server starts.
package bootstrap

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"quill/internal/cache"
	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/models"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// InitRuntime connects to DB and Redis and optionally provisions the
// development staff account.
func InitRuntime(cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// May result in a nil client if unreachable; the app degrades to
	// unthrottled operation.
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := ensureDevStaff(cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development staff account: %w", err)
	}

	return db, r, nil
}

// ensureDevStaff creates or updates a staff account on fresh development
// databases so the dashboard is reachable without manual SQL.
func ensureDevStaff(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapStaff {
		return nil
	}

	username := strings.TrimSpace(cfg.DevStaffUsername)
	if username == "" {
		username = "editor"
	}
	email := strings.TrimSpace(strings.ToLower(cfg.DevStaffEmail))
	if email == "" {
		email = "editor@quill.local"
	}
	password := cfg.DevStaffPassword
	if password == "" {
		return fmt.Errorf("DEV_STAFF_PASSWORD must be set when DEV_BOOTSTRAP_STAFF is enabled")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash staff password: %w", err)
	}

	if err := db.Transaction(func(tx *gorm.DB) error {
		var staff models.User
		findErr := tx.Where("username = ?", username).First(&staff).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			staff = models.User{
				Username: username,
				Email:    email,
				Password: string(hashedPassword),
				IsStaff:  true,
			}
			return tx.Create(&staff).Error
		case findErr != nil:
			return findErr
		default:
			return tx.Model(&staff).Update("is_staff", true).Error
		}
	}); err != nil {
		return err
	}

	log.Printf("development staff account ensured (%s)", username)
	return nil
}
