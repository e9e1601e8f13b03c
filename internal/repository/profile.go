package repository

import (
	"context"
	"errors"

	"quill/internal/models"

	"gorm.io/gorm"
)

// ProfileRepository defines interface for profile operations
type ProfileRepository interface {
	// GetOrCreate fetches the user's profile, creating a default one if none
	// exists yet. The second return value reports whether a row was created.
	GetOrCreate(ctx context.Context, userID uint) (*models.Profile, bool, error)
	GetByUserID(ctx context.Context, userID uint) (*models.Profile, error)
	Update(ctx context.Context, profile *models.Profile) error
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new ProfileRepository
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) GetOrCreate(ctx context.Context, userID uint) (*models.Profile, bool, error) {
	var profile models.Profile
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if err == nil {
		return &profile, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	profile = models.Profile{UserID: userID, AvatarURL: models.DefaultAvatar}
	if createErr := r.db.WithContext(ctx).Create(&profile).Error; createErr != nil {
		// A concurrent request may have created the row first; re-read.
		var existing models.Profile
		if readErr := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&existing).Error; readErr == nil {
			return &existing, false, nil
		}
		return nil, false, createErr
	}
	return &profile, true, nil
}

func (r *profileRepository) GetByUserID(ctx context.Context, userID uint) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Profile", userID)
		}
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) Update(ctx context.Context, profile *models.Profile) error {
	return r.db.WithContext(ctx).Save(profile).Error
}
