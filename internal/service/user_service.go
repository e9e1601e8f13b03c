package service

import (
	"context"
	"errors"
	"strings"

	"quill/internal/models"
	"quill/internal/observability"
	"quill/internal/repository"
	"quill/internal/validation"

	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

// UserService coordinates signup, authentication and profile management.
type UserService struct {
	userRepo    repository.UserRepository
	profileRepo repository.ProfileRepository
	postRepo    repository.PostRepository
}

// NewUserService creates a new UserService.
func NewUserService(
	userRepo repository.UserRepository,
	profileRepo repository.ProfileRepository,
	postRepo repository.PostRepository,
) *UserService {
	return &UserService{
		userRepo:    userRepo,
		profileRepo: profileRepo,
		postRepo:    postRepo,
	}
}

// SignupInput carries the signup form fields.
type SignupInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

// Signup validates the input and creates a new credentialed identity. A
// mismatched confirmation or a taken username/email leaves the store
// untouched.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if in.Password != in.ConfirmPassword {
		return nil, models.NewValidationError("passwords are different")
	}

	existing, err := s.userRepo.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("username is already taken")
	}
	existing, err = s.userRepo.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("email is already registered")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username: in.Username,
		Email:    in.Email,
		Password: string(hashed),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// The pre-checks race with concurrent signups; the unique index is
		// the real arbiter.
		if isUniqueViolation(err) {
			observability.AuthAttemptsTotal.WithLabelValues("signup", "conflict").Inc()
			return nil, models.NewConflictError("username or email is already taken")
		}
		return nil, err
	}

	observability.AuthAttemptsTotal.WithLabelValues("signup", "success").Inc()
	return user, nil
}

// Authenticate verifies a username/password pair and returns the identity.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		observability.AuthAttemptsTotal.WithLabelValues("login", "failure").Inc()
		return nil, models.NewUnauthorizedError("Invalid username or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		observability.AuthAttemptsTotal.WithLabelValues("login", "failure").Inc()
		return nil, models.NewUnauthorizedError("Invalid username or password")
	}

	observability.AuthAttemptsTotal.WithLabelValues("login", "success").Inc()
	return user, nil
}

// ProfilePage aggregates everything the profile view renders.
type ProfilePage struct {
	User *models.User
	// Profile is created on first view if it does not exist yet.
	Profile *models.Profile
	// Created reports whether this request created the profile.
	Created    bool
	TotalPosts int64
	TotalLikes int64
}

// GetProfilePage fetches (and lazily creates) the user's profile along with
// their authored-post and received-like totals.
func (s *UserService) GetProfilePage(ctx context.Context, userID uint) (*ProfilePage, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile, created, err := s.profileRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	totalPosts, err := s.postRepo.Count(ctx, repository.PostFilter{AuthorID: &userID})
	if err != nil {
		return nil, err
	}
	totalLikes, err := s.postRepo.LikesReceived(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &ProfilePage{
		User:       user,
		Profile:    profile,
		Created:    created,
		TotalPosts: totalPosts,
		TotalLikes: totalLikes,
	}, nil
}

// UpdateProfileInput carries the combined user+profile edit form.
// AvatarProvided distinguishes "no new avatar uploaded" from "clear it".
type UpdateProfileInput struct {
	UserID         uint
	FirstName      string
	LastName       string
	Email          string
	Bio            string
	AvatarURL      string
	AvatarProvided bool
}

// UpdateProfile validates the user and profile sub-forms together and commits
// both in one transaction. If either sub-form is invalid, neither is saved.
func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) error {
	if err := validation.ValidateEmail(in.Email); err != nil {
		return models.NewValidationError(err.Error())
	}
	if err := validation.ValidateBio(in.Bio); err != nil {
		return models.NewValidationError(err.Error())
	}

	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return err
	}
	profile, _, err := s.profileRepo.GetOrCreate(ctx, in.UserID)
	if err != nil {
		return err
	}

	user.FirstName = in.FirstName
	user.LastName = in.LastName
	user.Email = in.Email
	profile.Bio = in.Bio
	if in.AvatarProvided {
		profile.AvatarURL = in.AvatarURL
	}

	if err := s.userRepo.UpdateWithProfile(ctx, user, profile); err != nil {
		if isUniqueViolation(err) {
			return models.NewConflictError("email is already registered")
		}
		return err
	}
	return nil
}

// DeleteUser removes the user and everything they own.
func (s *UserService) DeleteUser(ctx context.Context, userID uint) error {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return err
	}
	return s.userRepo.Delete(ctx, userID)
}

// isUniqueViolation reports whether err is a unique-constraint failure from
// PostgreSQL (SQLSTATE 23505) or from the SQLite store used in tests.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
