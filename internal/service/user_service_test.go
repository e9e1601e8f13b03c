package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"quill/internal/models"
	"quill/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	createFn            func(context.Context, *models.User) error
	getByIDFn           func(context.Context, uint) (*models.User, error)
	getByUsernameFn     func(context.Context, string) (*models.User, error)
	getByEmailFn        func(context.Context, string) (*models.User, error)
	updateFn            func(context.Context, *models.User) error
	updateWithProfileFn func(context.Context, *models.User, *models.Profile) error
	deleteFn            func(context.Context, uint) error
	countFn             func(context.Context) (int64, error)
}

func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) Update(ctx context.Context, user *models.User) error {
	return s.updateFn(ctx, user)
}
func (s *userRepoStub) UpdateWithProfile(ctx context.Context, user *models.User, profile *models.Profile) error {
	return s.updateWithProfileFn(ctx, user, profile)
}
func (s *userRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *userRepoStub) Count(ctx context.Context) (int64, error) {
	return s.countFn(ctx)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		createFn:            func(_ context.Context, _ *models.User) error { return nil },
		getByIDFn:           func(_ context.Context, id uint) (*models.User, error) { return &models.User{ID: id}, nil },
		getByUsernameFn:     func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		getByEmailFn:        func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		updateFn:            func(_ context.Context, _ *models.User) error { return nil },
		updateWithProfileFn: func(_ context.Context, _ *models.User, _ *models.Profile) error { return nil },
		deleteFn:            func(_ context.Context, _ uint) error { return nil },
		countFn:             func(_ context.Context) (int64, error) { return 0, nil },
	}
}

// profileRepoStub is a stub for repository.ProfileRepository.
type profileRepoStub struct {
	getOrCreateFn func(context.Context, uint) (*models.Profile, bool, error)
	getByUserIDFn func(context.Context, uint) (*models.Profile, error)
	updateFn      func(context.Context, *models.Profile) error
}

func (s *profileRepoStub) GetOrCreate(ctx context.Context, userID uint) (*models.Profile, bool, error) {
	return s.getOrCreateFn(ctx, userID)
}
func (s *profileRepoStub) GetByUserID(ctx context.Context, userID uint) (*models.Profile, error) {
	return s.getByUserIDFn(ctx, userID)
}
func (s *profileRepoStub) Update(ctx context.Context, profile *models.Profile) error {
	return s.updateFn(ctx, profile)
}

func noopProfileRepo() *profileRepoStub {
	return &profileRepoStub{
		getOrCreateFn: func(_ context.Context, userID uint) (*models.Profile, bool, error) {
			return &models.Profile{UserID: userID, AvatarURL: models.DefaultAvatar}, false, nil
		},
		getByUserIDFn: func(_ context.Context, userID uint) (*models.Profile, error) {
			return &models.Profile{UserID: userID}, nil
		},
		updateFn: func(_ context.Context, _ *models.Profile) error { return nil },
	}
}

func newUserService(ur *userRepoStub, pr *profileRepoStub, postRepo *postRepoStub) *UserService {
	if ur == nil {
		ur = noopUserRepo()
	}
	if pr == nil {
		pr = noopProfileRepo()
	}
	if postRepo == nil {
		postRepo = noopPostRepo()
	}
	return NewUserService(ur, pr, postRepo)
}

func TestUserService_Signup_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input SignupInput
	}{
		{"username too short", SignupInput{Username: "ab", Email: "a@b.co", Password: "password1", ConfirmPassword: "password1"}},
		{"invalid email", SignupInput{Username: "alice", Email: "nope", Password: "password1", ConfirmPassword: "password1"}},
		{"weak password", SignupInput{Username: "alice", Email: "a@b.co", Password: "letters", ConfirmPassword: "letters"}},
		{"mismatched confirmation", SignupInput{Username: "alice", Email: "a@b.co", Password: "password1", ConfirmPassword: "password2"}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			created := false
			ur := noopUserRepo()
			ur.createFn = func(_ context.Context, _ *models.User) error {
				created = true
				return nil
			}
			svc := newUserService(ur, nil, nil)

			_, err := svc.Signup(context.Background(), tc.input)
			assertAppErrorCode(t, err, "VALIDATION_ERROR")
			assert.False(t, created, "invalid signup must leave the store untouched")
		})
	}
}

func TestUserService_Signup_MismatchMessage(t *testing.T) {
	t.Parallel()

	svc := newUserService(nil, nil, nil)
	_, err := svc.Signup(context.Background(), SignupInput{
		Username: "alice", Email: "a@b.co",
		Password: "password1", ConfirmPassword: "password2",
	})
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "passwords are different", appErr.Message)
}

func TestUserService_Signup_Conflicts(t *testing.T) {
	t.Parallel()

	t.Run("taken username", func(t *testing.T) {
		t.Parallel()
		ur := noopUserRepo()
		ur.getByUsernameFn = func(_ context.Context, _ string) (*models.User, error) {
			return &models.User{ID: 1, Username: "alice"}, nil
		}
		svc := newUserService(ur, nil, nil)
		_, err := svc.Signup(context.Background(), SignupInput{
			Username: "alice", Email: "new@b.co", Password: "password1", ConfirmPassword: "password1",
		})
		assertAppErrorCode(t, err, "CONFLICT")
	})

	t.Run("taken email", func(t *testing.T) {
		t.Parallel()
		ur := noopUserRepo()
		ur.getByEmailFn = func(_ context.Context, _ string) (*models.User, error) {
			return &models.User{ID: 1, Email: "a@b.co"}, nil
		}
		svc := newUserService(ur, nil, nil)
		_, err := svc.Signup(context.Background(), SignupInput{
			Username: "newuser", Email: "a@b.co", Password: "password1", ConfirmPassword: "password1",
		})
		assertAppErrorCode(t, err, "CONFLICT")
	})

	t.Run("unique index race maps to conflict", func(t *testing.T) {
		t.Parallel()
		ur := noopUserRepo()
		ur.createFn = func(_ context.Context, _ *models.User) error {
			return errors.New("UNIQUE constraint failed: users.username")
		}
		svc := newUserService(ur, nil, nil)
		_, err := svc.Signup(context.Background(), SignupInput{
			Username: "alice", Email: "a@b.co", Password: "password1", ConfirmPassword: "password1",
		})
		assertAppErrorCode(t, err, "CONFLICT")
	})
}

func TestUserService_Signup_HashesPassword(t *testing.T) {
	t.Parallel()

	var saved *models.User
	ur := noopUserRepo()
	ur.createFn = func(_ context.Context, user *models.User) error {
		user.ID = 7
		saved = user
		return nil
	}
	svc := newUserService(ur, nil, nil)

	user, err := svc.Signup(context.Background(), SignupInput{
		Username: "alice", Email: "a@b.co", Password: "password1", ConfirmPassword: "password1",
	})
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.NotEqual(t, "password1", saved.Password, "password must never be stored in clear")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(saved.Password), []byte("password1")))
	assert.Equal(t, uint(7), user.ID)
}

func TestUserService_Authenticate(t *testing.T) {
	t.Parallel()

	hash, err := bcrypt.GenerateFromPassword([]byte("password1"), bcrypt.MinCost)
	require.NoError(t, err)
	stored := &models.User{ID: 1, Username: "alice", Password: string(hash)}

	lookup := func(_ context.Context, username string) (*models.User, error) {
		if username == "alice" {
			return stored, nil
		}
		return nil, nil
	}

	t.Run("valid credentials", func(t *testing.T) {
		t.Parallel()
		ur := noopUserRepo()
		ur.getByUsernameFn = lookup
		svc := newUserService(ur, nil, nil)
		user, err := svc.Authenticate(context.Background(), "alice", "password1")
		require.NoError(t, err)
		assert.Equal(t, uint(1), user.ID)
	})

	t.Run("unknown username", func(t *testing.T) {
		t.Parallel()
		ur := noopUserRepo()
		ur.getByUsernameFn = lookup
		svc := newUserService(ur, nil, nil)
		_, err := svc.Authenticate(context.Background(), "nobody", "password1")
		assertAppErrorCode(t, err, "UNAUTHORIZED")
	})

	t.Run("wrong password", func(t *testing.T) {
		t.Parallel()
		ur := noopUserRepo()
		ur.getByUsernameFn = lookup
		svc := newUserService(ur, nil, nil)
		_, err := svc.Authenticate(context.Background(), "alice", "wrongpass1")
		assertAppErrorCode(t, err, "UNAUTHORIZED")
	})
}

func TestUserService_GetProfilePage_LazyCreation(t *testing.T) {
	t.Parallel()

	pr := noopProfileRepo()
	pr.getOrCreateFn = func(_ context.Context, userID uint) (*models.Profile, bool, error) {
		return &models.Profile{UserID: userID, AvatarURL: models.DefaultAvatar}, true, nil
	}
	postRepo := noopPostRepo()
	postRepo.countFn = func(_ context.Context, filter repository.PostFilter) (int64, error) {
		require.NotNil(t, filter.AuthorID)
		return 4, nil
	}
	postRepo.likesReceivedFn = func(_ context.Context, _ uint) (int64, error) { return 9, nil }

	svc := newUserService(nil, pr, postRepo)
	page, err := svc.GetProfilePage(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, page.Created)
	assert.Equal(t, models.DefaultAvatar, page.Profile.AvatarURL)
	assert.Equal(t, int64(4), page.TotalPosts)
	assert.Equal(t, int64(9), page.TotalLikes)
}

func TestUserService_UpdateProfile_InvalidInputSavesNothing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input UpdateProfileInput
	}{
		{"invalid email", UpdateProfileInput{UserID: 1, Email: "nope", Bio: "fine"}},
		{"bio too long", UpdateProfileInput{UserID: 1, Email: "a@b.co", Bio: strings.Repeat("x", 2001)}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			saved := false
			ur := noopUserRepo()
			ur.updateWithProfileFn = func(_ context.Context, _ *models.User, _ *models.Profile) error {
				saved = true
				return nil
			}
			svc := newUserService(ur, nil, nil)

			err := svc.UpdateProfile(context.Background(), tc.input)
			assertAppErrorCode(t, err, "VALIDATION_ERROR")
			assert.False(t, saved, "a rejected form must save neither account nor profile fields")
		})
	}
}

func TestUserService_UpdateProfile_AvatarHandling(t *testing.T) {
	t.Parallel()

	t.Run("no upload preserves avatar", func(t *testing.T) {
		t.Parallel()
		pr := noopProfileRepo()
		pr.getOrCreateFn = func(_ context.Context, userID uint) (*models.Profile, bool, error) {
			return &models.Profile{UserID: userID, AvatarURL: "/media/old.png"}, false, nil
		}
		var savedProfile *models.Profile
		ur := noopUserRepo()
		ur.updateWithProfileFn = func(_ context.Context, _ *models.User, profile *models.Profile) error {
			savedProfile = profile
			return nil
		}
		svc := newUserService(ur, pr, nil)

		err := svc.UpdateProfile(context.Background(), UpdateProfileInput{
			UserID: 1, Email: "a@b.co", Bio: "bio",
		})
		require.NoError(t, err)
		require.NotNil(t, savedProfile)
		assert.Equal(t, "/media/old.png", savedProfile.AvatarURL)
		assert.Equal(t, "bio", savedProfile.Bio)
	})

	t.Run("new upload replaces avatar", func(t *testing.T) {
		t.Parallel()
		var savedProfile *models.Profile
		ur := noopUserRepo()
		ur.updateWithProfileFn = func(_ context.Context, _ *models.User, profile *models.Profile) error {
			savedProfile = profile
			return nil
		}
		svc := newUserService(ur, nil, nil)

		err := svc.UpdateProfile(context.Background(), UpdateProfileInput{
			UserID: 1, Email: "a@b.co", AvatarURL: "/media/new.png", AvatarProvided: true,
		})
		require.NoError(t, err)
		require.NotNil(t, savedProfile)
		assert.Equal(t, "/media/new.png", savedProfile.AvatarURL)
	})
}

func TestUserService_UpdateProfile_EmailConflict(t *testing.T) {
	t.Parallel()

	ur := noopUserRepo()
	ur.updateWithProfileFn = func(_ context.Context, _ *models.User, _ *models.Profile) error {
		return errors.New("UNIQUE constraint failed: users.email")
	}
	svc := newUserService(ur, nil, nil)

	err := svc.UpdateProfile(context.Background(), UpdateProfileInput{
		UserID: 1, Email: "taken@b.co",
	})
	assertAppErrorCode(t, err, "CONFLICT")
}

func TestUserService_DeleteUser_UnknownUser(t *testing.T) {
	t.Parallel()

	ur := noopUserRepo()
	ur.getByIDFn = func(_ context.Context, id uint) (*models.User, error) {
		return nil, models.NewNotFoundError("User", id)
	}
	svc := newUserService(ur, nil, nil)

	err := svc.DeleteUser(context.Background(), 404)
	assertAppErrorCode(t, err, "NOT_FOUND")
}
