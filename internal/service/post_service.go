// Package service implements the application's business rules on top of the
// repository layer. Handlers stay thin: they parse requests, consult the
// authorization gate, and call into services.
package service

import (
	"context"

	"quill/internal/models"
	"quill/internal/observability"
	"quill/internal/repository"
	"quill/internal/validation"

	"github.com/gosimple/slug"
)

// PageSize is the fixed number of posts per listing page.
const PageSize = 5

// PostService coordinates post reads and writes.
type PostService struct {
	postRepo     repository.PostRepository
	categoryRepo repository.CategoryRepository
}

// NewPostService creates a new PostService.
func NewPostService(postRepo repository.PostRepository, categoryRepo repository.CategoryRepository) *PostService {
	return &PostService{
		postRepo:     postRepo,
		categoryRepo: categoryRepo,
	}
}

// CreatePostInput carries the fields of a post creation submit.
type CreatePostInput struct {
	UserID     uint
	Title      string
	Content    string
	ImageURL   string
	CategoryID *uint
}

// UpdatePostInput carries the fields of a post edit submit. ImageProvided
// distinguishes "no new image uploaded" from "clear the image": an edit
// without an upload preserves the existing image.
type UpdatePostInput struct {
	PostID        uint
	Title         string
	Content       string
	ImageURL      string
	ImageProvided bool
	CategoryID    *uint
}

// ListPostsInput selects and pages a post listing.
type ListPostsInput struct {
	// Query is the free-text search; empty means all posts.
	Query string
	// Page is 1-based and clamped into the valid range.
	Page          int
	CategoryID    *uint
	AuthorID      *uint
	CurrentUserID uint
}

// PostPage is one page of an ordered post listing.
type PostPage struct {
	Posts      []*models.Post
	Page       int
	TotalPages int
	TotalCount int64
	HasPrev    bool
	HasNext    bool
}

// ListPosts returns one page of posts, newest first, optionally filtered by a
// case-insensitive title/content search and by category. Out-of-range page
// numbers clamp to the first or last page instead of failing; an empty result
// set still yields page 1 of 1.
func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) (*PostPage, error) {
	if in.CategoryID != nil {
		if _, err := s.categoryRepo.GetByID(ctx, *in.CategoryID); err != nil {
			return nil, err
		}
	}

	filter := repository.PostFilter{
		Query:      in.Query,
		CategoryID: in.CategoryID,
		AuthorID:   in.AuthorID,
	}

	total, err := s.postRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	totalPages := int((total + PageSize - 1) / PageSize)
	if totalPages < 1 {
		totalPages = 1
	}

	page := in.Page
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	posts, err := s.postRepo.List(ctx, filter, PageSize, (page-1)*PageSize, in.CurrentUserID)
	if err != nil {
		return nil, err
	}

	return &PostPage{
		Posts:      posts,
		Page:       page,
		TotalPages: totalPages,
		TotalCount: total,
		HasPrev:    page > 1,
		HasNext:    page < totalPages,
	}, nil
}

// GetPost fetches a single post with its computed counts and liked flag.
func (s *PostService) GetPost(ctx context.Context, id, currentUserID uint) (*models.Post, error) {
	return s.postRepo.GetByID(ctx, id, currentUserID)
}

// CreatePost validates and persists a new post owned by in.UserID. The slug
// is derived from the title here, once; later edits never touch it.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if err := validatePostFields(in.Title, in.Content); err != nil {
		return nil, err
	}
	if in.CategoryID != nil {
		if _, err := s.categoryRepo.GetByID(ctx, *in.CategoryID); err != nil {
			return nil, err
		}
	}

	post := &models.Post{
		Title:      in.Title,
		Content:    in.Content,
		Slug:       slug.Make(in.Title),
		ImageURL:   in.ImageURL,
		UserID:     in.UserID,
		CategoryID: in.CategoryID,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}

	observability.PostsCreatedTotal.Inc()

	return s.postRepo.GetByID(ctx, post.ID, in.UserID)
}

// UpdatePost applies an edit to an existing post. Author, creation time and
// slug are left untouched; the image is replaced only when a new one was
// uploaded. Ownership must already have been checked by the caller's gate.
func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID, 0)
	if err != nil {
		return nil, err
	}

	if err := validatePostFields(in.Title, in.Content); err != nil {
		return nil, err
	}
	if in.CategoryID != nil {
		if _, err := s.categoryRepo.GetByID(ctx, *in.CategoryID); err != nil {
			return nil, err
		}
	}

	post.Title = in.Title
	post.Content = in.Content
	post.CategoryID = in.CategoryID
	if in.ImageProvided {
		post.ImageURL = in.ImageURL
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, post.ID, 0)
}

// DeletePost removes a post and its comments and likes. Ownership must
// already have been checked by the caller's gate.
func (s *PostService) DeletePost(ctx context.Context, postID uint) error {
	if _, err := s.postRepo.GetByID(ctx, postID, 0); err != nil {
		return err
	}
	return s.postRepo.Delete(ctx, postID)
}

// ToggleLike flips userID's membership in the post's liked set and reports
// the resulting state. Toggling twice restores the original state.
func (s *PostService) ToggleLike(ctx context.Context, userID, postID uint) (bool, error) {
	if _, err := s.postRepo.GetByID(ctx, postID, 0); err != nil {
		return false, err
	}

	liked, err := s.postRepo.IsLiked(ctx, userID, postID)
	if err != nil {
		return false, err
	}

	if liked {
		if err := s.postRepo.Unlike(ctx, userID, postID); err != nil {
			return false, err
		}
		observability.LikeTogglesTotal.WithLabelValues("unliked").Inc()
		return false, nil
	}

	if err := s.postRepo.Like(ctx, userID, postID); err != nil {
		return false, err
	}
	observability.LikeTogglesTotal.WithLabelValues("liked").Inc()
	return true, nil
}

func validatePostFields(title, content string) error {
	if err := validation.ValidatePostTitle(title); err != nil {
		return models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePostContent(content); err != nil {
		return models.NewValidationError(err.Error())
	}
	return nil
}
