package service

import (
	"context"

	"quill/internal/models"
	"quill/internal/observability"
	"quill/internal/repository"
	"quill/internal/validation"
)

// CommentService coordinates comment reads and writes.
type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
}

// NewCommentService creates a new CommentService.
func NewCommentService(commentRepo repository.CommentRepository, postRepo repository.PostRepository) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
	}
}

// CreateCommentInput carries a comment submit.
type CreateCommentInput struct {
	UserID  uint
	PostID  uint
	Content string
}

// AddComment appends a comment owned by in.UserID to the post.
func (s *CommentService) AddComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	if _, err := s.postRepo.GetByID(ctx, in.PostID, 0); err != nil {
		return nil, err
	}

	if err := validation.ValidateCommentContent(in.Content); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	comment := &models.Comment{
		Content: in.Content,
		UserID:  in.UserID,
		PostID:  in.PostID,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	observability.CommentsCreatedTotal.Inc()

	return s.commentRepo.GetByID(ctx, comment.ID)
}

// ListForPost returns a post's comments oldest first.
func (s *CommentService) ListForPost(ctx context.Context, postID uint) ([]*models.Comment, error) {
	return s.commentRepo.ListByPost(ctx, postID)
}
