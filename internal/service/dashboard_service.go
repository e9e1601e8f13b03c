package service

import (
	"context"

	"quill/internal/models"
	"quill/internal/repository"
)

// RecentPostCount is how many posts the dashboard shows.
const RecentPostCount = 5

// DashboardService aggregates the staff dashboard's read-only stats.
type DashboardService struct {
	userRepo     repository.UserRepository
	postRepo     repository.PostRepository
	categoryRepo repository.CategoryRepository
	commentRepo  repository.CommentRepository
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(
	userRepo repository.UserRepository,
	postRepo repository.PostRepository,
	categoryRepo repository.CategoryRepository,
	commentRepo repository.CommentRepository,
) *DashboardService {
	return &DashboardService{
		userRepo:     userRepo,
		postRepo:     postRepo,
		categoryRepo: categoryRepo,
		commentRepo:  commentRepo,
	}
}

// DashboardStats is the admin dashboard aggregate.
type DashboardStats struct {
	TotalUsers      int64
	TotalPosts      int64
	TotalCategories int64
	TotalComments   int64
	RecentPosts     []*models.Post
}

// Stats computes entity counts and the most recent posts, newest first.
func (s *DashboardService) Stats(ctx context.Context) (*DashboardStats, error) {
	users, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	posts, err := s.postRepo.Count(ctx, repository.PostFilter{})
	if err != nil {
		return nil, err
	}
	categories, err := s.categoryRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	comments, err := s.commentRepo.Count(ctx)
	if err != nil {
		return nil, err
	}

	recent, err := s.postRepo.List(ctx, repository.PostFilter{}, RecentPostCount, 0, 0)
	if err != nil {
		return nil, err
	}

	return &DashboardStats{
		TotalUsers:      users,
		TotalPosts:      posts,
		TotalCategories: categories,
		TotalComments:   comments,
		RecentPosts:     recent,
	}, nil
}
