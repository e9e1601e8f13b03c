package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"gorm.io/gorm"

	"quill/internal/models"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumPosts    int
	ShouldClean bool
	SkipBcrypt  bool
	DryRun      bool
	// MaxDays bounds how far back generated post timestamps spread.
	MaxDays int
}

var categoryNames = []string{
	"Technology", "Travel", "Food", "Music", "Books",
	"Science", "Programming", "Art", "Fitness", "Photography",
}

// Seed populates the database with test data
func Seed(db *gorm.DB, opts Options) error {
	log.Printf("Starting database seeding with %d users and %d posts...", opts.NumUsers, opts.NumPosts)

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			log.Println("Warning: could not clear all existing data, continuing anyway...")
		}
	}

	factory := NewFactory(db, opts)

	users, err := createUsers(factory, opts.NumUsers)
	if err != nil {
		return fmt.Errorf("failed to create users: %w", err)
	}
	log.Printf("%d users created", len(users))

	categories, err := createCategories(factory)
	if err != nil {
		return fmt.Errorf("failed to create categories: %w", err)
	}
	log.Printf("%d categories available", len(categories))

	posts, err := createPosts(factory, users, categories, opts.NumPosts)
	if err != nil {
		return fmt.Errorf("failed to create posts: %w", err)
	}
	log.Printf("%d posts created", len(posts))

	if err := createEngagement(factory, users, posts); err != nil {
		return fmt.Errorf("failed to create comments and likes: %w", err)
	}

	log.Println("Database seeding completed successfully")
	return nil
}

func clearData(db *gorm.DB) error {
	log.Println("Clearing existing data...")
	sql := `TRUNCATE TABLE comments, likes, posts, profiles, categories, users RESTART IDENTITY CASCADE;`
	return db.Exec(sql).Error
}

func createUsers(factory *Factory, count int) ([]*models.User, error) {
	users := make([]*models.User, 0, count)

	// One predictable staff account for the dashboard.
	staff, err := factory.CreateUser(func(u *models.User) {
		u.Username = "editor"
		u.Email = "editor@example.com"
		u.IsStaff = true
	})
	if err != nil && !isDuplicate(err) {
		return nil, err
	}
	if staff != nil {
		users = append(users, staff)
	}

	for i := 0; i < count; i++ {
		user, err := factory.CreateUser()
		if err != nil {
			if isDuplicate(err) {
				continue
			}
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func createCategories(factory *Factory) ([]*models.Category, error) {
	categories := make([]*models.Category, 0, len(categoryNames))
	for _, name := range categoryNames {
		category, err := factory.CreateCategory(name)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, nil
}

func createPosts(factory *Factory, users []*models.User, categories []*models.Category, count int) ([]*models.Post, error) {
	if len(users) == 0 {
		return nil, nil
	}

	//nolint:gosec // weak randomness is fine for seeding
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	posts := make([]*models.Post, 0, count)
	for i := 0; i < count; i++ {
		author := users[r.Intn(len(users))]
		var category *models.Category
		// roughly a third of posts are uncategorized
		if len(categories) > 0 && r.Intn(3) != 0 {
			category = categories[r.Intn(len(categories))]
		}
		posts = append(posts, factory.BuildPost(author, category))
	}

	if err := factory.CreatePostsBatch(posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func createEngagement(factory *Factory, users []*models.User, posts []*models.Post) error {
	if len(users) == 0 || len(posts) == 0 {
		return nil
	}

	//nolint:gosec // weak randomness is fine for seeding
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	for _, post := range posts {
		for i := 0; i < r.Intn(4); i++ {
			commenter := users[r.Intn(len(users))]
			if _, err := factory.CreateComment(commenter, post); err != nil {
				return err
			}
		}
		for i := 0; i < r.Intn(6); i++ {
			liker := users[r.Intn(len(users))]
			if err := factory.CreateLike(liker, post); err != nil {
				return err
			}
		}
	}
	return nil
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}
