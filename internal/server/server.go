// Package server contains the HTTP handlers for the server-rendered blog UI.
package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"quill/internal/cache"
	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/gate"
	"quill/internal/middleware"
	"quill/internal/repository"
	"quill/internal/service"
	"quill/internal/session"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/template/html/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config           *config.Config
	db               *gorm.DB
	redis            *redis.Client
	app              *fiber.App
	promMiddleware   *fiberprometheus.FiberPrometheus
	sessions         *session.Manager
	gate             *gate.Gate
	userRepo         repository.UserRepository
	postRepo         repository.PostRepository
	commentRepo      repository.CommentRepository
	categoryRepo     repository.CategoryRepository
	profileRepo      repository.ProfileRepository
	postService      *service.PostService
	commentService   *service.CommentService
	userService      *service.UserService
	dashboardService *service.DashboardService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)

	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	profileRepo := repository.NewProfileRepository(db)

	prom := middleware.InitMetrics("quill")

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: prom,
		sessions:       session.NewManager(cfg.SessionSecret),
		gate:           gate.New(),
		userRepo:       userRepo,
		postRepo:       postRepo,
		commentRepo:    commentRepo,
		categoryRepo:   categoryRepo,
		profileRepo:    profileRepo,
	}
	server.postService = service.NewPostService(postRepo, categoryRepo)
	server.commentService = service.NewCommentService(commentRepo, postRepo)
	server.userService = service.NewUserService(userRepo, profileRepo, postRepo)
	server.dashboardService = service.NewDashboardService(userRepo, postRepo, categoryRepo, commentRepo)

	return server, nil
}

// BuildApp constructs the Fiber application with views, middleware and routes.
// Tests use this directly; Start wraps it with listen/shutdown plumbing.
func (s *Server) BuildApp() *fiber.App {
	engine := html.New(s.config.TemplateDir, ".html")
	engine.Reload(s.config.Env == "development")
	engine.AddFunc("deref", func(p *uint) uint {
		if p == nil {
			return 0
		}
		return *p
	})

	app := fiber.New(fiber.Config{
		AppName: "Quill",
		Views:   engine,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return s.renderServerError(c, err)
		},
	})

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for log correlation
	app.Use(requestid.New())

	// Context middleware to propagate request ID and user ID
	app.Use(middleware.ContextMiddleware())

	// Distributed tracing, when enabled via config
	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Prometheus metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers. The UI is same-origin server-rendered HTML, so the
	// defaults are fine.
	app.Use(helmet.New(helmet.Config{
		ContentSecurityPolicy: "default-src 'self'; img-src 'self' data:; style-src 'self' 'unsafe-inline'",
	}))

	// Structured logging (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// Resolve the session cookie into the acting identity
	app.Use(s.SessionMiddleware())

	// Global rate limiting (120 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).SendString("Too many requests, please try again later.")
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Uploaded images
	app.Static("/media", s.config.MediaDir)

	// Listing and search
	app.Get("/", s.PostList)
	app.Post("/", s.PostList)
	app.Get("/post/list", s.PostList)
	app.Post("/post/list", s.PostList)

	// Auth
	app.Get("/signup", s.ShowSignup)
	app.Post("/signup", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	app.Get("/login", s.ShowLogin)
	app.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	app.Get("/logout", s.RequireAuth(), s.Logout)

	// Posts. /post/create must be registered before the /post/:id routes.
	app.Get("/post/create", s.RequireAuth(), s.ShowCreatePost)
	app.Post("/post/create", s.RequireAuth(), middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "create_post"), s.CreatePost)
	app.Get("/post/:id/edit", s.RequireAuth(), s.ShowEditPost)
	app.Post("/post/:id/edit", s.RequireAuth(), s.EditPost)
	app.Get("/post/:id/delete", s.RequireAuth(), s.ShowDeletePost)
	app.Post("/post/:id/delete", s.RequireAuth(), s.DeletePost)
	app.Get("/post/:id/like", s.RequireAuth(), s.LikePost)
	app.Post("/post/:id/like", s.RequireAuth(), s.LikePost)
	app.Get("/post/:id", s.RequireAuth(), s.PostDetail)
	app.Post("/post/:id", s.RequireAuth(), middleware.RateLimit(
		s.redis, 15, time.Minute, "create_comment"), s.AddComment)

	// Categories
	app.Get("/category/:id", s.RequireAuth(), s.CategoryView)

	// Current user pages
	app.Get("/user/profile", s.RequireAuth(), s.ProfileView)
	app.Get("/user/posts", s.RequireAuth(), s.MyPosts)
	app.Get("/user/profile/edit", s.RequireAuth(), s.ShowEditProfile)
	app.Post("/user/profile/edit", s.RequireAuth(), s.EditProfile)

	// Staff-only surfaces
	app.Get("/user/admin", s.ShowAdminLogin)
	app.Post("/user/admin", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "admin_login"), s.AdminLogin)
	app.Get("/user/admin/dashboard", s.RequireAuth(), s.AdminDashboard)

	// Everything else is a 404
	app.Use(func(c *fiber.Ctx) error {
		return s.renderNotFound(c)
	})
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		// The app degrades gracefully without Redis (rate limiting only)
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start starts the server
func (s *Server) Start() error {
	s.app = s.BuildApp()

	log.Printf("Server starting on port %s...", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
