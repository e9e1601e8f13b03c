package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/models"
	"quill/internal/session"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestServer builds a full application backed by in-memory SQLite, with
// the real template set and no Redis.
func newTestServer(t *testing.T) (*Server, *fiber.App, *gorm.DB) {
	t.Helper()
	t.Setenv("APP_ENV", "test")

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))

	cfg := &config.Config{
		Env:           "test",
		SessionSecret: "test-session-secret",
		TemplateDir:   "../../templates",
		MediaDir:      t.TempDir(),
	}

	srv, err := NewServerWithDeps(cfg, db, nil)
	require.NoError(t, err)
	return srv, srv.BuildApp(), db
}

func seedUser(t *testing.T, db *gorm.DB, username, password string, staff bool) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: string(hash),
		IsStaff:  staff,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedPost(t *testing.T, db *gorm.DB, user *models.User, title string, createdAt time.Time) *models.Post {
	t.Helper()

	post := &models.Post{
		Title:     title,
		Content:   "content of " + title,
		Slug:      strings.ToLower(strings.ReplaceAll(title, " ", "-")),
		UserID:    user.ID,
		CreatedAt: createdAt,
	}
	require.NoError(t, db.Create(post).Error)
	return post
}

// testTime yields deterministic, strictly ordered creation times.
func testTime(hour int) time.Time {
	return time.Date(2026, 3, 1, hour, 0, 0, 0, time.UTC)
}

func doGet(t *testing.T, app *fiber.App, path string, cookies ...*http.Cookie) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func postForm(t *testing.T, app *fiber.App, path string, form url.Values, cookies ...*http.Cookie) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return string(body)
}

// loginAs performs a real login request and returns the session cookie.
func loginAs(t *testing.T, app *fiber.App, username, password string) *http.Cookie {
	t.Helper()

	resp := postForm(t, app, "/login", url.Values{
		"username": {username},
		"password": {password},
	})
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode, "login should succeed")

	for _, ck := range resp.Cookies() {
		if ck.Name == session.CookieName && ck.Value != "" {
			return ck
		}
	}
	t.Fatal("login response carried no session cookie")
	return nil
}
