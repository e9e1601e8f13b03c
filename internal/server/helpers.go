package server

import (
	"errors"
	"mime/multipart"
	"path/filepath"
	"strings"

	"quill/internal/gate"
	"quill/internal/models"
	"quill/internal/observability"
	"quill/internal/session"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

const viewLayout = "layouts/main"

// SessionMiddleware resolves the session cookie into the acting identity and
// stores it in Fiber locals for downstream handlers. Anonymous requests pass
// through with no locals set.
func (s *Server) SessionMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		uid, ok := s.sessions.UserID(c)
		if !ok {
			return c.Next()
		}

		user, err := s.userRepo.GetByID(c.Context(), uid)
		if err != nil || user == nil {
			// Stale cookie for a deleted account
			s.sessions.Clear(c)
			return c.Next()
		}

		c.Locals("userID", user.ID)
		c.Locals("currentUser", user)
		c.SetUserContext(observability.WithUserID(c.UserContext(), user.ID))

		return c.Next()
	}
}

// RequireAuth redirects anonymous requests to the login page.
func (s *Server) RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if s.currentUser(c) == nil {
			session.AddFlash(c, session.FlashWarning, gate.MsgLoginRequired)
			return c.Redirect("/login", fiber.StatusSeeOther)
		}
		return c.Next()
	}
}

// currentUser returns the signed-in user, or nil for anonymous requests.
func (s *Server) currentUser(c *fiber.Ctx) *models.User {
	if u, ok := c.Locals("currentUser").(*models.User); ok {
		return u
	}
	return nil
}

// currentUserID returns the signed-in user's ID, or 0 for anonymous requests.
func (s *Server) currentUserID(c *fiber.Ctx) uint {
	if id, ok := c.Locals("userID").(uint); ok {
		return id
	}
	return 0
}

// render draws the named view inside the main layout, injecting the acting
// identity and any queued flash messages.
func (s *Server) render(c *fiber.Ctx, view string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	data["CurrentUser"] = s.currentUser(c)
	data["Flashes"] = session.PopFlashes(c)
	// The layout's search box renders Query on every page.
	if _, ok := data["Query"]; !ok {
		data["Query"] = ""
	}
	return c.Render(view, data, viewLayout)
}

// renderNotFound draws the 404 page.
func (s *Server) renderNotFound(c *fiber.Ctx) error {
	c.Status(fiber.StatusNotFound)
	return s.render(c, "not_found", fiber.Map{
		"Title": "Page not found",
	})
}

// renderServerError draws a plain 500 response. It runs inside Fiber's
// ErrorHandler, where rendering may itself be what failed, so it falls back
// to text rather than a template.
func (s *Server) renderServerError(c *fiber.Ctx, err error) error {
	observability.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err)
	return c.Status(fiber.StatusInternalServerError).SendString("Something went wrong. Please try again later.")
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 404 response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = s.renderNotFound(c)
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// saveUpload stores an uploaded image under the media directory with a
// generated name and returns its public URL path. Returns "" when the file
// extension is not an allowed image type.
func (s *Server) saveUpload(c *fiber.Ctx, file *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
	default:
		return "", models.NewValidationError("Unsupported image type")
	}

	name := uuid.NewString() + ext
	if err := c.SaveFile(file, filepath.Join(s.config.MediaDir, name)); err != nil {
		return "", err
	}
	return "/media/" + name, nil
}
