// Package session implements cookie-based sessions and one-shot flash
// messages for the server-rendered UI. A session is an HS256-signed JWT
// carried in an HttpOnly cookie; nothing is stored server-side, so any
// handler can resolve the acting identity from the request alone.
package session

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// CookieName is the session cookie.
	CookieName = "quill_session"
	// Lifetime is how long a session stays valid.
	Lifetime = 14 * 24 * time.Hour

	issuer = "quill"
)

// Manager signs and verifies session cookies.
type Manager struct {
	secret []byte
}

// NewManager returns a Manager signing with the given secret.
func NewManager(secret string) *Manager {
	return &Manager{secret: []byte(secret)}
}

// Create establishes a session for the given user on the response.
func (m *Manager) Create(c *fiber.Ctx, userID uint) error {
	if len(m.secret) == 0 {
		return fmt.Errorf("session secret not configured")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"iss": issuer,
		"exp": now.Add(Lifetime).Unix(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"jti": uuid.NewString(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  now.Add(Lifetime),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return nil
}

// Clear removes the session cookie.
func (m *Manager) Clear(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// UserID verifies the session cookie and returns the authenticated user ID.
// The second return value is false for missing, malformed or expired sessions.
func (m *Manager) UserID(c *fiber.Ctx) (uint, bool) {
	raw := c.Cookies(CookieName)
	if raw == "" {
		return 0, false
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil || !token.Valid {
		return 0, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, false
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
