package session

import (
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Flash levels mirror the message tags rendered by the templates.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashWarning = "warning"
)

const flashCookie = "quill_flash"

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Level   string
	Message string
}

// AddFlash queues a message for the next render. Messages survive exactly one
// redirect: PopFlashes clears the cookie as it reads.
func AddFlash(c *fiber.Ctx, level, message string) {
	existing := c.Cookies(flashCookie)
	encoded := encodeFlash(level, message)
	if existing != "" {
		encoded = existing + "|" + encoded
	}
	c.Cookie(&fiber.Cookie{
		Name:     flashCookie,
		Value:    encoded,
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// PopFlashes returns all queued messages and clears them.
func PopFlashes(c *fiber.Ctx) []Flash {
	raw := c.Cookies(flashCookie)
	if raw == "" {
		return nil
	}

	c.Cookie(&fiber.Cookie{
		Name:     flashCookie,
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	var flashes []Flash
	for _, part := range strings.Split(raw, "|") {
		if f, ok := decodeFlash(part); ok {
			flashes = append(flashes, f)
		}
	}
	return flashes
}

func encodeFlash(level, message string) string {
	payload := url.Values{}
	payload.Set("l", level)
	payload.Set("m", message)
	return base64.RawURLEncoding.EncodeToString([]byte(payload.Encode()))
}

func decodeFlash(encoded string) (Flash, bool) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Flash{}, false
	}
	values, err := url.ParseQuery(string(raw))
	if err != nil {
		return Flash{}, false
	}
	level := values.Get("l")
	message := values.Get("m")
	if level == "" || message == "" {
		return Flash{}, false
	}
	return Flash{Level: level, Message: message}, true
}
