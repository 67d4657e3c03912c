package middleware

import (
	"github.com/gofiber/fiber/v2"

	"filedrop/internal/auth"
)

const (
	// SessionCookieName is the cookie carrying the signed session token.
	SessionCookieName = "session"
	// SessionUserLocalKey is the locals key holding the authenticated user ID.
	SessionUserLocalKey = "session_user_id"
)

// OptionalSession populates the session user locals when a valid session
// cookie is present, without rejecting anonymous requests. Uploads use it to
// associate files with logged-in users.
func OptionalSession(sessions *auth.SessionManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token := c.Cookies(SessionCookieName); token != "" {
			if claims, err := sessions.Verify(token); err == nil {
				c.Locals(SessionUserLocalKey, claims.Subject)
			}
		}
		return c.Next()
	}
}

// RequireSession guards a route group behind a valid session cookie.
// On success the user ID is stored in context locals under
// SessionUserLocalKey; otherwise the request is rejected with 401.
func RequireSession(sessions *auth.SessionManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(SessionCookieName)
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "session required")
		}
		claims, err := sessions.Verify(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid session")
		}
		c.Locals(SessionUserLocalKey, claims.Subject)
		return c.Next()
	}
}
