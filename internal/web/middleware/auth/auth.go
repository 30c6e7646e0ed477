// Package auth provides session and permission middleware for the JSON API.
package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/dirgate/dirgate/internal/authz"
	"github.com/dirgate/dirgate/internal/db/models"
	"github.com/dirgate/dirgate/internal/web/handler"
	"github.com/dirgate/dirgate/internal/web/session"
)

// Require rejects requests without a valid login session and stores the
// session's user in fiber.Locals for downstream handlers.
func Require(c *fiber.Ctx) error {
	cookie := c.Cookies(handler.SessionCookie)
	if cookie == "" {
		return handler.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	sessData := new(session.Data)
	if err := sessData.Read(cookie); err != nil || sessData.User.ID == 0 {
		return handler.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	c.Locals(handler.LocalsUser, sessData.User)

	return c.Next()
}

// CurrentUser returns the authenticated user stored by Require, or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, ok := c.Locals(handler.LocalsUser).(models.User)
	if !ok {
		return nil
	}

	return &user
}

// RequirePermission rejects requests whose user lacks the given permission.
// It must run after Require.
func RequirePermission(svc *authz.Service, permission string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return handler.Error(c, fiber.StatusUnauthorized, "authentication required")
		}

		has, err := svc.HasPermission(user.ID, permission)
		if err != nil {
			return handler.Error(c, fiber.StatusInternalServerError, "permission check failed")
		}

		if !has {
			return handler.Error(c, fiber.StatusForbidden, "permission denied")
		}

		return c.Next()
	}
}
