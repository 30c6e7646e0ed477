// Package logout implements the logout endpoint of the JSON API.
package logout

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/dirgate/dirgate/internal/web/handler"
	"github.com/dirgate/dirgate/internal/web/session"
)

// Path is the logout endpoint path.
const Path = "/api/v1/auth/logout"

// Service is the logout handler service.
type Service struct{}

// Handler is the logout handler.
var Handler = Service{}

// Init initializes the logout handler.
func (s *Service) Init(app *fiber.App) error {
	if app == nil {
		return errors.New("app is nil")
	}

	app.Post(Path, s.Post)

	return nil
}

// Post invalidates the current session and clears the cookie.
func (s *Service) Post(c *fiber.Ctx) error {
	cookie := c.Cookies(handler.SessionCookie)
	if cookie != "" {
		if err := session.Delete(cookie); err != nil {
			log.Debug().Err(err).Msg("failed to delete session")
		}
	}

	c.ClearCookie(handler.SessionCookie)

	return c.JSON(fiber.Map{"status": "logged out"})
}
