// Package login implements the login endpoint of the JSON API.
package login

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/dirgate/dirgate/internal/auth"
	"github.com/dirgate/dirgate/internal/config"
	"github.com/dirgate/dirgate/internal/web/handler"
	"github.com/dirgate/dirgate/internal/web/session"
)

// Path is the login endpoint path.
const Path = "/api/v1/auth/login"

// Service is the login handler service.
type Service struct {
	cfg  *config.Config
	auth *auth.Service
}

// Handler is the login handler.
var Handler = Service{}

// Init initializes the login handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, authSvc *auth.Service) error {
	if app == nil || cfg == nil || authSvc == nil {
		return errors.New("app, cfg or auth service is nil")
	}

	s.cfg = cfg
	s.auth = authSvc

	app.Post(Path, s.Post)

	return nil
}

type request struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Post handles a login request: credentials in, session cookie out.
func (s *Service) Post(c *fiber.Ctx) error {
	req := new(request)

	if err := c.BodyParser(req); err != nil {
		return handler.Error(c, fiber.StatusBadRequest, "malformed request body")
	}

	user, err := s.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return s.loginError(c, err)
	}

	sessionID, err := session.GenerateSessionID()
	if err != nil {
		log.Error().Err(err).Msg("failed to generate session ID")

		return handler.Error(c, fiber.StatusInternalServerError, "internal server error")
	}

	expiry := time.Duration(s.cfg.Webserver.Session.ExpiryMinutes) * time.Minute

	userSession := &session.Data{User: *user}
	if err = userSession.Write(sessionID, expiry); err != nil {
		log.Error().Err(err).Msg("failed to write session")

		return handler.Error(c, fiber.StatusInternalServerError, "internal server error")
	}

	cookie := &fiber.Cookie{
		Name:     handler.SessionCookie,
		Value:    sessionID,
		MaxAge:   int(expiry.Seconds()),
		Secure:   true,
		HTTPOnly: true,
		SameSite: "Lax",
	}

	if s.cfg.DevMode {
		cookie.Secure = false
	}

	c.Cookie(cookie)

	return c.JSON(handler.UserResponse{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		AuthSource:  string(user.AuthSource),
		RoleID:      user.RoleID,
		Active:      user.Active,
	})
}

// loginError maps authentication errors to API responses without leaking
// whether the account exists.
func (s *Service) loginError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, auth.ErrAccountDisabled):
		return handler.Error(c, fiber.StatusForbidden, auth.ErrAccountDisabled.Error())
	case errors.Is(err, auth.ErrAccountDisallowed):
		return handler.Error(c, fiber.StatusForbidden, auth.ErrAccountDisallowed.Error())
	case errors.Is(err, auth.ErrDirectoryUnavailable):
		return handler.Error(c, fiber.StatusServiceUnavailable, auth.ErrDirectoryUnavailable.Error())
	default:
		return handler.Error(c, fiber.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
	}
}
