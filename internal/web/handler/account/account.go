// Package account implements the current-user endpoints of the JSON API.
package account

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/dirgate/dirgate/internal/auth"
	"github.com/dirgate/dirgate/internal/db/models"
	"github.com/dirgate/dirgate/internal/web/handler"
	authmw "github.com/dirgate/dirgate/internal/web/middleware/auth"
)

// Path is the account route group path.
const Path = "/api/v1/account"

// Service is the account handler service.
type Service struct {
	auth *auth.Service
}

// Handler is the account handler.
var Handler = Service{}

// Init initializes the account handler.
func (s *Service) Init(app *fiber.App, authSvc *auth.Service) error {
	if app == nil || authSvc == nil {
		return errors.New("app or auth service is nil")
	}

	s.auth = authSvc

	app.Route(Path, func(router fiber.Router) {
		router.Use(authmw.Require)
		router.Get(handler.RouterRootPath, s.Get)
		router.Post("/password", s.ChangePassword)
	})

	return nil
}

// Get returns the authenticated user.
func (s *Service) Get(c *fiber.Ctx) error {
	user := authmw.CurrentUser(c)
	if user == nil {
		return handler.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

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

type passwordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// ChangePassword updates the password of a local account. Directory
// accounts manage their password in the directory, not here.
func (s *Service) ChangePassword(c *fiber.Ctx) error {
	user := authmw.CurrentUser(c)
	if user == nil {
		return handler.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	if user.AuthSource != models.AuthSourceLocal {
		return handler.Error(c, fiber.StatusBadRequest,
			"directory accounts change their password in the directory")
	}

	req := new(passwordRequest)
	if err := c.BodyParser(req); err != nil {
		return handler.Error(c, fiber.StatusBadRequest, "malformed request body")
	}

	if req.NewPassword == "" {
		return handler.Error(c, fiber.StatusBadRequest, "new password cannot be empty")
	}

	err := s.auth.Local().ChangePassword(user.ID, req.OldPassword, req.NewPassword)
	if errors.Is(err, auth.ErrInvalidOldPassword) {
		return handler.Error(c, fiber.StatusForbidden, err.Error())
	}

	if err != nil {
		return handler.Error(c, fiber.StatusInternalServerError, "failed to change password")
	}

	return c.JSON(fiber.Map{"status": "password changed"})
}
