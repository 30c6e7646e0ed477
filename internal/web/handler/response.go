package handler

import "github.com/gofiber/fiber/v2"

// Error writes a JSON error response with the given status.
func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": message})
}

// UserResponse is the JSON shape of a user returned by the API. It
// deliberately omits the password hash.
type UserResponse struct {
	ID          uint64 `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	AuthSource  string `json:"authSource"`
	RoleID      uint   `json:"roleId"`
	Active      bool   `json:"active"`
}
