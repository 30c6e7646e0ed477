// Package handler holds shared constants and helpers for web handlers.
package handler

const (
	// RouterRootPath is the root path within a route group.
	RouterRootPath = "/"

	// SessionCookie is the name of the login session cookie.
	SessionCookie = "session"

	// LocalsUser is the fiber.Locals key carrying the authenticated user.
	LocalsUser = "CurrentUser"
)
