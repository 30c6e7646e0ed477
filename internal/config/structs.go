package config

import (
	"github.com/dirgate/dirgate/internal/logger"
)

// Config overall data structure.
type Config struct {
	DevMode   bool // enable dev mode for development
	DB        DB
	Log       logger.Log
	Title     string
	Auth      Auth
	Webserver Webserver
}

// Webserver implement webserver settings.
type Webserver struct {
	Domain       string  // domain name for the webserver
	Port         int     // listening port for the webserver
	ShutDownTime int     // wait time for shutdown
	URL          string  // base url for the webserver
	Session      Session // login session settings
}

// Session holds login session settings.
type Session struct {
	ExpiryMinutes int // login session lifetime in minutes
}

// Auth holds global authentication policy settings.
// Directory server records themselves live in the database; these settings
// apply across all servers.
type Auth struct {
	// ExcludeIfTextInDN denies any user whose DN contains one of these
	// substrings (case-insensitive).
	ExcludeIfTextInDN []string
	// AllowOnlyIfTextInDN, when non-empty, requires the user's DN to contain
	// at least one of these substrings (case-insensitive).
	AllowOnlyIfTextInDN []string
	// RequireMapping denies users without at least one group to role mapping.
	RequireMapping bool
	// EmailTemplate derives an email address when the email attribute is
	// absent, e.g. "[cn]@example.com".
	EmailTemplate string
	// LocalFallback enables local database authentication when no directory
	// server is enabled for authentication.
	LocalFallback bool
}
