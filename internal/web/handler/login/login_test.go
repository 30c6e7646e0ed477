package login

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dirgate/dirgate/internal/auth"
	"github.com/dirgate/dirgate/internal/config"
	"github.com/dirgate/dirgate/internal/db/models"
	"github.com/dirgate/dirgate/internal/web/handler"
	"github.com/dirgate/dirgate/internal/web/session"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Role{},
		&models.Permission{},
		&models.RolePermission{},
		&models.User{},
		&models.Group{},
		&models.UserGroup{},
		&models.GroupMapping{},
		&models.DirectoryServer{},
		&models.Setting{},
	))

	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		Webserver: config.Webserver{
			Port:    3000,
			Session: config.Session{ExpiryMinutes: 60},
		},
	}
}

func newTestService(t *testing.T, db *gorm.DB, cfg *config.Config) (*fiber.App, *auth.Service) {
	t.Helper()

	session.Init()

	role := models.Role{Name: "user"}
	require.NoError(t, db.Create(&role).Error)

	authSvc := auth.NewService(db, &cfg.Auth, role.ID)

	app := fiber.New()

	var s Service
	require.NoError(t, s.Init(app, cfg, authSvc))

	return app, authSvc
}

func performLogin(t *testing.T, app *fiber.App, username, password string) *http.Response {
	t.Helper()

	body := strings.NewReader(`{"username":"` + username + `","password":"` + password + `"}`)

	req := httptest.NewRequest(http.MethodPost, Path, body)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	return resp
}

func TestPostSuccessSetsCookie(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	app, authSvc := newTestService(t, db, cfg)

	_, err := authSvc.Local().CreateUser("bob", "bob@example.com", "s3cr3t", "Bob", 1)
	require.NoError(t, err)

	resp := performLogin(t, app, "bob", "s3cr3t")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var user handler.UserResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&user))
	require.Equal(t, "bob", user.Username)
	require.Equal(t, "local", user.AuthSource)

	setCookie := resp.Header.Get("Set-Cookie")
	require.Contains(t, setCookie, handler.SessionCookie+"=")
	require.Contains(t, strings.ToLower(setCookie), "secure")
	require.Contains(t, strings.ToLower(setCookie), "httponly")
}

func TestPostDevModeDisablesSecureCookie(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	cfg.DevMode = true

	app, authSvc := newTestService(t, db, cfg)

	_, err := authSvc.Local().CreateUser("carol", "carol@example.com", "pass", "Carol", 1)
	require.NoError(t, err)

	resp := performLogin(t, app, "carol", "pass")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotContains(t, strings.ToLower(resp.Header.Get("Set-Cookie")), "secure")
}

func TestPostWrongPassword(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	app, authSvc := newTestService(t, db, cfg)

	_, err := authSvc.Local().CreateUser("alice", "alice@example.com", "secret", "Alice", 1)
	require.NoError(t, err)

	resp := performLogin(t, app, "alice", "wrong")
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Empty(t, resp.Header.Get("Set-Cookie"))
}

func TestPostUnknownUserNoServers(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	app, _ := newTestService(t, db, cfg)

	// No directory servers configured: unknown users get the same
	// generic rejection as a bad password.
	resp := performLogin(t, app, "nobody", "whatever")
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, auth.ErrInvalidCredentials.Error(), body["error"])
}

func TestPostDisabledAccount(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	app, authSvc := newTestService(t, db, cfg)

	user, err := authSvc.Local().CreateUser("dave", "dave@example.com", "pass", "Dave", 1)
	require.NoError(t, err)
	require.NoError(t, authSvc.Local().SetActive(user.ID, false))

	resp := performLogin(t, app, "dave", "pass")
	defer resp.Body.Close()

	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestPostMalformedBody(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	app, _ := newTestService(t, db, cfg)

	req := httptest.NewRequest(http.MethodPost, Path, strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
