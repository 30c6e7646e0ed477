// Package server implements the directory server administration endpoints.
package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/dirgate/dirgate/internal/auth"
	"github.com/dirgate/dirgate/internal/authz"
	"github.com/dirgate/dirgate/internal/db/controller/dirserver"
	"github.com/dirgate/dirgate/internal/db/controller/setting"
	"github.com/dirgate/dirgate/internal/db/models"
	"github.com/dirgate/dirgate/internal/web/handler"
	authmw "github.com/dirgate/dirgate/internal/web/middleware/auth"
)

// Path is the server administration route group path.
const Path = "/api/v1/admin/servers"

// Service is the server administration handler.
type Service struct {
	db   *gorm.DB
	auth *auth.Service
}

// Handler is the server administration handler.
var Handler = Service{}

// Init initializes the handler and registers its routes.
func (s *Service) Init(app *fiber.App, db *gorm.DB, authSvc *auth.Service, authzSvc *authz.Service) error {
	if app == nil || db == nil || authSvc == nil || authzSvc == nil {
		return errors.New("app, db or service is nil")
	}

	s.db = db
	s.auth = authSvc

	app.Route(Path, func(router fiber.Router) {
		router.Use(authmw.Require)
		router.Use(authmw.RequirePermission(authzSvc, authz.PermAdminServers))

		router.Get(handler.RouterRootPath, s.List)
		router.Post(handler.RouterRootPath, s.Create)
		router.Put("/order", s.SetOrder)
		router.Get("/:id", s.Get)
		router.Put("/:id", s.Update)
		router.Delete("/:id", s.Delete)
		router.Post("/:id/test", s.Test)
	})

	return nil
}

// response is the JSON shape of a server record. The bind password is
// write-only: it never leaves the API.
type response struct {
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Weight  int    `json:"weight"`

	Host       string `json:"host"`
	Port       int    `json:"port"`
	UseSSL     bool   `json:"useSsl"`
	UseTLS     bool   `json:"useTls"`
	SkipVerify bool   `json:"skipVerify"`
	Timeout    int    `json:"timeout"`

	BindStrategy   string `json:"bindStrategy"`
	BindDN         string `json:"bindDn"`
	UserDNTemplate string `json:"userDnTemplate"`
	BaseDNs        string `json:"baseDns"`

	LoginAttr       string `json:"loginAttr"`
	AccountNameAttr string `json:"accountNameAttr"`
	EmailAttr       string `json:"emailAttr"`
	EmailTemplate   string `json:"emailTemplate"`
	PUIDAttr        string `json:"puidAttr"`
	PUIDIsBinary    bool   `json:"puidIsBinary"`

	GroupStrategy       string `json:"groupStrategy"`
	GroupUserAttr       string `json:"groupUserAttr"`
	GroupObjectClass    string `json:"groupObjectClass"`
	GroupMembershipAttr string `json:"groupMembershipAttr"`
	GroupMembershipKey  string `json:"groupMembershipKey"`
	GroupDNAttr         string `json:"groupDnAttr"`
	GroupNested         bool   `json:"groupNested"`
}

func toResponse(server *models.DirectoryServer) response {
	return response{
		ID:      server.ID,
		Name:    server.Name,
		Enabled: server.Enabled,
		Weight:  server.Weight,

		Host:       server.Host,
		Port:       server.Port,
		UseSSL:     server.UseSSL,
		UseTLS:     server.UseTLS,
		SkipVerify: server.SkipVerify,
		Timeout:    server.Timeout,

		BindStrategy:   string(server.BindStrategy),
		BindDN:         server.BindDN,
		UserDNTemplate: server.UserDNTemplate,
		BaseDNs:        server.BaseDNs,

		LoginAttr:       server.LoginAttr,
		AccountNameAttr: server.AccountNameAttr,
		EmailAttr:       server.EmailAttr,
		EmailTemplate:   server.EmailTemplate,
		PUIDAttr:        server.PUIDAttr,
		PUIDIsBinary:    server.PUIDIsBinary,

		GroupStrategy:       string(server.GroupStrategy),
		GroupUserAttr:       server.GroupUserAttr,
		GroupObjectClass:    server.GroupObjectClass,
		GroupMembershipAttr: server.GroupMembershipAttr,
		GroupMembershipKey:  server.GroupMembershipKey,
		GroupDNAttr:         server.GroupDNAttr,
		GroupNested:         server.GroupNested,
	}
}

// List returns every configured directory server.
func (s *Service) List(c *fiber.Ctx) error {
	servers, err := dirserver.GetAll(s.db)
	if err != nil {
		return handler.Error(c, fiber.StatusInternalServerError, "failed to list servers")
	}

	out := make([]response, len(servers))
	for i := range servers {
		out[i] = toResponse(&servers[i])
	}

	return c.JSON(out)
}

// Get returns one directory server.
func (s *Service) Get(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return handler.Error(c, fiber.StatusBadRequest, "invalid server id")
	}

	server, err := dirserver.GetByID(s.db, uint(id))
	if errors.Is(err, dirserver.ErrServerNotFound) {
		return handler.Error(c, fiber.StatusNotFound, err.Error())
	}

	if err != nil {
		return handler.Error(c, fiber.StatusInternalServerError, "failed to load server")
	}

	return c.JSON(toResponse(server))
}

// Create stores a new directory server record.
func (s *Service) Create(c *fiber.Ctx) error {
	server := new(models.DirectoryServer)
	if err := c.BodyParser(server); err != nil {
		return handler.Error(c, fiber.StatusBadRequest, "malformed request body")
	}

	server.ID = 0

	err := dirserver.Create(s.db, server)
	if errors.Is(err, dirserver.ErrServerNameExists) {
		return handler.Error(c, fiber.StatusConflict, err.Error())
	}

	if err != nil {
		return handler.Error(c, fiber.StatusBadRequest, err.Error())
	}

	s.auth.Engine().InvalidateEntryCache()

	return c.Status(fiber.StatusCreated).JSON(toResponse(server))
}

// Update saves changes to an existing directory server record. An empty
// bind password in the request keeps the stored one.
func (s *Service) Update(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return handler.Error(c, fiber.StatusBadRequest, "invalid server id")
	}

	existing, err := dirserver.GetByID(s.db, uint(id))
	if errors.Is(err, dirserver.ErrServerNotFound) {
		return handler.Error(c, fiber.StatusNotFound, err.Error())
	}

	if err != nil {
		return handler.Error(c, fiber.StatusInternalServerError, "failed to load server")
	}

	server := new(models.DirectoryServer)
	if errParse := c.BodyParser(server); errParse != nil {
		return handler.Error(c, fiber.StatusBadRequest, "malformed request body")
	}

	server.ID = existing.ID
	server.CreatedAt = existing.CreatedAt

	if server.BindPassword == "" {
		server.BindPassword = existing.BindPassword
	}

	err = dirserver.Update(s.db, server)
	if errors.Is(err, dirserver.ErrServerNameExists) {
		return handler.Error(c, fiber.StatusConflict, err.Error())
	}

	if err != nil {
		return handler.Error(c, fiber.StatusBadRequest, err.Error())
	}

	s.auth.Engine().InvalidateEntryCache()

	return c.JSON(toResponse(server))
}

// Delete removes a directory server record.
func (s *Service) Delete(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return handler.Error(c, fiber.StatusBadRequest, "invalid server id")
	}

	err = dirserver.Delete(s.db, uint(id))
	if errors.Is(err, dirserver.ErrServerNotFound) {
		return handler.Error(c, fiber.StatusNotFound, err.Error())
	}

	if err != nil {
		return handler.Error(c, fiber.StatusInternalServerError, "failed to delete server")
	}

	s.auth.Engine().InvalidateEntryCache()

	return c.JSON(fiber.Map{"status": "deleted"})
}

// Test probes the server: connect plus search-phase bind.
func (s *Service) Test(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return handler.Error(c, fiber.StatusBadRequest, "invalid server id")
	}

	server, err := dirserver.GetByID(s.db, uint(id))
	if errors.Is(err, dirserver.ErrServerNotFound) {
		return handler.Error(c, fiber.StatusNotFound, err.Error())
	}

	if err != nil {
		return handler.Error(c, fiber.StatusInternalServerError, "failed to load server")
	}

	if errTest := dirserver.TestConnection(server); errTest != nil {
		return c.JSON(fiber.Map{"status": "failed", "error": errTest.Error()})
	}

	return c.JSON(fiber.Map{"status": "ok"})
}

type orderRequest struct {
	ServerIDs []uint `json:"serverIds"`
}

// SetOrder stores the authentication try-order of the enabled servers.
func (s *Service) SetOrder(c *fiber.Ctx) error {
	req := new(orderRequest)
	if err := c.BodyParser(req); err != nil {
		return handler.Error(c, fiber.StatusBadRequest, "malformed request body")
	}

	if err := setting.SetServerOrder(s.db, req.ServerIDs); err != nil {
		return handler.Error(c, fiber.StatusInternalServerError, "failed to store server order")
	}

	s.auth.Engine().InvalidateEntryCache()

	return c.JSON(fiber.Map{"status": "ok"})
}
