// Package mapping implements the group-to-role mapping administration
// endpoints. Mappings grant roles to directory users based on their group
// memberships and double as the authorization allow-list.
package mapping

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/dirgate/dirgate/internal/authz"
	"github.com/dirgate/dirgate/internal/db/models"
	"github.com/dirgate/dirgate/internal/web/handler"
	authmw "github.com/dirgate/dirgate/internal/web/middleware/auth"
)

// Path is the mapping administration route group path.
const Path = "/api/v1/admin/mappings"

// Service is the mapping administration handler.
type Service struct {
	db *gorm.DB
}

// Handler is the mapping administration handler.
var Handler = Service{}

// Init initializes the handler and registers its routes.
func (s *Service) Init(app *fiber.App, db *gorm.DB, authzSvc *authz.Service) error {
	if app == nil || db == nil || authzSvc == nil {
		return errors.New("app, db or authz service is nil")
	}

	s.db = db

	app.Route(Path, func(router fiber.Router) {
		router.Use(authmw.Require)
		router.Use(authmw.RequirePermission(authzSvc, authz.PermAdminGroupMappings))

		router.Get(handler.RouterRootPath, s.List)
		router.Post(handler.RouterRootPath, s.Create)
		router.Delete("/:id", s.Delete)
	})

	return nil
}

type response struct {
	ID        uint   `json:"id"`
	GroupID   uint   `json:"groupId"`
	GroupName string `json:"groupName"`
	GroupDN   string `json:"groupDn"`
	RoleID    uint   `json:"roleId"`
	RoleName  string `json:"roleName"`
}

func toResponse(m *models.GroupMapping) response {
	return response{
		ID:        m.ID,
		GroupID:   m.GroupID,
		GroupName: m.Group.Name,
		GroupDN:   m.Group.ExternalID,
		RoleID:    m.RoleID,
		RoleName:  m.Role.Name,
	}
}

// List returns all group-to-role mappings.
func (s *Service) List(c *fiber.Ctx) error {
	var mappings []models.GroupMapping

	err := s.db.Preload("Group").Preload("Role").Order("id").Find(&mappings).Error
	if err != nil {
		return handler.Error(c, fiber.StatusInternalServerError, "failed to list mappings")
	}

	out := make([]response, len(mappings))
	for i := range mappings {
		out[i] = toResponse(&mappings[i])
	}

	return c.JSON(out)
}

type createRequest struct {
	// GroupDN identifies the directory group. The group record is created
	// on demand so mappings can be configured before the first login.
	GroupDN   string `json:"groupDn"`
	GroupName string `json:"groupName"`
	RoleID    uint   `json:"roleId"`
}

// Create maps a directory group to a role.
func (s *Service) Create(c *fiber.Ctx) error {
	req := new(createRequest)
	if err := c.BodyParser(req); err != nil {
		return handler.Error(c, fiber.StatusBadRequest, "malformed request body")
	}

	if req.GroupDN == "" {
		return handler.Error(c, fiber.StatusBadRequest, "groupDn cannot be empty")
	}

	var role models.Role
	if err := s.db.First(&role, req.RoleID).Error; err != nil {
		return handler.Error(c, fiber.StatusBadRequest, "role does not exist")
	}

	name := req.GroupName
	if name == "" {
		name = req.GroupDN
	}

	var mapping models.GroupMapping

	err := s.db.Transaction(func(tx *gorm.DB) error {
		group := models.Group{
			ExternalID: req.GroupDN,
			Source:     models.GroupSourceDirectory,
		}

		errTx := tx.Where(models.Group{
			ExternalID: req.GroupDN,
			Source:     models.GroupSourceDirectory,
		}).Attrs(models.Group{Name: name}).FirstOrCreate(&group).Error
		if errTx != nil {
			return errTx
		}

		mapping = models.GroupMapping{GroupID: group.ID, RoleID: role.ID}

		return tx.Create(&mapping).Error
	})
	if err != nil {
		// Unique index on group_id: one mapping per group.
		return handler.Error(c, fiber.StatusConflict, "group is already mapped")
	}

	if err = s.db.Preload("Group").Preload("Role").First(&mapping, mapping.ID).Error; err != nil {
		return handler.Error(c, fiber.StatusInternalServerError, "failed to load mapping")
	}

	return c.Status(fiber.StatusCreated).JSON(toResponse(&mapping))
}

// Delete removes a group-to-role mapping.
func (s *Service) Delete(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return handler.Error(c, fiber.StatusBadRequest, "invalid mapping id")
	}

	result := s.db.Delete(&models.GroupMapping{}, uint(id))
	if result.Error != nil {
		return handler.Error(c, fiber.StatusInternalServerError, "failed to delete mapping")
	}

	if result.RowsAffected == 0 {
		return handler.Error(c, fiber.StatusNotFound, "mapping not found")
	}

	return c.JSON(fiber.Map{"status": "deleted"})
}
