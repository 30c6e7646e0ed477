package daemon

import (
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dirgate/dirgate/internal/authz"
	"github.com/dirgate/dirgate/internal/config"
	"github.com/dirgate/dirgate/internal/db/models"
	"github.com/dirgate/dirgate/internal/uniuri"
)

const (
	roleNameAdmin = "admin"
	roleNameUser  = "user"
)

// seed creates the built-in roles, permissions and the initial admin
// account on first start.
func seed(_ *config.Config, db *gorm.DB) {
	seedPermissions(db)

	adminRole := seedRole(db, roleNameAdmin, "Full administrative access", authz.AllPermissions)
	seedRole(db, roleNameUser, "Default role for provisioned users", []string{authz.PermDashboardView})

	var count int64

	db.Model(&models.User{}).Count(&count)

	if count == 0 {
		password := uniuri.New()

		db.Create(&models.User{
			Username:   "admin",
			Password:   models.HashPassword(password),
			Active:     true,
			RoleID:     adminRole.ID,
			AuthSource: models.AuthSourceLocal,
		})

		log.Warn().Str("username", "admin").Str("password", password).
			Msg("created initial admin account, change the password after first login")
	}
}

func seedPermissions(db *gorm.DB) {
	for _, name := range authz.AllPermissions {
		resource, action, _ := strings.Cut(name, ".")

		var perm models.Permission

		db.Where("name = ?", name).FirstOrCreate(&perm, models.Permission{
			Name:     name,
			Resource: resource,
			Action:   action,
		})
	}
}

func seedRole(db *gorm.DB, name, description string, permissions []string) *models.Role {
	var role models.Role

	db.Where("name = ?", name).FirstOrCreate(&role, models.Role{
		Name:        name,
		Description: description,
		IsSystem:    true,
	})

	for _, permName := range permissions {
		var perm models.Permission
		if err := db.Where("name = ?", permName).First(&perm).Error; err != nil {
			continue
		}

		var rp models.RolePermission

		db.Where("role_id = ? AND permission_id = ?", role.ID, perm.ID).
			FirstOrCreate(&rp, models.RolePermission{RoleID: role.ID, PermissionID: perm.ID})
	}

	return &role
}
