// Package daemon bootstraps the service: logging, database, schema
// migration, seeding and the web service.
package daemon

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dirgate/dirgate/internal/auth"
	"github.com/dirgate/dirgate/internal/config"
	"github.com/dirgate/dirgate/internal/db/controller/dirserver"
	"github.com/dirgate/dirgate/internal/db/dsn"
	"github.com/dirgate/dirgate/internal/db/models"
	"github.com/dirgate/dirgate/internal/logger"
	"github.com/dirgate/dirgate/internal/web"
)

// Daemon represents the main application daemon.
type Daemon struct {
	webService *web.Service
	port       int
}

// Start starts the Daemon's web service and blocks until shutdown.
func (d *Daemon) Start() error {
	go d.webService.WaitShutdown()

	return d.webService.Start(":" + strconv.Itoa(d.port))
}

// New creates a new Daemon instance with the provided configuration.
func New(cfg *config.Config) *Daemon {
	if cfg == nil {
		log.Fatal().Msg("config is nil")

		return nil
	}

	if err := logger.Init(cfg.Log); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize logging")
	}

	db := openDatabase(cfg)

	seed(cfg, db)

	authService := auth.NewService(db, &cfg.Auth, defaultRoleID(db))

	return &Daemon{
		webService: web.New(cfg, db, authService),
		port:       cfg.Webserver.Port,
	}
}

func openDatabase(cfg *config.Config) *gorm.DB {
	db, err := gorm.Open(dsn.Dialector(cfg), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	if err = db.AutoMigrate(
		&models.Role{},
		&models.Permission{},
		&models.RolePermission{},
		&models.User{},
		&models.Group{},
		&models.UserGroup{},
		&models.GroupMapping{},
		&models.DirectoryServer{},
		&models.Setting{},
	); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	return db
}

func defaultRoleID(db *gorm.DB) uint {
	var role models.Role
	if err := db.Where("name = ?", roleNameUser).First(&role).Error; err != nil {
		log.Fatal().Err(err).Msg("default role missing after seeding")
	}

	return role.ID
}

// CheckResult is the probe outcome for one directory server.
type CheckResult struct {
	Name string
	Err  error
}

// CheckServers probes every enabled directory server: connect plus
// search-phase bind. Used by the check command.
func CheckServers(ctx context.Context, cfg *config.Config) ([]CheckResult, error) {
	if err := logger.Init(cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	db, err := gorm.Open(dsn.Dialector(cfg), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	var servers []models.DirectoryServer
	if err = db.WithContext(ctx).Where("enabled = ?", true).
		Order("weight, id").Find(&servers).Error; err != nil {
		return nil, fmt.Errorf("failed to load directory servers: %w", err)
	}

	results := make([]CheckResult, len(servers))
	for i := range servers {
		results[i] = CheckResult{
			Name: servers[i].Name,
			Err:  dirserver.TestConnection(&servers[i]),
		}
	}

	return results, nil
}
