// Package dirserver provides CRUD operations for directory server records
// and exposes them to the authentication engine as a server registry.
package dirserver

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/dirgate/dirgate/internal/db/models"
	"github.com/dirgate/dirgate/internal/directory"
)

var (
	// ErrServerNotFound is returned when a directory server record is not found.
	ErrServerNotFound = errors.New("directory server not found")
	// ErrServerNameExists is returned when a server with the same name already exists.
	ErrServerNameExists = errors.New("directory server with this name already exists")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

var validate = validator.New()

// Validate checks a server record against its field constraints plus the
// cross-field rules the validator tags cannot express.
func Validate(server *models.DirectoryServer) error {
	if err := validate.Struct(server); err != nil {
		return fmt.Errorf("invalid directory server: %w", err)
	}

	switch server.BindStrategy {
	case directory.BindServiceAccount:
		if server.BindDN == "" {
			return errors.New("bind DN is required for the service_account strategy")
		}
	case directory.BindUserCredentials:
		if server.UserDNTemplate == "" {
			return errors.New("user DN template is required for the user_credentials strategy")
		}
	case directory.BindAnonThenUser, directory.BindAnon:
	}

	if len(server.BaseDNList()) == 0 {
		return errors.New("at least one base DN is required")
	}

	return nil
}

// GetAll retrieves every directory server record ordered by weight.
func GetAll(db *gorm.DB) ([]models.DirectoryServer, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var servers []models.DirectoryServer

	if err := db.Order("weight, id").Find(&servers).Error; err != nil {
		return nil, err
	}

	return servers, nil
}

// GetByID retrieves one directory server record.
func GetByID(db *gorm.DB, id uint) (*models.DirectoryServer, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var server models.DirectoryServer

	err := db.First(&server, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrServerNotFound
	}

	if err != nil {
		return nil, err
	}

	return &server, nil
}

// Create validates and stores a new directory server record.
func Create(db *gorm.DB, server *models.DirectoryServer) error {
	if db == nil {
		return ErrDBNil
	}

	if err := Validate(server); err != nil {
		return err
	}

	var count int64
	if err := db.Model(&models.DirectoryServer{}).
		Where("name = ?", server.Name).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		return ErrServerNameExists
	}

	return db.Create(server).Error
}

// Update validates and saves changes to an existing directory server record.
func Update(db *gorm.DB, server *models.DirectoryServer) error {
	if db == nil {
		return ErrDBNil
	}

	if err := Validate(server); err != nil {
		return err
	}

	var count int64
	if err := db.Model(&models.DirectoryServer{}).
		Where("name = ? AND id <> ?", server.Name, server.ID).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		return ErrServerNameExists
	}

	result := db.Save(server)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrServerNotFound
	}

	return nil
}

// Delete removes a directory server record.
func Delete(db *gorm.DB, id uint) error {
	if db == nil {
		return ErrDBNil
	}

	result := db.Delete(&models.DirectoryServer{}, id)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrServerNotFound
	}

	return nil
}

// TestConnection dials the server and performs its search-phase bind,
// verifying both reachability and the configured credentials.
func TestConnection(server *models.DirectoryServer) error {
	cfg := server.ToConfig()

	conn, err := directory.Dial(&cfg)
	if err != nil {
		return err
	}

	defer func() {
		_ = conn.Close()
	}()

	if cfg.Strategy == directory.BindServiceAccount {
		return conn.Bind(cfg.BindDN, cfg.BindPassword)
	}

	if cfg.Strategy == directory.BindUserCredentials {
		// nothing to bind without user credentials; reachability is enough
		return nil
	}

	return conn.Bind("", "")
}
