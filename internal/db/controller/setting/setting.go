// Package setting provides CRUD operations for settings stored in the database.
package setting

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/dirgate/dirgate/internal/db/models"
)

const nameQueryPattern = "name = ?"

// AuthServerOrder is the setting holding the ordered list of directory
// server IDs enabled for authentication. The order is the try-order of the
// authentication engine.
const AuthServerOrder = "auth_server_order"

var (
	// ErrSettingNotFound is returned when a setting is not found.
	ErrSettingNotFound = errors.New("setting not found")
	// ErrSettingNameEmpty is returned when a setting name is empty.
	ErrSettingNameEmpty = errors.New("setting name cannot be empty")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// Get retrieves a setting by its name.
func Get(db *gorm.DB, name string) (*models.Setting, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	if name == "" {
		return nil, ErrSettingNameEmpty
	}

	var setting models.Setting

	result := db.Where(nameQueryPattern, name).First(&setting)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrSettingNotFound
		}

		return nil, result.Error
	}

	return &setting, nil
}

// GetAll retrieves all settings from the database.
func GetAll(db *gorm.DB) ([]models.Setting, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var settings []models.Setting

	result := db.Find(&settings)
	if result.Error != nil {
		return nil, result.Error
	}

	return settings, nil
}

// Set creates or updates a setting by name.
func Set(db *gorm.DB, name string, value []byte) (*models.Setting, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	if name == "" {
		return nil, ErrSettingNameEmpty
	}

	var setting models.Setting

	result := db.Where(nameQueryPattern, name).First(&setting)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		setting = models.Setting{Name: name, Value: value}

		if err := db.Create(&setting).Error; err != nil {
			return nil, err
		}

		return &setting, nil
	}

	if result.Error != nil {
		return nil, result.Error
	}

	setting.Value = value

	if err := db.Save(&setting).Error; err != nil {
		return nil, err
	}

	return &setting, nil
}

// DeleteByName deletes a setting by name.
func DeleteByName(db *gorm.DB, name string) error {
	if db == nil {
		return ErrDBNil
	}

	if name == "" {
		return ErrSettingNameEmpty
	}

	result := db.Where(nameQueryPattern, name).Delete(&models.Setting{})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrSettingNotFound
	}

	return nil
}

// GetServerOrder returns the ordered directory server ID list enabled for
// authentication. A missing setting yields an empty list, which enables
// every server in weight order.
func GetServerOrder(db *gorm.DB) ([]uint, error) {
	setting, err := Get(db, AuthServerOrder)
	if errors.Is(err, ErrSettingNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	var order []uint
	if errJSON := json.Unmarshal(setting.Value, &order); errJSON != nil {
		return nil, fmt.Errorf("malformed %s setting: %w", AuthServerOrder, errJSON)
	}

	return order, nil
}

// SetServerOrder stores the ordered directory server ID list enabled for
// authentication.
func SetServerOrder(db *gorm.DB, order []uint) error {
	value, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to encode %s setting: %w", AuthServerOrder, err)
	}

	_, err = Set(db, AuthServerOrder, value)

	return err
}
