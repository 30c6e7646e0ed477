// Package authz implements role-based authorization: permission checks for
// local accounts and the group-mapping lookups the authentication policy
// consults for directory users.
package authz

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/dirgate/dirgate/internal/db/models"
)

// Service provides authorization functionality backed by the database.
type Service struct {
	db *gorm.DB
}

// NewService creates a new authorization service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// IsAvailableAndConfigured reports whether group-to-role mappings can be
// consulted: the database is reachable and at least one mapping exists. The
// authentication policy fails closed when this returns false.
func (s *Service) IsAvailableAndConfigured(ctx context.Context) bool {
	if s.db == nil {
		return false
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.GroupMapping{}).Count(&count).Error; err != nil {
		return false
	}

	return count > 0
}

// HasAnyAuthorizationMapping reports whether any of the given directory
// group identifiers is mapped to a role. Matching is case-insensitive, as
// directory identifiers compare case-insensitively.
func (s *Service) HasAnyAuthorizationMapping(ctx context.Context, memberships []string) bool {
	if len(memberships) == 0 {
		return false
	}

	lowered := make([]string, len(memberships))
	for i, m := range memberships {
		lowered[i] = strings.ToLower(m)
	}

	var count int64

	err := s.db.WithContext(ctx).Table("group_mappings").
		Joins("JOIN groups ON groups.id = group_mappings.group_id").
		Where("groups.source = ?", models.GroupSourceDirectory).
		Where("LOWER(groups.external_id) IN ?", lowered).
		Count(&count).Error
	if err != nil {
		return false
	}

	return count > 0
}

// RolesForMemberships returns the role IDs mapped from the given directory
// group identifiers.
func (s *Service) RolesForMemberships(ctx context.Context, memberships []string) ([]uint, error) {
	if len(memberships) == 0 {
		return nil, nil
	}

	lowered := make([]string, len(memberships))
	for i, m := range memberships {
		lowered[i] = strings.ToLower(m)
	}

	var roleIDs []uint

	err := s.db.WithContext(ctx).Table("group_mappings").
		Select("DISTINCT group_mappings.role_id").
		Joins("JOIN groups ON groups.id = group_mappings.group_id").
		Where("groups.source = ?", models.GroupSourceDirectory).
		Where("LOWER(groups.external_id) IN ?", lowered).
		Pluck("group_mappings.role_id", &roleIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to resolve roles for memberships: %w", err)
	}

	return roleIDs, nil
}

// HasPermission checks if a user has a specific permission, either through
// the user's direct role or through a group-mapped role.
func (s *Service) HasPermission(userID uint64, permission string) (bool, error) {
	var count int64

	err := s.db.Table("permissions").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN users ON users.role_id = role_permissions.role_id").
		Where("users.id = ? AND permissions.name = ?", userID, permission).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check direct role permission: %w", err)
	}

	if count > 0 {
		return true, nil
	}

	err = s.db.Table("permissions").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN group_mappings ON group_mappings.role_id = role_permissions.role_id").
		Joins("JOIN user_groups ON user_groups.group_id = group_mappings.group_id").
		Where("user_groups.user_id = ? AND permissions.name = ?", userID, permission).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check group permission: %w", err)
	}

	return count > 0, nil
}

// HasAnyPermission checks if a user has at least one of the given permissions.
func (s *Service) HasAnyPermission(userID uint64, permissions []string) (bool, error) {
	for _, perm := range permissions {
		has, err := s.HasPermission(userID, perm)
		if err != nil {
			return false, err
		}

		if has {
			return true, nil
		}
	}

	return false, nil
}

// GetUserPermissions retrieves all permissions for a user, merged from the
// direct role and every group-mapped role.
func (s *Service) GetUserPermissions(userID uint64) ([]string, error) {
	var direct []string

	err := s.db.Table("permissions").
		Select("DISTINCT permissions.name").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN users ON users.role_id = role_permissions.role_id").
		Where("users.id = ?", userID).
		Pluck("permissions.name", &direct).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get user permissions: %w", err)
	}

	var fromGroups []string

	err = s.db.Table("permissions").
		Select("DISTINCT permissions.name").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN group_mappings ON group_mappings.role_id = role_permissions.role_id").
		Joins("JOIN user_groups ON user_groups.group_id = group_mappings.group_id").
		Where("user_groups.user_id = ?", userID).
		Pluck("permissions.name", &fromGroups).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get group permissions: %w", err)
	}

	seen := make(map[string]bool, len(direct)+len(fromGroups))

	result := make([]string, 0, len(direct)+len(fromGroups))

	for _, perm := range append(direct, fromGroups...) {
		if !seen[perm] {
			seen[perm] = true

			result = append(result, perm)
		}
	}

	return result, nil
}

// GetUserGroups retrieves all groups a user belongs to.
func (s *Service) GetUserGroups(userID uint64) ([]models.Group, error) {
	var groups []models.Group

	err := s.db.Table("groups").
		Joins("JOIN user_groups ON user_groups.group_id = groups.id").
		Where("user_groups.user_id = ?", userID).
		Find(&groups).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get user groups: %w", err)
	}

	return groups, nil
}
