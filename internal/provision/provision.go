// Package provision maps resolved directory entries to local user accounts:
// it creates or updates the account record after a successful directory
// authentication and synchronizes group memberships. The authentication core
// itself never touches account records; this package is its only consumer
// that does.
package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dirgate/dirgate/internal/db/models"
	"github.com/dirgate/dirgate/internal/directory"
)

// Service creates and updates local accounts for directory users.
type Service struct {
	db *gorm.DB

	// emailTemplate derives an email when neither the email attribute nor a
	// server-level template yields one.
	emailTemplate string

	// defaultRoleID is assigned to newly provisioned directory users.
	defaultRoleID uint
}

// NewService creates a provisioning service.
func NewService(db *gorm.DB, emailTemplate string, defaultRoleID uint) *Service {
	return &Service{db: db, emailTemplate: emailTemplate, defaultRoleID: defaultRoleID}
}

// UpsertUser creates or updates the local account for a directory user. An
// existing account is matched by PUID first (so the account survives DN and
// username changes), then by DN.
func (s *Service) UpsertUser(ctx context.Context, srv *directory.ServerConfig, entry *directory.Entry, login string) (*models.User, error) {
	displayName := srv.DeriveAccountName(entry, login)
	email := srv.DeriveEmail(entry, s.emailTemplate)
	puid := srv.DerivePUID(entry)

	db := s.db.WithContext(ctx)

	user, err := s.findExisting(db, entry.DN(), puid)
	if err != nil {
		return nil, err
	}

	if user == nil {
		user = &models.User{
			Active:      true,
			Username:    login,
			Email:       email,
			DisplayName: displayName,
			AuthSource:  models.AuthSourceDirectory,
			ExternalID:  entry.DN(),
			PUID:        puid,
			ServerID:    srv.ID,
			RoleID:      s.defaultRoleID,
		}

		if errCreate := db.Create(user).Error; errCreate != nil {
			return nil, fmt.Errorf("failed to create user: %w", errCreate)
		}

		log.Info().Str("username", login).Str("dn", entry.DN()).
			Msg("provisioned new directory user")

		return user, nil
	}

	user.Username = login
	user.Email = email
	user.DisplayName = displayName
	user.ExternalID = entry.DN()
	user.ServerID = srv.ID

	if puid != "" {
		user.PUID = puid
	}

	if errSave := db.Save(user).Error; errSave != nil {
		return nil, fmt.Errorf("failed to update user: %w", errSave)
	}

	return user, nil
}

func (s *Service) findExisting(db *gorm.DB, dn, puid string) (*models.User, error) {
	var user models.User

	if puid != "" {
		err := db.Where("puid = ? AND auth_source = ?", puid, models.AuthSourceDirectory).
			First(&user).Error
		if err == nil {
			return &user, nil
		}

		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to query user by puid: %w", err)
		}
	}

	err := db.Where("external_id = ? AND auth_source = ?", dn, models.AuthSourceDirectory).
		First(&user).Error
	if err == nil {
		return &user, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to query user by dn: %w", err)
	}

	return nil, nil
}

// SyncUserGroups replaces the user's directory-sourced group memberships
// with the given group identifiers, creating unknown groups on the fly.
// Locally assigned memberships are left untouched.
func (s *Service) SyncUserGroups(ctx context.Context, userID uint64, memberships []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var groupIDs []uint

		for _, external := range memberships {
			var group models.Group

			err := tx.Where("external_id = ? AND source = ?", external, models.GroupSourceDirectory).
				FirstOrCreate(&group, models.Group{
					Name:       external,
					ExternalID: external,
					Source:     models.GroupSourceDirectory,
				}).Error
			if err != nil {
				return fmt.Errorf("failed to create/get group %s: %w", external, err)
			}

			groupIDs = append(groupIDs, group.ID)
		}

		if err := tx.Where("user_id = ?", userID).
			Where("group_id IN (SELECT id FROM groups WHERE source = ?)", models.GroupSourceDirectory).
			Delete(&models.UserGroup{}).Error; err != nil {
			return fmt.Errorf("failed to remove old group memberships: %w", err)
		}

		for _, groupID := range groupIDs {
			if err := tx.Create(&models.UserGroup{
				UserID:  userID,
				GroupID: groupID,
			}).Error; err != nil {
				return fmt.Errorf("failed to add group membership: %w", err)
			}
		}

		return nil
	})
}
