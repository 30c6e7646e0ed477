package auth

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dirgate/dirgate/internal/authz"
	"github.com/dirgate/dirgate/internal/config"
	"github.com/dirgate/dirgate/internal/db/controller/dirserver"
	"github.com/dirgate/dirgate/internal/db/models"
	"github.com/dirgate/dirgate/internal/directory"
	"github.com/dirgate/dirgate/internal/provision"
)

// Service is the login entry point. It owns the directory authentication
// engine, the local password provider and the provisioning pipeline.
type Service struct {
	db        *gorm.DB
	cfg       *config.Auth
	engine    *directory.Engine
	resolver  *directory.Resolver
	local     *LocalProvider
	provision *provision.Service
}

// NewService wires the authentication stack: a database backed server
// registry, the policy evaluator with the database backed authorization
// provider, and the engine on top.
func NewService(db *gorm.DB, cfg *config.Auth, defaultRoleID uint) *Service {
	registry := dirserver.NewRegistry(db)
	resolver := directory.NewResolver(nil)

	policy := directory.NewEvaluator(directory.EvaluatorConfig{
		DenyIfTextInDN:      cfg.ExcludeIfTextInDN,
		AllowOnlyIfTextInDN: cfg.AllowOnlyIfTextInDN,
		RequireMapping:      cfg.RequireMapping,
	}, authz.NewService(db), resolver)

	return &Service{
		db:        db,
		cfg:       cfg,
		engine:    directory.NewEngine(registry, policy, nil),
		resolver:  resolver,
		local:     NewLocalProvider(db),
		provision: provision.NewService(db, cfg.EmailTemplate, defaultRoleID),
	}
}

// Engine exposes the directory engine for administrative flows (entry
// lookups, cache invalidation after configuration changes).
func (s *Service) Engine() *directory.Engine {
	return s.engine
}

// Local exposes the local account provider.
func (s *Service) Local() *LocalProvider {
	return s.local
}

// Login authenticates a user by name and password. Known local accounts are
// verified against the local database; everything else goes through the
// directory engine. With LocalFallback enabled, a directory outage or an
// empty server list falls back to local verification instead of failing.
func (s *Service) Login(ctx context.Context, username, password string) (*models.User, error) {
	var existing models.User

	err := s.db.WithContext(ctx).Where("username = ?", username).First(&existing).Error
	if err == nil && existing.AuthSource == models.AuthSourceLocal {
		return s.local.Authenticate(username, password)
	}

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user, errDir := s.loginDirectory(ctx, username, password)
	if errDir != nil && s.cfg.LocalFallback && errors.Is(errDir, ErrDirectoryUnavailable) {
		log.Warn().Str("username", username).
			Msg("directory unavailable, falling back to local authentication")

		return s.local.Authenticate(username, password)
	}

	return user, errDir
}

func (s *Service) loginDirectory(ctx context.Context, username, password string) (*models.User, error) {
	out := s.engine.Authenticate(ctx, username, password)

	switch out.Kind {
	case directory.OutcomeSuccess:
	case directory.OutcomeDisallowed:
		return nil, ErrAccountDisallowed
	case directory.OutcomeServerError:
		return nil, ErrDirectoryUnavailable
	case directory.OutcomeConnectFailed, directory.OutcomeBindFailed:
		// every server was unreachable or rejected its search account
		return nil, ErrDirectoryUnavailable
	case directory.OutcomeUserNotFound, directory.OutcomeCredentialsInvalid,
		directory.OutcomeGenericFailure:
		return nil, ErrInvalidCredentials
	default:
		return nil, ErrInvalidCredentials
	}

	user, err := s.provision.UpsertUser(ctx, out.Server, out.Entry, username)
	if err != nil {
		return nil, err
	}

	if !user.Active {
		return nil, ErrAccountDisabled
	}

	s.syncGroups(ctx, out.Server, out.Entry, user)

	return user, nil
}

// syncGroups refreshes the user's directory group memberships. Resolution
// failures only log; a login must not fail because group sync did.
func (s *Service) syncGroups(ctx context.Context, srv *directory.ServerConfig, entry *directory.Entry, user *models.User) {
	memberships, err := s.resolver.MembershipsOf(ctx, srv, entry, srv.Groups.Nested)
	if err != nil {
		log.Warn().Str("username", user.Username).Str("server", srv.Name).Err(err).
			Msg("group membership resolution failed, keeping previous memberships")

		return
	}

	if errSync := s.provision.SyncUserGroups(ctx, user.ID, memberships); errSync != nil {
		log.Error().Str("username", user.Username).Err(errSync).
			Msg("failed to synchronize group memberships")
	}
}
