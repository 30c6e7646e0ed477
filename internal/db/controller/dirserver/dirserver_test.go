package dirserver

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dirgate/dirgate/internal/db/controller/setting"
	"github.com/dirgate/dirgate/internal/db/models"
	"github.com/dirgate/dirgate/internal/directory"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to create test database")

	err = db.AutoMigrate(&models.DirectoryServer{}, &models.Setting{})
	require.NoError(t, err, "failed to migrate test database")

	return db
}

func validServer(name string) *models.DirectoryServer {
	return &models.DirectoryServer{
		Name:         name,
		Enabled:      true,
		Host:         "ldap.hogwarts.edu",
		Port:         389,
		Timeout:      10,
		BindStrategy: directory.BindServiceAccount,
		BindDN:       "cn=lookup,dc=hogwarts,dc=edu",
		BindPassword: "secret",
		BaseDNs:      "ou=people,dc=hogwarts,dc=edu\nou=staff,dc=hogwarts,dc=edu",
		LoginAttr:    "uid",
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*models.DirectoryServer)
		wantErr bool
	}{
		{name: "valid", mutate: func(*models.DirectoryServer) {}},
		{
			name:    "missing name",
			mutate:  func(s *models.DirectoryServer) { s.Name = "" },
			wantErr: true,
		},
		{
			name:    "missing host",
			mutate:  func(s *models.DirectoryServer) { s.Host = "" },
			wantErr: true,
		},
		{
			name:    "port out of range",
			mutate:  func(s *models.DirectoryServer) { s.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "unknown bind strategy",
			mutate:  func(s *models.DirectoryServer) { s.BindStrategy = "kerberos" },
			wantErr: true,
		},
		{
			name:    "service account without bind dn",
			mutate:  func(s *models.DirectoryServer) { s.BindDN = "" },
			wantErr: true,
		},
		{
			name: "user credentials without template",
			mutate: func(s *models.DirectoryServer) {
				s.BindStrategy = directory.BindUserCredentials
				s.UserDNTemplate = ""
			},
			wantErr: true,
		},
		{
			name: "user credentials with template",
			mutate: func(s *models.DirectoryServer) {
				s.BindStrategy = directory.BindUserCredentials
				s.UserDNTemplate = "cn=%username,%basedn"
				s.BindDN = ""
			},
		},
		{
			name:    "no base dns",
			mutate:  func(s *models.DirectoryServer) { s.BaseDNs = "\n \n" },
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := validServer("hogwarts")
			tc.mutate(server)

			err := Validate(server)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, Create(db, validServer("hogwarts")))

	err := Create(db, validServer("hogwarts"))
	assert.ErrorIs(t, err, ErrServerNameExists)
}

func TestCRUDLifecycle(t *testing.T) {
	db := setupTestDB(t)

	server := validServer("hogwarts")
	require.NoError(t, Create(db, server))
	require.NotZero(t, server.ID)

	got, err := GetByID(db, server.ID)
	require.NoError(t, err)
	assert.Equal(t, "hogwarts", got.Name)
	assert.Equal(t, []string{
		"ou=people,dc=hogwarts,dc=edu",
		"ou=staff,dc=hogwarts,dc=edu",
	}, got.BaseDNList())

	got.Weight = 5
	require.NoError(t, Update(db, got))

	require.NoError(t, Delete(db, server.ID))
	assert.ErrorIs(t, Delete(db, server.ID), ErrServerNotFound)

	_, err = GetByID(db, server.ID)
	assert.ErrorIs(t, err, ErrServerNotFound)
}

func TestRegistryEnabledOrdering(t *testing.T) {
	db := setupTestDB(t)

	first := validServer("first")
	first.Weight = 2
	second := validServer("second")
	second.Weight = 1
	disabled := validServer("disabled")
	disabled.Enabled = false

	require.NoError(t, Create(db, first))
	require.NoError(t, Create(db, second))
	require.NoError(t, Create(db, disabled))

	registry := NewRegistry(db)

	// no explicit order: weight decides
	servers, err := registry.Enabled(context.Background())
	require.NoError(t, err)
	require.Len(t, servers, 2)
	assert.Equal(t, "second", servers[0].Name)
	assert.Equal(t, "first", servers[1].Name)

	// explicit order wins over weight, disabled servers stay excluded
	require.NoError(t, setting.SetServerOrder(db, []uint{first.ID, disabled.ID, second.ID}))

	servers, err = registry.Enabled(context.Background())
	require.NoError(t, err)
	require.Len(t, servers, 2)
	assert.Equal(t, "first", servers[0].Name)
	assert.Equal(t, "second", servers[1].Name)
}

func TestRegistryByID(t *testing.T) {
	db := setupTestDB(t)

	server := validServer("hogwarts")
	require.NoError(t, Create(db, server))

	registry := NewRegistry(db)

	cfg, err := registry.ByID(context.Background(), server.ID)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "hogwarts", cfg.Name)
	assert.Equal(t, directory.BindServiceAccount, cfg.Strategy)

	cfg, err = registry.ByID(context.Background(), 9999)
	require.NoError(t, err)
	assert.Nil(t, cfg)
}
