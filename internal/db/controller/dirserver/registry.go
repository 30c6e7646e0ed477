package dirserver

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/dirgate/dirgate/internal/db/controller/setting"
	"github.com/dirgate/dirgate/internal/db/models"
	"github.com/dirgate/dirgate/internal/directory"
)

// Registry exposes the stored directory server records to the
// authentication engine. Every call reads the current database state, so
// configuration changes are picked up on the next authentication attempt
// without restart.
type Registry struct {
	db *gorm.DB
}

// NewRegistry creates a database backed server registry.
func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

// All returns every configured server as runtime configuration.
func (r *Registry) All(ctx context.Context) ([]directory.ServerConfig, error) {
	servers, err := GetAll(r.db.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	return toConfigs(servers), nil
}

// Enabled returns the servers enabled for authentication in try-order: the
// explicitly stored server order when present, otherwise every enabled
// server by weight.
func (r *Registry) Enabled(ctx context.Context) ([]directory.ServerConfig, error) {
	db := r.db.WithContext(ctx)

	var servers []models.DirectoryServer
	if err := db.Where("enabled = ?", true).Order("weight, id").Find(&servers).Error; err != nil {
		return nil, err
	}

	order, err := setting.GetServerOrder(db)
	if err != nil {
		return nil, err
	}

	if len(order) == 0 {
		return toConfigs(servers), nil
	}

	byID := make(map[uint]*models.DirectoryServer, len(servers))
	for i := range servers {
		byID[servers[i].ID] = &servers[i]
	}

	ordered := make([]directory.ServerConfig, 0, len(order))

	for _, id := range order {
		if server, ok := byID[id]; ok {
			ordered = append(ordered, server.ToConfig())
		}
	}

	return ordered, nil
}

// ByID returns one server's runtime configuration, or nil if unknown.
func (r *Registry) ByID(ctx context.Context, id uint) (*directory.ServerConfig, error) {
	server, err := GetByID(r.db.WithContext(ctx), id)
	if errors.Is(err, ErrServerNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	cfg := server.ToConfig()

	return &cfg, nil
}

func toConfigs(servers []models.DirectoryServer) []directory.ServerConfig {
	configs := make([]directory.ServerConfig, len(servers))
	for i := range servers {
		configs[i] = servers[i].ToConfig()
	}

	return configs
}
