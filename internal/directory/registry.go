package directory

import "context"

// Registry provides read-only access to the configured directory servers.
// Enabled-server order is significant: it is the try-order of the
// authentication engine. Implementations reflect the latest stored
// configuration on every call; no further cache invalidation is required
// of them.
type Registry interface {
	// All returns every configured server.
	All(ctx context.Context) ([]ServerConfig, error)
	// Enabled returns the servers enabled for authentication, in try-order.
	Enabled(ctx context.Context) ([]ServerConfig, error)
	// ByID returns one server by record ID, or nil if unknown.
	ByID(ctx context.Context, id uint) (*ServerConfig, error)
}
