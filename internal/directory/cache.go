package directory

import (
	"sync"
	"time"
)

// entryCacheTTL bounds how stale a resolved entry may be before the
// directory is consulted again.
const entryCacheTTL = 5 * time.Minute

type cachedEntry struct {
	entry   *Entry
	server  *ServerConfig
	expires time.Time
}

// entryCache memoizes ResolveEntry results per login name. Entries expire
// after a fixed TTL and the whole cache is dropped when server configuration
// changes.
type entryCache struct {
	mu  sync.Mutex
	ttl time.Duration
	now func() time.Time

	entries map[string]cachedEntry
}

func newEntryCache(ttl time.Duration) *entryCache {
	return &entryCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cachedEntry),
	}
}

func (c *entryCache) get(login string) (*Entry, *ServerConfig, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached, ok := c.entries[login]
	if !ok {
		return nil, nil, false
	}

	if c.now().After(cached.expires) {
		delete(c.entries, login)

		return nil, nil, false
	}

	return cached.entry, cached.server, true
}

func (c *entryCache) put(login string, entry *Entry, server *ServerConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[login] = cachedEntry{
		entry:   entry,
		server:  server,
		expires: c.now().Add(c.ttl),
	}
}

func (c *entryCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]cachedEntry)
}
