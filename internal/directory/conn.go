package directory

import (
	"crypto/tls"
	"fmt"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog/log"
)

// Conn is the operation surface of one directory session. All calls are
// synchronous, blocking and carry no internal retry; callers decide retry
// and fallback policy. Bind state is connection-global, so one Conn must
// never be shared between concurrent authentication attempts.
type Conn interface {
	// Bind authenticates the session as the given DN. Empty DN and password
	// perform an anonymous bind.
	Bind(dn, password string) error
	// Search runs a whole-subtree search under baseDN and returns the
	// normalized entries. A nil attribute list requests all attributes.
	Search(baseDN, filter string, attributes []string) ([]*Entry, error)
	// Add creates an entry with the given attributes.
	Add(dn string, attributes map[string][]string) error
	// Modify applies the add/replace/delete attribute changes of req.
	Modify(req *ModifyRequest) error
	// Delete removes the entry with the given DN.
	Delete(dn string) error
	// Close terminates the underlying session.
	Close() error
}

// ModifyRequest describes attribute changes applied to one entry.
type ModifyRequest struct {
	DN                string
	AddAttributes     map[string][]string
	ReplaceAttributes map[string][]string
	DeleteAttributes  []string
}

// Dialer opens a new connection to one server. The engine dials one
// connection per attempt; a Dialer is also the seam used by tests.
type Dialer func(cfg *ServerConfig) (Conn, error)

// Dial establishes a TCP or TLS session to the configured server. It does
// not bind; the caller owns the bind sequence.
func Dial(cfg *ServerConfig) (Conn, error) {
	var tlsConfig *tls.Config
	if cfg.UseSSL || cfg.UseTLS {
		tlsConfig = &tls.Config{
			InsecureSkipVerify: cfg.SkipVerify, //nolint:gosec // admin opt-in for test setups
			ServerName:         cfg.Host,
		}
	}

	conn, err := ldap.DialURL(cfg.Address(), ldap.DialWithTLSConfig(tlsConfig))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to directory server: %w", err)
	}

	// Upgrade to TLS if requested (for non-SSL connections)
	if !cfg.UseSSL && cfg.UseTLS {
		if errStartTLS := conn.StartTLS(tlsConfig); errStartTLS != nil {
			if errClose := conn.Close(); errClose != nil {
				log.Error().Err(errClose).Msg("failed to close directory connection")
			}

			return nil, fmt.Errorf("failed to start TLS: %w", errStartTLS)
		}
	}

	if cfg.Timeout > 0 {
		conn.SetTimeout(cfg.Timeout)
	}

	return &liveConn{conn: conn, cfg: cfg}, nil
}

// liveConn adapts one go-ldap session to the Conn interface and normalizes
// entries at this boundary; no go-ldap type crosses it.
type liveConn struct {
	conn *ldap.Conn
	cfg  *ServerConfig
}

func (c *liveConn) Bind(dn, password string) error {
	if dn == "" && password == "" {
		if err := c.conn.UnauthenticatedBind(""); err != nil {
			return fmt.Errorf("anonymous bind failed: %w", err)
		}

		return nil
	}

	if err := c.conn.Bind(dn, password); err != nil {
		return fmt.Errorf("bind failed: %w", err)
	}

	return nil
}

func (c *liveConn) Search(baseDN, filter string, attributes []string) ([]*Entry, error) {
	timeLimit := 0
	if c.cfg.Timeout > 0 {
		timeLimit = int(c.cfg.Timeout.Seconds())
	}

	searchRequest := ldap.NewSearchRequest(
		baseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, // Size limit
		timeLimit,
		false,
		filter,
		attributes,
		nil,
	)

	searchResult, err := c.conn.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	entries := make([]*Entry, len(searchResult.Entries))
	for i, le := range searchResult.Entries {
		entries[i] = entryFromLDAP(le)
	}

	return entries, nil
}

func (c *liveConn) Add(dn string, attributes map[string][]string) error {
	req := ldap.NewAddRequest(dn, nil)
	for name, values := range attributes {
		req.Attribute(name, values)
	}

	if err := c.conn.Add(req); err != nil {
		return fmt.Errorf("add failed: %w", err)
	}

	return nil
}

func (c *liveConn) Modify(req *ModifyRequest) error {
	mod := ldap.NewModifyRequest(req.DN, nil)

	for name, values := range req.AddAttributes {
		mod.Add(name, values)
	}

	for name, values := range req.ReplaceAttributes {
		mod.Replace(name, values)
	}

	for _, name := range req.DeleteAttributes {
		mod.Delete(name, nil)
	}

	if err := c.conn.Modify(mod); err != nil {
		return fmt.Errorf("modify failed: %w", err)
	}

	return nil
}

func (c *liveConn) Delete(dn string) error {
	if err := c.conn.Del(ldap.NewDelRequest(dn, nil)); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}

	return nil
}

func (c *liveConn) Close() error {
	return c.conn.Close() //nolint:wrapcheck
}
