package directory

import (
	"net"
	"strconv"
	"time"
)

// BindStrategy selects how a connection to a directory server is bound
// before and during authentication.
type BindStrategy string

const (
	// BindServiceAccount binds with a fixed service account DN and password
	// to search for the user, then verifies the user's own credentials.
	BindServiceAccount BindStrategy = "service_account"
	// BindUserCredentials synthesizes the user DN from a template and binds
	// directly with the submitted credentials; no search is performed.
	BindUserCredentials BindStrategy = "user_credentials"
	// BindAnonThenUser searches anonymously, then verifies the user's
	// credentials and re-fetches the entry with the authenticated bind.
	BindAnonThenUser BindStrategy = "anon_then_user"
	// BindAnon searches anonymously and never binds as the user (SSO flows).
	BindAnon BindStrategy = "anon"
)

// GroupStrategy selects the data source used to resolve a user's group
// memberships.
type GroupStrategy string

const (
	// GroupFromUserAttribute reads a multi-valued attribute on the user entry
	// listing group DNs directly (memberOf style).
	GroupFromUserAttribute GroupStrategy = "user_attribute"
	// GroupFromEntry searches group entries whose membership attribute
	// contains the user's identifying value.
	GroupFromEntry GroupStrategy = "group_entry"
	// GroupFromDN extracts one RDN component's values from the user's own DN
	// as pseudo-groups.
	GroupFromDN GroupStrategy = "dn_component"
)

// GroupConfig holds the group resolution settings of one server.
type GroupConfig struct {
	// Strategy selects the membership data source.
	Strategy GroupStrategy
	// UserAttr is the user-entry attribute listing groups (user_attribute strategy).
	UserAttr string
	// ObjectClass identifies group entries (e.g. "groupOfNames", "group").
	ObjectClass string
	// MembershipAttr is the group-entry attribute listing members (e.g. "member").
	MembershipAttr string
	// MembershipKey is the user attribute whose value appears in
	// MembershipAttr. "dn" means the full entry DN.
	MembershipKey string
	// DNAttr is the RDN attribute mined from the user DN (dn_component strategy).
	DNAttr string
	// Nested enables transitive resolution of nested groups.
	Nested bool
}

// ServerConfig is the immutable runtime configuration of one directory
// server. It is loaded read-only at authentication time and never mutated by
// this package.
type ServerConfig struct {
	ID   uint
	Name string

	Host       string
	Port       int
	UseSSL     bool
	UseTLS     bool
	SkipVerify bool
	Timeout    time.Duration

	Strategy     BindStrategy
	BindDN       string
	BindPassword string

	// UserDNTemplate synthesizes the candidate user DN for the
	// user_credentials strategy, e.g. "cn=%username,%basedn".
	UserDNTemplate string

	// BaseDNs are searched in order; the first listed is preferred.
	BaseDNs []string

	LoginAttr       string
	AccountNameAttr string
	EmailAttr       string
	EmailTemplate   string
	PUIDAttr        string
	PUIDIsBinary    bool

	Groups GroupConfig
}

// Address returns the ldap:// or ldaps:// URL of the server.
func (c *ServerConfig) Address() string {
	hostPort := net.JoinHostPort(c.Host, strconv.Itoa(c.Port))

	if c.UseSSL {
		return "ldaps://" + hostPort
	}

	return "ldap://" + hostPort
}
