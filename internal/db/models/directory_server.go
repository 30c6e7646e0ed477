package models

import (
	"strings"
	"time"

	"github.com/dirgate/dirgate/internal/directory"
)

// DirectoryServer represents the stored configuration of one LDAP or Active
// Directory server. Records are created and edited through the admin API and
// loaded read-only by the authentication engine; the engine never mutates
// them. The enabled flag plus the stored server order controls which servers
// are tried for authentication, and in what sequence.
type DirectoryServer struct {
	// ID is the unique identifier for the server record.
	ID uint `gorm:"primaryKey"`
	// Name is the unique administrative name of the server.
	Name string `gorm:"unique;size:100;not null" validate:"required"`
	// Enabled indicates whether this server participates in authentication.
	Enabled bool
	// Weight orders servers; lower weights are tried first.
	Weight int `gorm:"default:0"`
	// Host is the server hostname or IP address.
	Host string `gorm:"size:255;not null" validate:"required,hostname|ip"`
	// Port is the server port (typically 389 for LDAP, 636 for LDAPS).
	Port int `gorm:"default:389" validate:"min=1,max=65535"`
	// UseSSL enables LDAPS on connect.
	UseSSL bool
	// UseTLS upgrades a plain connection with StartTLS.
	UseTLS bool
	// SkipVerify skips TLS certificate verification (insecure, for testing only).
	SkipVerify bool
	// Timeout is the network timeout in seconds for all operations on a connection.
	Timeout int `gorm:"default:10"`

	// BindStrategy selects the bind sequence used during authentication.
	BindStrategy directory.BindStrategy `gorm:"type:varchar(32);not null;default:'service_account'" validate:"required,oneof=service_account user_credentials anon_then_user anon"`
	// BindDN is the service account DN (service_account strategy only).
	BindDN string `gorm:"size:255"`
	// BindPassword is the service account password (service_account strategy only).
	BindPassword string `gorm:"size:255"`
	// UserDNTemplate synthesizes the user DN for the user_credentials
	// strategy, e.g. "cn=%username,%basedn".
	UserDNTemplate string `gorm:"size:255"`
	// BaseDNs holds one or more base DNs to search, one per line, in
	// preference order.
	BaseDNs string `gorm:"type:text"`

	// LoginAttr is the attribute holding the login identifier (e.g. "uid", "sAMAccountName").
	LoginAttr string `gorm:"size:100;default:'uid'"`
	// AccountNameAttr overrides the account display name when set.
	AccountNameAttr string `gorm:"size:100"`
	// EmailAttr is the attribute holding the email address.
	EmailAttr string `gorm:"size:100;default:'mail'"`
	// EmailTemplate derives an email when EmailAttr is absent, e.g. "[cn]@example.com".
	EmailTemplate string `gorm:"size:255"`
	// PUIDAttr is the attribute holding the persistent unique identifier.
	PUIDAttr string `gorm:"size:100"`
	// PUIDIsBinary indicates the PUID attribute carries raw bytes (e.g. objectGUID).
	PUIDIsBinary bool

	// GroupStrategy selects how group memberships are resolved.
	GroupStrategy directory.GroupStrategy `gorm:"type:varchar(32);default:'group_entry'" validate:"omitempty,oneof=user_attribute group_entry dn_component"`
	// GroupUserAttr is the user-entry attribute listing groups (user_attribute strategy).
	GroupUserAttr string `gorm:"size:100"`
	// GroupObjectClass is the object class identifying group entries.
	GroupObjectClass string `gorm:"size:100;default:'groupOfNames'"`
	// GroupMembershipAttr is the group-entry attribute listing members (e.g. "member").
	GroupMembershipAttr string `gorm:"size:100;default:'member'"`
	// GroupMembershipKey is the user attribute whose value appears in the
	// membership attribute ("dn", "cn", "uid", ...). "dn" means the full entry DN.
	GroupMembershipKey string `gorm:"size:100;default:'dn'"`
	// GroupDNAttr is the RDN attribute mined from the user DN (dn_component strategy).
	GroupDNAttr string `gorm:"size:100"`
	// GroupNested enables transitive resolution of nested groups.
	GroupNested bool

	// CreatedAt is the timestamp when the record was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the record was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the DirectoryServer model.
func (DirectoryServer) TableName() string {
	return "directory_servers"
}

// ToConfig converts the stored record into the immutable runtime
// configuration consumed by the authentication engine.
func (s *DirectoryServer) ToConfig() directory.ServerConfig {
	return directory.ServerConfig{
		ID:   s.ID,
		Name: s.Name,

		Host:       s.Host,
		Port:       s.Port,
		UseSSL:     s.UseSSL,
		UseTLS:     s.UseTLS,
		SkipVerify: s.SkipVerify,
		Timeout:    time.Duration(s.Timeout) * time.Second,

		Strategy:     s.BindStrategy,
		BindDN:       s.BindDN,
		BindPassword: s.BindPassword,

		UserDNTemplate: s.UserDNTemplate,
		BaseDNs:        s.BaseDNList(),

		LoginAttr:       s.LoginAttr,
		AccountNameAttr: s.AccountNameAttr,
		EmailAttr:       s.EmailAttr,
		EmailTemplate:   s.EmailTemplate,
		PUIDAttr:        s.PUIDAttr,
		PUIDIsBinary:    s.PUIDIsBinary,

		Groups: directory.GroupConfig{
			Strategy:       s.GroupStrategy,
			UserAttr:       s.GroupUserAttr,
			ObjectClass:    s.GroupObjectClass,
			MembershipAttr: s.GroupMembershipAttr,
			MembershipKey:  s.GroupMembershipKey,
			DNAttr:         s.GroupDNAttr,
			Nested:         s.GroupNested,
		},
	}
}

// BaseDNList splits the stored base DNs into an ordered slice, skipping
// blank lines.
func (s *DirectoryServer) BaseDNList() []string {
	var out []string

	for _, line := range strings.Split(s.BaseDNs, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}

	return out
}
