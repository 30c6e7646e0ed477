package directory

import "encoding/hex"

// DeriveAccountName returns the caller-facing account name for a resolved
// entry: the configured display-name attribute when present, otherwise the
// submitted login name.
func (c *ServerConfig) DeriveAccountName(entry *Entry, login string) string {
	if c.AccountNameAttr != "" {
		if name := entry.Value(c.AccountNameAttr); name != "" {
			return name
		}
	}

	return login
}

// DeriveEmail returns the entry's email address: the configured email
// attribute when present, otherwise the server's email template, otherwise
// the given fallback template. Templates resolve all-or-nothing; an
// unresolvable template yields the empty string.
func (c *ServerConfig) DeriveEmail(entry *Entry, fallbackTemplate string) string {
	if c.EmailAttr != "" {
		if email := entry.Value(c.EmailAttr); email != "" {
			return email
		}
	}

	template := c.EmailTemplate
	if template == "" {
		template = fallbackTemplate
	}

	if template == "" {
		return ""
	}

	if email, ok := ResolveTokens(entry, template); ok {
		return email
	}

	return ""
}

// DerivePUID returns the entry's persistent unique identifier as text.
// Binary identifiers (Active Directory objectGUID) are hex-encoded so they
// survive storage in a text column.
func (c *ServerConfig) DerivePUID(entry *Entry) string {
	if c.PUIDAttr == "" {
		return ""
	}

	raw := entry.RawValues(c.PUIDAttr)
	if len(raw) == 0 {
		return ""
	}

	if c.PUIDIsBinary {
		return hex.EncodeToString(raw[0])
	}

	return string(raw[0])
}
