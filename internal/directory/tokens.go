package directory

import (
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// Token templates interpolate directory entry data into strings such as
// generated email addresses or provisioned attribute values. A token has the
// form [name], [name:N] for the N-th value, [name:last] for the final value,
// with an optional conversion suffix: [name;base64_encode] or [name;bin2hex].
// Token names are case-insensitive. Tokens resolve against the entry's
// attributes first, falling back to values derived from the entry's DN
// components (so [cn] works even for an entry fetched without attributes,
// and [dc:0] addresses the first domain component).

// ResolveTokens replaces every [token] in template with values from entry.
// Resolution is all-or-nothing: if any token in the template cannot be
// resolved, the empty string and false are returned and no partially
// substituted text escapes.
func ResolveTokens(entry *Entry, template string) (string, bool) {
	if !strings.Contains(template, "[") {
		return template, true
	}

	values := tokenValues(entry)

	var b strings.Builder
	b.Grow(len(template))

	rest := template

	for {
		open := strings.IndexByte(rest, '[')
		if open < 0 {
			b.WriteString(rest)

			return b.String(), true
		}

		closing := strings.IndexByte(rest[open:], ']')
		if closing < 0 {
			// unterminated token
			return "", false
		}

		b.WriteString(rest[:open])

		token := rest[open+1 : open+closing]
		rest = rest[open+closing+1:]

		resolved, ok := resolveToken(values, token)
		if !ok {
			return "", false
		}

		b.WriteString(resolved)
	}
}

// resolveToken evaluates one token body (without brackets): name, optional
// :index selector, optional ;conversion suffix.
func resolveToken(values map[string][][]byte, token string) (string, bool) {
	name := token
	conversion := ""

	if semi := strings.IndexByte(name, ';'); semi >= 0 {
		name, conversion = name[:semi], name[semi+1:]
	}

	selector := ""
	if colon := strings.IndexByte(name, ':'); colon >= 0 {
		name, selector = name[:colon], name[colon+1:]
	}

	vals, ok := values[strings.ToLower(name)]
	if !ok || len(vals) == 0 {
		return "", false
	}

	index := 0

	switch {
	case selector == "":
	case strings.EqualFold(selector, "last"):
		index = len(vals) - 1
	default:
		n, err := strconv.Atoi(selector)
		if err != nil || n < 0 || n >= len(vals) {
			return "", false
		}

		index = n
	}

	raw := vals[index]

	switch strings.ToLower(conversion) {
	case "":
		return string(raw), true
	case "base64_encode":
		return base64.StdEncoding.EncodeToString(raw), true
	case "bin2hex":
		return hex.EncodeToString(raw), true
	default:
		return "", false
	}
}

// tokenValues flattens an entry into a lowercase token-name map: DN-derived
// values first, then attribute values, which shadow DN-derived ones of the
// same name.
func tokenValues(entry *Entry) map[string][][]byte {
	values := make(map[string][][]byte)

	if parsed, err := ldap.ParseDN(entry.DN()); err == nil {
		for _, rdn := range parsed.RDNs {
			for _, attr := range rdn.Attributes {
				name := strings.ToLower(attr.Type)
				values[name] = append(values[name], []byte(attr.Value))
			}
		}
	}

	for _, name := range entry.AttributeNames() {
		raw := entry.RawValues(name)
		if len(raw) > 0 {
			values[strings.ToLower(name)] = raw
		}
	}

	return values
}
