package directory

import (
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// Entry is the result of a directory lookup: a distinguished name plus a
// mapping from attribute name to an ordered sequence of values. Attribute
// lookups are case-insensitive and binary values are preserved as raw bytes.
// Entries are produced at the connection boundary and consumed read-only
// everywhere else; they are never mutated.
type Entry struct {
	dn    string
	attrs []attribute
	index map[string]int // lowercased attribute name -> attrs index
}

type attribute struct {
	name   string
	values [][]byte
}

// NewEntry builds an Entry from a DN and raw attribute values. The iteration
// order of the map is not significant; attribute order is preserved only
// within one attribute's value list.
func NewEntry(dn string, attrs map[string][][]byte) *Entry {
	e := &Entry{
		dn:    dn,
		index: make(map[string]int, len(attrs)),
	}

	for name, values := range attrs {
		e.addAttribute(name, values)
	}

	return e
}

// entryFromLDAP normalizes a go-ldap entry into the one Entry value type
// used by every downstream component.
func entryFromLDAP(le *ldap.Entry) *Entry {
	e := &Entry{
		dn:    le.DN,
		attrs: make([]attribute, 0, len(le.Attributes)),
		index: make(map[string]int, len(le.Attributes)),
	}

	for _, a := range le.Attributes {
		e.addAttribute(a.Name, a.ByteValues)
	}

	return e
}

func (e *Entry) addAttribute(name string, values [][]byte) {
	key := strings.ToLower(name)

	if i, ok := e.index[key]; ok {
		e.attrs[i].values = append(e.attrs[i].values, values...)
		return
	}

	e.index[key] = len(e.attrs)
	e.attrs = append(e.attrs, attribute{name: name, values: values})
}

// DN returns the distinguished name of the entry.
func (e *Entry) DN() string {
	return e.dn
}

// HasAttribute reports whether the entry carries the named attribute
// (case-insensitive) with at least one value.
func (e *Entry) HasAttribute(name string) bool {
	i, ok := e.index[strings.ToLower(name)]

	return ok && len(e.attrs[i].values) > 0
}

// AttributeNames returns the attribute names in their original case, in
// arrival order.
func (e *Entry) AttributeNames() []string {
	names := make([]string, len(e.attrs))
	for i, a := range e.attrs {
		names[i] = a.name
	}

	return names
}

// RawValues returns the raw byte values of the named attribute, or nil if
// the attribute is absent. The returned slices must not be modified.
func (e *Entry) RawValues(name string) [][]byte {
	i, ok := e.index[strings.ToLower(name)]
	if !ok {
		return nil
	}

	return e.attrs[i].values
}

// Values returns the string form of the named attribute's values, or nil if
// the attribute is absent.
func (e *Entry) Values(name string) []string {
	raw := e.RawValues(name)
	if raw == nil {
		return nil
	}

	out := make([]string, len(raw))
	for i, v := range raw {
		out[i] = string(v)
	}

	return out
}

// Value returns the first value of the named attribute as a string, or ""
// if the attribute is absent.
func (e *Entry) Value(name string) string {
	raw := e.RawValues(name)
	if len(raw) == 0 {
		return ""
	}

	return string(raw[0])
}
