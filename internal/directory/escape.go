package directory

import (
	"fmt"
	"strings"
)

// escapedEmpty is the escaped form of the empty string in both filter and DN
// position.
const escapedEmpty = `\0`

// dnSpecials are the characters escaped with a leading backslash in DN
// attribute values.
const dnSpecials = `,+"\<>;#=`

// EscapeFilterValue escapes a value for interpolation into a search filter
// per RFC 2254: backslash, asterisk and parentheses become two-hex-digit
// backslash escapes, as does every ASCII control character. The empty string
// escapes to the literal sequence \0.
//
// Every attacker-influenced value (usernames, DN fragments) must pass
// through this function or EscapeDNValue before it reaches a filter or DN
// string.
func EscapeFilterValue(value string) string {
	if value == "" {
		return escapedEmpty
	}

	var b strings.Builder
	b.Grow(len(value) + 8)

	for i := 0; i < len(value); i++ {
		c := value[i]

		switch {
		case c == '\\':
			b.WriteString(`\5c`)
		case c == '*':
			b.WriteString(`\2a`)
		case c == '(':
			b.WriteString(`\28`)
		case c == ')':
			b.WriteString(`\29`)
		case c < 32:
			fmt.Fprintf(&b, `\%02x`, c)
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

// UnescapeFilterValue exactly inverts EscapeFilterValue for any of its
// possible outputs.
func UnescapeFilterValue(value string) string {
	if value == escapedEmpty {
		return ""
	}

	return unescapeHexPairs(value, false)
}

// EscapeDNValue escapes a value for use inside a distinguished name: the
// characters , + " \ < > ; # = get a leading backslash, ASCII control
// characters become two-hex-digit escapes, and leading/trailing spaces
// become \20 sequences (interior spaces are untouched). The empty string
// escapes to the literal sequence \0.
func EscapeDNValue(value string) string {
	if value == "" {
		return escapedEmpty
	}

	// bounds of the interior, non-space part
	start := 0
	for start < len(value) && value[start] == ' ' {
		start++
	}

	end := len(value)
	for end > start && value[end-1] == ' ' {
		end--
	}

	var b strings.Builder
	b.Grow(len(value) + 8)

	for i := 0; i < len(value); i++ {
		c := value[i]

		switch {
		case c == ' ' && (i < start || i >= end):
			b.WriteString(`\20`)
		case strings.IndexByte(dnSpecials, c) >= 0:
			b.WriteByte('\\')
			b.WriteByte(c)
		case c < 32:
			fmt.Fprintf(&b, `\%02x`, c)
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

// UnescapeDNValue exactly inverts EscapeDNValue for any of its possible
// outputs.
func UnescapeDNValue(value string) string {
	if value == escapedEmpty {
		return ""
	}

	return unescapeHexPairs(value, true)
}

// unescapeHexPairs decodes backslash escapes: a backslash followed by two
// hex digits yields the encoded byte; with dnMode set, a backslash followed
// by a DN special character yields that character. A trailing or unknown
// backslash is kept as-is (escape output never produces one).
func unescapeHexPairs(value string, dnMode bool) string {
	var b strings.Builder
	b.Grow(len(value))

	for i := 0; i < len(value); i++ {
		c := value[i]

		if c != '\\' {
			b.WriteByte(c)
			continue
		}

		if i+2 < len(value) {
			if hi, okHi := fromHex(value[i+1]); okHi {
				if lo, okLo := fromHex(value[i+2]); okLo {
					b.WriteByte(hi<<4 | lo)
					i += 2

					continue
				}
			}
		}

		if dnMode && i+1 < len(value) && strings.IndexByte(dnSpecials, value[i+1]) >= 0 {
			b.WriteByte(value[i+1])
			i++

			continue
		}

		b.WriteByte(c)
	}

	return b.String()
}

func fromHex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}
