// Package uniuri generates cryptographically secure random identifier
// strings, used for attempt correlation IDs and generated secrets.
package uniuri

import "crypto/rand"

// StdLen is the default identifier length, giving ~95 bits of entropy.
const StdLen = 16

// stdChars is the alphanumeric alphabet used for generated identifiers.
var stdChars = []byte("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789")

// New returns a random string of the standard length.
func New() string {
	return NewLen(StdLen)
}

// NewLen returns a random string of the given length. Bytes outside the
// rejection-sampling bound are discarded so every character is uniformly
// distributed.
func NewLen(length int) string {
	if length <= 0 {
		return ""
	}

	// largest multiple of len(stdChars) that fits in a byte
	maxByte := byte(255 - (256 % len(stdChars)))

	out := make([]byte, 0, length)
	buf := make([]byte, length+length/2)

	for {
		if _, err := rand.Read(buf); err != nil {
			panic("uniuri: crypto/rand failed: " + err.Error())
		}

		for _, b := range buf {
			if b > maxByte {
				continue
			}

			out = append(out, stdChars[int(b)%len(stdChars)])
			if len(out) == length {
				return string(out)
			}
		}
	}
}
