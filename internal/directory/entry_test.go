package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntryCaseInsensitiveLookup(t *testing.T) {
	entry := NewEntry("cn=hpotter,ou=people,dc=hogwarts,dc=edu", map[string][][]byte{
		"sAMAccountName": {[]byte("hpotter")},
		"mail":           {[]byte("hpotter@hogwarts.edu"), []byte("harry@hogwarts.edu")},
	})

	assert.Equal(t, "hpotter", entry.Value("samaccountname"))
	assert.Equal(t, "hpotter", entry.Value("SAMACCOUNTNAME"))
	assert.Equal(t, []string{"hpotter@hogwarts.edu", "harry@hogwarts.edu"}, entry.Values("Mail"))
	assert.True(t, entry.HasAttribute("MAIL"))
	assert.False(t, entry.HasAttribute("telephoneNumber"))
	assert.Empty(t, entry.Value("telephoneNumber"))
	assert.Nil(t, entry.Values("telephoneNumber"))
}

func TestEntryPreservesAttributeCase(t *testing.T) {
	entry := NewEntry("cn=x", map[string][][]byte{
		"sAMAccountName": {[]byte("x")},
	})

	assert.Equal(t, []string{"sAMAccountName"}, entry.AttributeNames())
}

func TestEntryBinaryValues(t *testing.T) {
	guid := []byte{0x01, 0x02, 0xff, 0x00}

	entry := NewEntry("cn=x", map[string][][]byte{
		"objectGUID": {guid},
	})

	raw := entry.RawValues("objectguid")
	assert.Len(t, raw, 1)
	assert.Equal(t, guid, raw[0])
}
