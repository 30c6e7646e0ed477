package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func groupServer(strategy GroupStrategy, nested bool) *ServerConfig {
	return &ServerConfig{
		Name:     "hogwarts",
		Strategy: BindServiceAccount,
		BaseDNs:  []string{"dc=hogwarts,dc=edu"},
		Groups: GroupConfig{
			Strategy:       strategy,
			UserAttr:       "memberOf",
			ObjectClass:    "groupOfNames",
			MembershipAttr: "member",
			MembershipKey:  "dn",
			Nested:         nested,
		},
	}
}

// groupGraphConn answers parent-group searches from a child->parents map
// keyed by group DN.
func groupGraphConn(parents map[string][]string) *fakeConn {
	return &fakeConn{
		search: func(_, filter string, _ []string) ([]*Entry, error) {
			seen := map[string]struct{}{}

			var found []*Entry

			for child, parentDNs := range parents {
				if !strings.Contains(filter, "(member="+EscapeFilterValue(child)+")") {
					continue
				}

				for _, dn := range parentDNs {
					if _, dup := seen[dn]; dup {
						continue
					}

					seen[dn] = struct{}{}
					found = append(found, NewEntry(dn, nil))
				}
			}

			return found, nil
		},
	}
}

func TestMembershipsFromUserAttribute(t *testing.T) {
	srv := groupServer(GroupFromUserAttribute, false)

	entry := NewEntry(hpotterDN, map[string][][]byte{
		"memberOf": {
			[]byte("cn=gryffindor,ou=groups,dc=hogwarts,dc=edu"),
			[]byte("cn=quidditch,ou=groups,dc=hogwarts,dc=edu"),
		},
	})

	resolver := NewResolver(nil)

	groups, err := resolver.MembershipsOnConn(context.Background(), &fakeConn{}, srv, entry, false)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"cn=gryffindor,ou=groups,dc=hogwarts,dc=edu",
		"cn=quidditch,ou=groups,dc=hogwarts,dc=edu",
	}, groups)
}

func TestMembershipsNestedCycleTerminates(t *testing.T) {
	groupA := "cn=a,ou=groups,dc=hogwarts,dc=edu"
	groupB := "cn=b,ou=groups,dc=hogwarts,dc=edu"

	srv := groupServer(GroupFromUserAttribute, true)

	entry := NewEntry(hpotterDN, map[string][][]byte{
		"memberOf": {[]byte(groupA)},
	})

	// mutual parent cycle: A is a member of B, B is a member of A
	conn := groupGraphConn(map[string][]string{
		groupA: {groupB},
		groupB: {groupA},
	})

	resolver := NewResolver(nil)

	groups, err := resolver.MembershipsOnConn(context.Background(), conn, srv, entry, true)
	require.NoError(t, err)
	assert.Equal(t, []string{groupA, groupB}, groups,
		"cycle must terminate with each group exactly once")
}

func TestMembershipsNestedChain(t *testing.T) {
	child := "cn=quidditch,ou=groups,dc=hogwarts,dc=edu"
	parent := "cn=sports,ou=groups,dc=hogwarts,dc=edu"
	grandparent := "cn=activities,ou=groups,dc=hogwarts,dc=edu"

	srv := groupServer(GroupFromUserAttribute, true)

	entry := NewEntry(hpotterDN, map[string][][]byte{
		"memberOf": {[]byte(child)},
	})

	conn := groupGraphConn(map[string][]string{
		child:  {parent},
		parent: {grandparent},
	})

	resolver := NewResolver(nil)

	groups, err := resolver.MembershipsOnConn(context.Background(), conn, srv, entry, true)
	require.NoError(t, err)
	assert.Equal(t, []string{child, parent, grandparent}, groups)
}

func TestMembershipsCaseInsensitiveDedupe(t *testing.T) {
	srv := groupServer(GroupFromUserAttribute, false)

	entry := NewEntry(hpotterDN, map[string][][]byte{
		"memberOf": {
			[]byte("cn=Gryffindor,ou=groups,dc=hogwarts,dc=edu"),
			[]byte("cn=gryffindor,ou=groups,dc=hogwarts,dc=edu"),
		},
	})

	resolver := NewResolver(nil)

	groups, err := resolver.MembershipsOnConn(context.Background(), &fakeConn{}, srv, entry, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"cn=Gryffindor,ou=groups,dc=hogwarts,dc=edu"}, groups,
		"dedupe is case-insensitive and keeps the first-seen case")
}

func TestMembershipsFromGroupEntry(t *testing.T) {
	srv := groupServer(GroupFromEntry, false)

	entry := NewEntry(hpotterDN, nil)

	conn := &fakeConn{
		search: func(_, filter string, _ []string) ([]*Entry, error) {
			if strings.Contains(filter, "(member="+EscapeFilterValue(hpotterDN)+")") {
				return []*Entry{NewEntry("cn=gryffindor,ou=groups,dc=hogwarts,dc=edu", nil)}, nil
			}

			return nil, nil
		},
	}

	resolver := NewResolver(nil)

	groups, err := resolver.MembershipsOnConn(context.Background(), conn, srv, entry, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"cn=gryffindor,ou=groups,dc=hogwarts,dc=edu"}, groups)
}

func TestMembershipsFirstLookupFailure(t *testing.T) {
	srv := groupServer(GroupFromEntry, false)

	conn := &fakeConn{
		search: func(string, string, []string) ([]*Entry, error) {
			return nil, errors.New("size limit exceeded")
		},
	}

	resolver := NewResolver(nil)

	groups, err := resolver.MembershipsOnConn(context.Background(), conn, srv, NewEntry(hpotterDN, nil), false)
	assert.Error(t, err)
	assert.Empty(t, groups)
}

func TestMembershipsNestedFailureDegradesGracefully(t *testing.T) {
	srv := groupServer(GroupFromUserAttribute, true)

	entry := NewEntry(hpotterDN, map[string][][]byte{
		"memberOf": {[]byte("cn=gryffindor,ou=groups,dc=hogwarts,dc=edu")},
	})

	conn := &fakeConn{
		search: func(string, string, []string) ([]*Entry, error) {
			return nil, errors.New("size limit exceeded")
		},
	}

	resolver := NewResolver(nil)

	groups, err := resolver.MembershipsOnConn(context.Background(), conn, srv, entry, true)
	require.NoError(t, err, "a failed nested walk keeps the direct memberships")
	assert.Equal(t, []string{"cn=gryffindor,ou=groups,dc=hogwarts,dc=edu"}, groups)
}

func TestMembershipsNestedChunksLargeFrontiers(t *testing.T) {
	srv := groupServer(GroupFromUserAttribute, true)

	var memberOf [][]byte
	for i := 0; i < filterChunkSize+10; i++ {
		memberOf = append(memberOf, []byte(fmt.Sprintf("cn=g%d,ou=groups,dc=hogwarts,dc=edu", i)))
	}

	entry := NewEntry(hpotterDN, map[string][][]byte{"memberOf": memberOf})

	searches := 0

	conn := &fakeConn{
		search: func(_, filter string, _ []string) ([]*Entry, error) {
			searches++
			assert.LessOrEqual(t, strings.Count(filter, "(member="), filterChunkSize)

			return nil, nil
		},
	}

	resolver := NewResolver(nil)

	_, err := resolver.MembershipsOnConn(context.Background(), conn, srv, entry, true)
	require.NoError(t, err)
	assert.Equal(t, 2, searches, "frontier should be split into chunks")
}

func TestMembershipsFromDNComponent(t *testing.T) {
	srv := groupServer(GroupFromDN, false)
	srv.Groups.DNAttr = "ou"

	entry := NewEntry("cn=hpotter,ou=Gryffindor,ou=Students,dc=hogwarts,dc=edu", nil)

	resolver := NewResolver(nil)

	groups, err := resolver.MembershipsOnConn(context.Background(), &fakeConn{}, srv, entry, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Gryffindor", "Students"}, groups)
}

func TestMembershipsContain(t *testing.T) {
	memberships := []string{"cn=Gryffindor,dc=hogwarts,dc=edu"}

	assert.True(t, MembershipsContain(memberships, "CN=GRYFFINDOR,DC=HOGWARTS,DC=EDU"))
	assert.False(t, MembershipsContain(memberships, "cn=slytherin,dc=hogwarts,dc=edu"))
}
