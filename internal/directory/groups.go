package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog/log"
)

const (
	// maxNestedDepth bounds the nested-group walk even if cycle detection is
	// defeated by inconsistent directory data.
	maxNestedDepth = 10

	// filterChunkSize caps the number of membership clauses OR-ed into one
	// search filter, keeping filters within server limits.
	filterChunkSize = 30
)

// Resolver computes a user's group memberships against one directory server.
// The walk state (frontier, tested set, result) is local to each call; a
// Resolver is safe for concurrent use.
type Resolver struct {
	dial Dialer
}

// NewResolver creates a group resolver. A nil dialer uses the live network
// dialer.
func NewResolver(dial Dialer) *Resolver {
	if dial == nil {
		dial = Dial
	}

	return &Resolver{dial: dial}
}

// MembershipsOf dials the server, binds its search account and resolves the
// user's group memberships. Nested resolution walks parent groups up to a
// fixed depth when requested.
func (r *Resolver) MembershipsOf(ctx context.Context, srv *ServerConfig, entry *Entry, nested bool) ([]string, error) {
	conn, err := r.dial(srv)
	if err != nil {
		return nil, err
	}

	defer func() {
		if errClose := conn.Close(); errClose != nil {
			log.Warn().Str("server", srv.Name).Err(errClose).
				Msg("failed to close directory connection")
		}
	}()

	var bindDN, bindPassword string
	if srv.Strategy == BindServiceAccount {
		bindDN, bindPassword = srv.BindDN, srv.BindPassword
	}

	if errBind := conn.Bind(bindDN, bindPassword); errBind != nil {
		return nil, errBind
	}

	return r.MembershipsOnConn(ctx, conn, srv, entry, nested)
}

// MembershipsOnConn resolves memberships over an already bound connection,
// reusing the session of an in-flight authentication attempt.
//
// The very first lookup failing means memberships cannot be determined and
// yields an error; failures deeper in the nested walk only prune that branch
// and degrade to partial results.
func (r *Resolver) MembershipsOnConn(ctx context.Context, conn Conn, srv *ServerConfig, entry *Entry, nested bool) ([]string, error) {
	cfg := &srv.Groups

	var direct []string

	switch cfg.Strategy {
	case GroupFromUserAttribute:
		direct = entry.Values(cfg.UserAttr)
	case GroupFromEntry:
		found, err := r.groupsContaining(conn, srv, r.memberKeyOf(cfg, entry))
		if err != nil {
			log.Warn().Str("server", srv.Name).Str("dn", entry.DN()).Err(err).
				Msg("group membership lookup failed")

			return nil, err
		}

		direct = found
	case GroupFromDN:
		// pseudo-groups mined from the user's own DN; never nested
		return dnComponentGroups(entry.DN(), cfg.DNAttr), nil
	default:
		return nil, fmt.Errorf("unknown group strategy %q", cfg.Strategy)
	}

	result := newGroupSet()
	result.addAll(direct)

	if nested && len(direct) > 0 {
		r.walkParents(ctx, conn, srv, result, direct)
	}

	return result.items(), nil
}

// walkParents breadth-first expands the frontier of discovered groups,
// querying the parents of up to filterChunkSize groups per search. Groups
// already tested are never queried again; that tested set is the cycle
// breaker for membership graphs with loops.
func (r *Resolver) walkParents(ctx context.Context, conn Conn, srv *ServerConfig, result *groupSet, frontier []string) {
	tested := make(map[string]struct{}, len(frontier))

	for depth := 0; depth < maxNestedDepth && len(frontier) > 0; depth++ {
		if ctx.Err() != nil {
			return
		}

		var pending []string

		for _, group := range frontier {
			key := strings.ToLower(group)
			if _, done := tested[key]; done {
				continue
			}

			tested[key] = struct{}{}
			pending = append(pending, group)
		}

		var next []string

		for start := 0; start < len(pending); start += filterChunkSize {
			end := start + filterChunkSize
			if end > len(pending) {
				end = len(pending)
			}

			parents, err := r.parentsOf(conn, srv, pending[start:end])
			if err != nil {
				log.Warn().Str("server", srv.Name).Int("depth", depth).Err(err).
					Msg("nested group lookup failed, pruning branch")

				continue
			}

			for _, parent := range parents {
				if result.add(parent) {
					next = append(next, parent)
				}
			}
		}

		frontier = next
	}
}

// parentsOf searches for group entries whose membership attribute contains
// any of the given group identifiers.
func (r *Resolver) parentsOf(conn Conn, srv *ServerConfig, groups []string) ([]string, error) {
	cfg := &srv.Groups

	var clauses strings.Builder
	for _, group := range groups {
		fmt.Fprintf(&clauses, "(%s=%s)", cfg.MembershipAttr, EscapeFilterValue(group))
	}

	filter := fmt.Sprintf("(&(objectClass=%s)(|%s))", cfg.ObjectClass, clauses.String())

	return r.searchGroups(conn, srv, filter)
}

// groupsContaining searches for group entries listing the given member key.
func (r *Resolver) groupsContaining(conn Conn, srv *ServerConfig, memberKey string) ([]string, error) {
	cfg := &srv.Groups

	filter := fmt.Sprintf("(&(objectClass=%s)(%s=%s))",
		cfg.ObjectClass, cfg.MembershipAttr, EscapeFilterValue(memberKey))

	return r.searchGroups(conn, srv, filter)
}

func (r *Resolver) searchGroups(conn Conn, srv *ServerConfig, filter string) ([]string, error) {
	cfg := &srv.Groups

	attrs := []string{cfg.MembershipKey}
	if cfg.MembershipKey == "" || strings.EqualFold(cfg.MembershipKey, "dn") {
		attrs = nil
	}

	var found []string

	for _, baseDN := range srv.BaseDNs {
		entries, err := conn.Search(baseDN, filter, attrs)
		if err != nil {
			return nil, err
		}

		for _, group := range entries {
			found = append(found, r.memberKeyOf(cfg, group))
		}
	}

	return found, nil
}

// memberKeyOf returns the identifier under which an entry appears inside
// membership attributes: the full DN by default, or a configured attribute
// value (cn, uid) when the directory links groups by name instead.
func (r *Resolver) memberKeyOf(cfg *GroupConfig, entry *Entry) string {
	if cfg.MembershipKey != "" && !strings.EqualFold(cfg.MembershipKey, "dn") {
		if value := entry.Value(cfg.MembershipKey); value != "" {
			return value
		}
	}

	return entry.DN()
}

// dnComponentGroups extracts every value of one RDN attribute from a DN,
// e.g. all "ou" values, as pseudo-group identifiers.
func dnComponentGroups(dn, attr string) []string {
	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		log.Warn().Str("dn", dn).Err(err).Msg("cannot parse DN for component groups")

		return nil
	}

	set := newGroupSet()

	for _, rdn := range parsed.RDNs {
		for _, rdnAttr := range rdn.Attributes {
			if strings.EqualFold(rdnAttr.Type, attr) {
				set.add(rdnAttr.Value)
			}
		}
	}

	return set.items()
}

// MembershipsContain reports whether a membership list contains the given
// group identifier, compared case-insensitively.
func MembershipsContain(memberships []string, group string) bool {
	for _, m := range memberships {
		if strings.EqualFold(m, group) {
			return true
		}
	}

	return false
}

// groupSet is an insertion-ordered, case-preserving set of group identifiers
// with case-insensitive deduplication.
type groupSet struct {
	seen    map[string]struct{}
	ordered []string
}

func newGroupSet() *groupSet {
	return &groupSet{seen: make(map[string]struct{})}
}

// add inserts a group identifier and reports whether it was new.
func (s *groupSet) add(group string) bool {
	key := strings.ToLower(group)
	if _, ok := s.seen[key]; ok {
		return false
	}

	s.seen[key] = struct{}{}
	s.ordered = append(s.ordered, group)

	return true
}

func (s *groupSet) addAll(groups []string) {
	for _, group := range groups {
		s.add(group)
	}
}

func (s *groupSet) items() []string {
	return s.ordered
}
