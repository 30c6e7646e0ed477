package directory

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
)

// AuthorizationProvider is the optional external subsystem consulted by the
// authorization-required rule. It maps group memberships to application
// authorizations.
type AuthorizationProvider interface {
	// IsAvailableAndConfigured reports whether the subsystem can be consulted
	// and has at least one mapping profile configured.
	IsAvailableAndConfigured(ctx context.Context) bool
	// HasAnyAuthorizationMapping reports whether any of the given group
	// memberships grants an authorization.
	HasAnyAuthorizationMapping(ctx context.Context, memberships []string) bool
}

// VetoFunc is a pluggable admission hook. Returning true vetoes the login.
type VetoFunc func(ctx context.Context, server *ServerConfig, entry *Entry, login string) bool

// EvaluatorConfig carries the admission rule settings.
type EvaluatorConfig struct {
	// DenyIfTextInDN rejects users whose DN contains any listed substring.
	DenyIfTextInDN []string
	// AllowOnlyIfTextInDN, when non-empty, rejects users whose DN contains
	// none of the listed substrings.
	AllowOnlyIfTextInDN []string
	// RequireMapping enables the authorization-required rule.
	RequireMapping bool
}

// Evaluator applies the admission rules in fixed order: deny list, allow
// list, authorization-required, veto hooks. Substring matching against the
// DN is case-insensitive. The authorization-required rule fails closed when
// the authorization subsystem is missing, unavailable or unconfigured.
type Evaluator struct {
	cfg      EvaluatorConfig
	authz    AuthorizationProvider
	resolver *Resolver
	vetoes   []VetoFunc
}

// NewEvaluator creates a policy evaluator. The authorization provider may be
// nil when RequireMapping is off; with RequireMapping on, a nil provider
// denies everyone.
func NewEvaluator(cfg EvaluatorConfig, authz AuthorizationProvider, resolver *Resolver, vetoes ...VetoFunc) *Evaluator {
	if resolver == nil {
		resolver = NewResolver(nil)
	}

	return &Evaluator{cfg: cfg, authz: authz, resolver: resolver, vetoes: vetoes}
}

// IsAllowed decides admission for a located user entry. The connection is
// the session of the in-flight attempt, already bound for searching; group
// memberships for the authorization-required rule are resolved over it.
func (e *Evaluator) IsAllowed(ctx context.Context, conn Conn, server *ServerConfig, entry *Entry, login string) bool {
	dn := strings.ToLower(entry.DN())

	for _, deny := range e.cfg.DenyIfTextInDN {
		if deny != "" && strings.Contains(dn, strings.ToLower(deny)) {
			log.Info().Str("dn", entry.DN()).Str("match", deny).
				Msg("user denied by DN deny list")

			return false
		}
	}

	if len(e.cfg.AllowOnlyIfTextInDN) > 0 && !e.dnAllowListed(dn) {
		log.Info().Str("dn", entry.DN()).Msg("user DN matches no allow-list entry")

		return false
	}

	if e.cfg.RequireMapping && !e.hasMapping(ctx, conn, server, entry) {
		return false
	}

	for _, veto := range e.vetoes {
		if veto(ctx, server, entry, login) {
			log.Info().Str("dn", entry.DN()).Msg("user vetoed by admission hook")

			return false
		}
	}

	return true
}

func (e *Evaluator) dnAllowListed(dn string) bool {
	for _, allow := range e.cfg.AllowOnlyIfTextInDN {
		if allow != "" && strings.Contains(dn, strings.ToLower(allow)) {
			return true
		}
	}

	return false
}

func (e *Evaluator) hasMapping(ctx context.Context, conn Conn, server *ServerConfig, entry *Entry) bool {
	if e.authz == nil || !e.authz.IsAvailableAndConfigured(ctx) {
		log.Error().Str("dn", entry.DN()).
			Msg("authorization subsystem unavailable or unconfigured, failing closed")

		return false
	}

	memberships, err := e.resolver.MembershipsOnConn(ctx, conn, server, entry, server.Groups.Nested)
	if err != nil {
		log.Warn().Str("dn", entry.DN()).Err(err).
			Msg("cannot determine memberships for authorization check, failing closed")

		return false
	}

	if !e.authz.HasAnyAuthorizationMapping(ctx, memberships) {
		log.Info().Str("dn", entry.DN()).Msg("user has no authorization mapping")

		return false
	}

	return true
}
