package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dirgate/dirgate/internal/uniuri"
)

// Policy decides whether a located user may be admitted. The connection is
// handed in so implementations can resolve group memberships over the
// session already opened for this attempt.
type Policy interface {
	IsAllowed(ctx context.Context, conn Conn, server *ServerConfig, entry *Entry, login string) bool
}

// EntryTransform rewrites a located entry before it is handed to callers,
// e.g. to synthesize attributes a directory does not expose. Transforms run
// in registration order; a nil return keeps the entry unchanged.
type EntryTransform func(ctx context.Context, server *ServerConfig, entry *Entry) *Entry

// allowAll is the default policy when none is injected.
type allowAll struct{}

func (allowAll) IsAllowed(context.Context, Conn, *ServerConfig, *Entry, string) bool {
	return true
}

// Engine iterates the enabled directory servers in configured order and
// performs the bind-search-verify sequence for each server's bind strategy.
// One connection is dialed per server per attempt and never shared between
// concurrent attempts.
type Engine struct {
	registry   Registry
	policy     Policy
	dial       Dialer
	cache      *entryCache
	transforms []EntryTransform
}

// NewEngine creates an authentication engine. A nil policy admits every
// located user; a nil dialer uses the live network dialer.
func NewEngine(registry Registry, policy Policy, dial Dialer) *Engine {
	if policy == nil {
		policy = allowAll{}
	}

	if dial == nil {
		dial = Dial
	}

	return &Engine{
		registry: registry,
		policy:   policy,
		dial:     dial,
		cache:    newEntryCache(entryCacheTTL),
	}
}

// AddTransform registers an entry transform. Transforms apply to every
// successfully located entry, in both authentication and lookup flows.
func (e *Engine) AddTransform(t EntryTransform) {
	if t != nil {
		e.transforms = append(e.transforms, t)
	}
}

func (e *Engine) applyTransforms(ctx context.Context, srv *ServerConfig, entry *Entry) *Entry {
	for _, t := range e.transforms {
		if out := t(ctx, srv, entry); out != nil {
			entry = out
		}
	}

	return entry
}

// attempt is the transient state of one authentication call: the submitted
// credentials to use for the next bind, plus diagnostics. It is created at
// the start of a call and discarded at the end, never shared across
// concurrent attempts.
type attempt struct {
	id       string
	login    string
	password string

	lastKind OutcomeKind
	lastErr  error
}

// Authenticate tries every enabled server in order until one yields success
// or a definitive failure. Recoverable per-server failures advance to the
// next server; if the list is exhausted the last recorded failure kind is
// returned (GenericFailure if no server was attempted).
func (e *Engine) Authenticate(ctx context.Context, login, password string) Outcome {
	att := &attempt{
		id:       uniuri.NewLen(8),
		login:    login,
		password: password,
		lastKind: OutcomeGenericFailure,
	}

	// an empty password would turn the verify bind into an anonymous bind
	if password == "" {
		return Outcome{Kind: OutcomeCredentialsInvalid}
	}

	servers, err := e.registry.Enabled(ctx)
	if err != nil {
		return Outcome{Kind: OutcomeServerError, Err: err}
	}

	for i := range servers {
		if errCtx := ctx.Err(); errCtx != nil {
			return Outcome{Kind: att.lastKind, Err: errCtx}
		}

		srv := &servers[i]

		out := e.tryServer(ctx, att, srv)

		log.Debug().
			Str("attempt", att.id).
			Str("server", srv.Name).
			Str("outcome", out.Kind.String()).
			Msg("directory authentication step")

		if out.Kind == OutcomeSuccess || !out.Kind.Recoverable() {
			return out
		}

		att.lastKind = out.Kind
		att.lastErr = out.Err
	}

	return Outcome{Kind: att.lastKind, Err: att.lastErr}
}

// tryServer runs the full per-server state machine: connect, bind per
// strategy, locate, policy check, verify, finalize.
func (e *Engine) tryServer(ctx context.Context, att *attempt, srv *ServerConfig) Outcome {
	conn, err := e.dial(srv)
	if err != nil {
		log.Warn().Str("attempt", att.id).Str("server", srv.Name).Err(err).
			Msg("directory connect failed")

		return Outcome{Kind: OutcomeConnectFailed, Err: err}
	}

	defer func() {
		if errClose := conn.Close(); errClose != nil {
			log.Warn().Str("server", srv.Name).Err(errClose).
				Msg("failed to close directory connection")
		}
	}()

	if srv.Strategy == BindUserCredentials {
		return e.tryUserCredentials(ctx, att, srv, conn)
	}

	// search-phase bind: service account or anonymous
	if errBind := e.bindSearchAccount(srv, conn); errBind != nil {
		log.Warn().Str("attempt", att.id).Str("server", srv.Name).Err(errBind).
			Msg("search-phase bind failed")

		return Outcome{Kind: OutcomeBindFailed, Err: errBind}
	}

	entry, kind, errLocate := e.locateEntry(att, srv, conn)
	if kind != OutcomeSuccess {
		return Outcome{Kind: kind, Err: errLocate}
	}

	if !e.policy.IsAllowed(ctx, conn, srv, entry, att.login) {
		log.Info().Str("attempt", att.id).Str("server", srv.Name).Str("dn", entry.DN()).
			Msg("policy denied user")

		return Outcome{Kind: OutcomeDisallowed}
	}

	// verify the submitted credentials with the located entry's DN
	if errVerify := conn.Bind(entry.DN(), att.password); errVerify != nil {
		log.Info().Str("attempt", att.id).Str("server", srv.Name).Err(errVerify).
			Msg("credential verification failed")

		return Outcome{Kind: OutcomeCredentialsInvalid, Err: errVerify}
	}

	// some directories expose additional attributes only to an
	// authenticated bind; keep the original entry if the re-fetch fails
	if srv.Strategy == BindAnonThenUser {
		if refetched, refKind, _ := e.locateEntry(att, srv, conn); refKind == OutcomeSuccess {
			entry = refetched
		} else {
			log.Debug().Str("attempt", att.id).Str("server", srv.Name).
				Msg("post-bind re-fetch failed, keeping original entry")
		}
	}

	if srv.Strategy == BindServiceAccount || srv.Strategy == BindAnonThenUser {
		log.Debug().Str("attempt", att.id).Str("server", srv.Name).
			Msg("closing lookup session")
	}

	return Outcome{Kind: OutcomeSuccess, Entry: e.applyTransforms(ctx, srv, entry), Server: srv}
}

// tryUserCredentials synthesizes a candidate DN from the configured template
// for each base DN and binds with the submitted password. Bind success alone
// is proof of identity; no search is performed and the candidate DN becomes
// the resolved entry's DN.
func (e *Engine) tryUserCredentials(ctx context.Context, att *attempt, srv *ServerConfig, conn Conn) Outcome {
	var lastErr error

	for _, baseDN := range srv.BaseDNs {
		candidate := strings.ReplaceAll(srv.UserDNTemplate, "%basedn", baseDN)
		candidate = strings.ReplaceAll(candidate, "%username", EscapeDNValue(att.login))

		if err := conn.Bind(candidate, att.password); err != nil {
			lastErr = err
			continue
		}

		entry := NewEntry(candidate, nil)

		if !e.policy.IsAllowed(ctx, conn, srv, entry, att.login) {
			log.Info().Str("attempt", att.id).Str("server", srv.Name).Str("dn", candidate).
				Msg("policy denied user")

			return Outcome{Kind: OutcomeDisallowed}
		}

		return Outcome{Kind: OutcomeSuccess, Entry: e.applyTransforms(ctx, srv, entry), Server: srv}
	}

	// a failed user bind means wrong credentials, not a service problem
	return Outcome{Kind: OutcomeCredentialsInvalid, Err: lastErr}
}

// bindSearchAccount performs the search-phase bind: the configured service
// account for BindServiceAccount, anonymous otherwise.
func (e *Engine) bindSearchAccount(srv *ServerConfig, conn Conn) error {
	if srv.Strategy == BindServiceAccount {
		return conn.Bind(srv.BindDN, srv.BindPassword)
	}

	return conn.Bind("", "")
}

// locateEntry searches every configured base DN for the login attribute and
// requires exactly one match across all of them combined. Zero and multiple
// matches both fail closed as user-not-found; a protocol-level search error
// is a directory-side fault and stops the whole server loop.
func (e *Engine) locateEntry(att *attempt, srv *ServerConfig, conn Conn) (*Entry, OutcomeKind, error) {
	filter := fmt.Sprintf("(%s=%s)", srv.LoginAttr, EscapeFilterValue(att.login))

	var matches []*Entry

	for _, baseDN := range srv.BaseDNs {
		entries, err := conn.Search(baseDN, filter, nil)
		if err != nil {
			log.Error().Str("attempt", att.id).Str("server", srv.Name).Err(err).
				Msg("user search failed")

			return nil, OutcomeServerError, err
		}

		matches = append(matches, entries...)
	}

	switch len(matches) {
	case 0:
		return nil, OutcomeUserNotFound, nil
	case 1:
		return matches[0], OutcomeSuccess, nil
	default:
		log.Warn().Str("attempt", att.id).Str("server", srv.Name).
			Int("matches", len(matches)).
			Msg("multiple entries matched one login name, failing closed")

		return nil, OutcomeUserNotFound, nil
	}
}

// ResolveEntry locates the user's directory entry without verifying
// credentials (SSO and provisioning flows). Results are cached for a few
// minutes; InvalidateEntryCache drops the cache when server configuration
// changes.
func (e *Engine) ResolveEntry(ctx context.Context, login string) (*Entry, *ServerConfig, error) {
	if entry, srv, ok := e.cache.get(login); ok {
		return entry, srv, nil
	}

	servers, err := e.registry.Enabled(ctx)
	if err != nil {
		return nil, nil, err
	}

	att := &attempt{id: uniuri.NewLen(8), login: login}

	var lastErr error

	for i := range servers {
		srv := &servers[i]

		// a user_credentials server cannot search without the user's password
		if srv.Strategy == BindUserCredentials {
			continue
		}

		entry, errResolve := e.resolveOn(att, srv)
		if errResolve != nil {
			lastErr = errResolve
			continue
		}

		if entry != nil {
			entry = e.applyTransforms(ctx, srv, entry)
			e.cache.put(login, entry, srv)

			return entry, srv, nil
		}
	}

	return nil, nil, lastErr
}

func (e *Engine) resolveOn(att *attempt, srv *ServerConfig) (*Entry, error) {
	conn, err := e.dial(srv)
	if err != nil {
		return nil, err
	}

	defer func() {
		if errClose := conn.Close(); errClose != nil {
			log.Warn().Str("server", srv.Name).Err(errClose).
				Msg("failed to close directory connection")
		}
	}()

	if errBind := e.bindSearchAccount(srv, conn); errBind != nil {
		return nil, errBind
	}

	entry, kind, errLocate := e.locateEntry(att, srv, conn)
	if kind == OutcomeServerError {
		return nil, errLocate
	}

	return entry, nil
}

// InvalidateEntryCache drops every cached resolved entry. Call whenever a
// server record changes.
func (e *Engine) InvalidateEntryCache() {
	e.cache.clear()
}
