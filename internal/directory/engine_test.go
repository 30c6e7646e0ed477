package directory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn is a scripted directory session for tests.
type fakeConn struct {
	bind   func(dn, password string) error
	search func(baseDN, filter string, attributes []string) ([]*Entry, error)
	closed bool
}

func (c *fakeConn) Bind(dn, password string) error {
	if c.bind == nil {
		return nil
	}

	return c.bind(dn, password)
}

func (c *fakeConn) Search(baseDN, filter string, attributes []string) ([]*Entry, error) {
	if c.search == nil {
		return nil, nil
	}

	return c.search(baseDN, filter, attributes)
}

func (c *fakeConn) Add(string, map[string][]string) error { return nil }
func (c *fakeConn) Modify(*ModifyRequest) error           { return nil }
func (c *fakeConn) Delete(string) error                   { return nil }

func (c *fakeConn) Close() error {
	c.closed = true

	return nil
}

// staticRegistry serves a fixed server list.
type staticRegistry struct {
	servers []ServerConfig
}

func (r staticRegistry) All(context.Context) ([]ServerConfig, error)     { return r.servers, nil }
func (r staticRegistry) Enabled(context.Context) ([]ServerConfig, error) { return r.servers, nil }

func (r staticRegistry) ByID(_ context.Context, id uint) (*ServerConfig, error) {
	for i := range r.servers {
		if r.servers[i].ID == id {
			return &r.servers[i], nil
		}
	}

	return nil, nil
}

// policyFunc adapts a function to the Policy interface.
type policyFunc func(ctx context.Context, conn Conn, server *ServerConfig, entry *Entry, login string) bool

func (f policyFunc) IsAllowed(ctx context.Context, conn Conn, server *ServerConfig, entry *Entry, login string) bool {
	return f(ctx, conn, server, entry, login)
}

func serviceAccountServer(name string) ServerConfig {
	return ServerConfig{
		Name:         name,
		Strategy:     BindServiceAccount,
		BindDN:       "cn=lookup,dc=hogwarts,dc=edu",
		BindPassword: "lookup-secret",
		BaseDNs:      []string{"dc=hogwarts,dc=edu"},
		LoginAttr:    "uid",
	}
}

const hpotterDN = "cn=hpotter,ou=people,dc=hogwarts,dc=edu"

func hpotterEntry() *Entry {
	return NewEntry(hpotterDN, map[string][][]byte{
		"uid":  {[]byte("hpotter")},
		"mail": {[]byte("hpotter@hogwarts.edu")},
	})
}

// hogwartsConn simulates a directory holding exactly one user.
func hogwartsConn(userPassword string) *fakeConn {
	return &fakeConn{
		bind: func(dn, password string) error {
			switch {
			case dn == "cn=lookup,dc=hogwarts,dc=edu" && password == "lookup-secret":
				return nil
			case dn == hpotterDN && password == userPassword:
				return nil
			default:
				return errors.New("invalid credentials")
			}
		},
		search: func(_, filter string, _ []string) ([]*Entry, error) {
			if strings.Contains(filter, "uid=hpotter") {
				return []*Entry{hpotterEntry()}, nil
			}

			return nil, nil
		},
	}
}

func TestAuthenticateSuccess(t *testing.T) {
	srv := serviceAccountServer("hogwarts")

	engine := NewEngine(staticRegistry{servers: []ServerConfig{srv}}, nil,
		func(*ServerConfig) (Conn, error) { return hogwartsConn("wingardium"), nil })

	out := engine.Authenticate(context.Background(), "hpotter", "wingardium")

	require.True(t, out.Ok())
	require.NotNil(t, out.Entry)
	assert.Equal(t, hpotterDN, out.Entry.DN())
	assert.Equal(t, "hogwarts", out.Server.Name)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	srv := serviceAccountServer("hogwarts")

	engine := NewEngine(staticRegistry{servers: []ServerConfig{srv}}, nil,
		func(*ServerConfig) (Conn, error) { return hogwartsConn("wingardium"), nil })

	out := engine.Authenticate(context.Background(), "hpotter", "leviosaa")

	assert.Equal(t, OutcomeCredentialsInvalid, out.Kind)
	assert.Nil(t, out.Entry)
}

func TestAuthenticateEmptyPassword(t *testing.T) {
	dialed := 0

	engine := NewEngine(staticRegistry{servers: []ServerConfig{serviceAccountServer("hogwarts")}}, nil,
		func(*ServerConfig) (Conn, error) {
			dialed++

			return hogwartsConn("wingardium"), nil
		})

	out := engine.Authenticate(context.Background(), "hpotter", "")

	assert.Equal(t, OutcomeCredentialsInvalid, out.Kind)
	assert.Zero(t, dialed, "empty password must not reach the directory")
}

func TestAuthenticateUnknownUser(t *testing.T) {
	srv := serviceAccountServer("hogwarts")

	engine := NewEngine(staticRegistry{servers: []ServerConfig{srv}}, nil,
		func(*ServerConfig) (Conn, error) { return hogwartsConn("wingardium"), nil })

	out := engine.Authenticate(context.Background(), "voldemort", "horcrux")

	assert.Equal(t, OutcomeUserNotFound, out.Kind)
}

func TestAuthenticateMultipleMatchesFailClosed(t *testing.T) {
	srv := serviceAccountServer("hogwarts")

	conn := &fakeConn{
		search: func(string, string, []string) ([]*Entry, error) {
			return []*Entry{hpotterEntry(), hpotterEntry()}, nil
		},
	}

	engine := NewEngine(staticRegistry{servers: []ServerConfig{srv}}, nil,
		func(*ServerConfig) (Conn, error) { return conn, nil })

	out := engine.Authenticate(context.Background(), "hpotter", "wingardium")

	assert.Equal(t, OutcomeUserNotFound, out.Kind)
}

func TestAuthenticateAdvancesToNextServer(t *testing.T) {
	servers := []ServerConfig{
		serviceAccountServer("down"),
		serviceAccountServer("empty"),
		serviceAccountServer("hogwarts"),
	}

	engine := NewEngine(staticRegistry{servers: servers}, nil,
		func(cfg *ServerConfig) (Conn, error) {
			switch cfg.Name {
			case "down":
				return nil, errors.New("connection refused")
			case "empty":
				return &fakeConn{}, nil
			default:
				return hogwartsConn("wingardium"), nil
			}
		})

	out := engine.Authenticate(context.Background(), "hpotter", "wingardium")

	require.True(t, out.Ok())
	assert.Equal(t, "hogwarts", out.Server.Name)
}

func TestAuthenticateReturnsLastFailureWhenExhausted(t *testing.T) {
	servers := []ServerConfig{
		serviceAccountServer("down"),
		serviceAccountServer("badsvc"),
	}

	engine := NewEngine(staticRegistry{servers: servers}, nil,
		func(cfg *ServerConfig) (Conn, error) {
			if cfg.Name == "down" {
				return nil, errors.New("connection refused")
			}

			return &fakeConn{
				bind: func(string, string) error { return errors.New("service account rejected") },
			}, nil
		})

	out := engine.Authenticate(context.Background(), "hpotter", "wingardium")

	assert.Equal(t, OutcomeBindFailed, out.Kind)
}

func TestAuthenticateNoServers(t *testing.T) {
	engine := NewEngine(staticRegistry{}, nil,
		func(*ServerConfig) (Conn, error) { return &fakeConn{}, nil })

	out := engine.Authenticate(context.Background(), "hpotter", "wingardium")

	assert.Equal(t, OutcomeGenericFailure, out.Kind)
}

func TestAuthenticateDisallowedStopsLoop(t *testing.T) {
	servers := []ServerConfig{
		serviceAccountServer("first"),
		serviceAccountServer("second"),
	}

	dialed := map[string]int{}

	deny := policyFunc(func(context.Context, Conn, *ServerConfig, *Entry, string) bool {
		return false
	})

	engine := NewEngine(staticRegistry{servers: servers}, deny,
		func(cfg *ServerConfig) (Conn, error) {
			dialed[cfg.Name]++

			return hogwartsConn("wingardium"), nil
		})

	out := engine.Authenticate(context.Background(), "hpotter", "wingardium")

	assert.Equal(t, OutcomeDisallowed, out.Kind)
	assert.Equal(t, 1, dialed["first"])
	assert.Zero(t, dialed["second"], "a disallowed user must not fall through to the next server")
}

func TestAuthenticateServerErrorStopsLoop(t *testing.T) {
	servers := []ServerConfig{
		serviceAccountServer("faulty"),
		serviceAccountServer("healthy"),
	}

	dialed := map[string]int{}

	engine := NewEngine(staticRegistry{servers: servers}, nil,
		func(cfg *ServerConfig) (Conn, error) {
			dialed[cfg.Name]++

			if cfg.Name == "faulty" {
				return &fakeConn{
					search: func(string, string, []string) ([]*Entry, error) {
						return nil, errors.New("size limit exceeded")
					},
				}, nil
			}

			return hogwartsConn("wingardium"), nil
		})

	out := engine.Authenticate(context.Background(), "hpotter", "wingardium")

	assert.Equal(t, OutcomeServerError, out.Kind)
	assert.Zero(t, dialed["healthy"])
}

func TestAuthenticateUserCredentialsBind(t *testing.T) {
	srv := ServerConfig{
		Name:           "direct",
		Strategy:       BindUserCredentials,
		UserDNTemplate: "cn=%username,%basedn",
		BaseDNs:        []string{"ou=staff,dc=hogwarts,dc=edu", "ou=people,dc=hogwarts,dc=edu"},
	}

	var boundDNs []string

	conn := &fakeConn{
		bind: func(dn, password string) error {
			boundDNs = append(boundDNs, dn)

			if dn == hpotterDN && password == "wingardium" {
				return nil
			}

			return errors.New("invalid credentials")
		},
	}

	engine := NewEngine(staticRegistry{servers: []ServerConfig{srv}}, nil,
		func(*ServerConfig) (Conn, error) { return conn, nil })

	out := engine.Authenticate(context.Background(), "hpotter", "wingardium")

	require.True(t, out.Ok())
	assert.Equal(t, hpotterDN, out.Entry.DN())
	// first base DN tried and rejected, second accepted
	assert.Equal(t, []string{"cn=hpotter,ou=staff,dc=hogwarts,dc=edu", hpotterDN}, boundDNs)
}

func TestAuthenticateUserCredentialsBindEscapesLogin(t *testing.T) {
	srv := ServerConfig{
		Name:           "direct",
		Strategy:       BindUserCredentials,
		UserDNTemplate: "cn=%username,%basedn",
		BaseDNs:        []string{"dc=hogwarts,dc=edu"},
	}

	var boundDN string

	conn := &fakeConn{
		bind: func(dn, _ string) error {
			boundDN = dn

			return errors.New("invalid credentials")
		},
	}

	engine := NewEngine(staticRegistry{servers: []ServerConfig{srv}}, nil,
		func(*ServerConfig) (Conn, error) { return conn, nil })

	out := engine.Authenticate(context.Background(), "potter, harry", "x")

	assert.Equal(t, OutcomeCredentialsInvalid, out.Kind)
	assert.Equal(t, `cn=potter\, harry,dc=hogwarts,dc=edu`, boundDN)
}

func TestAuthenticateAnonThenUserRefetch(t *testing.T) {
	srv := ServerConfig{
		Name:      "refetch",
		Strategy:  BindAnonThenUser,
		BaseDNs:   []string{"dc=hogwarts,dc=edu"},
		LoginAttr: "uid",
	}

	bound := false

	conn := &fakeConn{
		bind: func(dn, password string) error {
			if dn == "" && password == "" {
				return nil
			}

			if dn == hpotterDN && password == "wingardium" {
				bound = true

				return nil
			}

			return errors.New("invalid credentials")
		},
		search: func(string, string, []string) ([]*Entry, error) {
			if bound {
				return []*Entry{NewEntry(hpotterDN, map[string][][]byte{
					"uid":  {[]byte("hpotter")},
					"mail": {[]byte("hpotter@hogwarts.edu")},
				})}, nil
			}

			// anonymous searches see a stripped entry
			return []*Entry{NewEntry(hpotterDN, map[string][][]byte{
				"uid": {[]byte("hpotter")},
			})}, nil
		},
	}

	engine := NewEngine(staticRegistry{servers: []ServerConfig{srv}}, nil,
		func(*ServerConfig) (Conn, error) { return conn, nil })

	out := engine.Authenticate(context.Background(), "hpotter", "wingardium")

	require.True(t, out.Ok())
	assert.Equal(t, "hpotter@hogwarts.edu", out.Entry.Value("mail"),
		"entry should be re-fetched with the authenticated bind")
}

func TestResolveEntryCachesResult(t *testing.T) {
	dialed := 0

	engine := NewEngine(staticRegistry{servers: []ServerConfig{serviceAccountServer("hogwarts")}}, nil,
		func(*ServerConfig) (Conn, error) {
			dialed++

			return hogwartsConn("wingardium"), nil
		})

	entry, srv, err := engine.ResolveEntry(context.Background(), "hpotter")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, hpotterDN, entry.DN())
	assert.Equal(t, "hogwarts", srv.Name)
	assert.Equal(t, 1, dialed)

	_, _, err = engine.ResolveEntry(context.Background(), "hpotter")
	require.NoError(t, err)
	assert.Equal(t, 1, dialed, "second resolve should be served from cache")

	engine.InvalidateEntryCache()

	_, _, err = engine.ResolveEntry(context.Background(), "hpotter")
	require.NoError(t, err)
	assert.Equal(t, 2, dialed, "invalidation should force a fresh lookup")
}

func TestResolveEntrySkipsUserCredentialsServers(t *testing.T) {
	direct := ServerConfig{
		Name:           "direct",
		Strategy:       BindUserCredentials,
		UserDNTemplate: "cn=%username,%basedn",
		BaseDNs:        []string{"dc=hogwarts,dc=edu"},
	}

	var dialedNames []string

	engine := NewEngine(staticRegistry{servers: []ServerConfig{direct, serviceAccountServer("hogwarts")}}, nil,
		func(cfg *ServerConfig) (Conn, error) {
			dialedNames = append(dialedNames, cfg.Name)

			return hogwartsConn("wingardium"), nil
		})

	entry, _, err := engine.ResolveEntry(context.Background(), "hpotter")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, []string{"hogwarts"}, dialedNames)
}

func TestAuthenticateAppliesEntryTransforms(t *testing.T) {
	srv := serviceAccountServer("hogwarts")

	engine := NewEngine(staticRegistry{servers: []ServerConfig{srv}}, nil,
		func(*ServerConfig) (Conn, error) { return hogwartsConn("wingardium"), nil })

	engine.AddTransform(func(_ context.Context, _ *ServerConfig, entry *Entry) *Entry {
		return NewEntry(entry.DN(), map[string][][]byte{
			"house": {[]byte("Gryffindor")},
		})
	})

	// nil return keeps the previous entry
	engine.AddTransform(func(context.Context, *ServerConfig, *Entry) *Entry { return nil })

	out := engine.Authenticate(context.Background(), "hpotter", "wingardium")

	require.True(t, out.Ok())
	assert.Equal(t, "Gryffindor", out.Entry.Value("house"))
	assert.Equal(t, hpotterDN, out.Entry.DN())
}
