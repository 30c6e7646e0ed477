package directory

// OutcomeKind classifies the result of one authentication attempt.
type OutcomeKind uint8

const (
	// OutcomeGenericFailure is the default failure when no server was even attempted.
	OutcomeGenericFailure OutcomeKind = iota
	// OutcomeSuccess means the user was authenticated and admitted.
	OutcomeSuccess
	// OutcomeConnectFailed means the server could not be reached.
	OutcomeConnectFailed
	// OutcomeBindFailed means the search-phase bind was rejected.
	OutcomeBindFailed
	// OutcomeUserNotFound means zero entries (or, fail closed, more than one)
	// matched the login name.
	OutcomeUserNotFound
	// OutcomeCredentialsInvalid means the user's own bind was rejected.
	OutcomeCredentialsInvalid
	// OutcomeDisallowed means policy denied the user; no further server is tried.
	OutcomeDisallowed
	// OutcomeServerError means a directory-side fault occurred; no further
	// server is tried.
	OutcomeServerError
)

// String implements fmt.Stringer for diagnostics.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeConnectFailed:
		return "connect_failed"
	case OutcomeBindFailed:
		return "bind_failed"
	case OutcomeUserNotFound:
		return "user_not_found"
	case OutcomeCredentialsInvalid:
		return "credentials_invalid"
	case OutcomeDisallowed:
		return "disallowed"
	case OutcomeServerError:
		return "server_error"
	default:
		return "generic_failure"
	}
}

// Recoverable reports whether the engine may continue with the next
// configured server after this result. Disallowed and ServerError are
// definitive: a disallowed user must not succeed by falling through to
// another server, and a directory-side fault makes further probing
// meaningless.
func (k OutcomeKind) Recoverable() bool {
	switch k {
	case OutcomeDisallowed, OutcomeServerError, OutcomeSuccess:
		return false
	default:
		return true
	}
}

// Outcome is the typed result of one authentication call. Entry and Server
// are set only for OutcomeSuccess; Err carries the underlying diagnostic of
// the last failure, if any.
type Outcome struct {
	Kind   OutcomeKind
	Entry  *Entry
	Server *ServerConfig
	Err    error
}

// Ok reports whether the outcome is a success.
func (o Outcome) Ok() bool {
	return o.Kind == OutcomeSuccess
}
