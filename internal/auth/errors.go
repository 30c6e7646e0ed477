package auth

import "errors"

var (
	// ErrInvalidCredentials is the generic login failure shown to users. It
	// deliberately covers unknown user, wrong password and generic failures
	// so a caller cannot probe which accounts exist.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrAccountDisabled is returned when the matched account is inactive.
	ErrAccountDisabled = errors.New("user account is disabled")

	// ErrAccountDisallowed is returned when admission policy denied the user.
	ErrAccountDisallowed = errors.New("account is not permitted to log in")

	// ErrDirectoryUnavailable is returned for directory-side faults, so
	// operators can distinguish an outage from bad credentials.
	ErrDirectoryUnavailable = errors.New("directory service unavailable")

	// ErrInvalidOldPassword is returned when a password change supplies a
	// wrong current password.
	ErrInvalidOldPassword = errors.New("invalid old password")

	// ErrUserNameOrEmailExists is returned when creating a user whose
	// username or email is already taken.
	ErrUserNameOrEmailExists = errors.New("user with username or email already exists")
)
