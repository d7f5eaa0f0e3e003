package auth

import (
	"errors"

	"github.com/meltforce/fitcourse/internal/remote"
)

// Sentinel errors returned by providers and the account service.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailInUse         = errors.New("email already in use")
	ErrUserNotFound       = errors.New("user not found")
	ErrNotSignedIn        = errors.New("not signed in")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidToken       = errors.New("invalid or expired token")

	// ErrRemoteUnavailable is shared with the remote store so one errors.Is
	// check covers both auth and data calls.
	ErrRemoteUnavailable = remote.ErrUnavailable
)

// Wire codes, as exchanged with the backend in the "code" field of an error
// response.
var codes = []struct {
	code string
	err  error
}{
	{"auth/invalid-credential", ErrInvalidCredentials},
	{"auth/email-already-in-use", ErrEmailInUse},
	{"auth/user-not-found", ErrUserNotFound},
	{"auth/no-current-user", ErrNotSignedIn},
	{"auth/weak-password", ErrWeakPassword},
	{"auth/invalid-email", ErrInvalidEmail},
	{"auth/invalid-token", ErrInvalidToken},
	{"auth/network-request-failed", ErrRemoteUnavailable},
}

// ErrorCode returns the wire code for err, or "" if err is not an auth error.
func ErrorCode(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ""
}

// FromCode maps a wire code back to its sentinel. Unknown codes yield nil.
func FromCode(code string) error {
	for _, c := range codes {
		if c.code == code {
			return c.err
		}
	}
	return nil
}

// Message returns the text shown to a user for err.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "Wrong email or password."
	case errors.Is(err, ErrEmailInUse):
		return "This email is already registered."
	case errors.Is(err, ErrUserNotFound):
		return "No account with this email."
	case errors.Is(err, ErrWeakPassword):
		return "Password is too short: use at least 6 characters."
	case errors.Is(err, ErrInvalidEmail):
		return "Email address is not valid."
	case errors.Is(err, ErrNotSignedIn), errors.Is(err, ErrInvalidToken):
		return "Please sign in again."
	case errors.Is(err, ErrRemoteUnavailable):
		return "Server is unreachable, try again later."
	default:
		return "Something went wrong."
	}
}
