package errors

import (
	"errors"
	"fmt"
)

// Common error types for the game club server
var (
	// Configuration errors (fatal at startup)
	ErrMissingClientID     = errors.New("missing Google client id")
	ErrMissingClientSecret = errors.New("missing Google client secret")
	ErrMissingRedirectURI  = errors.New("missing Google redirect URI")
	ErrMissingSecret       = errors.New("missing session signing secret")

	// OAuth protocol errors (user restarts login)
	ErrProviderError  = errors.New("identity provider returned an error")
	ErrMissingParams  = errors.New("missing code or state parameter")
	ErrStateMismatch  = errors.New("oauth state mismatch")
	ErrPendingExpired = errors.New("pending login expired")
	ErrPendingAbsent  = errors.New("pending login cookie absent")

	// Identity errors (generic "authentication failed" to browsers)
	ErrTokenExchange    = errors.New("token exchange failed")
	ErrMissingIDToken   = errors.New("no id_token in token response")
	ErrTokenVerify      = errors.New("id token verification failed")
	ErrInvalidIssuer    = errors.New("unrecognized token issuer")
	ErrInvalidNonce     = errors.New("invalid nonce")
	ErrEmailNotVerified = errors.New("email not verified")

	// Membership errors
	ErrNotMember = errors.New("not an active member")

	// Session errors (degrade to "no session", never surfaced)
	ErrInvalidSession = errors.New("invalid session data")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
