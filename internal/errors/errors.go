package errors

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by a login flow. Every failure is terminal for the
// invocation that produced it; callers restart the whole flow to try again.
var (
	// Configuration errors
	ErrConfigInvalid   = errors.New("invalid flow configuration")
	ErrUnknownProvider = errors.New("unknown provider")

	// Loopback errors
	ErrPortUnavailable   = errors.New("callback port unavailable")
	ErrMalformedRedirect = errors.New("malformed redirect request")
	ErrFlowCancelled     = errors.New("login flow cancelled")

	// Redirect validation errors
	ErrMissingParameter    = errors.New("missing redirect parameter")
	ErrCsrfMismatch        = errors.New("state mismatch: possible request forgery")
	ErrAuthorizationDenied = errors.New("authorization denied by provider")

	// Token errors
	ErrTokenExchangeFailed = errors.New("token exchange failed")

	// Credential errors
	ErrUnsupportedRemote = errors.New("unsupported remote")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Mark tags cause with one of the error kinds above, keeping both in the chain.
// A nil cause yields the kind plus detail.
func Mark(kind error, cause error, format string, args ...interface{}) error {
	detail := fmt.Sprintf(format, args...)
	if cause == nil {
		return fmt.Errorf("%w: %s", kind, detail)
	}
	return fmt.Errorf("%w: %s: %w", kind, detail, cause)
}

// New returns a plain error, so callers need not import both error packages
func New(text string) error {
	return errors.New(text)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
