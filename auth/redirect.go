package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"

	"github.com/jrsteele09/go-git-oauth/internal/errors"
	"github.com/jrsteele09/go-git-oauth/loopback"
	"github.com/jrsteele09/go-git-oauth/oauthmodel"
)

const stateBytes = 32 // 256 bits

// generateState creates a random base64url CSRF state.
func generateState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// validateRedirect returns the authorization code once the redirect is known
// to answer the request that carried expectedState. A state that is present
// must match before anything else in the redirect is trusted, including a
// provider error.
func validateRedirect(redirect loopback.RedirectRequest, expectedState string) (string, error) {
	state := redirect.Get(oauthmodel.ParamState)
	if state != "" && subtle.ConstantTimeCompare([]byte(state), []byte(expectedState)) != 1 {
		return "", errors.ErrCsrfMismatch
	}

	if e := redirect.Get(oauthmodel.ParamError); e != "" {
		if desc := redirect.Get(oauthmodel.ParamErrorDescription); desc != "" {
			return "", errors.Mark(errors.ErrAuthorizationDenied, nil, "%s: %s", e, desc)
		}
		return "", errors.Mark(errors.ErrAuthorizationDenied, nil, "%s", e)
	}

	code := redirect.Get(oauthmodel.ParamCode)
	if code == "" {
		return "", errors.Mark(errors.ErrMissingParameter, nil, "%s", oauthmodel.ParamCode)
	}
	if state == "" {
		return "", errors.Mark(errors.ErrMissingParameter, nil, "%s", oauthmodel.ParamState)
	}
	return code, nil
}
