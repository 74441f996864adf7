package config

import "time"

const (
	callbackPortVar    = "GITAUTH_CALLBACK_PORT"
	redirectTimeoutVar = "GITAUTH_TIMEOUT"
	authStyleVar       = "GITAUTH_AUTH_STYLE"
	usernameVar        = "GITAUTH_USERNAME"
)

type OAuthConfig interface {
	GetCallbackPort() string
	GetRedirectTimeout() time.Duration
	GetExchangeTimeout() time.Duration
	GetRequestReadTimeout() time.Duration
	GetAuthStyle() string
	GetCredentialUsername() string
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetCallbackPort() string {
	return GetEnv(callbackPortVar, "51789")
}

// GetRedirectTimeout bounds how long the loopback listener waits for the
// browser. Zero disables the bound; cancellation still applies.
func (OAuth) GetRedirectTimeout() time.Duration {
	d, err := time.ParseDuration(GetEnv(redirectTimeoutVar, "5m"))
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

func (OAuth) GetExchangeTimeout() time.Duration {
	return 30 * time.Second
}

func (OAuth) GetRequestReadTimeout() time.Duration {
	return 30 * time.Second
}

// GetAuthStyle is "params" (client_id/client_secret in the form body),
// "header" (HTTP Basic) or empty to use the provider's style.
func (OAuth) GetAuthStyle() string {
	return GetEnv(authStyleVar, "")
}

func (OAuth) GetCredentialUsername() string {
	return GetEnv(usernameVar, "oauth2")
}
