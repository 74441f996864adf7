// Package credential turns an OAuth access token into the credentials a git
// transport asks for: a resolution callback, a go-git auth method, and the
// git credential-helper wire format.
package credential

import (
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/jrsteele09/go-git-oauth/internal/errors"
)

// CredentialType is the set of authentication methods a transport will accept
// for a request, as a bit mask.
type CredentialType uint

const (
	CredentialUserPassPlaintext CredentialType = 1 << iota
	CredentialSSHKey
	CredentialSSHMemory
	CredentialDefault
)

// Has reports whether every method in m is allowed.
func (c CredentialType) Has(m CredentialType) bool {
	return c&m == m
}

// Callback resolves credentials for a request target. It is shaped after the
// credential hooks git transports expose: the remote URL, the username found
// in that URL (if any) and the allowed credential types.
type Callback func(url, usernameHint string, allowed CredentialType) (username, secret string)

// AsCallback closes over token and username. The returned callback ignores all
// of its arguments, performs no I/O and cannot fail.
func AsCallback(username string, token AccessToken) Callback {
	return func(_, _ string, _ CredentialType) (string, string) {
		return username, token.Secret()
	}
}

// Provider supplies the credential obtained by one successful login flow.
type Provider struct {
	username string
	callback Callback
}

// NewProvider builds a Provider around token. It is only constructed after a
// successful token exchange.
func NewProvider(username string, token AccessToken) *Provider {
	return &Provider{
		username: username,
		callback: AsCallback(username, token),
	}
}

// Callback returns the credential-resolution callback to install into a git
// transport.
func (p *Provider) Callback() Callback {
	return p.callback
}

// Username returns the sentinel username paired with the token.
func (p *Provider) Username() string {
	return p.username
}

// AuthMethod returns go-git's HTTP basic auth for http(s) remotes. Other
// transports cannot carry an OAuth token and yield ErrUnsupportedRemote.
func (p *Provider) AuthMethod(remoteURL string) (transport.AuthMethod, error) {
	ep, err := transport.NewEndpoint(remoteURL)
	if err != nil {
		return nil, errors.Mark(errors.ErrUnsupportedRemote, err, "parse %q", remoteURL)
	}
	switch ep.Protocol {
	case "https", "http":
	default:
		return nil, errors.Mark(errors.ErrUnsupportedRemote, nil, "%s remotes cannot use an OAuth token", ep.Protocol)
	}

	username, secret := p.callback(remoteURL, ep.User, CredentialUserPassPlaintext)
	return &githttp.BasicAuth{Username: username, Password: secret}, nil
}
