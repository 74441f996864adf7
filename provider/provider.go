// Package provider knows the OAuth endpoints of common git hosts and can
// discover the endpoints of any OpenID Connect issuer.
package provider

import (
	"context"
	"sort"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-git-oauth/internal/errors"
	"github.com/jrsteele09/go-git-oauth/oauthmodel"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/gitlab"
)

// Preset describes where and how to log in to a provider.
type Preset struct {
	Name      string
	Endpoint  oauth2.Endpoint
	Scopes    []string
	AuthStyle oauthmodel.AuthStyle
}

var presets = map[string]Preset{
	"github": {
		Name:      "github",
		Endpoint:  github.Endpoint,
		Scopes:    []string{"repo"},
		AuthStyle: oauthmodel.AuthStyleParams,
	},
	"gitlab": {
		Name:      "gitlab",
		Endpoint:  gitlab.Endpoint,
		Scopes:    []string{"read_repository", "write_repository"},
		AuthStyle: oauthmodel.AuthStyleParams,
	},
}

// Lookup returns the named preset.
func Lookup(name string) (Preset, error) {
	p, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Preset{}, errors.Mark(errors.ErrUnknownProvider, nil, "%q (known: %s)", name, strings.Join(Names(), ", "))
	}
	p.Scopes = append([]string(nil), p.Scopes...)
	return p, nil
}

// Names lists the preset names in order.
func Names() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CustomName selects explicit endpoints instead of a preset.
const CustomName = "custom"

// Custom describes a provider given only its endpoints. Both are required.
// Client credentials go in an HTTP Basic header, the default of RFC 6749.
func Custom(authURL, tokenURL string) (Preset, error) {
	if strings.TrimSpace(authURL) == "" || strings.TrimSpace(tokenURL) == "" {
		return Preset{}, errors.Mark(errors.ErrConfigInvalid, nil, "%s provider needs both an authorization and a token endpoint", CustomName)
	}
	return Preset{
		Name:      CustomName,
		Endpoint:  oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL},
		Scopes:    []string{oauthmodel.DefaultScope},
		AuthStyle: oauthmodel.AuthStyleHeader,
	}, nil
}

// Discover reads the issuer's OpenID configuration document and returns its
// authorization and token endpoints. OpenID providers default to
// client_secret_basic, so the header style is used.
func Discover(ctx context.Context, issuer string) (Preset, error) {
	p, err := oidc.NewProvider(ctx, strings.TrimSpace(issuer))
	if err != nil {
		return Preset{}, errors.Mark(errors.ErrConfigInvalid, err, "discover %s", issuer)
	}
	return Preset{
		Name:      "oidc",
		Endpoint:  p.Endpoint(),
		Scopes:    []string{oidc.ScopeOpenID},
		AuthStyle: oauthmodel.AuthStyleHeader,
	}, nil
}

// Parameters fills the flow parameters from the preset. Explicit scopes
// replace the preset's.
func (p Preset) Parameters(clientID, clientSecret, callbackPort string, scopes ...string) oauthmodel.FlowParameters {
	if len(scopes) == 0 {
		scopes = p.Scopes
	}
	return oauthmodel.FlowParameters{
		AuthorizationEndpoint: p.Endpoint.AuthURL,
		TokenEndpoint:         p.Endpoint.TokenURL,
		ClientID:              clientID,
		ClientSecret:          clientSecret,
		CallbackPort:          callbackPort,
		Scopes:                scopes,
		AuthStyle:             p.AuthStyle,
	}
}
