package oauthmodel

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/jrsteele09/go-git-oauth/internal/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// FlowParameters holds the caller-supplied values used to build a FlowConfig.
type FlowParameters struct {
	// AuthorizationEndpoint is where the human authenticates and grants scope.
	// Required: Yes
	// Example: "https://github.com/login/oauth/authorize"
	AuthorizationEndpoint string

	// TokenEndpoint exchanges an authorization code for an access token.
	// Required: Yes
	// Example: "https://github.com/login/oauth/access_token"
	TokenEndpoint string

	// ClientID identifies the registered OAuth application.
	// Required: Yes
	ClientID string

	// ClientSecret authenticates the application at the token endpoint.
	// Required: No (public clients)
	// Security: never logged or included in error text
	ClientSecret string

	// CallbackPort is the loopback port the provider redirects to.
	// Required: Yes
	// Example: "51789" gives redirect_uri http://localhost:51789
	CallbackPort string

	// Scopes requested at the authorization endpoint.
	// Required: No (defaults to DefaultScope)
	Scopes []string

	// AuthStyle controls how client credentials are attached to the token request.
	// Required: No (defaults to AuthStyleParams)
	AuthStyle AuthStyle

	// Username is paired with the access token in the git credential.
	// Required: No (defaults to DefaultUsername)
	Username string
}

// FlowConfig is the validated, immutable configuration of one login flow.
type FlowConfig struct {
	authorizationEndpoint string
	tokenEndpoint         string
	clientID              string
	clientSecret          string
	callbackPort          string
	scopes                []string
	authStyle             AuthStyle
	username              string
}

var (
	_ zerolog.LogObjectMarshaler = FlowConfig{}
	_ fmt.Stringer               = FlowConfig{}
)

// NewFlowConfig validates p and returns the resulting configuration.
// Every validation failure wraps errors.ErrConfigInvalid.
func NewFlowConfig(p FlowParameters) (FlowConfig, error) {
	authURL, err := validateEndpoint("authorization endpoint", p.AuthorizationEndpoint)
	if err != nil {
		return FlowConfig{}, err
	}
	tokenURL, err := validateEndpoint("token endpoint", p.TokenEndpoint)
	if err != nil {
		return FlowConfig{}, err
	}
	if strings.TrimSpace(p.ClientID) == "" {
		return FlowConfig{}, errors.Mark(errors.ErrConfigInvalid, nil, "client id is required")
	}
	if err := validatePort(p.CallbackPort); err != nil {
		return FlowConfig{}, err
	}

	style := p.AuthStyle
	switch style {
	case "":
		style = AuthStyleParams
	case AuthStyleParams, AuthStyleHeader:
	default:
		return FlowConfig{}, errors.Mark(errors.ErrConfigInvalid, nil, "unsupported auth style %q", style)
	}

	scopes := make([]string, 0, len(p.Scopes))
	for _, s := range p.Scopes {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}
	if len(scopes) == 0 {
		scopes = []string{DefaultScope}
	}

	username := strings.TrimSpace(p.Username)
	if username == "" {
		username = DefaultUsername
	}

	return FlowConfig{
		authorizationEndpoint: authURL,
		tokenEndpoint:         tokenURL,
		clientID:              strings.TrimSpace(p.ClientID),
		clientSecret:          p.ClientSecret,
		callbackPort:          strings.TrimSpace(p.CallbackPort),
		scopes:                scopes,
		authStyle:             style,
		username:              username,
	}, nil
}

func validateEndpoint(name, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.Mark(errors.ErrConfigInvalid, nil, "%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.Mark(errors.ErrConfigInvalid, err, "%s", name)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", errors.Mark(errors.ErrConfigInvalid, nil, "%s must be an http(s) URL", name)
	}
	if u.Host == "" {
		return "", errors.Mark(errors.ErrConfigInvalid, nil, "%s has no host", name)
	}
	if u.Fragment != "" {
		return "", errors.Mark(errors.ErrConfigInvalid, nil, "%s must not contain a fragment", name)
	}
	return u.String(), nil
}

func validatePort(port string) error {
	n, err := strconv.Atoi(strings.TrimSpace(port))
	if err != nil {
		return errors.Mark(errors.ErrConfigInvalid, nil, "callback port %q is not a number", port)
	}
	if n < 1 || n > 65535 {
		return errors.Mark(errors.ErrConfigInvalid, nil, "callback port %d out of range", n)
	}
	return nil
}

func (c FlowConfig) AuthorizationEndpoint() string { return c.authorizationEndpoint }
func (c FlowConfig) TokenEndpoint() string         { return c.tokenEndpoint }
func (c FlowConfig) ClientID() string              { return c.clientID }
func (c FlowConfig) CallbackPort() string          { return c.callbackPort }
func (c FlowConfig) AuthStyle() AuthStyle          { return c.authStyle }
func (c FlowConfig) Username() string              { return c.username }

// Scopes returns a copy of the requested scopes.
func (c FlowConfig) Scopes() []string {
	return append([]string(nil), c.scopes...)
}

// CallbackAddress is the host:port the loopback listener binds.
func (c FlowConfig) CallbackAddress() string {
	return net.JoinHostPort(RedirectHost, c.callbackPort)
}

// RedirectURI is the redirect_uri sent in both the authorization and token
// requests: http://localhost:<port>
func (c FlowConfig) RedirectURI() string {
	return "http://" + c.CallbackAddress()
}

// OAuth2Config lends the settings, client secret included, to the code that
// talks to the provider. Callers must not retain the result.
func (c FlowConfig) OAuth2Config() *oauth2.Config {
	style := oauth2.AuthStyleInParams
	if c.authStyle == AuthStyleHeader {
		style = oauth2.AuthStyleInHeader
	}
	return &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.authorizationEndpoint,
			TokenURL:  c.tokenEndpoint,
			AuthStyle: style,
		},
		RedirectURL: c.RedirectURI(),
		Scopes:      c.Scopes(),
	}
}

// MarshalZerologObject logs everything except the client secret.
func (c FlowConfig) MarshalZerologObject(e *zerolog.Event) {
	e.Str("authorization_endpoint", c.authorizationEndpoint).
		Str("token_endpoint", c.tokenEndpoint).
		Str("client_id", c.clientID).
		Str("redirect_uri", c.RedirectURI()).
		Strs("scopes", c.scopes).
		Str("auth_style", string(c.authStyle)).
		Bool("client_secret_set", c.clientSecret != "")
}

func (c FlowConfig) String() string {
	return fmt.Sprintf("FlowConfig{authorization_endpoint=%s token_endpoint=%s client_id=%s redirect_uri=%s}",
		c.authorizationEndpoint, c.tokenEndpoint, c.clientID, c.RedirectURI())
}

// GoString keeps %#v from printing the secret field.
func (c FlowConfig) GoString() string {
	return c.String()
}
