package token

import (
	"context"
	"net/http"
	"time"

	"github.com/jrsteele09/go-git-oauth/credential"
	"github.com/jrsteele09/go-git-oauth/internal/errors"
	"github.com/jrsteele09/go-git-oauth/oauthmodel"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const defaultExchangeTimeout = 30 * time.Second

// Exchanger trades an authorization code for an access token.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (credential.AccessToken, error)
}

// CodeExchanger performs the authorization_code grant against the configured
// token endpoint. It sends exactly one request per call and never follows
// redirects.
type CodeExchanger struct {
	config     oauthmodel.FlowConfig
	httpClient *http.Client
	timeout    time.Duration
	log        zerolog.Logger
}

var _ Exchanger = (*CodeExchanger)(nil)

// ExchangerOption defines a function type to modify the CodeExchanger instance.
type ExchangerOption func(*CodeExchanger)

// WithHTTPClient uses a copy of client for token requests. The copy's redirect
// policy is always replaced, so a caller cannot re-enable redirect following.
func WithHTTPClient(client *http.Client) ExchangerOption {
	return func(e *CodeExchanger) {
		if client == nil {
			return
		}
		c := *client
		e.httpClient = &c
	}
}

// WithTimeout bounds the whole token request, whichever client is used.
func WithTimeout(d time.Duration) ExchangerOption {
	return func(e *CodeExchanger) {
		e.timeout = d
	}
}

func WithLogger(log zerolog.Logger) ExchangerOption {
	return func(e *CodeExchanger) {
		e.log = log
	}
}

// NewCodeExchanger creates an exchanger for config.
func NewCodeExchanger(config oauthmodel.FlowConfig, options ...ExchangerOption) *CodeExchanger {
	e := &CodeExchanger{
		config:     config,
		httpClient: &http.Client{Timeout: defaultExchangeTimeout},
		log:        zerolog.Nop(),
	}
	for _, opt := range options {
		opt(e)
	}
	if e.timeout > 0 {
		e.httpClient.Timeout = e.timeout
	}
	e.httpClient.CheckRedirect = refuseRedirects
	return e
}

// refuseRedirects hands the 3xx response back to the caller, which then fails
// it as a non-2xx status. A redirected token request would replay the client
// credentials and the code to wherever the endpoint points.
func refuseRedirects(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

// Exchange posts grant_type=authorization_code with code and redirect_uri.
// Every failure wraps errors.ErrTokenExchangeFailed; nothing is retried. Only
// the access token is kept from the response.
func (e *CodeExchanger) Exchange(ctx context.Context, code string) (credential.AccessToken, error) {
	if code == "" {
		return credential.AccessToken{}, errors.Mark(errors.ErrTokenExchangeFailed, nil, "empty authorization code")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
	e.log.Debug().Str("token_endpoint", e.config.TokenEndpoint()).Msg("[token Exchange] requesting access token")

	tok, err := e.config.OAuth2Config().Exchange(ctx, code)
	if err != nil {
		return credential.AccessToken{}, describeFailure(err)
	}
	if tok.AccessToken == "" {
		return credential.AccessToken{}, errors.Mark(errors.ErrTokenExchangeFailed, nil, "response has no access_token")
	}

	e.log.Debug().Str("token_type", tok.Type()).Msg("[token Exchange] access token received")
	return credential.NewAccessToken(tok.AccessToken), nil
}

func describeFailure(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		if re.ErrorCode != "" {
			return errors.Mark(errors.ErrTokenExchangeFailed, err, "status %d, error %q", re.Response.StatusCode, re.ErrorCode)
		}
		return errors.Mark(errors.ErrTokenExchangeFailed, err, "status %d", re.Response.StatusCode)
	}
	return errors.Mark(errors.ErrTokenExchangeFailed, err, "request failed")
}
