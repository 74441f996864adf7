// Package auth runs the interactive OAuth 2.0 authorization-code flow that
// turns a browser login into a git credential.
//
// One call to Run performs one attempt: build the authorization URL with a
// fresh CSRF state, bind the loopback listener, present the URL, wait for the
// single redirect, check the state, exchange the code once and wrap the token
// in a credential.Provider. Any failure ends the attempt; nothing is retried
// and no credential is produced. A caller that wants another attempt calls
// Run again, which starts over with a new state and a new bind.
package auth

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-git-oauth/credential"
	"github.com/jrsteele09/go-git-oauth/internal/errors"
	"github.com/jrsteele09/go-git-oauth/loopback"
	"github.com/jrsteele09/go-git-oauth/oauthmodel"
	"github.com/jrsteele09/go-git-oauth/presenter"
	"github.com/jrsteele09/go-git-oauth/token"
	"github.com/rs/zerolog"
)

// AuthorizationFlow holds the collaborators of a login flow. It keeps no
// per-attempt state, so Run may be called repeatedly (not concurrently on the
// same port).
type AuthorizationFlow struct {
	config          oauthmodel.FlowConfig
	exchanger       token.Exchanger
	presenter       presenter.Presenter
	log             zerolog.Logger
	observer        StateObserver
	redirectTimeout time.Duration
	readTimeout     time.Duration
	newState        func() (string, error)
}

// FlowOption defines a function type to modify the AuthorizationFlow instance.
type FlowOption func(*AuthorizationFlow)

// WithExchanger replaces the token exchanger (default: token.CodeExchanger for
// the flow's config).
func WithExchanger(exchanger token.Exchanger) FlowOption {
	return func(f *AuthorizationFlow) {
		f.exchanger = exchanger
	}
}

// WithPresenter sets how the authorization URL reaches the human (default:
// printed to stderr).
func WithPresenter(p presenter.Presenter) FlowOption {
	return func(f *AuthorizationFlow) {
		f.presenter = p
	}
}

func WithLogger(log zerolog.Logger) FlowOption {
	return func(f *AuthorizationFlow) {
		f.log = log
	}
}

func WithStateObserver(observer StateObserver) FlowOption {
	return func(f *AuthorizationFlow) {
		f.observer = observer
	}
}

// WithRedirectTimeout gives up waiting for the browser after d. Zero waits
// until the context is cancelled.
func WithRedirectTimeout(d time.Duration) FlowOption {
	return func(f *AuthorizationFlow) {
		f.redirectTimeout = d
	}
}

// WithRequestReadTimeout bounds reading the request line once the browser has
// connected.
func WithRequestReadTimeout(d time.Duration) FlowOption {
	return func(f *AuthorizationFlow) {
		f.readTimeout = d
	}
}

// WithStateGenerator replaces the CSRF state source (primarily for testing)
func WithStateGenerator(gen func() (string, error)) FlowOption {
	return func(f *AuthorizationFlow) {
		f.newState = gen
	}
}

// NewAuthorizationFlow initializes a flow for config.
func NewAuthorizationFlow(config oauthmodel.FlowConfig, options ...FlowOption) (*AuthorizationFlow, error) {
	if config.ClientID() == "" {
		return nil, errors.Mark(errors.ErrConfigInvalid, nil, "[NewAuthorizationFlow] config was not built with oauthmodel.NewFlowConfig")
	}

	f := &AuthorizationFlow{
		config:    config,
		presenter: presenter.Writer{Out: os.Stderr},
		log:       zerolog.Nop(),
		newState:  generateState,
	}
	for _, opt := range options {
		opt(f)
	}
	if f.exchanger == nil {
		f.exchanger = token.NewCodeExchanger(config, token.WithLogger(f.log))
	}
	return f, nil
}

// Run performs one authorization attempt. It blocks until the browser
// redirect arrives, ctx is cancelled or the redirect timeout elapses.
func (f *AuthorizationFlow) Run(ctx context.Context) (*credential.Provider, error) {
	r := &attempt{
		flow:  f,
		id:    uuid.NewString(),
		state: StateIdle,
	}
	r.log = f.log.With().Str("flow_id", r.id).Logger()

	provider, err := r.execute(ctx)
	if err != nil {
		r.transition(StateFailed)
		r.log.Error().Err(err).Msg("[auth Run] login failed")
		return nil, err
	}
	return provider, nil
}

// attempt is the state of a single Run.
type attempt struct {
	flow  *AuthorizationFlow
	id    string
	state State
	log   zerolog.Logger
}

func (r *attempt) transition(to State) {
	if r.state.Terminal() {
		return
	}
	from := r.state
	r.state = to
	r.log.Debug().Stringer("from", from).Stringer("to", to).Msg("[auth Run] state")
	if r.flow.observer != nil {
		r.flow.observer(r.id, from, to)
	}
}

func (r *attempt) execute(ctx context.Context) (*credential.Provider, error) {
	f := r.flow
	r.log.Info().Object("config", f.config).Msg("[auth Run] starting login")

	csrfState, err := f.newState()
	if err != nil {
		return nil, errors.Wrapf(err, "[auth Run] generate state")
	}
	authURL := f.config.OAuth2Config().AuthCodeURL(csrfState)
	r.transition(StateAuthorizeURLBuilt)

	listenerOpts := []loopback.Option{loopback.WithLogger(r.log)}
	if f.readTimeout > 0 {
		listenerOpts = append(listenerOpts, loopback.WithReadTimeout(f.readTimeout))
	}
	listener, err := loopback.Bind(f.config.CallbackPort(), listenerOpts...)
	if err != nil {
		return nil, err
	}
	defer listener.Close()

	r.log.Info().Str("url", authURL).Msg("[auth Run] waiting for the browser to complete authorization")
	if f.presenter != nil {
		if err := f.presenter.Present(ctx, authURL); err != nil {
			r.log.Warn().Err(err).Msg("[auth Run] could not present authorization URL")
		}
	}

	waitCtx := ctx
	if f.redirectTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, f.redirectTimeout)
		defer cancel()
	}
	r.transition(StateAwaitingRedirect)
	redirect, err := listener.Await(waitCtx)
	if err != nil {
		return nil, err
	}
	r.transition(StateRedirectReceived)

	code, err := validateRedirect(redirect, csrfState)
	if err != nil {
		return nil, err
	}

	r.transition(StateExchanging)
	accessToken, err := f.exchanger.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	if accessToken.IsZero() {
		return nil, errors.Mark(errors.ErrTokenExchangeFailed, nil, "empty access token")
	}

	r.transition(StateCompleted)
	r.log.Info().Msg("[auth Run] login complete")
	return credential.NewProvider(f.config.Username(), accessToken), nil
}
