package main

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/jrsteele09/go-git-oauth/auth"
	"github.com/jrsteele09/go-git-oauth/credential"
	"github.com/jrsteele09/go-git-oauth/gitremote"
	"github.com/jrsteele09/go-git-oauth/internal/config"
	"github.com/jrsteele09/go-git-oauth/oauthmodel"
	"github.com/jrsteele09/go-git-oauth/presenter"
	"github.com/jrsteele09/go-git-oauth/provider"
	"github.com/jrsteele09/go-git-oauth/token"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// options holds the flags shared by every command.
type options struct {
	provider     string
	issuer       string
	authURL      string
	tokenURL     string
	clientID     string
	clientSecret string
	port         string
	scopes       []string
	authStyle    string
	username     string
	timeout      time.Duration
	noBrowser    bool
	clipboard    bool
	logLevel     string
}

// newRootCmd creates the command tree. Flag defaults come from cfg so the
// environment configures everything a flag can.
func newRootCmd(cfg config.Config) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   cfg.GetAppName(),
		Short: "Log in to a git host with OAuth and use the token as a git credential.",
		Long: `gitauth runs the OAuth 2.0 authorization-code flow in your browser,
captures the redirect on a localhost port and uses the resulting access token
as an HTTPS git credential. Tokens live only as long as the process.`,
		SilenceUsage: true,
		Version:      version,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.provider, "provider", cfg.GetProvider(), "provider preset ("+strings.Join(append(provider.Names(), provider.CustomName), ", ")+")")
	pf.StringVar(&opts.issuer, "issuer", cfg.GetIssuer(), "OpenID Connect issuer to discover endpoints from")
	pf.StringVar(&opts.authURL, "auth-url", cfg.GetAuthURL(), "authorization endpoint (selects the custom provider)")
	pf.StringVar(&opts.tokenURL, "token-url", cfg.GetTokenURL(), "token endpoint (selects the custom provider)")
	pf.StringVar(&opts.clientID, "client-id", cfg.GetClientID(), "OAuth client id")
	pf.StringVar(&opts.clientSecret, "client-secret", cfg.GetClientSecret(), "OAuth client secret (prefer GITAUTH_CLIENT_SECRET)")
	pf.StringVar(&opts.port, "port", cfg.GetCallbackPort(), "localhost port the provider redirects to")
	pf.StringSliceVar(&opts.scopes, "scope", cfg.GetScopes(), "scopes to request (default from the provider preset)")
	pf.StringVar(&opts.authStyle, "auth-style", cfg.GetAuthStyle(), `client authentication at the token endpoint ("params" or "header"; default: the provider's)`)
	pf.StringVar(&opts.username, "username", cfg.GetCredentialUsername(), "username paired with the token")
	pf.DurationVar(&opts.timeout, "timeout", cfg.GetRedirectTimeout(), "how long to wait for the browser (0 waits forever)")
	pf.BoolVar(&opts.noBrowser, "no-browser", false, "print the URL without opening a browser")
	pf.BoolVar(&opts.clipboard, "clipboard", false, "copy the URL to the clipboard")
	pf.StringVar(&opts.logLevel, "log-level", cfg.GetLogLevel(), "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newLoginCmd(cfg, opts),
		newLsRemoteCmd(cfg, opts),
		newCloneCmd(cfg, opts),
		newCredentialCmd(cfg, opts),
	)
	return cmd
}

func newLoginCmd(cfg config.Config, opts *options) *cobra.Command {
	var printToken bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Run the browser login and report the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			displayAppname(cmd.ErrOrStderr(), cfg.GetAppName())
			p, _, err := login(cmd, cfg, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Login successful. Git credential username: %s\n", p.Username())
			if printToken {
				_, secret := p.Callback()("", "", credential.CredentialUserPassPlaintext)
				fmt.Fprintln(cmd.OutOrStdout(), secret)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&printToken, "print-token", false, "write the access token to stdout")
	return cmd
}

func newLsRemoteCmd(cfg config.Config, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ls-remote <url>",
		Short: "Log in, then list the references of a remote repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, log, err := login(cmd, cfg, opts)
			if err != nil {
				return err
			}
			refs, err := gitremote.New(p, log).ListRefs(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, r := range refs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", r.Hash, r.Name)
			}
			return nil
		},
	}
}

func newCloneCmd(cfg config.Config, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "clone <url> [dir]",
		Short: "Log in, then clone a repository over HTTPS",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := cloneDir(args[0])
			if len(args) == 2 {
				dir = args[1]
			}
			p, log, err := login(cmd, cfg, opts)
			if err != nil {
				return err
			}
			return gitremote.New(p, log).Clone(cmd.Context(), args[0], dir, cmd.ErrOrStderr())
		},
	}
}

func newCredentialCmd(cfg config.Config, opts *options) *cobra.Command {
	var host string
	cmd := &cobra.Command{
		Use:   "credential <get|store|erase>",
		Short: "git credential helper (git config credential.helper \"gitauth credential\")",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := credential.ReadHelperRequest(cmd.InOrStdin())
			if err != nil {
				return err
			}
			switch credential.HelperAction(args[0]) {
			case credential.HelperStore, credential.HelperErase:
				// Nothing is persisted, so there is nothing to store or erase.
				return nil
			case credential.HelperGet:
			default:
				return fmt.Errorf("unknown credential action %q", args[0])
			}

			if !req.Supports() {
				return nil
			}
			params, err := resolveParameters(commandContext(cmd), opts)
			if err != nil {
				return err
			}
			// Only the login's own host gets the token. Without a known host
			// the helper stays silent and git falls through to other helpers.
			if want := helperHost(host, params); want == "" || !strings.EqualFold(req.Host, want) {
				return nil
			}

			// stdout belongs to git, so the URL and logs go to stderr.
			p, _, err := runFlow(cmd, cfg, opts, params)
			if err != nil {
				return err
			}
			return p.WriteHelperResponse(cmd.OutOrStdout(), req)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "only answer for this host (default: the authorization endpoint's host)")
	return cmd
}

// helperHost is the host the helper answers for: the explicit --host, or the
// authorization endpoint's host. Empty means no host is known.
func helperHost(explicit string, params oauthmodel.FlowParameters) string {
	if explicit != "" {
		return explicit
	}
	u, err := url.Parse(params.AuthorizationEndpoint)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return ""
	}
	return u.Host
}

// cloneDir derives the checkout directory from a remote URL like git does.
func cloneDir(remoteURL string) string {
	trimmed := strings.TrimSuffix(strings.TrimRight(remoteURL, "/"), ".git")
	if u, err := url.Parse(trimmed); err == nil && u.Path != "" {
		trimmed = u.Path
	}
	return path.Base(trimmed)
}

// resolveParameters picks the endpoints: explicit URLs (the custom provider),
// then OIDC discovery, then a named preset.
func resolveParameters(ctx context.Context, opts *options) (oauthmodel.FlowParameters, error) {
	var preset provider.Preset
	switch {
	case strings.EqualFold(opts.provider, provider.CustomName) || opts.authURL != "" || opts.tokenURL != "":
		custom, err := provider.Custom(opts.authURL, opts.tokenURL)
		if err != nil {
			return oauthmodel.FlowParameters{}, err
		}
		preset = custom
	case opts.issuer != "":
		discovered, err := provider.Discover(ctx, opts.issuer)
		if err != nil {
			return oauthmodel.FlowParameters{}, err
		}
		preset = discovered
	default:
		named, err := provider.Lookup(opts.provider)
		if err != nil {
			return oauthmodel.FlowParameters{}, err
		}
		preset = named
	}

	params := preset.Parameters(opts.clientID, opts.clientSecret, opts.port, opts.scopes...)
	if opts.authStyle != "" {
		params.AuthStyle = oauthmodel.AuthStyle(opts.authStyle)
	}
	params.Username = opts.username
	return params, nil
}

func newLogger(cmd *cobra.Command, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen}).
		Level(lvl).
		With().Timestamp().Logger()
}

func presenters(cmd *cobra.Command, opts *options) presenter.Presenter {
	ps := presenter.Multi{presenter.Writer{Out: cmd.ErrOrStderr()}}
	if opts.clipboard {
		ps = append(ps, presenter.NewClipboard())
	}
	if !opts.noBrowser {
		ps = append(ps, presenter.NewBrowser())
	}
	return ps
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// login runs one authorization flow with the command's options.
func login(cmd *cobra.Command, cfg config.Config, opts *options) (*credential.Provider, zerolog.Logger, error) {
	params, err := resolveParameters(commandContext(cmd), opts)
	if err != nil {
		return nil, newLogger(cmd, opts.logLevel), err
	}
	return runFlow(cmd, cfg, opts, params)
}

func runFlow(cmd *cobra.Command, cfg config.Config, opts *options, params oauthmodel.FlowParameters) (*credential.Provider, zerolog.Logger, error) {
	log := newLogger(cmd, opts.logLevel)
	flowConfig, err := oauthmodel.NewFlowConfig(params)
	if err != nil {
		return nil, log, err
	}

	flow, err := auth.NewAuthorizationFlow(flowConfig,
		auth.WithLogger(log),
		auth.WithPresenter(presenters(cmd, opts)),
		auth.WithRedirectTimeout(opts.timeout),
		auth.WithRequestReadTimeout(cfg.GetRequestReadTimeout()),
		auth.WithExchanger(token.NewCodeExchanger(flowConfig,
			token.WithTimeout(cfg.GetExchangeTimeout()),
			token.WithLogger(log),
		)),
	)
	if err != nil {
		return nil, log, err
	}

	p, err := flow.Run(commandContext(cmd))
	return p, log, err
}
