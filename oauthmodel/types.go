package oauthmodel

// AuthStyle selects how the client credentials travel to the token endpoint.
// There is deliberately no auto-detect mode: auto-detection retries the token
// request, and an authorization code is exchanged exactly once.
type AuthStyle string

const (
	// AuthStyleParams sends client_id and client_secret in the form body
	// (client_secret_post). GitHub and GitLab accept this.
	AuthStyleParams AuthStyle = "params"

	// AuthStyleHeader sends the client credentials as HTTP Basic auth
	// (client_secret_basic).
	AuthStyleHeader AuthStyle = "header"
)

const (
	// DefaultScope grants repository read/write on GitHub.
	DefaultScope = "repo"

	// DefaultUsername is the conventional username paired with an OAuth
	// access token when authenticating git over HTTPS.
	DefaultUsername = "oauth2"

	// RedirectHost is the loopback host name used in the redirect URI.
	RedirectHost = "localhost"
)

// Query parameter names carried by the provider's redirect.
const (
	ParamCode             = "code"
	ParamState            = "state"
	ParamError            = "error"
	ParamErrorDescription = "error_description"
)
