package config

import (
	"os"
	"strings"
)

const (
	appNameVar  = "GITAUTH_APP_NAME"
	logLevelVar = "GITAUTH_LOG_LEVEL"

	providerVar     = "GITAUTH_PROVIDER"
	issuerVar       = "GITAUTH_ISSUER"
	authURLVar      = "GITAUTH_AUTH_URL"
	tokenURLVar     = "GITAUTH_TOKEN_URL"
	clientIDVar     = "GITAUTH_CLIENT_ID"
	clientSecretVar = "GITAUTH_CLIENT_SECRET"
	scopesVar       = "GITAUTH_SCOPES"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "gitauth")
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

type Provider struct{}

var _ ProviderConfig = Provider{}

// GetProvider returns the preset name ("github", "gitlab") or "custom" when
// endpoints are given explicitly.
func (Provider) GetProvider() string {
	return GetEnv(providerVar, "github")
}

// GetIssuer returns an OIDC issuer used to discover endpoints, if any.
func (Provider) GetIssuer() string {
	return GetEnv(issuerVar, "")
}

func (Provider) GetAuthURL() string {
	return GetEnv(authURLVar, "")
}

func (Provider) GetTokenURL() string {
	return GetEnv(tokenURLVar, "")
}

func (Provider) GetClientID() string {
	return GetEnv(clientIDVar, "")
}

func (Provider) GetClientSecret() string {
	return GetEnv(clientSecretVar, "")
}

// GetScopes returns the space or comma separated scopes from the environment.
// An empty result means the provider preset decides.
func (Provider) GetScopes() []string {
	return SplitList(GetEnv(scopesVar, ""))
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// SplitList splits a comma or whitespace separated list, dropping empties.
func SplitList(value string) []string {
	return strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}
