package config

type Config interface {
	EnvConfig
	ProviderConfig
	OAuthConfig
}

type EnvConfig interface {
	GetAppName() string
	GetLogLevel() string
}

type ProviderConfig interface {
	GetProvider() string
	GetIssuer() string
	GetAuthURL() string
	GetTokenURL() string
	GetClientID() string
	GetClientSecret() string
	GetScopes() []string
}

type mainConfig struct {
	EnvVars
	Provider
	OAuth
}

func New() Config {
	return mainConfig{}
}
