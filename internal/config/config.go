package config

type Config interface {
	EnvConfig
	RefreshConfig
	OAuthConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetStoreFile() string
	GetSchemeName() string
	GetTokenURL() string
	GetClientID() string
	GetScope() string
}

type mainConfig struct {
	EnvVars
	Refresh
	OAuth
}

func New() Config {
	return mainConfig{}
}
