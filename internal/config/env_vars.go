package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	portEnvVar      = "PORT"
	appNameVar      = "APP_NAME"
	logLevelVar     = "LOG_LEVEL"
	storeFileVar    = "STORE_FILE"
	schemeNameVar   = "SCHEME_NAME"
	tokenURLVar     = "TOKEN_URL"
	clientIDVar     = "CLIENT_ID"
	scopeVar        = "SCOPE"
	defaultStoreDir = ".refresher"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Auth Refresher")
}

func (EnvVars) GetEnv() string {
	return GetEnv("ENV", "DEV")
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

// GetStoreFile returns the path of the durable credential store shared with the host.
func (EnvVars) GetStoreFile() string {
	if v := os.Getenv(storeFileVar); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), defaultStoreDir, "store.toml")
	}
	return filepath.Join(home, defaultStoreDir, "store.toml")
}

// GetSchemeName is the security scheme name the host registers its OAuth entry under.
func (EnvVars) GetSchemeName() string {
	return GetEnv(schemeNameVar, "oauth")
}

func (EnvVars) GetTokenURL() string {
	return GetEnv(tokenURLVar, "")
}

func (EnvVars) GetClientID() string {
	return GetEnv(clientIDVar, "")
}

func (EnvVars) GetScope() string {
	return GetEnv(scopeVar, "")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
