package config

import "time"

// OAuthConfig configures the local token endpoint.
type OAuthConfig interface {
	GetRefreshTokenLength() int
	GetDefaultAccessTokenExpiry() time.Duration
	GetDefaultRefreshTokenExpiry() time.Duration
	GetSigningSecret() string
	GetIssuer() string
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetRefreshTokenLength() int {
	return 32 // 32 bytes = 256 bits
}

func (OAuth) GetDefaultAccessTokenExpiry() time.Duration {
	return durationEnv("ACCESS_TOKEN_EXPIRY", 1*time.Hour)
}

func (OAuth) GetDefaultRefreshTokenExpiry() time.Duration {
	return durationEnv("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour)
}

// GetSigningSecret returns the HMAC secret for access tokens. Empty means generate one at startup.
func (OAuth) GetSigningSecret() string {
	return GetEnv("SIGNING_SECRET", "")
}

func (OAuth) GetIssuer() string {
	return GetEnv("ISSUER", "http://localhost:8080")
}
