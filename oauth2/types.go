package oauth2

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
type GrantType string

const (
	// RefreshTokenGrant exchanges a refresh token for a new access token
	// without re-prompting the user.
	RefreshTokenGrant GrantType = "refresh_token"

	// ClientCredentialsGrant is accepted by the local token endpoint only to
	// seed an initial login.
	ClientCredentialsGrant GrantType = "client_credentials"
)

const (
	ContentTypeForm = "application/x-www-form-urlencoded"
	ContentTypeJSON = "application/json; charset=utf-8"

	// AcceptTokenResponse negotiates JSON, tolerating servers that answer text/plain.
	AcceptTokenResponse = "application/json, text/plain, */*"
)
