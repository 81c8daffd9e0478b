package oauth2

import (
	"time"

	"github.com/jrsteele09/go-auth-refresher/internal/utils"
	xoauth2 "golang.org/x/oauth2"
)

// TokenResponse is the RFC 6749 token endpoint response. It is also the token
// record the host keeps for an authorized scheme.
type TokenResponse struct {
	// AccessToken is sent as "Authorization: Bearer <access_token>".
	AccessToken *string `json:"access_token,omitempty"`

	// TokenType is normally "bearer".
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the access token lifetime in seconds. Zero means the
	// server gave no expiry and no refresh will be scheduled.
	ExpiresIn int `json:"expires_in,omitempty"`

	// RefreshToken is the opaque token exchanged with grant_type=refresh_token.
	// Servers that rotate refresh tokens return a new one on every exchange.
	RefreshToken *string `json:"refresh_token,omitempty"`

	// Scope is the space separated list of granted scopes.
	Scope string `json:"scope,omitempty"`
}

// ErrorResponse is the RFC 6749 section 5.2 error body.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// Lifetime returns ExpiresIn as a duration.
func (t *TokenResponse) Lifetime() time.Duration {
	if t == nil {
		return 0
	}
	return time.Duration(t.ExpiresIn) * time.Second
}

// OAuth2Token converts the response into a golang.org/x/oauth2 token, taking
// issued as the moment the response was received.
func (t *TokenResponse) OAuth2Token(issued time.Time) *xoauth2.Token {
	if t == nil {
		return nil
	}
	tok := &xoauth2.Token{
		AccessToken:  utils.Value(t.AccessToken),
		TokenType:    t.TokenType,
		RefreshToken: utils.Value(t.RefreshToken),
	}
	if t.ExpiresIn > 0 {
		tok.Expiry = issued.Add(t.Lifetime())
	}
	return tok.WithExtra(map[string]any{"scope": t.Scope})
}
