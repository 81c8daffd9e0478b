// Package host defines the contract of the API-console widget whose OAuth2
// authorization the refresher keeps alive.
package host

import (
	"context"

	"github.com/jrsteele09/go-auth-refresher/oauth2"
)

// DefaultSchemeName is the security scheme the console registers its OAuth2 entry under.
const DefaultSchemeName = "oauth"

// Schema describes the OAuth2 flow of a security scheme.
type Schema struct {
	Flow     string `json:"flow,omitempty"`
	TokenURL string `json:"tokenUrl,omitempty"`
}

// AuthContext is the host's authorization record for one security scheme.
// It is owned by the host; callers only read it.
type AuthContext struct {
	Name     string                `json:"name"`
	Schema   *Schema               `json:"schema,omitempty"`
	ClientID string                `json:"clientId,omitempty"`
	Token    *oauth2.TokenResponse `json:"token,omitempty"`
}

// AuthorizePayload is what the host passes to its OAuth2 authorize entry points.
type AuthorizePayload struct {
	Auth  AuthContext
	Token *oauth2.TokenResponse
}

// AuthorizeFunc records a newly obtained token in the host's state.
type AuthorizeFunc func(payload AuthorizePayload) error

// AuthorizeRequest asks the host to perform a token request on its own.
type AuthorizeRequest struct {
	Body string
	Name string
	URL  string
	Auth AuthContext
}

// RequestFunc performs an AuthorizeRequest and applies the resulting token.
type RequestFunc func(ctx context.Context, req AuthorizeRequest) error

// Selectors is the read side of the host.
type Selectors interface {
	// AuthorizedSchemes returns the currently authorized schemes keyed by name.
	// A nil or empty map means nothing is authorized.
	AuthorizedSchemes() map[string]AuthContext
}

// Actions is the write side of the host. Entry points are looked up on every
// call because the host may install them late or not at all.
type Actions interface {
	// AuthorizeOAuth2 returns the current authorize entry point, or nil
	// while the host has not finished starting.
	AuthorizeOAuth2() AuthorizeFunc

	// SetAuthorizeOAuth2 replaces the authorize entry point.
	SetAuthorizeOAuth2(fn AuthorizeFunc)

	// AuthorizeOAuth2WithPersistOption returns the entry point that persists
	// the token and then authorizes through AuthorizeOAuth2, or nil.
	AuthorizeOAuth2WithPersistOption() AuthorizeFunc

	// AuthorizeRequest returns the host's own token request path, or nil.
	AuthorizeRequest() RequestFunc
}

// Host is the full contract consumed by the refresher.
type Host interface {
	Selectors
	Actions
}
