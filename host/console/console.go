// Package console is an in-process API console that satisfies host.Host. It
// keeps authorized schemes in memory, persists the refresh token and granted
// scopes to a credstore.KV the way the browser widget does, and exposes its
// authorize entry point only once MarkReady has been called.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-auth-refresher/credstore"
	"github.com/jrsteele09/go-auth-refresher/host"
	errs "github.com/jrsteele09/go-auth-refresher/internal/errors"
	"github.com/jrsteele09/go-auth-refresher/oauth2"
)

// RefreshTokenKey is the store key the console persists a scheme's refresh token under.
func RefreshTokenKey(scheme string) string {
	return scheme + "_" + credstore.RefreshTokenMarker
}

// GrantedScopesKey is the store key the console persists a scheme's granted scopes under.
func GrantedScopesKey(scheme string) string {
	return scheme + "_" + credstore.GrantedScopesMarker
}

// Console is a host.Host.
type Console struct {
	kv         credstore.KV
	httpClient *http.Client
	log        zerolog.Logger

	mu             sync.RWMutex
	schemes        map[string]host.AuthContext
	authorize      host.AuthorizeFunc
	ready          bool
	authorizations int
}

var _ host.Host = (*Console)(nil)

// Option configures a Console.
type Option func(*Console)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Console) {
		c.log = l
	}
}

// WithRequestClient enables AuthorizeRequest, which performs token requests
// with client.
func WithRequestClient(client *http.Client) Option {
	return func(c *Console) {
		c.httpClient = client
	}
}

// New creates a console that is not ready yet.
func New(kv credstore.KV, options ...Option) *Console {
	c := &Console{
		kv:      kv,
		log:     log.Logger,
		schemes: make(map[string]host.AuthContext),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// MarkReady publishes the authorize entry point.
func (c *Console) MarkReady() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready {
		return
	}
	c.ready = true
	c.authorize = c.storeAuthorization
	c.log.Debug().Msg("console ready")
}

// Login authorizes a scheme the way a completed login popup does: through the
// current authorize entry point, persisting the refresh token.
func (c *Console) Login(auth host.AuthContext, token *oauth2.TokenResponse) error {
	authorize := c.AuthorizeOAuth2WithPersistOption()
	if authorize == nil {
		return errs.Wrapf(errs.ErrHostIntegrationMissing, "console not ready")
	}
	return authorize(host.AuthorizePayload{Auth: auth, Token: token})
}

// Logout forgets a scheme. Persisted keys are left in place.
func (c *Console) Logout(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.schemes, name)
}

// Authorizations counts the tokens accepted so far.
func (c *Console) Authorizations() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authorizations
}

// AuthorizedSchemes returns a snapshot of the authorized schemes.
func (c *Console) AuthorizedSchemes() map[string]host.AuthContext {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]host.AuthContext, len(c.schemes))
	for name, auth := range c.schemes {
		out[name] = auth
	}
	return out
}

func (c *Console) AuthorizeOAuth2() host.AuthorizeFunc {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authorize
}

func (c *Console) SetAuthorizeOAuth2(fn host.AuthorizeFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authorize = fn
}

// AuthorizeOAuth2WithPersistOption persists the refresh token and scopes, then
// calls whatever AuthorizeOAuth2 currently returns.
func (c *Console) AuthorizeOAuth2WithPersistOption() host.AuthorizeFunc {
	if c.AuthorizeOAuth2() == nil {
		return nil
	}
	return func(payload host.AuthorizePayload) error {
		if err := c.persist(payload); err != nil {
			return err
		}
		authorize := c.AuthorizeOAuth2()
		if authorize == nil {
			return errs.Wrapf(errs.ErrHostIntegrationMissing, "authorizeOauth2")
		}
		return authorize(payload)
	}
}

// AuthorizeRequest is nil unless the console was built WithRequestClient.
func (c *Console) AuthorizeRequest() host.RequestFunc {
	if c.httpClient == nil || c.AuthorizeOAuth2() == nil {
		return nil
	}
	return c.request
}

func (c *Console) storeAuthorization(payload host.AuthorizePayload) error {
	if payload.Token == nil || payload.Token.AccessToken == nil || *payload.Token.AccessToken == "" {
		return fmt.Errorf("authorize %s: missing access_token", payload.Auth.Name)
	}
	if payload.Auth.Name == "" {
		return fmt.Errorf("authorize: missing scheme name")
	}

	auth := payload.Auth
	auth.Token = payload.Token

	c.mu.Lock()
	c.schemes[auth.Name] = auth
	c.authorizations++
	c.mu.Unlock()

	c.log.Debug().Str("scheme", auth.Name).Int("expires_in", payload.Token.ExpiresIn).Msg("scheme authorized")
	return nil
}

func (c *Console) persist(payload host.AuthorizePayload) error {
	if c.kv == nil || payload.Token == nil {
		return nil
	}
	if rt := payload.Token.RefreshToken; rt != nil && *rt != "" {
		if err := c.kv.Set(RefreshTokenKey(payload.Auth.Name), *rt); err != nil {
			return errs.Wrapf(err, "persist refresh token")
		}
	}
	if payload.Token.Scope != "" {
		if err := c.kv.Set(GrantedScopesKey(payload.Auth.Name), payload.Token.Scope); err != nil {
			return errs.Wrapf(err, "persist granted scopes")
		}
	}
	return nil
}

func (c *Console) request(ctx context.Context, req host.AuthorizeRequest) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, strings.NewReader(req.Body))
	if err != nil {
		return errs.WrapCause(errs.ErrTransportFailure, err, "build request")
	}
	httpReq.Header.Set("Content-Type", oauth2.ContentTypeForm)
	httpReq.Header.Set("Accept", oauth2.AcceptTokenResponse)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return errs.WrapCause(errs.ErrTransportFailure, err, "post %s", req.URL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.WrapCause(errs.ErrTransportFailure, err, "read response")
	}
	if resp.StatusCode != http.StatusOK {
		return errs.Wrapf(errs.ErrTransportFailure, "status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var token oauth2.TokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return errs.WrapCause(errs.ErrTransportFailure, err, "decode token response")
	}

	auth := req.Auth
	if auth.Name == "" {
		auth.Name = req.Name
	}
	authorize := c.AuthorizeOAuth2WithPersistOption()
	if authorize == nil {
		return errs.Wrapf(errs.ErrHostIntegrationMissing, "authorizeOauth2WithPersistOption")
	}
	return authorize(host.AuthorizePayload{Auth: auth, Token: &token})
}
