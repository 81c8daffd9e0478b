// Package refresh exchanges the host's stored refresh token for a new access
// token and hands the result back to the host.
package refresh

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-auth-refresher/credstore"
	"github.com/jrsteele09/go-auth-refresher/host"
	errs "github.com/jrsteele09/go-auth-refresher/internal/errors"
	"github.com/jrsteele09/go-auth-refresher/internal/utils"
	"github.com/jrsteele09/go-auth-refresher/oauth2"
)

// Refresher runs one refresh cycle per AttemptRefresh call.
type Refresher struct {
	store     *credstore.Store
	exchanger Exchanger
	actions   host.Actions
	log       zerolog.Logger
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Refresher) {
		r.log = l
	}
}

// New creates a Refresher. A nil exchanger selects a DirectExchanger.
func New(store *credstore.Store, exchanger Exchanger, actions host.Actions, options ...Option) *Refresher {
	if exchanger == nil {
		exchanger = NewDirectExchanger(nil)
	}
	r := &Refresher{
		store:     store,
		exchanger: exchanger,
		actions:   actions,
		log:       log.Logger,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// AttemptRefresh performs one refresh. Every failure is logged before it is
// returned, and nothing is retried.
func (r *Refresher) AttemptRefresh(ctx context.Context) error {
	auth, ok := r.store.ReadAuthorized()
	if !ok {
		r.log.Warn().Str("scheme", r.store.SchemeName()).Msg("no authorized oauth scheme, skipping refresh")
		return errs.Wrapf(errs.ErrMissingAuthState, "scheme %s", r.store.SchemeName())
	}
	logger := r.log.With().Str("scheme", auth.Name).Logger()

	if err := credstore.Validate(auth); err != nil {
		r.logInvalid(logger, err)
		return err
	}

	creds := r.resolveCredentials(logger, auth)
	if creds.RefreshToken == "" {
		err := &errs.ValidationError{Missing: []string{"refresh_token"}}
		r.logInvalid(logger, err)
		return err
	}

	body := oauth2.RefreshRequest{
		RefreshToken: creds.RefreshToken,
		ClientID:     auth.ClientID,
		Scope:        creds.Scope,
	}.Encode()

	token, err := r.exchanger.Exchange(ctx, Request{Auth: *auth, Body: body})
	if err != nil {
		logger.Error().Err(err).Str("token_url", auth.Schema.TokenURL).Msg("token refresh failed")
		return err
	}
	if token == nil {
		logger.Info().Msg("token refreshed by host")
		return nil
	}

	r.persist(logger, creds, token)

	if token.RefreshToken == nil {
		token.RefreshToken = utils.Ptr(creds.RefreshToken)
	}
	if token.Scope == "" {
		token.Scope = creds.Scope
	}

	authorize := r.actions.AuthorizeOAuth2WithPersistOption()
	if authorize == nil {
		logger.Error().Msg("host has no authorizeOauth2WithPersistOption, refreshed token not applied")
		return errs.Wrapf(errs.ErrHostIntegrationMissing, "authorizeOauth2WithPersistOption")
	}
	if err := authorize(host.AuthorizePayload{Auth: *auth, Token: token}); err != nil {
		logger.Error().Err(err).Msg("host rejected refreshed token")
		return errs.Wrapf(err, "authorize refreshed token")
	}

	logger.Info().Int("expires_in", token.ExpiresIn).Msg("token refreshed")
	return nil
}

// resolveCredentials prefers the durable store and falls back to the token the
// host holds in memory. A store failure is logged and treated as empty.
func (r *Refresher) resolveCredentials(logger zerolog.Logger, auth *host.AuthContext) credstore.Credentials {
	creds, err := r.store.FindRefreshTokenAndScope()
	if err != nil {
		logger.Warn().Err(err).Msg("credential store scan failed, using in-memory token")
		creds = credstore.Credentials{}
	}
	if auth.Token != nil {
		if creds.RefreshToken == "" {
			creds.RefreshToken = utils.Value(auth.Token.RefreshToken)
		}
		if creds.Scope == "" {
			creds.Scope = auth.Token.Scope
		}
	}
	return creds
}

// persist writes rotated values back to the keys the scan found. Failures are
// logged only, the host still receives the new token.
func (r *Refresher) persist(logger zerolog.Logger, creds credstore.Credentials, token *oauth2.TokenResponse) {
	if rt := utils.Value(token.RefreshToken); rt != "" {
		if err := r.store.WriteRefreshToken(creds.RefreshTokenKey, rt); err != nil {
			logger.Warn().Err(err).Msg("could not persist refresh token")
		}
	}
	if token.Scope != "" {
		if err := r.store.WriteScope(creds.ScopeKey, token.Scope); err != nil {
			logger.Warn().Err(err).Msg("could not persist granted scopes")
		}
	}
}

func (r *Refresher) logInvalid(logger zerolog.Logger, err error) {
	var v *errs.ValidationError
	if errs.As(err, &v) {
		logger.Error().Strs("missing", v.Missing).Msg("oauth scheme cannot be refreshed")
		return
	}
	logger.Error().Err(err).Msg("oauth scheme cannot be refreshed")
}
