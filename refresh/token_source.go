package refresh

import (
	"time"

	xoauth2 "golang.org/x/oauth2"

	"github.com/jrsteele09/go-auth-refresher/credstore"
	errs "github.com/jrsteele09/go-auth-refresher/internal/errors"
)

// TokenSource serves the host's current access token to golang.org/x/oauth2
// clients. It never refreshes on its own; the clock keeps the host's token fresh.
type TokenSource struct {
	store     *credstore.Store
	expiresAt func() time.Time
}

var _ xoauth2.TokenSource = (*TokenSource)(nil)

// NewTokenSource creates a TokenSource. expiresAt, when set, supplies the
// absolute expiry of the current token.
func NewTokenSource(store *credstore.Store, expiresAt func() time.Time) *TokenSource {
	return &TokenSource{store: store, expiresAt: expiresAt}
}

func (s *TokenSource) Token() (*xoauth2.Token, error) {
	auth, ok := s.store.ReadAuthorized()
	if !ok || auth.Token == nil || auth.Token.AccessToken == nil || *auth.Token.AccessToken == "" {
		return nil, errs.Wrapf(errs.ErrMissingAuthState, "scheme %s", s.store.SchemeName())
	}

	tok := auth.Token.OAuth2Token(time.Now())
	tok.Expiry = time.Time{}
	if s.expiresAt != nil {
		tok.Expiry = s.expiresAt()
	}
	return tok, nil
}
