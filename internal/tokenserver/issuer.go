package tokenserver

import (
	"crypto/rand"
	"encoding/hex"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jrsteele09/go-auth-refresher/internal/config"
	errs "github.com/jrsteele09/go-auth-refresher/internal/errors"
	"github.com/jrsteele09/go-auth-refresher/internal/utils"
	"github.com/jrsteele09/go-auth-refresher/oauth2"
)

// Issuer creates access tokens and rotates refresh tokens.
type Issuer struct {
	repo    Repo
	signer  *HMACSigner
	config  config.OAuthConfig
	nowFunc func() time.Time
}

func NewIssuer(repo Repo, signer *HMACSigner, cfg config.OAuthConfig, now func() time.Time) *Issuer {
	if now == nil {
		now = time.Now
	}
	return &Issuer{
		repo:    repo,
		signer:  signer,
		config:  cfg,
		nowFunc: now,
	}
}

// Issue creates a fresh token pair for clientID, as a completed login would.
func (i *Issuer) Issue(clientID, scope string) (*oauth2.TokenResponse, error) {
	if clientID == "" {
		return nil, errs.Wrapf(errs.ErrInvalidClient, "client_id is required")
	}
	return i.tokenResponse(clientID, scope)
}

// Refresh exchanges refreshToken for a new token pair. The presented token is
// consumed. A requested scope must be a subset of the originally granted one.
func (i *Issuer) Refresh(clientID, refreshToken, scope string) (*oauth2.TokenResponse, error) {
	rt, err := i.repo.Get(refreshToken)
	if err != nil {
		return nil, errs.ErrInvalidRefreshToken
	}
	if clientID != "" && clientID != rt.ClientID {
		return nil, errs.Wrapf(errs.ErrInvalidClient, "refresh token was not issued to %s", clientID)
	}
	if i.nowFunc().Sub(rt.Iat) > i.config.GetDefaultRefreshTokenExpiry() {
		_ = i.repo.Delete(refreshToken)
		return nil, errs.ErrRefreshTokenExpired
	}

	granted := rt.Scope
	if scope != "" {
		if !scopeSubset(scope, rt.Scope) {
			return nil, errs.Wrapf(errs.ErrInvalidGrant, "scope %q exceeds %q", scope, rt.Scope)
		}
		granted = scope
	}

	if err := i.repo.Delete(refreshToken); err != nil {
		// Lost a race with a concurrent exchange of the same token.
		return nil, errs.ErrInvalidRefreshToken
	}
	return i.tokenResponse(rt.ClientID, granted)
}

func (i *Issuer) tokenResponse(clientID, scope string) (*oauth2.TokenResponse, error) {
	expiry := i.config.GetDefaultAccessTokenExpiry()

	accessToken, err := i.createAccessToken(clientID, scope, expiry)
	if err != nil {
		return nil, err
	}
	refreshToken, err := i.createRefreshToken(clientID, scope)
	if err != nil {
		return nil, err
	}

	return &oauth2.TokenResponse{
		AccessToken:  accessToken,
		TokenType:    "bearer",
		ExpiresIn:    int(expiry.Seconds()),
		RefreshToken: refreshToken,
		Scope:        scope,
	}, nil
}

func (i *Issuer) createAccessToken(clientID, scope string, expiry time.Duration) (*string, error) {
	now := i.nowFunc()
	claims := jwt.MapClaims{
		"iss":        i.config.GetIssuer(),
		"sub":        clientID,
		"client_id":  clientID,
		"scope":      scope,
		"iat":        now.Unix(),
		"exp":        now.Add(expiry).Unix(),
		"jti":        uuid.New().String(),
		"token_type": "client",
	}
	signed, err := i.signer.Sign(claims)
	if err != nil {
		return nil, errs.Wrapf(err, "create access token")
	}
	return &signed, nil
}

func (i *Issuer) createRefreshToken(clientID, scope string) (*string, error) {
	tokenBytes := make([]byte, i.config.GetRefreshTokenLength())
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, errs.Wrapf(err, "generate refresh token")
	}
	token := hex.EncodeToString(tokenBytes)
	if err := i.repo.Upsert(&StoredRefreshToken{
		Token:    token,
		ClientID: clientID,
		Scope:    scope,
		Iat:      i.nowFunc(),
	}); err != nil {
		return nil, errs.Wrapf(err, "store refresh token")
	}
	return utils.Ptr(token), nil
}

func scopeSubset(requested, granted string) bool {
	have := strings.Fields(granted)
	for _, s := range strings.Fields(requested) {
		if !slices.Contains(have, s) {
			return false
		}
	}
	return true
}
