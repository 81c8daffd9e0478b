// Package tokenserver is a small OAuth2 token endpoint that issues JWT access
// tokens and rotating refresh tokens. It backs local runs of the refresher.
package tokenserver

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-auth-refresher/internal/config"
	"github.com/jrsteele09/go-auth-refresher/oauth2"
)

const (
	TokenPath  = "/oauth2/token"
	HealthPath = "/healthz"
	MePath     = "/api/me"
)

type Server struct {
	env    string
	mux    *http.ServeMux
	routes []string
	issuer *Issuer
	signer *HMACSigner
	repo   Repo
	log    zerolog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithRepo replaces the in-memory refresh token repo.
func WithRepo(repo Repo) Option {
	return func(s *Server) {
		s.repo = repo
	}
}

// WithNowFunc sets the clock used for issuing and expiring tokens.
func WithNowFunc(now func() time.Time) Option {
	return func(s *Server) {
		s.issuer.nowFunc = now
	}
}

func New(cfg config.Config, options ...Option) (*Server, error) {
	secret := cfg.GetSigningSecret()
	if secret == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return nil, fmt.Errorf("[tokenserver New] generate signing secret: %w", err)
		}
		secret = hex.EncodeToString(b)
	}

	s := &Server{
		env:    cfg.GetEnv(),
		mux:    http.NewServeMux(),
		signer: NewHMACSigner(secret),
		repo:   NewMemRepo(),
		log:    log.Logger,
	}
	s.issuer = NewIssuer(s.repo, s.signer, cfg, nil)
	for _, opt := range options {
		opt(s)
	}
	s.issuer.repo = s.repo

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Issue creates an initial token pair, standing in for a completed login.
func (s *Server) Issue(clientID, scope string) (*oauth2.TokenResponse, error) {
	return s.issuer.Issue(clientID, scope)
}

// ActiveRefreshTokens counts refresh tokens that can still be exchanged.
func (s *Server) ActiveRefreshTokens() int {
	return s.repo.Count()
}

func (s *Server) initRoutes() {
	mw := s.middleware()
	s.RegisterRouteFunc("POST "+TokenPath, ChainMiddleware(s.Token(), mw...))
	s.RegisterRouteFunc("GET "+MePath, ChainMiddleware(s.Me(), mw...))
	s.RegisterRouteFunc("GET "+HealthPath, s.Health())
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		method, path, ok := strings.Cut(route, " ")
		if !ok {
			method, path = "", route
		}
		s.log.Debug().Str("method", method).Str("path", path).Msg("route")
	}
}
