// Package autorefresh keeps a host's OAuth2 authorization alive by refreshing
// its access token before it expires.
package autorefresh

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-auth-refresher/clock"
	"github.com/jrsteele09/go-auth-refresher/credstore"
	"github.com/jrsteele09/go-auth-refresher/host"
	"github.com/jrsteele09/go-auth-refresher/internal/config"
	"github.com/jrsteele09/go-auth-refresher/internal/retry"
	"github.com/jrsteele09/go-auth-refresher/patch"
	"github.com/jrsteele09/go-auth-refresher/refresh"
)

// Service owns the refresh state of one host.
type Service struct {
	host      host.Host
	store     *credstore.Store
	state     *patch.State
	clock     *clock.Clock
	refresher *refresh.Refresher
	installer *patch.Installer
	log       zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	refreshes atomic.Int64
	failures  atomic.Int64
	onRefresh func(error)
}

type options struct {
	log        zerolog.Logger
	nowFunc    func() time.Time
	exchanger  refresh.Exchanger
	httpClient *http.Client
	sleep      func(context.Context, time.Duration) error
	onRefresh  func(error)
}

// Option configures a Service.
type Option func(*options)

// WithLogger sets the logger for every component.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithNowFunc sets the time source for deadlines and the clock.
func WithNowFunc(now func() time.Time) Option {
	return func(o *options) {
		o.nowFunc = now
	}
}

// WithExchanger replaces the direct token endpoint exchange.
func WithExchanger(e refresh.Exchanger) Option {
	return func(o *options) {
		o.exchanger = e
	}
}

// WithHTTPClient sets the client the direct exchange uses.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithInstallSleep replaces the wait between install retries.
func WithInstallSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(o *options) {
		o.sleep = sleep
	}
}

// OnRefresh registers a callback run after every clock-driven refresh attempt.
func OnRefresh(fn func(error)) Option {
	return func(o *options) {
		o.onRefresh = fn
	}
}

// New wires a Service for h. Durable credentials are read from kv.
func New(h host.Host, kv credstore.KV, cfg config.Config, opts ...Option) *Service {
	o := options{
		log:     log.Logger,
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.exchanger == nil {
		client := o.httpClient
		if client == nil {
			client = &http.Client{Timeout: cfg.GetExchangeTimeout()}
		}
		o.exchanger = refresh.NewDirectExchanger(client)
	}

	s := &Service{
		host:      h,
		store:     credstore.New(kv, h, cfg.GetSchemeName()),
		state:     patch.NewState(cfg.GetRefreshFraction(), o.nowFunc),
		log:       o.log,
		onRefresh: o.onRefresh,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.refresher = refresh.New(s.store, o.exchanger, h, refresh.WithLogger(o.log))
	s.clock = clock.New(s.fire,
		clock.WithInterval(cfg.GetPollInterval()),
		clock.WithNowFunc(o.nowFunc),
		clock.WithLogger(o.log),
	)
	s.installer = patch.NewInstaller(h, s.state, s.clock,
		patch.WithBudget(retry.Budget{
			Retries: cfg.GetInstallRetries(),
			Delay:   cfg.GetInstallRetryDelay(),
			Sleep:   o.sleep,
		}),
		patch.WithLogger(o.log),
	)
	return s
}

// Start installs the hook in the background and returns immediately.
func (s *Service) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.installer.Install(s.ctx)
	}()
}

// Run installs the hook and blocks until ctx is done. It returns the install
// error when the host never became ready.
func (s *Service) Run(ctx context.Context) error {
	if err := s.installer.Install(ctx); err != nil {
		s.Stop()
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

// Stop is terminal: it cancels any pending install and an in-flight refresh,
// closes the clock and hands the host back its original authorize entry point.
func (s *Service) Stop() {
	s.cancel()
	s.wg.Wait()
	s.clock.Close()
	s.installer.Uninstall()
}

// RefreshNow performs a refresh outside the clock.
func (s *Service) RefreshNow(ctx context.Context) error {
	return s.refresher.AttemptRefresh(ctx)
}

// Installed reports whether the authorize hook is in place.
func (s *Service) Installed() bool {
	return s.installer.Installed()
}

// Deadline returns the pending refresh deadline, zero when unarmed.
func (s *Service) Deadline() time.Time {
	return s.state.Deadline()
}

// ExpiresAt returns the expiry of the last authorized token.
func (s *Service) ExpiresAt() time.Time {
	return s.state.ExpiresAt()
}

// Refreshes counts clock-driven refresh attempts; failures counts those that failed.
func (s *Service) Refreshes() (attempts, failures int64) {
	return s.refreshes.Load(), s.failures.Load()
}

// TokenSource serves the host's current access token to oauth2 clients.
func (s *Service) TokenSource() *refresh.TokenSource {
	return refresh.NewTokenSource(s.store, s.state.ExpiresAt)
}

func (s *Service) fire() {
	err := s.refresher.AttemptRefresh(s.ctx)
	s.refreshes.Add(1)
	if err != nil {
		s.failures.Add(1)
	}
	if s.onRefresh != nil {
		s.onRefresh(err)
	}
}
