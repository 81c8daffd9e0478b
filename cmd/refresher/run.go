package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	xoauth2 "golang.org/x/oauth2"

	"github.com/jrsteele09/go-auth-refresher/autorefresh"
	"github.com/jrsteele09/go-auth-refresher/credstore/filestore"
	"github.com/jrsteele09/go-auth-refresher/host"
	"github.com/jrsteele09/go-auth-refresher/host/console"
	"github.com/jrsteele09/go-auth-refresher/internal/config"
	"github.com/jrsteele09/go-auth-refresher/internal/tokenserver"
	"github.com/jrsteele09/go-auth-refresher/internal/utils"
	"github.com/jrsteele09/go-auth-refresher/oauth2"
	"github.com/jrsteele09/go-auth-refresher/refresh"
)

const runLongDesc string = `Start an API console session and keep its token refreshed.

The console persists its refresh token and granted scopes in the store file.
Each authorization schedules a refresh at three quarters of the token's
lifetime; the refreshed token is handed back to the console, which schedules
the next one.

With --local an in-process token endpoint issues the initial token pair, so
the whole cycle can be watched without an external authorization server.
Set ACCESS_TOKEN_EXPIRY (for example 20s) to shorten the cycle.

Examples:
  refresher run --local
  refresher run --token-url https://auth.example/oauth2/token --client-id docs \
      --access-token A1 --refresh-token R1 --expires-in 3600`

type runOptions struct {
	local        bool
	tokenURL     string
	clientID     string
	scope        string
	scheme       string
	storeFile    string
	accessToken  string
	refreshToken string
	expiresIn    int
	readyDelay   time.Duration
	hostRequest  bool
}

func newRunCmd(cfg config.Config) *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a console session with automatic token refresh",
		Long:  runLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSession(ctx, cfg, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.local, "local", false, "Issue the initial token from an in-process token endpoint")
	cmd.Flags().StringVar(&opts.tokenURL, "token-url", cfg.GetTokenURL(), "Token endpoint of the OAuth2 scheme")
	cmd.Flags().StringVar(&opts.clientID, "client-id", cfg.GetClientID(), "OAuth2 client id")
	cmd.Flags().StringVar(&opts.scope, "scope", cfg.GetScope(), "Granted scopes")
	cmd.Flags().StringVar(&opts.scheme, "scheme", cfg.GetSchemeName(), "Security scheme name")
	cmd.Flags().StringVar(&opts.storeFile, "store", cfg.GetStoreFile(), "Credential store file")
	cmd.Flags().StringVar(&opts.accessToken, "access-token", "", "Initial access token")
	cmd.Flags().StringVar(&opts.refreshToken, "refresh-token", "", "Initial refresh token (defaults to the stored one)")
	cmd.Flags().IntVar(&opts.expiresIn, "expires-in", 3600, "Lifetime of the initial access token in seconds")
	cmd.Flags().DurationVar(&opts.readyDelay, "ready-delay", 0, "Delay before the console publishes its authorize entry point")
	cmd.Flags().BoolVar(&opts.hostRequest, "host-request", false, "Let the console perform the token request itself")
	return cmd
}

func runSession(ctx context.Context, cfg config.Config, opts runOptions) error {
	store, err := filestore.New(opts.storeFile)
	if err != nil {
		return err
	}

	var consoleOpts []console.Option
	consoleOpts = append(consoleOpts, console.WithLogger(log.Logger))
	if opts.hostRequest {
		consoleOpts = append(consoleOpts, console.WithRequestClient(&http.Client{Timeout: cfg.GetExchangeTimeout()}))
	}
	c := console.New(store, consoleOpts...)

	initial := &oauth2.TokenResponse{
		AccessToken:  utils.NonEmpty(opts.accessToken),
		TokenType:    "bearer",
		ExpiresIn:    opts.expiresIn,
		RefreshToken: utils.NonEmpty(opts.refreshToken),
		Scope:        opts.scope,
	}

	var apiURL string
	if opts.local {
		ts, addr, shutdownLocal, err := startLocalServer(cfg)
		if err != nil {
			return err
		}
		defer shutdownLocal()

		if opts.clientID == "" {
			opts.clientID = "api-console"
		}
		opts.tokenURL = "http://" + addr + tokenserver.TokenPath
		apiURL = "http://" + addr + tokenserver.MePath
		if initial, err = ts.Issue(opts.clientID, opts.scope); err != nil {
			return err
		}
	}

	svcOpts := []autorefresh.Option{autorefresh.WithLogger(log.Logger)}
	if opts.hostRequest {
		svcOpts = append(svcOpts, autorefresh.WithExchanger(refresh.NewHostRequestExchanger(c)))
	}
	var svc *autorefresh.Service
	svcOpts = append(svcOpts, autorefresh.OnRefresh(func(err error) {
		if err != nil || apiURL == "" {
			return
		}
		callAPI(ctx, svc.TokenSource(), apiURL)
	}))
	svc = autorefresh.New(c, store, cfg, svcOpts...)
	svc.Start()
	defer svc.Stop()

	if opts.readyDelay > 0 {
		log.Info().Dur("delay", opts.readyDelay).Msg("console starting")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(opts.readyDelay):
		}
	}
	c.MarkReady()

	if err := waitInstalled(ctx, svc, cfg); err != nil {
		return err
	}

	auth := host.AuthContext{
		Name:     opts.scheme,
		Schema:   &host.Schema{Flow: "accessCode", TokenURL: opts.tokenURL},
		ClientID: opts.clientID,
	}
	if initial.AccessToken != nil {
		if err := c.Login(auth, initial); err != nil {
			return err
		}
		log.Info().
			Str("scheme", auth.Name).
			Time("refresh_at", svc.Deadline()).
			Str("store", store.Path()).
			Msg("console authorized")
	} else {
		log.Warn().Msg("no initial access token, waiting for an authorization")
	}

	<-ctx.Done()
	attempts, failures := svc.Refreshes()
	log.Info().Int64("refreshes", attempts).Int64("failures", failures).Msg("session ended")
	return nil
}

// waitInstalled blocks until the refresh hook is in place or the install
// budget has certainly run out.
func waitInstalled(ctx context.Context, svc *autorefresh.Service, cfg config.Config) error {
	budget := time.Duration(cfg.GetInstallRetries()+1)*cfg.GetInstallRetryDelay() + time.Second
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for !svc.Installed() {
		select {
		case <-ctx.Done():
			return errors.New("refresh hook was not installed")
		case <-ticker.C:
		}
	}
	return nil
}

func startLocalServer(cfg config.Config) (*tokenserver.Server, string, func(), error) {
	ts, err := tokenserver.New(cfg, tokenserver.WithLogger(log.Logger))
	if err != nil {
		return nil, "", nil, err
	}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, "", nil, err
	}

	server := &http.Server{Handler: ts, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("local token endpoint stopped")
		}
	}()
	log.Info().Str("addr", listener.Addr().String()).Msg("local token endpoint listening")

	return ts, listener.Addr().String(), func() { _ = shutdown(server) }, nil
}

// callAPI uses the refreshed credential the way a console "try it out" call would.
func callAPI(ctx context.Context, ts xoauth2.TokenSource, url string) {
	client := xoauth2.NewClient(ctx, ts)
	resp, err := client.Get(url)
	if err != nil {
		log.Warn().Err(err).Msg("api call failed")
		return
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	log.Info().Int("status", resp.StatusCode).Str("body", strings.TrimSpace(string(body))).Msg("api call with refreshed token")
}
