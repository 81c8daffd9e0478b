package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jrsteele09/go-auth-refresher/internal/config"
	"github.com/jrsteele09/go-auth-refresher/internal/tokenserver"
	"github.com/jrsteele09/go-auth-refresher/internal/utils"
)

const serveLongDesc string = `Run the local OAuth2 token endpoint on its own.

The endpoint accepts grant_type=refresh_token at /oauth2/token, rotates the
refresh token on every exchange and issues HS256 JWT access tokens. Token
lifetimes come from ACCESS_TOKEN_EXPIRY and REFRESH_TOKEN_EXPIRY.

Examples:
  refresher serve                                Listen on $PORT
  refresher serve --issue-client docs --scope read  Also print a starting token pair`

func newServeCmd(cfg config.Config) *cobra.Command {
	var issueClient string
	var scope string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local token endpoint",
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cfg, issueClient, scope)
		},
	}

	cmd.Flags().StringVar(&issueClient, "issue-client", "", "Issue a token pair for this client at startup")
	cmd.Flags().StringVar(&scope, "scope", cfg.GetScope(), "Scope of the issued token pair")
	return cmd
}

func runServe(cfg config.Config, issueClient, scope string) error {
	ts, err := tokenserver.New(cfg, tokenserver.WithLogger(log.Logger))
	if err != nil {
		return err
	}

	if issueClient != "" {
		token, err := ts.Issue(issueClient, scope)
		if err != nil {
			return err
		}
		log.Info().
			Str("client_id", issueClient).
			Str("access_token", utils.Value(token.AccessToken)).
			Str("refresh_token", utils.Value(token.RefreshToken)).
			Int("expires_in", token.ExpiresIn).
			Msg("issued token pair")
	}

	server := &http.Server{Addr: cfg.GetPort(), Handler: ts, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- listenAndServe(server)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	return shutdown(server)
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("token endpoint listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
