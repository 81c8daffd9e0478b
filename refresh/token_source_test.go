package refresh_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	xoauth2 "golang.org/x/oauth2"

	"github.com/jrsteele09/go-auth-refresher/credstore"
	"github.com/jrsteele09/go-auth-refresher/credstore/memstore"
	errs "github.com/jrsteele09/go-auth-refresher/internal/errors"
	"github.com/jrsteele09/go-auth-refresher/internal/utils"
	"github.com/jrsteele09/go-auth-refresher/oauth2"
	"github.com/jrsteele09/go-auth-refresher/refresh"
)

func TestTokenSourceServesHostToken(t *testing.T) {
	f := newFixture(t, memstore.New())
	f.authorize(t, authFor("https://auth.example/token", "docs"), &oauth2.TokenResponse{
		AccessToken: utils.Ptr("A1"),
		TokenType:   "bearer",
		ExpiresIn:   3600,
		Scope:       "read",
	})

	expiry := time.Now().Add(time.Hour)
	ts := refresh.NewTokenSource(f.store, func() time.Time { return expiry })

	tok, err := ts.Token()
	require.NoError(t, err)
	require.Equal(t, "A1", tok.AccessToken)
	require.Equal(t, expiry, tok.Expiry)
	require.Equal(t, "read", tok.Extra("scope"))
	require.True(t, tok.Valid())
}

func TestTokenSourceWithoutAuthorization(t *testing.T) {
	ts := refresh.NewTokenSource(credstore.New(memstore.New(), nil, ""), nil)
	_, err := ts.Token()
	require.ErrorIs(t, err, errs.ErrMissingAuthState)
}

func TestTokenSourceAuthorizesClient(t *testing.T) {
	var gotAuth string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = io.WriteString(w, "ok")
	}))
	defer api.Close()

	f := newFixture(t, memstore.New())
	f.authorize(t, authFor("https://auth.example/token", "docs"), &oauth2.TokenResponse{
		AccessToken: utils.Ptr("A1"),
		TokenType:   "Bearer",
	})

	client := xoauth2.NewClient(context.Background(), refresh.NewTokenSource(f.store, nil))
	resp, err := client.Get(api.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "Bearer A1", gotAuth)
}
