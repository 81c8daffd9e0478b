package tokenserver

import (
	"encoding/json"
	"net/http"
	"strings"

	errs "github.com/jrsteele09/go-auth-refresher/internal/errors"
	"github.com/jrsteele09/go-auth-refresher/oauth2"
)

// Token handles the refresh_token grant.
func (s *Server) Token() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
			return
		}

		grantType := r.FormValue("grant_type")
		if grantType != string(oauth2.RefreshTokenGrant) {
			writeJSONError(w, "unsupported_grant_type", errs.ErrUnsupportedGrant.Error()+": "+grantType, http.StatusBadRequest)
			return
		}

		refreshToken := r.FormValue("refresh_token")
		if refreshToken == "" {
			writeJSONError(w, "invalid_request", "refresh_token parameter is required", http.StatusBadRequest)
			return
		}

		tokenResponse, err := s.issuer.Refresh(r.FormValue("client_id"), refreshToken, r.FormValue("scope"))
		if err != nil {
			s.log.Info().Err(err).Str("client_id", r.FormValue("client_id")).Msg("refresh grant rejected")
			if errs.Is(err, errs.ErrInvalidClient) {
				writeJSONError(w, "invalid_client", err.Error(), http.StatusUnauthorized)
				return
			}
			writeJSONError(w, "invalid_grant", err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", oauth2.ContentTypeJSON)
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		_ = json.NewEncoder(w).Encode(tokenResponse)
	}
}

// Me echoes the claims of a valid bearer token.
func (s *Server) Me() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scheme, raw, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "bearer") {
			writeJSONError(w, "invalid_token", "Missing or malformed Authorization header", http.StatusUnauthorized)
			return
		}

		claims, err := s.signer.Verify(raw)
		if err != nil {
			writeJSONError(w, "invalid_token", err.Error(), http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", oauth2.ContentTypeJSON)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"client_id": claims["client_id"],
			"scope":     claims["scope"],
			"exp":       claims["exp"],
			"jti":       claims["jti"],
		})
	}
}

func (s *Server) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", oauth2.ContentTypeJSON)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	w.Header().Set("Content-Type", oauth2.ContentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(oauth2.ErrorResponse{
		Error:            errorCode,
		ErrorDescription: description,
	})
}
