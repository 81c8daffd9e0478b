package refresh

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-refresher/host"
	errs "github.com/jrsteele09/go-auth-refresher/internal/errors"
	"github.com/jrsteele09/go-auth-refresher/oauth2"
)

// DefaultExchangeTimeout bounds a single token request.
const DefaultExchangeTimeout = 30 * time.Second

const maxResponseBytes = 1 << 20

// Request is one refresh grant ready to be sent.
type Request struct {
	Auth host.AuthContext
	Body string
}

// Exchanger trades a refresh grant for a new token. A nil token with a nil
// error means the host already applied the result itself.
type Exchanger interface {
	Exchange(ctx context.Context, req Request) (*oauth2.TokenResponse, error)
}

// DirectExchanger posts the grant to the scheme's token endpoint.
type DirectExchanger struct {
	client *http.Client
}

// NewDirectExchanger creates a DirectExchanger. A nil client gets one with
// DefaultExchangeTimeout.
func NewDirectExchanger(client *http.Client) *DirectExchanger {
	if client == nil {
		client = &http.Client{Timeout: DefaultExchangeTimeout}
	}
	return &DirectExchanger{client: client}
}

func (d *DirectExchanger) Exchange(ctx context.Context, req Request) (*oauth2.TokenResponse, error) {
	if req.Auth.Schema == nil || req.Auth.Schema.TokenURL == "" {
		return nil, &errs.ValidationError{Missing: []string{"schema.tokenUrl"}}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Auth.Schema.TokenURL, strings.NewReader(req.Body))
	if err != nil {
		return nil, errs.WrapCause(errs.ErrTransportFailure, err, "build request")
	}
	httpReq.Header.Set("Content-Type", oauth2.ContentTypeForm)
	httpReq.Header.Set("Accept", oauth2.AcceptTokenResponse)

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, errs.WrapCause(errs.ErrTransportFailure, err, "post %s", req.Auth.Schema.TokenURL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errs.WrapCause(errs.ErrTransportFailure, err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var oauthErr oauth2.ErrorResponse
		if json.Unmarshal(body, &oauthErr) == nil && oauthErr.Error != "" {
			if oauthErr.ErrorDescription != "" {
				return nil, errs.Wrapf(errs.ErrTransportFailure, "status %d: %s: %s", resp.StatusCode, oauthErr.Error, oauthErr.ErrorDescription)
			}
			return nil, errs.Wrapf(errs.ErrTransportFailure, "status %d: %s", resp.StatusCode, oauthErr.Error)
		}
		return nil, errs.Wrapf(errs.ErrTransportFailure, "status %d", resp.StatusCode)
	}

	var token oauth2.TokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, errs.WrapCause(errs.ErrTransportFailure, err, "decode token response")
	}
	if token.AccessToken == nil || *token.AccessToken == "" {
		return nil, errs.Wrapf(errs.ErrTransportFailure, "token response has no access_token")
	}
	return &token, nil
}

// HostRequestExchanger hands the grant to the host's own token request path.
type HostRequestExchanger struct {
	actions host.Actions
}

func NewHostRequestExchanger(actions host.Actions) *HostRequestExchanger {
	return &HostRequestExchanger{actions: actions}
}

func (h *HostRequestExchanger) Exchange(ctx context.Context, req Request) (*oauth2.TokenResponse, error) {
	authorizeRequest := h.actions.AuthorizeRequest()
	if authorizeRequest == nil {
		return nil, errs.Wrapf(errs.ErrHostIntegrationMissing, "authorizeRequest")
	}

	var tokenURL string
	if req.Auth.Schema != nil {
		tokenURL = req.Auth.Schema.TokenURL
	}
	err := authorizeRequest(ctx, host.AuthorizeRequest{
		Body: req.Body,
		Name: req.Auth.Name,
		URL:  tokenURL,
		Auth: req.Auth,
	})
	if err != nil {
		return nil, errs.Wrapf(err, "host authorize request")
	}
	return nil, nil
}
