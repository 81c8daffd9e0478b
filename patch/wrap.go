package patch

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-auth-refresher/host"
)

// Starter (re)arms the refresh clock.
type Starter interface {
	Start(deadline time.Time)
}

// Wrap decorates the host's authorize entry point. The original always runs
// and its result is returned unchanged; a token carrying expires_in then arms
// a new deadline and restarts the clock.
func Wrap(original host.AuthorizeFunc, state *State, clock Starter, logger zerolog.Logger) host.AuthorizeFunc {
	return func(payload host.AuthorizePayload) error {
		err := original(payload)

		if payload.Token == nil {
			return err
		}
		deadline, ok := state.Arm(payload.Token.ExpiresIn)
		if !ok {
			logger.Debug().Str("scheme", payload.Auth.Name).Msg("authorized token has no expiry, refresh not scheduled")
			return err
		}

		logger.Info().
			Str("scheme", payload.Auth.Name).
			Int("expires_in", payload.Token.ExpiresIn).
			Time("refresh_at", deadline).
			Time("expires_at", state.ExpiresAt()).
			Msg("token refresh scheduled")
		clock.Start(deadline)
		return err
	}
}
