// Package patch hooks refresh scheduling into the host's OAuth2 authorize
// entry point once the host has finished starting.
package patch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-auth-refresher/host"
	errs "github.com/jrsteele09/go-auth-refresher/internal/errors"
	"github.com/jrsteele09/go-auth-refresher/internal/retry"
)

const (
	DefaultInstallRetries    = 10
	DefaultInstallRetryDelay = time.Second
)

// Installer waits for the authorize entry point and wraps it.
type Installer struct {
	actions host.Actions
	state   *State
	clock   Starter
	budget  retry.Budget
	log     zerolog.Logger

	mu        sync.Mutex
	installed atomic.Bool
	closed    bool
	original  host.AuthorizeFunc
}

// InstallerOption configures an Installer.
type InstallerOption func(*Installer)

// WithBudget overrides the retry budget.
func WithBudget(b retry.Budget) InstallerOption {
	return func(i *Installer) {
		i.budget = b
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) InstallerOption {
	return func(i *Installer) {
		i.log = l
	}
}

func NewInstaller(actions host.Actions, state *State, clock Starter, options ...InstallerOption) *Installer {
	i := &Installer{
		actions: actions,
		state:   state,
		clock:   clock,
		budget:  retry.Budget{Retries: DefaultInstallRetries, Delay: DefaultInstallRetryDelay},
		log:     log.Logger,
	}
	for _, opt := range options {
		opt(i)
	}
	return i
}

// Install blocks until the entry point is wrapped, the retry budget is spent
// (ErrPatchTargetUnavailable) or ctx is done. A second call is a no-op and a
// call after Uninstall fails.
func (i *Installer) Install(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return errs.Wrapf(errs.ErrPatchTargetUnavailable, "installer closed")
	}
	if i.installed.Load() {
		return nil
	}

	used, err := i.budget.Do(ctx, func() bool {
		available := i.actions.AuthorizeOAuth2() != nil
		if !available {
			i.log.Debug().Msg("authorize entry point not available yet")
		}
		return available
	})
	if err != nil {
		if errs.Is(err, retry.ErrBudgetExhausted) {
			i.log.Error().Int("retries", used).Msg("authorize entry point never appeared, token refresh disabled")
			return errs.Wrapf(errs.ErrPatchTargetUnavailable, "after %d retries", used)
		}
		return err
	}

	// Started before the wrapper is published; authorizations through the
	// wrapper restart it with their own deadline.
	i.clock.Start(i.state.Deadline())

	i.original = i.actions.AuthorizeOAuth2()
	i.actions.SetAuthorizeOAuth2(Wrap(i.original, i.state, i.clock, i.log))
	i.installed.Store(true)
	i.log.Info().Int("retries", used).Msg("token refresh hook installed")
	return nil
}

// Uninstall puts the host's original entry point back and disables further
// installs. It waits for a running Install to return.
func (i *Installer) Uninstall() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.closed = true
	if !i.installed.Load() {
		return
	}
	i.actions.SetAuthorizeOAuth2(i.original)
	i.original = nil
	i.installed.Store(false)
	i.log.Info().Msg("token refresh hook removed")
}

// Installed reports whether the hook is in place.
func (i *Installer) Installed() bool {
	return i.installed.Load()
}
