// Package guard gates entry into protected areas of the application.
package guard

import (
	"context"
	"log/slog"
	"os"

	"github.com/transcriba/transcriba/session"
)

// ProfileLoader triggers a background profile fetch. Satisfied by
// auth.Manager.
type ProfileLoader interface {
	EnsureProfile(ctx context.Context)
}

// Guard answers whether a navigation into a protected target may proceed.
// The decision reads the current session snapshot only; it never blocks on
// the network.
type Guard struct {
	state    *session.State
	profiles ProfileLoader
	redirect func(target string)
	logger   *slog.Logger
}

// Option configures the Guard.
type Option func(*Guard)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

// WithRedirect sets the callback invoked with the denied target so the
// caller can route to its login flow.
func WithRedirect(redirect func(target string)) Option {
	return func(g *Guard) {
		g.redirect = redirect
	}
}

// New creates a Guard over the given session state. profiles may be nil.
func New(state *session.State, profiles ProfileLoader, opts ...Option) *Guard {
	g := &Guard{state: state, profiles: profiles}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	g.logger = g.logger.With("component", "guard")
	return g
}

// Allow reports whether the navigation to target may proceed. An
// authenticated session passes immediately and kicks off a background
// profile fetch; an unauthenticated one is denied and the redirect
// callback, if any, receives the target.
func (g *Guard) Allow(ctx context.Context, target string) bool {
	if g.state.IsAuthenticated() {
		if g.profiles != nil {
			g.profiles.EnsureProfile(ctx)
		}
		return true
	}

	g.logger.Debug("navigation denied", slog.String("target", target))
	if g.redirect != nil {
		g.redirect(target)
	}
	return false
}
