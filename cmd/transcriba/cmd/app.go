package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/transcriba/transcriba/api"
	"github.com/transcriba/transcriba/auth"
	"github.com/transcriba/transcriba/credstore"
	"github.com/transcriba/transcriba/credstore/bolt"
	"github.com/transcriba/transcriba/credstore/memory"
	"github.com/transcriba/transcriba/guard"
	"github.com/transcriba/transcriba/internal/config"
	"github.com/transcriba/transcriba/session"
	"github.com/transcriba/transcriba/transcriptions"
)

// app wires the client stack for one command invocation. The session
// scope lives only for the process; remembered logins come back through
// the durable bbolt scope.
type app struct {
	cfg     config.Config
	store   *credstore.Store
	state   *session.State
	manager *auth.Manager
	jobs    *transcriptions.Service
	guard   *guard.Guard

	durable *bolt.Scope
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	durable, err := bolt.Open(cfg.CredentialsPath(), nil)
	if err != nil {
		return nil, fmt.Errorf("opening credential store: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	store := credstore.New(memory.New(), durable)
	state := session.New()
	client := api.New(cfg.APIURL, store,
		api.WithLogger(logger),
		api.WithTimeout(cfg.HTTPTimeout),
	)
	manager := auth.New(client, store, state, auth.WithLogger(logger))
	client.SetRefresher(manager)

	g := guard.New(state, manager,
		guard.WithLogger(logger),
		guard.WithRedirect(func(string) {
			fmt.Fprintln(os.Stderr, "Not logged in. Run `transcriba login` first.")
		}),
	)

	return &app{
		cfg:     cfg,
		store:   store,
		state:   state,
		manager: manager,
		jobs:    transcriptions.New(client),
		guard:   g,
		durable: durable,
	}, nil
}

func (a *app) Close() error {
	return a.durable.Close()
}
