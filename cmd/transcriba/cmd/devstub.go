package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/transcriba/transcriba/internal/stubapi"
)

var (
	stubPort      int
	stubSeedEmail string
	stubSeedPass  string
	stubTokenTTL  time.Duration
)

var devstubCmd = &cobra.Command{
	Use:   "devstub",
	Short: "Run a local stub backend for development",
	RunE: func(cmd *cobra.Command, args []string) error {
		stub := stubapi.New(stubapi.WithTokenTTL(stubTokenTTL))
		if stubSeedEmail != "" {
			if _, err := stub.Seed(stubSeedEmail, stubSeedPass, "Dev", "User"); err != nil {
				return fmt.Errorf("seeding user: %w", err)
			}
			fmt.Printf("Seeded user %s\n", stubSeedEmail)
		}

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		r.Mount("/", stub.Router())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", stubPort),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner()
		fmt.Printf("Stub backend listening on port %d...\n", stubPort)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(devstubCmd)
	devstubCmd.Flags().IntVarP(&stubPort, "port", "p", 3000, "Port to listen on")
	devstubCmd.Flags().StringVar(&stubSeedEmail, "seed-email", "", "Seed a user with this email")
	devstubCmd.Flags().StringVar(&stubSeedPass, "seed-password", "devpassword", "Password for the seeded user")
	devstubCmd.Flags().DurationVar(&stubTokenTTL, "token-ttl", 15*time.Minute, "Access token lifetime")
}
