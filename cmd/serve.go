package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lehigh-university-libraries/comicgen/internal/handlers"
)

func newServeCmd() *cobra.Command {
	var port int
	var memory bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the comic API server",
		Long: `Starts the comicgen JSON API and serves the GUI bundle from STATIC_DIR.

The server opens the database once at startup, creates the comics and
panels tables if needed, and connects to the configured AI providers.
A missing API key for a selected provider stops startup.`,
		Example: `  # Start server on default port 8888
  comicgen serve

  # Start server on custom port with a throwaway in-memory store
  comicgen serve --port 3000 --memory`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.HTTPPort = port
			}

			a, err := newApp(cmd.Context(), cfg, appOptions{memory: memory, withAI: true})
			if err != nil {
				return fmt.Errorf("failed to start: %w", err)
			}
			defer func() {
				if err := a.Close(); err != nil {
					slog.Error("Failed to release resources", "err", err)
				}
			}()

			handler := handlers.New(a.service, cfg.StaticDir)
			router := handlers.NewRouter(handler, cfg.Environment)

			addr := cfg.Addr()
			server := &http.Server{
				Addr:    addr,
				Handler: router,
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				slog.Info("Comicgen API available", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})

			// Shut down on Ctrl+C or when the listener fails
			g.Go(func() error {
				<-ctx.Done()
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			})

			return g.Wait()
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8888, "Port to listen on (overrides HTTP_PORT)")
	cmd.Flags().BoolVar(&memory, "memory", false, "Keep comics in memory instead of the database")

	return cmd
}
