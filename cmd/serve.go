package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kamusis/upksearch/internal/search"
	"github.com/kamusis/upksearch/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve search over HTTP",
	Long: `Load the embedding model and the index, then answer
GET /search?q=&pkg=&type=&limit= until interrupted.

Without an index the server still starts; /search answers 503 until
POST /reindex succeeds.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.engine.Warm(ctx); err != nil {
		if !errors.Is(err, search.ErrIndexUnavailable) {
			return err
		}
		a.log.Warn("starting without an index", zap.Error(err))
	}

	srv := server.New(a.engine, a.cfg.Server, a.log)
	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case err := <-errc:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errc
}
