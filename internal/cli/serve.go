package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/maidr/internal/api"
)

const shutdownTimeout = 10 * time.Second

func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API. Configuration comes from the environment:
MAIDR_ADDR, MAIDR_REDIS_URL, MAIDR_CACHE_DIR, MAIDR_CACHE_SCOPE,
MAIDR_MONGO_URI, MAIDR_SQLITE_PATH, MAIDR_STORE, MAIDR_DATA_DIR,
MAIDR_RATE_LIMIT, MAIDR_RATE_BURST, MAIDR_MAX_BODY_BYTES and
MAIDR_REQUEST_TIMEOUT.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := api.LoadConfig()
			if addr != "" {
				cfg.Addr = addr
			}
			return c.runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides MAIDR_ADDR)")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, cfg api.Config) error {
	runner, err := api.NewRunner(ctx, cfg, c.Logger)
	if err != nil {
		return err
	}
	defer runner.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewServer(runner, c.Logger, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		c.Logger.Info("listening", "addr", cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	c.Logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
