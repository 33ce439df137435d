package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/spider-crawler/sitecrawl/internal/api"
	"github.com/spider-crawler/sitecrawl/internal/config"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve scrape and crawl operations over HTTP",
		Long: `Serve starts an HTTP server with the routes:

  GET /test                 liveness page
  GET /health               JSON health status
  GET /scrap?url=           scrape a single page
  GET /scrap/detailed?url=&maxPages=&delayMs=&sameDomainOnly=&maxRetries=
                            crawl a site

Successful responses are {"response": ...}; failures are {"error": "..."}.
The server shuts down gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	addRenderFlags(cmd.Flags())
	addCrawlFlags(cmd.Flags())

	cmd.Flags().StringP("addr", "a", config.DefaultAddr, "HTTP listen address")
	cmd.Flags().String("default-target", "", "URL used when a request has no url parameter")
	cmd.Flags().Int("max-concurrent", config.DefaultMaxConcurrentRuns, "Maximum scrapes and crawls running at once")

	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched, err := newScheduler(cfg, logger)
	if err != nil {
		return err
	}

	return serve(ctx, cfg, api.NewServer(sched, cfg, logger), logger)
}

// serve runs handler on cfg.Server.Addr until ctx is done, then shuts down.
func serve(ctx context.Context, cfg *config.Config, handler http.Handler, logger *log.Logger) error {
	g, ctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g.Go(func() error {
		logger.Info().
			Str("addr", cfg.Server.Addr).
			Str("engine", string(cfg.Render.Engine)).
			Int("max_concurrent_runs", cfg.Server.MaxConcurrentRuns).
			Msg("api server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("shutting down api server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("api server stopped")
	return nil
}
