package main

import (
	"context"
	"errors"
	"frogquest/internal/cli"
	"frogquest/internal/config"
	"frogquest/internal/matchbox"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.LoadServer(config.DefaultEnvFile, os.Args)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := cli.NewSignalContext()
	defer cancel()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           matchbox.NewServer(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("matchbox listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(ctx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("failed to serve", "error", err)
		os.Exit(1)
	}
}
