package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/chatrelay/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := server.NewConfigFromEnv()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := server.NewHub(cfg, log)
	httpServer := server.CreateServer(cfg.Addr(), server.SetupRoutes(hub))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run()
		return nil
	})
	g.Go(func() error {
		return server.StartServer(httpServer, log)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownErr := server.ShutdownServer(httpServer, cfg.ShutdownTimeout, log)
		if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
			log.Warn("Hub did not stop cleanly", "error", err)
		}
		return shutdownErr
	})

	log.Info("Chat relay started", "addr", cfg.Addr())
	return g.Wait()
}

func newLogger(cfg *server.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
