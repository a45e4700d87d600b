package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"landlord-server/api"
	"landlord-server/auth"
	"landlord-server/config"
	"landlord-server/loghandler"
	"landlord-server/room"
	"landlord-server/storage"
	"landlord-server/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		if err2 := godotenv.Load("server/.env"); err2 != nil {
			slog.Info("no .env file found; using environment variables", "tag", "main")
		}
	}

	cfg := config.Load()
	slog.SetDefault(slog.New(loghandler.NewCompactHandler(os.Stdout, cfg.SlogLevel())))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server stopped", "tag", "main", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	slog.Info("configuration", "tag", "main",
		"port", cfg.WSPort, "defaultCapacity", cfg.DefaultCapacity,
		"turnLimitSec", cfg.TurnLimitSec, "reconnectGraceMs", cfg.ReconnectGraceMS)

	store, err := storage.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()
	if store == nil {
		slog.Warn("DATABASE_URL is not set; history and leaderboard are disabled", "tag", "main")
	}

	writer := storage.NewWriter(store, cfg.PersistQueueSize)
	writerCtx, stopWriter := context.WithCancel(context.Background())
	writerDone := make(chan struct{})
	go func() {
		writer.Run(writerCtx)
		close(writerDone)
	}()

	verifier, err := auth.NewVerifier(ctx, cfg)
	if err != nil {
		return fmt.Errorf("configure auth: %w", err)
	}

	rooms := room.NewCoordinator(cfg, room.WithPersister(writer))
	hub := ws.NewHub(cfg, rooms, verifier)
	rooms.SetNotifier(hub)
	rooms.SetPresence(hub.Registry().IsOnline)
	go hub.Run(ctx)

	handler := api.NewHandler(cfg, store, rooms, verifier)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WSPort),
		Handler:           handler.Router(hub.ServeWS),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("landlord server listening", "tag", "main", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutting down", "tag", "main")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "tag", "main", "err", err)
	}
	rooms.Close()
	stopWriter()
	<-writerDone
	return nil
}
