package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/chatrelay/relay/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components and manages the server lifecycle, so that
// deferred cleanup executes before the process exits and the entry point
// stays testable.
func run() error {
	// A missing .env file is fine; the environment itself still applies.
	_ = godotenv.Load()

	cfg, err := server.LoadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	logger := server.NewLogger(cfg.LogLevel)

	roster := server.NewRoster()
	hub := server.NewHub(roster, logger)
	go hub.Run()

	svc := server.NewChatService(roster, hub, cfg, logger)
	httpServer := server.CreateServer(cfg.Addr(), server.SetupRoutes(svc))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer)
	}()
	logger.Info().Int("port", cfg.Port).Msg("chat relay listening")

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	if err := server.ShutdownServer(httpServer, 10*time.Second); err != nil {
		logger.Error().Err(err).Msg("http server shutdown")
	}
	if err := hub.Shutdown(5 * time.Second); err != nil {
		logger.Warn().Err(err).Msg("hub shutdown")
	}

	logger.Info().Msg("chat relay stopped")
	return nil
}
