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

	"chat-relay/api"
	"chat-relay/auth"
	"chat-relay/gateway"
	"chat-relay/internal"
	"chat-relay/repositories"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"chat-relay/storage"

	env "github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const shutdownTimeout = 10 * time.Second

func main() {
	// The main function acts as a thin wrapper: call run() and hand the
	// exit code to the OS so all defers execute before the process exits.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := internal.LoggerFromString(config.LogLevel)
	slog.SetDefault(logger)

	// 2. Storage (BadgerDB + uploads directory)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		// Ensures the database lock is released and buffers are flushed.
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blobs, err := storage.NewDiskBlobStore(config.UploadsFilepath, logger)
	if err != nil {
		return exitRuntime, err
	}

	// 3. Repositories & Services
	messageRepository := repositories.NewMessageRepository(db, logger, config.LimitMessages)
	userRepository := repositories.NewUserRepository(db)

	tokens := auth.NewTokenManager(config.JWTSecret, config.AuthTokenDuration)
	authService := services.NewAuthService(userRepository, tokens)
	chatService := services.NewChatService(messageRepository, userRepository)

	// 4. Realtime gateway
	registry := gateway.NewRegistry()
	router := gateway.NewRouter(logger, messageRepository, blobs, registry)
	gw := gateway.New(logger, registry, router, tokens, gateway.Config{
		HeartbeatPeriod: config.HeartbeatPeriod,
		DeathTimeout:    config.DeathTimeout,
		SendBufferSize:  config.ConnectionBufferSize,
	})

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Supervised maintenance workers
	sup := workers.NewSupervisor(logger)
	sup.Add(workers.NewBadgerGCWorker(logger, db, config.GCInterval))
	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	// 7. HTTP server
	handler := api.NewHandler(logger, authService, chatService, tokens, registry, config.AuthTokenDuration)
	mux := api.NewRouter(logger, handler, gw, blobs.Dir(), config.ClientOrigin)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: mux}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", address)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 8. Graceful shutdown: stop accepting, close live connections, wait
	// for the workers.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	gw.Shutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}

	sup.Stop()
	select {
	case <-supDone:
	case <-shutdownCtx.Done():
		logger.Warn("Workers did not stop before the shutdown deadline")
	}

	logger.Info("Server stopped")
	return exitOK, nil
}
