/*
Package main is the entry point for the Talkora server.

It is responsible for loading configuration, initializing the global logging
system, connecting to Postgres and object storage, wiring the presence and
delivery components, and gracefully handling operating system interrupt
signals (SIGINT, SIGTERM) to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"talkora/internal/app/db"
	"talkora/internal/app/delivery"
	"talkora/internal/app/presence"
	"talkora/internal/app/storage"
	"talkora/internal/app/store"
	"talkora/internal/configs"
	"talkora/internal/handler"
	"talkora/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Dur("presence_debounce", cfg.PresenceDebounce).
		Dur("typing_expiry", cfg.TypingExpiry).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to Postgres and run pending migrations.
	pool, err := db.NewPool(cfg.DatabaseDSN)
	if err != nil {
		logx.Fatal(err, "Failed to connect to database")
	}
	defer pool.Close()

	// Connect to object storage for chat and profile images.
	storageService, err := storage.NewStorageService(storage.ServiceConfig{
		S3BucketName:      cfg.S3BucketName,
		S3Endpoint:        cfg.S3Endpoint,
		S3AccessKeyID:     cfg.S3AccessKeyID,
		S3SecretAccessKey: cfg.S3SecretAccessKey,
	})
	if err != nil {
		logx.Fatal(err, "Failed to initialize storage service")
	}

	// Stores over the shared pool.
	users := store.NewUsers(pool)
	conversations := store.NewConversationStore(pool)
	friends := store.NewFriendGraph(pool)
	blocks := store.NewBlockList(pool)

	// Presence and delivery wiring.
	registry := presence.NewRegistry(cfg.PresenceDebounce)
	broadcaster := presence.NewBroadcaster(registry, friends, blocks, cfg.TypingExpiry)
	deliveryRouter := delivery.NewRouter(registry, broadcaster, conversations, blocks, friends, storageService)
	reconnector := delivery.NewReconnector(registry, broadcaster)

	registry.SetTransitionHooks(
		func(userID string) {
			broadcaster.OnlineSetChanged(context.Background(), userID)
		},
		func(userID string) {
			bg := context.Background()
			broadcaster.OnlineSetChanged(bg, userID)
			if customErr := users.TouchLastSeen(bg, userID); customErr != nil {
				logx.Error(customErr, "failed to update last_seen_at on disconnect", "user_id", userID)
			}
		},
	)

	deps := &handler.AppDeps{
		Config:         cfg,
		Users:          users,
		Conversations:  conversations,
		Friends:        friends,
		Blocks:         blocks,
		Registry:       registry,
		Broadcaster:    broadcaster,
		Delivery:       deliveryRouter,
		Reconnector:    reconnector,
		StorageService: storageService,
	}

	// Setup HTTP server and routes
	router := handler.Router(deps)

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Talkora Server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Fatal(err, "Server forced to shutdown")
	}

	broadcaster.Shutdown()
	registry.Shutdown()

	logx.Info("Server gracefully stopped.")
}
