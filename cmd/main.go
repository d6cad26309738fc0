/*
Package main is the entry point for the chat relay.

It is responsible for loading configuration, initializing the global logging system,
building the registries, the chat service and the WebSocket hub, starting the cleanup
scheduler and the HTTP server, and gracefully handling operating system interrupt signals
(SIGINT, SIGTERM) to ensure a smooth shutdown.
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

	"chatrelay/internal/app/chat"
	"chatrelay/internal/app/cleanup"
	"chatrelay/internal/app/gateway"
	"chatrelay/internal/app/ratelimit"
	"chatrelay/internal/app/room"
	"chatrelay/internal/app/session"
	"chatrelay/internal/configs"
	"chatrelay/internal/handler"
	"chatrelay/internal/pkg/clockx"
	"chatrelay/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Dur("session_idle_timeout", cfg.SessionIdleTimeout).
		Dur("cleanup_interval", cfg.CleanupInterval).
		Int("rate_message_limit", cfg.RateMessageLimit).
		Int("rate_room_op_limit", cfg.RateRoomOpLimit).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := clockx.Real()

	sessions := session.NewRegistry(clock)
	rooms := room.NewRegistry(clock)
	limiter := ratelimit.New(ratelimit.Config{
		MessageLimit:      cfg.RateMessageLimit,
		RoomOpLimit:       cfg.RateRoomOpLimit,
		BaseWindow:        cfg.RateWindow,
		PenaltyMultiplier: cfg.RatePenaltyMultiplier,
		WindowCeiling:     cfg.RateWindowCeiling,
		MaxPenalties:      cfg.RateMaxPenalties,
		PenaltyDecay:      cfg.RatePenaltyDecay,
	}, clock)

	hub := gateway.NewHub(rooms)
	service := chat.NewService(sessions, rooms, limiter, hub, clock, chat.Config{
		MaxContentLength: cfg.MaxContentLength,
	})

	scheduler := cleanup.NewScheduler(cleanup.Config{
		Interval:           cfg.CleanupInterval,
		SessionIdleTimeout: cfg.SessionIdleTimeout,
		RateEntryIdle:      cfg.RateEntryIdle,
	}, service, limiter, clock)
	scheduler.Start(ctx)

	// Setup HTTP server and routes
	router, stopLimiters := handler.Router(&handler.AppDeps{
		Service:   service,
		Rooms:     rooms,
		Hub:       hub,
		Cleanup:   scheduler,
		Config:    cfg,
		StartedAt: clock.Now(),
	})
	defer stopLimiters()

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Chat relay starting on http://localhost%s", serverAddr))
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
		logx.Error(err, "Server forced to shutdown")
	}

	hub.Shutdown()
	scheduler.Stop()

	logx.Info("Server gracefully stopped.")
}
