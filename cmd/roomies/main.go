package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dukerupert/roomies/internal/blob"
	"github.com/dukerupert/roomies/internal/config"
	"github.com/dukerupert/roomies/internal/database"
	"github.com/dukerupert/roomies/internal/logging"
	"github.com/dukerupert/roomies/internal/middleware"
	"github.com/dukerupert/roomies/internal/server"
	"github.com/dukerupert/roomies/internal/store"
)

const tokenTTL = 30 * 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	// roomies token <person-id> prints a bearer token for local testing.
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := printToken(cfg, os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		return
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	proofs := blob.NewS3Store(cfg.S3)
	if !cfg.S3.Configured() {
		slog.Warn("proof uploads disabled, S3 is not configured")
	}

	srv := server.New(db, server.Options{
		TokenSecret:   []byte(cfg.TokenSecret),
		TokenTTL:      tokenTTL,
		JoinRateLimit: cfg.JoinRateLimit,
		Policy:        store.CallPolicy{Timeout: cfg.StoreTimeout, Backoff: store.DefaultCallPolicy.Backoff},
		Proofs:        proofs,
	}, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		slog.Info("roomies starting", "addr", httpServer.Addr, "db", cfg.DBPath)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	cleanupCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

func printToken(cfg config.Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: roomies token <person-id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid person id %q", args[0])
	}
	token, err := middleware.SignToken([]byte(cfg.TokenSecret), id, tokenTTL)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	fmt.Println(token)
	return nil
}
