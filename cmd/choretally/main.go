package main

import (
	"context"
	"encoding/hex"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tidebrook/choretally/internal/backup"
	"github.com/tidebrook/choretally/internal/database"
	"github.com/tidebrook/choretally/internal/logging"
	"github.com/tidebrook/choretally/internal/server"
)

func main() {
	godotenv.Load()

	logger := logging.Setup(os.Getenv("CHORETALLY_LOG_LEVEL"))

	dbPath := envOr("CHORETALLY_DB_PATH", "choretally.db")
	port := envOr("CHORETALLY_PORT", "8080")

	jwtSecret := os.Getenv("CHORETALLY_JWT_SECRET")
	if jwtSecret == "" {
		logger.Error("CHORETALLY_JWT_SECRET is required")
		os.Exit(1)
	}

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	salt, err := hex.DecodeString(os.Getenv("CHORETALLY_BACKUP_SALT"))
	if err != nil {
		logger.Error("decode CHORETALLY_BACKUP_SALT", "error", err)
		os.Exit(1)
	}

	cfg := server.Config{
		JWTSecret:       []byte(jwtSecret),
		VAPIDPublicKey:  os.Getenv("CHORETALLY_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("CHORETALLY_VAPID_PRIVATE_KEY"),
		UndoWindow:      time.Duration(envIntOr("CHORETALLY_UNDO_WINDOW_HOURS", 24)) * time.Hour,
		Backup: backup.Config{
			S3: backup.S3Config{
				Endpoint:  os.Getenv("CHORETALLY_S3_ENDPOINT"),
				Bucket:    os.Getenv("CHORETALLY_S3_BUCKET"),
				Region:    envOr("CHORETALLY_S3_REGION", "auto"),
				AccessKey: os.Getenv("CHORETALLY_S3_ACCESS_KEY"),
				SecretKey: os.Getenv("CHORETALLY_S3_SECRET_KEY"),
			},
			DBPath:        dbPath,
			Passphrase:    os.Getenv("CHORETALLY_BACKUP_PASSPHRASE"),
			Salt:          salt,
			ScheduleHour:  envIntOr("CHORETALLY_BACKUP_HOUR", 3),
			RetentionDays: envIntOr("CHORETALLY_BACKUP_RETENTION_DAYS", 30),
		},
	}

	srv := server.New(db, cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv.BackupManager().Start(ctx)
	defer srv.BackupManager().Stop()

	// Periodic sweep of expired rate limiter entries.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
