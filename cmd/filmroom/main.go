package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/filmroomhq/filmroom/internal/api"
	"github.com/filmroomhq/filmroom/internal/config"
	"github.com/filmroomhq/filmroom/internal/db"
	"github.com/filmroomhq/filmroom/internal/film"
	"github.com/filmroomhq/filmroom/internal/logging"
	"github.com/filmroomhq/filmroom/internal/media"
	"github.com/filmroomhq/filmroom/internal/syncsession"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting filmroom server", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := film.NewRepository(database.Conn())

	instanceID, err := ensureInstanceID(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure instance ID: %w", err)
	}

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║                    FILMROOM v%-8s                     ║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:     http://127.0.0.1:%-26d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token:  %-44s ║\n", authToken)
	fmt.Printf("║  Instance ID: %-44s ║\n", instanceID[:16]+"...")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	filmSvc := film.NewService(repo, logger)

	mediaSecret, err := resolveMediaSecret(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to resolve media secret: %w", err)
	}
	signer := media.NewSigner(mediaSecret, cfg.URLTTL())
	streamer := media.NewStreamer(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prober := film.NewFFprobe(cfg.FFprobePath(), logger)
	runner := film.NewRunner(repo, prober, logger)
	go runner.Start(ctx)

	sessions := syncsession.NewManager(cfg.SessionTTL(), logger)
	go sessions.Start(ctx)

	apiServer := api.NewServer(api.ServerConfig{
		Port:        cfg.Port(),
		FilmService: filmSvc,
		Repository:  repo,
		Sessions:    sessions,
		Signer:      signer,
		Streamer:    streamer,
		Runner:      runner,
		Logger:      logger,
		StartTime:   startTime,
		InstanceID:  instanceID,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// resolveMediaSecret returns the configured signing key, or a per-boot
// random one. A random key invalidates signed URLs across restarts,
// which is acceptable because clients re-request them freely.
func resolveMediaSecret(cfg config.Config, logger *slog.Logger) ([]byte, error) {
	if s := cfg.MediaSecret(); s != "" {
		return []byte(s), nil
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	logger.Info("generated per-boot media signing key")
	return secret, nil
}

func ensureInstanceID(repo film.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "instance_id")
	if err == nil && existing != "" {
		return existing, nil
	}

	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return "", err
	}
	instanceID := hex.EncodeToString(idBytes)

	if err := repo.SetConfig(ctx, "instance_id", instanceID); err != nil {
		return "", err
	}

	return instanceID, nil
}

func ensureAuthToken(repo film.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}

	return token, nil
}
