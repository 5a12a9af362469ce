package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/text"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"ollama_relay/backend"
	"ollama_relay/config"
	"ollama_relay/database"
	"ollama_relay/handlers"
	"ollama_relay/hostaddr"
	"ollama_relay/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.toml", "Path to configuration file")
	envPath := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	// Load environment variables from .env file
	if err := godotenv.Load(*envPath); err != nil {
		log.Debugf(".env file not found at %s, using system environment variables", *envPath)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := setupLogging(cfg.Log); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	if !cfg.Server.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	// Resolved once; a failed lookup later does not re-resolve
	endpoint := hostaddr.Endpoint(cfg.Backend.Host, cfg.Backend.Port, hostaddr.SystemInterfaces)
	ollama := backend.NewOllamaBackend(endpoint, cfg.Backend.CheckTimeout.Duration, cfg.Backend.StreamIdleTimeout.Duration)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := handlers.Deps{
		Config:      cfg,
		Backend:     ollama,
		Preferences: store.NewPreferences(cfg.Preferences.DarkMode, cfg.Preferences.SelectedModel),
		Interfaces:  hostaddr.SystemInterfaces,
	}

	// Initialize the request journal
	if cfg.Database.Enabled {
		log.Infof("Initializing database at %s", cfg.Database.Path)
		db, err := database.New(cfg.Database.Path)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer db.Close()

		deps.Journal = db
		go db.RunCleanup(ctx, cfg.Database.MaxRequests, time.Duration(cfg.Database.CleanupInterval)*time.Minute)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handlers.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{
			"addr":   addr,
			"ollama": endpoint,
		}).Info("Proxy server running")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for interrupt signal or a listener failure
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Graceful shutdown timed out, closing open streams")
		server.Close()
	}

	log.Info("Server stopped")
}

func setupLogging(cfg config.LogConfig) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	log.SetLevel(level)

	switch cfg.Format {
	case "json":
		log.SetHandler(json.New(os.Stderr))
	default:
		log.SetHandler(text.New(os.Stderr))
	}
	return nil
}
