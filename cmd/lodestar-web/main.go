package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/susu3304/lodestar-web/internal/api"
	"github.com/susu3304/lodestar-web/internal/config"
	"github.com/susu3304/lodestar-web/internal/lodestar"
	"github.com/susu3304/lodestar-web/internal/logger"
	"github.com/susu3304/lodestar-web/internal/session"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel)

	if !cfg.CredentialsConfigured() {
		logger.L.Warn("LODESTAR_USERNAME / LODESTAR_PASSWORD not set; auto-login is disabled")
	}

	// Upstream client and the process-wide session
	client := lodestar.NewClient(cfg.TenantURL(), cfg.ClientName, nil)
	sessions := session.NewHolder()

	// Initialize API server
	apiServer := api.New(cfg, client, sessions)

	// Start API server
	go func() {
		if err := apiServer.Start(); err != nil {
			logger.L.Error("API server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for signal to stop
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.L.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		logger.L.Error("API server shutdown failed", "error", err)
	}
}
