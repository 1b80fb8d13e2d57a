package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rede-alerta/alertsync/internal/config"
	"github.com/rede-alerta/alertsync/internal/draft"
	"github.com/rede-alerta/alertsync/internal/engine"
	"github.com/rede-alerta/alertsync/internal/gateway"
	"github.com/rede-alerta/alertsync/internal/geo"
	"github.com/rede-alerta/alertsync/internal/redealerta"
)

func newLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
	return logger
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	log := newLogger(cfg.LogLevel)

	client := redealerta.New(cfg.ServiceURL, cfg.RequestTimeout, log)
	drafts := draft.NewStore(cfg.StateDir, log)
	eng := engine.New(client, drafts, log)

	var provider geo.Provider
	if cfg.GeoEndpoint != "" {
		provider = geo.NewHTTPProvider(cfg.GeoEndpoint)
	}
	locator := geo.NewLocator(provider, cfg.GeoTimeout, log)

	refresher := engine.NewRefresher(eng, cfg.RefreshInterval, log)
	if err := refresher.Start(); err != nil {
		log.Fatalf("Failed to start background refresher: %v", err)
	}

	handler := gateway.NewHandler(eng, drafts, client, locator, log)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: handler.Router(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Error starting HTTP server: %v", err)
		}
	}()
	log.WithFields(logrus.Fields{
		"addr":    cfg.ListenAddr,
		"service": cfg.ServiceURL,
	}).Info("Alert sync gateway started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Received shutdown signal, shutting down...")

	if err := refresher.Stop(); err != nil {
		log.WithError(err).Warn("Failed to stop background refresher")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server gracefully stopped")
}
