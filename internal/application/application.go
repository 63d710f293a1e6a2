package application

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sharad1666/Discoursify/internal/config"
	"github.com/sharad1666/Discoursify/internal/database"
	"github.com/sharad1666/Discoursify/internal/handler"
	"github.com/sharad1666/Discoursify/internal/report"
	"github.com/sharad1666/Discoursify/internal/router"
	"github.com/sharad1666/Discoursify/internal/service"
)

// API is the HTTP + WebSocket session coordination application.
type API struct {
	cfg     *config.Config
	srv     *http.Server
	db      *gorm.DB
	hub     *service.SignalHub
	sweeper *service.Sweeper
}

// NewAPI creates the API application: validates config, runs migrations,
// opens the database, and wires handlers.
func NewAPI(cfg *config.Config) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := database.MigrateUp(cfg.DatabaseURL()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	logger, _ := zap.NewProduction()
	if cfg.AppEnv == "development" {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	hub := service.NewSignalHub(cfg.WSReadBufferSize, cfg.WSWriteBufferSize, cfg.WSMaxMessageSize, logger)
	reporter := report.NewNotifier(cfg.ReportServiceURL, logger)
	sessionSvc := service.NewSessionService(db, cfg, hub, reporter)
	sweeper := service.NewSweeper(db, cfg, sessionSvc, logger)

	sessionHandler := handler.NewSessionHandler(sessionSvc)
	signaling := handler.NewSignalingHandler(hub, sessionSvc, logger)
	health := handler.NewHealthHandler()

	r := router.New(sessionHandler, signaling, health)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &API{cfg: cfg, srv: srv, db: db, hub: hub, sweeper: sweeper}, nil
}

// Run starts the HTTP server and the sweeper, blocks until ctx is cancelled,
// then shuts down gracefully.
func (a *API) Run(ctx context.Context) error {
	addr := a.srv.Addr
	host := a.cfg.AppHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	base := "http://" + host + ":" + a.cfg.HTTPPort
	log.Printf("HTTP server listening on %s", addr)
	log.Printf("  Health:        %s/health", base)
	log.Printf("  Ready:         %s/ready", base)
	log.Printf("  Sessions:      %s/sessions", base)
	log.Printf("  WebSocket:     ws://%s:%s/ws/session/:session_id/:user_id", host, a.cfg.HTTPPort)

	go a.sweeper.Run(ctx)

	go func() {
		if err := a.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
