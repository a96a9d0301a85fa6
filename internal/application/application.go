package application

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/proctoria/proctoring-service/internal/config"
	"github.com/proctoria/proctoring-service/internal/database"
	"github.com/proctoria/proctoring-service/internal/handler"
	"github.com/proctoria/proctoring-service/internal/metrics"
	"github.com/proctoria/proctoring-service/internal/risk"
	"github.com/proctoria/proctoring-service/internal/router"
	"github.com/proctoria/proctoring-service/internal/service"
	"github.com/proctoria/proctoring-service/internal/store"
	"github.com/proctoria/proctoring-service/internal/syncutil"
	"go.uber.org/zap"
)

// API is the HTTP + WebSocket API application.
type API struct {
	cfg     *config.Config
	srv     *http.Server
	hub     *service.Hub
	sweeper *service.Sweeper
	logger  *zap.Logger
}

// NewAPI creates the API application: validates config, runs migrations,
// opens the store, builds hub/services/router.
func NewAPI(cfg *config.Config) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger, _ := zap.NewProduction()
	if cfg.AppEnv == "development" {
		logger, _ = zap.NewDevelopment()
	}

	var st store.Store
	switch cfg.StoreDriver {
	case "memory":
		st = store.NewMemoryStore()
		logger.Warn("using in-memory store; sessions will not survive restart")
	default:
		if err := database.MigrateUp(cfg.DatabaseURL()); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		db, err := database.Open(cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		st = store.NewGormStore(db)
	}

	metrics.Register()

	engine := risk.NewEngine(risk.Config{
		DecayWindow: cfg.RiskDecayWindow,
		Weights:     cfg.RiskWeightOverrides,
	})
	hub := service.NewHub(logger)
	locks := &syncutil.ShardedMutex{}
	sessionSvc := service.NewSessionService(st, engine, hub, locks, logger)
	violationSvc := service.NewViolationService(st, engine, hub, locks, logger).
		WithTrendSampling(cfg.TrendWindow, cfg.TrendSampleInterval)

	sessionHandler := handler.NewSessionHandler(sessionSvc, cfg.WSBaseURL, cfg.HighRiskThreshold)
	violationHandler := handler.NewViolationHandler(violationSvc)
	ws := handler.NewWSHandler(hub, sessionSvc,
		cfg.WSReadBufferSize, cfg.WSWriteBufferSize, cfg.WSSendBuffer, cfg.WSMaxMessageSize, logger)
	health := handler.NewHealthHandler()

	r := router.New(sessionHandler, violationHandler, ws, health)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	sweeper := service.NewSweeper(hub, cfg.HeartbeatInterval, logger)

	return &API{cfg: cfg, srv: srv, hub: hub, sweeper: sweeper, logger: logger}, nil
}

// Run starts the heartbeat sweeper and HTTP server, blocks until ctx is
// cancelled, then shuts down gracefully.
func (a *API) Run(ctx context.Context) error {
	defer a.logger.Sync()

	host := a.cfg.AppHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	base := "http://" + host + ":" + a.cfg.HTTPPort
	log.Printf("HTTP server listening on %s", a.srv.Addr)
	log.Printf("  Health:     %s/health", base)
	log.Printf("  Metrics:    %s/metrics", base)
	log.Printf("  Sessions:   %s/api/v1/sessions/start", base)
	log.Printf("  WebSocket:  ws://%s:%s/ws/:session_id", host, a.cfg.HTTPPort)
	log.Printf("  Monitoring: ws://%s:%s/ws/monitor/:room", host, a.cfg.HTTPPort)

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
