package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/chachabrian/mooveit-booking/internal/config"
	"github.com/chachabrian/mooveit-booking/internal/database"
	"github.com/chachabrian/mooveit-booking/internal/handlers"
	"github.com/chachabrian/mooveit-booking/internal/logging"
	"github.com/chachabrian/mooveit-booking/internal/middleware"
	"github.com/chachabrian/mooveit-booking/internal/repository"
	"github.com/chachabrian/mooveit-booking/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	if !cfg.DotEnvLoaded {
		log.Warn("No .env file found, using process environment")
	}

	if err := run(cfg, log); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}

// run owns every resource the server opens, so that each is closed before
// main exits.
func run(cfg config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]handlers.HealthCheck{}

	var store repository.Store
	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		log.Warn("Using in-memory store, data is lost on restart")
		store = repository.NewMemoryStore()
	default:
		db, err := database.InitDB(cfg.Database, log)
		if err != nil {
			return fmt.Errorf("initialize database: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("get database instance: %w", err)
		}
		defer sqlDB.Close()
		checks["postgres"] = sqlDB.PingContext
		store = repository.NewGormStore(db)
	}

	var queue services.ReconciliationQueue
	rdb, err := services.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, reconciliation queue kept in memory")
		queue = services.NewMemoryReconciliationQueue()
	} else {
		defer rdb.Close()
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		queue = services.NewRedisReconciliationQueue(rdb, services.ReconciliationKey)
	}

	svc := services.New(store, queue, cfg.Compensation, log)
	replayReconciliation(ctx, svc.Compensator, log)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(log))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	r.Use(cors.New(corsConfig))

	handlers.RegisterRoutes(r, svc, cfg.JWTSecret, checks)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("listen on :%s: %w", cfg.Port, err)
	case <-ctx.Done():
	}
	log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
	return nil
}

// replayReconciliation applies releases queued by a previous run before
// traffic is accepted.
func replayReconciliation(ctx context.Context, compensator *services.Compensator, log *logrus.Logger) {
	applied, err := compensator.ReplayPending(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to replay reconciliation queue")
		return
	}
	if applied > 0 {
		log.WithField("applied", applied).Info("Replayed pending compensating releases")
	}
}
