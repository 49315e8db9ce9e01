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
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"absensi/internal/attendance"
	"absensi/internal/config"
	"absensi/internal/handler"
	"absensi/internal/session"
	"absensi/internal/store"
)

// backend is what the attendance service and /healthz need from storage.
type backend interface {
	attendance.Repository
	handler.Pinger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := cfg.NewLogger()

	// Set Gin mode based on environment
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.WithError(err).Fatal("http server failed")
	}
}

func runHTTP(cfg config.App, log *logrus.Logger) error {
	ctx := context.Background()

	repo, closeRepo, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeRepo()

	opts := attendance.Options{
		Location: cfg.Location(),
		Logger:   log.WithField("component", "attendance"),
	}
	if cfg.CheckPolicy == config.PolicyFailClosed {
		opts.Policy = attendance.FailClosed
	}

	hopts := handler.Options{
		Sessions: session.NewManager(cfg.SecretKey, cfg.SessionTTL, cfg.Production()),
		DB:       repo,
		Logger:   log.WithField("component", "http"),
	}

	if cfg.Guard == config.GuardRedis {
		redisClient := store.NewRedis(cfg.RedisAddr)
		defer func() { _ = redisClient.Close() }()
		if !redisClient.Healthy(ctx) {
			log.WithField("addr", cfg.RedisAddr).Warn("redis not reachable, daily guard will follow CHECK_POLICY")
		}
		opts.Guard = redisClient
		hopts.Redis = redisClient
	}

	svc := attendance.NewService(repo, opts)
	r, err := handler.New(svc, hopts).Router(handler.RouterOptions{
		RateLimitPerMin: cfg.RateLimitPerMin,
		LogOutput:       log.Writer(),
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"port":     cfg.HTTPPort,
			"backend":  cfg.Backend,
			"timezone": cfg.Timezone,
			"guard":    cfg.Guard,
		}).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	log.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server forced shutdown")
	}

	log.Info("server exited")
	return nil
}

func openBackend(ctx context.Context, cfg config.App, log *logrus.Logger) (backend, func(), error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		pg := store.NewPostgres(db, cfg.Table)
		if err := pg.Migrate(ctx, cfg.DailyUnique); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return pg, func() { _ = db.Close() }, nil
	case config.BackendMemory:
		log.Warn("using in-memory storage, records are lost on restart")
		return store.NewMemory(cfg.DailyUnique), func() {}, nil
	default:
		if cfg.DailyUnique {
			log.WithField("index", cfg.Table+"_user_day_key").Info("DAILY_UNIQUE relies on a unique index created in the Supabase project")
		}
		return store.NewSupabase(cfg.SupabaseURL, cfg.SupabaseKey, cfg.Table, cfg.SupabaseTimeout), func() {}, nil
	}
}
