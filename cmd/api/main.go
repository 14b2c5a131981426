package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"checkin/internal/attendance"
	"checkin/internal/auth"
	"checkin/internal/config"
	"checkin/internal/geoclient"
	"checkin/internal/metrics"
	"checkin/internal/store"
	"checkin/internal/web"
	"checkin/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	log := logger.New(cfg.LogLevel)
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server failed")
	}
}

func run(cfg config.App, log *logrus.Logger) error {
	ctx := context.Background()

	db, err := store.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}
	log.WithField("driver", cfg.DBDriver).Info("database ready")

	m := metrics.New()
	repo := attendance.NewRepository(db.Client)
	geo := geoclient.New(cfg.GeoURL, cfg.GeoTimeout, cfg.GeoSkip)
	svc := attendance.NewService(repo, geo, log, m, attendance.Options{RecentWindow: cfg.RecentWindow})

	seed := attendance.LeaderSeed{
		Username: cfg.LeaderUsername,
		Email:    cfg.LeaderEmail,
		Name:     cfg.LeaderName,
		Password: cfg.LeaderPassword,
	}
	if _, err := svc.Bootstrap(ctx, seed, cfg.SeedExampleMembers); err != nil {
		return err
	}

	health := map[string]web.HealthCheck{"db": db.Healthy}
	var sessions auth.Sessions
	if cfg.SessionBackend == "redis" {
		rdb, err := store.NewRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer rdb.Close()
		sessions = auth.NewRedisSessions(rdb.Client, "")
		health["redis"] = rdb.Healthy
	} else {
		sessions = auth.NewInMemorySessions()
	}
	am := auth.NewManager(sessions, cfg.SessionKey, cfg.SessionIssuer, cfg.SessionTTL, cfg.Production(), log)

	router, err := web.NewRouter(web.Deps{
		Service:         svc,
		Auth:            am,
		Log:             log,
		Metrics:         m,
		Health:          health,
		RateLimitPerMin: cfg.RateLimitPerMin,
		TrustedProxies:  cfg.TrustedProxies,
		CORSOrigins:     cfg.CORSOrigins,
		SecureCookies:   cfg.Production(),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.HTTPPort).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server forced shutdown")
	}
	log.Info("server exited")
	return nil
}
