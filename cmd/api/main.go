package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/Harsha29-kns/hackforge-backend/internal/app/migrate"
	httpx "github.com/Harsha29-kns/hackforge-backend/internal/http"
	"github.com/Harsha29-kns/hackforge-backend/internal/realtime"
	"github.com/Harsha29-kns/hackforge-backend/internal/repository/postgres"
	"github.com/Harsha29-kns/hackforge-backend/internal/service/allocator"
	"github.com/Harsha29-kns/hackforge-backend/internal/service/auth"
	"github.com/Harsha29-kns/hackforge-backend/internal/service/notify"
	"github.com/Harsha29-kns/hackforge-backend/internal/service/registration"
	"github.com/Harsha29-kns/hackforge-backend/internal/service/settings"
	"github.com/Harsha29-kns/hackforge-backend/internal/service/team"
	"github.com/Harsha29-kns/hackforge-backend/internal/ws"
	"github.com/Harsha29-kns/hackforge-backend/pkg/config"
	"github.com/Harsha29-kns/hackforge-backend/pkg/logger"
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadAppConfig()
	log := logger.New("api", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)
	hub := ws.NewHub()
	defer hub.Close()
	bcast := realtime.NewBroadcaster(hub, log)
	registry := realtime.NewRegistry()
	mailer := notify.LogMailer{From: cfg.MailFrom, Logger: log}

	settingsSvc := settings.New(repo, log)
	if err := settingsSvc.Load(ctx, cfg.RegistrationLimit); err != nil {
		log.Error("failed to load server settings", "error", err)
		os.Exit(1)
	}

	allocSvc := allocator.New(repo, repo, settingsSvc, bcast, log)
	if err := allocSvc.Seed(ctx); err != nil {
		log.Error("failed to seed domain pool", "error", err)
		os.Exit(1)
	}

	regSvc := registration.New(repo, settingsSvc, bcast, mailer, log)
	go regSvc.Run(ctx, cfg.RegistrationRecheck)

	teamSvc := team.New(repo, settingsSvc, bcast, mailer, log)
	authSvc := auth.New(cfg, log)

	coord := realtime.NewCoordinator(registry, hub, bcast, allocSvc, settingsSvc,
		regSvc, repo, repo, log, cfg.StoreCallTimeout)

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(httpx.Deps{
		Logger:   log,
		Auth:     authSvc,
		Teams:    teamSvc,
		Reg:      regSvc,
		Alloc:    allocSvc,
		Coord:    coord,
		Registry: registry,
		Bcast:    bcast,
		Hub:      hub,
		Limiter:  limiter,
		WSWrite:  cfg.WSWriteTimeout,
		DBHealth: pool.Ping,
	})
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
