package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/myplayplanet/backend/internal/client"
	"github.com/myplayplanet/backend/internal/config"
	"github.com/myplayplanet/backend/internal/db"
	"github.com/myplayplanet/backend/internal/db/memory"
	"github.com/myplayplanet/backend/internal/handler"
	"github.com/myplayplanet/backend/internal/ratelimit"
	"github.com/myplayplanet/backend/internal/service"
	"github.com/redis/go-redis/v9"
)

// @title MyPlayPlanet Account API
// @version 1.0
// @description Accounts, sessions and permissions.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg := config.Load()
	gin.SetMode(cfg.Server.GinMode)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	sessions, err := service.NewSessionManager(store, cfg.Session, logger)
	if err != nil {
		return err
	}

	authz, err := service.NewAuthorizer(store, cfg.Machine.Clients, logger)
	if err != nil {
		return err
	}
	if err := authz.InitPermissions(ctx); err != nil {
		return fmt.Errorf("failed to init permissions: %w", err)
	}

	limiter, closeRedis, err := newLoginLimiter(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRedis()

	// A nil *OIDCClient must not reach the service as a non-nil interface.
	var linker service.AccountLinker
	oidcClient, err := client.NewOIDCClient(ctx, cfg.OIDC)
	if err != nil {
		return err
	}
	if oidcClient != nil {
		linker = oidcClient
	}

	auth, err := service.NewAuthService(store, sessions, limiter, linker, cfg.TOTP, logger)
	if err != nil {
		return err
	}
	machines := service.NewMachineAuthenticator(cfg.Machine, authz, sessions, logger)

	router := gin.Default()
	router.Use(handler.CORSMiddleware(cfg.Server.CORSAllowedOrigins))
	handler.RegisterRoutes(
		router,
		handler.NewGuard(sessions, authz, store),
		handler.NewAuthHandler(auth, machines),
		handler.NewAccountHandler(auth, authz),
	)

	logger.Info("starting server", "addr", cfg.Server.Addr, "storage", cfg.Server.Storage)
	return router.Run(cfg.Server.Addr)
}

func openStore(ctx context.Context, cfg config.Config) (service.Store, func(), error) {
	switch cfg.Server.Storage {
	case "memory":
		slog.Warn("using in-memory storage; data is lost on restart")
		return memory.New(), func() {}, nil
	case "postgres":
		pool, err := db.NewPostgresPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		pg := db.NewPostgres(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return pg, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown STORAGE %q", service.ErrMisconfigured, cfg.Server.Storage)
	}
}

func newLoginLimiter(ctx context.Context, cfg config.Config) (*ratelimit.LoginLimiter, func(), error) {
	window, err := time.ParseDuration(cfg.Limiter.Window)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invalid LOGIN_ATTEMPT_WINDOW", service.ErrMisconfigured)
	}
	if cfg.Redis.Addr == "" {
		slog.Warn("REDIS_ADDR not set; login throttling disabled")
		return ratelimit.NewLoginLimiter(nil, 0, window), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return ratelimit.NewLoginLimiter(rdb, cfg.Limiter.MaxAttempts, window), func() { _ = rdb.Close() }, nil
}
