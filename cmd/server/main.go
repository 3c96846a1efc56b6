package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirpyerre/realm-auth/internal/api"
	"github.com/sirpyerre/realm-auth/internal/api/handler"
	"github.com/sirpyerre/realm-auth/internal/core/service"
	"github.com/sirpyerre/realm-auth/internal/core/token"
	"github.com/sirpyerre/realm-auth/internal/infrastructure/config"
	mongostore "github.com/sirpyerre/realm-auth/internal/infrastructure/db/mongo"
	redisstore "github.com/sirpyerre/realm-auth/internal/infrastructure/db/redis"
	"github.com/sirpyerre/realm-auth/internal/infrastructure/queue"
	"github.com/sirpyerre/realm-auth/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		boot := logger.Init(logger.Options{Level: "error"})
		boot.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "realm-auth",
	})

	mongoClient, db, err := mongostore.Connect(ctx, mongostore.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		Timeout:  cfg.Mongo.Timeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connection failed")
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = mongoClient.Disconnect(disconnectCtx)
	}()

	if err := mongostore.EnsureIndexes(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("mongo index setup failed")
	}

	rdb, err := redisstore.Connect(ctx, redisstore.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer rdb.Close()

	// --- Audit trail ---
	auditService := service.NewAuditService(mongostore.NewAuditRepository(db), logger.For("audit"))
	dispatcher := queue.NewDispatcher(cfg.Audit.Workers, auditService, logger.For("audit"))
	dispatcher.Start(ctx)

	// --- Core services ---
	codec := token.NewCodec()
	issuer := service.NewIssuer(codec, cfg.SecretKey)

	authService := service.NewAuthService(
		mongostore.NewIdentityRepository(db, logger.For("identity")),
		issuer,
		dispatcher,
		logger.For("auth"),
	)
	interventionService := service.NewInterventionService(
		mongostore.NewRealmRepository(db),
		redisstore.NewAttemptLimiter(rdb, cfg.Intervention.MaxAttempts, cfg.Intervention.AttemptWindow),
		codec,
		issuer,
		dispatcher,
		service.InterventionConfig{PassTTL: cfg.Intervention.PassTTL},
		logger.For("intervention"),
	)

	e := api.NewRouter(api.Deps{
		Log:          logger.For("http"),
		OriginURL:    cfg.OriginURL,
		Guard:        token.NewGuard(codec, cfg.SecretKey),
		Auth:         authService,
		Intervention: interventionService,
		Readiness: map[string]handler.Check{
			"mongodb": handler.MongoCheck(mongoClient),
			"redis":   handler.RedisCheck(rdb),
		},
	})

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("realm-auth listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}
