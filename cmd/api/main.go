package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"mealsfly_review/internal/adapters/auth"
	"mealsfly_review/internal/adapters/events"
	server "mealsfly_review/internal/adapters/http_server"
	"mealsfly_review/internal/adapters/images"
	"mealsfly_review/internal/adapters/observability"
	redisad "mealsfly_review/internal/adapters/redis"
	"mealsfly_review/internal/app"
	"mealsfly_review/internal/domain"
	"mealsfly_review/internal/shared"
	"mealsfly_review/internal/storage"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)
	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required outside dev")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// store
	store, closeStore, err := storage.Open(ctx, cfg.StoreDriver, cfg.MySQLDSN, cfg.SQLitePath)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("store open failed")
	}
	defer closeStore()
	log.Info().Str("driver", cfg.StoreDriver).Msg("store ready")

	// cache is optional; a nil cache sends every read to the store
	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := rc.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, continuing without cache")
			_ = rc.Close()
		} else {
			defer rc.Close()
			cache = rc
		}
	}

	// events
	var publisher interface {
		domain.EventPublisher
		Close() error
	} = events.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("kafka publisher enabled")
	}
	defer publisher.Close()
	queue := events.NewQueue(publisher, cfg.EventBacklog, 5*time.Second)
	defer queue.Close()
	pub := observability.CountTransitions(queue)

	// deps
	hasher := auth.NewHasher(0)
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)
	inspector := images.NewInspector(cfg.UploadDir, cfg.PublicBaseURL, cfg.ImageAllowedHosts, cfg.ImageFetchRPS)
	uploader := images.NewLocalUploader(cfg.UploadDir, cfg.PublicBaseURL)

	handlers := &server.Handlers{
		Auth:      app.NewAuthService(store, hasher, tokens),
		Users:     app.NewUserService(store, hasher, cache, pub),
		Tasks:     app.NewTaskService(store, cache, pub),
		Reviews:   app.NewReviewService(store, inspector, cache, pub),
		Query:     app.NewQueryService(store, cache, cfg.CacheTTL),
		Uploader:  uploader,
		UploadDir: cfg.UploadDir,
	}

	// http
	srv := server.New(cfg.RequestTimeout)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(handlers)

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(sctx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}
