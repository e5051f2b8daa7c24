package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"video-pipeline-service/internal/repository/postgresql"
	"video-pipeline-service/internal/service"
	httptransport "video-pipeline-service/internal/transport/http"
)

// @title Video Pipeline Service API
// @version 1.0
// @description Accepts video generation jobs, tracks their progress and exposes cooperative cancellation.
// @BasePath /
func main() {
	_ = godotenv.Load()

	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "api").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pgDSN := mustEnv(log, "POSTGRES_DSN")
	redisAddr := mustEnv(log, "REDIS_ADDR")
	httpAddr := envOr("HTTP_ADDR", ":8080")
	queueKey := envOr("REDIS_QUEUE_KEY", "jobs:queue")
	processingKey := envOr("REDIS_PROCESSING_KEY", "jobs:processing")

	pool, err := postgresql.NewPool(ctx, pgDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("redis connect failed")
	}

	repo := postgresql.NewJobRepository(pool)
	queue := service.NewRedisQueue(rdb, queueKey, processingKey)
	jobSvc := service.NewJobService(repo, queue, log)

	handler := httptransport.NewHandler(jobSvc)
	srv := &http.Server{
		Addr:    httpAddr,
		Handler: httptransport.Routes(handler, log),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", httpAddr).Str("postgres_dsn", redactDSN(pgDSN)).Msg("api started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("api stopped")
}
