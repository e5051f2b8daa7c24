package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"video-pipeline-service/internal/pipeline"
	"video-pipeline-service/internal/repository/postgresql"
	"video-pipeline-service/internal/service"
	"video-pipeline-service/internal/stage"
	"video-pipeline-service/internal/stage/engine"
	"video-pipeline-service/internal/storage"
	"video-pipeline-service/internal/worker"
)

func main() {
	_ = godotenv.Load()

	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pgDSN := mustEnv(log, "POSTGRES_DSN")
	redisAddr := mustEnv(log, "REDIS_ADDR")

	queueKey := envOr("REDIS_QUEUE_KEY", "jobs:queue")
	processingKey := envOr("REDIS_PROCESSING_KEY", "jobs:processing")
	workersCount := envIntOr("WORKERS", 4)
	outputDir := envOr("OUTPUT_DIR", "outputs")

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

	// Stale-claim reaper: ids stuck in the processing list after a worker
	// crash go back to the queue. Safe to rerun because only pending jobs
	// are ever started.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := queue.RequeueStale(ctx, 100)
				if err != nil {
					log.Error().Err(err).Msg("requeue stale failed")
					continue
				}
				if n > 0 {
					log.Info().Int64("requeued", n).Msg("stale jobs requeued")
				}
			}
		}
	}()

	objStore, err := newObjectStore(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("object store init failed")
	}

	stages, err := stage.NewPoolSet(poolSetConfig(), repo, log)
	if err != nil {
		log.Fatal().Err(err).Msg("stage pools init failed")
	}
	stages.StartJanitors(ctx, envDurOr("POOL_JANITOR_INTERVAL", time.Minute))

	orch := pipeline.NewOrchestrator(pipeline.Config{
		BaseFPS:   envIntOr("BASE_FPS", 8),
		OutputDir: outputDir,
	}, repo, stages, objStore, log)

	processor := worker.NewProcessor(repo, orch, log)
	workerPool := worker.NewPool(queue, processor, workersCount, log)

	log.Info().
		Int("workers", workersCount).
		Str("redis_addr", redisAddr).
		Str("queue_key", queueKey).
		Str("processing_key", processingKey).
		Str("postgres_dsn", redactDSN(pgDSN)).
		Msg("worker started")

	workerPool.Run(ctx)

	log.Info().Msg("worker stopped")
}

func newObjectStore(ctx context.Context, log zerolog.Logger) (storage.ObjectStore, error) {
	switch backend := envOr("STORAGE_BACKEND", "gcs"); backend {
	case "local":
		return storage.NewLocalStore(envOr("LOCAL_STORAGE_DIR", "storage"), envOr("STORAGE_BUCKET", "videos"), log)
	default:
		return storage.NewGCSStore(ctx, mustEnv(log, "GCS_BUCKET"), log)
	}
}

func poolSetConfig() stage.PoolSetConfig {
	return stage.PoolSetConfig{
		Preprocess:  stagePool("PREPROCESS", 1, 2),
		Generate:    stagePool("GENERATE", 1, 2),
		Interpolate: stagePool("INTERPOLATE", 0, 2),
		Upscale:     stagePool("UPSCALE", 0, 2),
		Postprocess: stagePool("POSTPROCESS", 1, 2),

		PreprocessConfig:  stage.DefaultPreprocessConfig(),
		PostprocessConfig: stage.DefaultPostprocessConfig(),

		NewGeneratorEngine:    engine.NewProcedural,
		NewInterpolatorEngine: engine.NewBlend,
		NewUpscalerEngine:     engine.NewResize,
		NewEncoder:            engine.NewGIF,
	}
}

func stagePool(prefix string, minDef, maxDef int) stage.PoolConfig {
	return stage.PoolConfig{
		Name:        strings.ToLower(prefix),
		MinReplicas: envIntOr(prefix+"_MIN_REPLICAS", minDef),
		MaxReplicas: envIntOr(prefix+"_MAX_REPLICAS", maxDef),
		IdleTimeout: envDurOr(prefix+"_IDLE_TIMEOUT", 5*time.Minute),
	}
}
