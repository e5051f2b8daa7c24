// Package pipeline sequences the video generation stages for one job,
// maps stage progress into absolute percentage windows and drives the
// persisted job state machine to a terminal state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"video-pipeline-service/internal/entity"
	"video-pipeline-service/internal/stage"
	"video-pipeline-service/internal/storage"
)

// Store is the slice of the job store the orchestrator mutates. Status,
// progress and error are independent single-row writes.
type Store interface {
	ProgressStore
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to entity.JobStatus) (bool, error)
	SetError(ctx context.Context, id uuid.UUID, msg string) (bool, error)
	SaveResult(ctx context.Context, id uuid.UUID, objectKey, bucket string, sizeBytes int64) (bool, error)
	IsCancelled(ctx context.Context, id uuid.UUID) (bool, error)
}

// StageRunner invokes one stage against its worker pool. Implemented by
// stage.PoolSet.
type StageRunner interface {
	Preprocess(ctx context.Context, req stage.PreprocessRequest, jobID uuid.UUID) (*stage.DerivedParams, error)
	Generate(ctx context.Context, req stage.GenerateRequest, jobID uuid.UUID, progress stage.ProgressFunc) ([]image.Image, error)
	Interpolate(ctx context.Context, frames []image.Image, factor int, jobID uuid.UUID, progress stage.ProgressFunc) ([]image.Image, error)
	Upscale(ctx context.Context, frames []image.Image, factor int, jobID uuid.UUID, progress stage.ProgressFunc) ([]image.Image, error)
	Postprocess(ctx context.Context, req stage.PostprocessRequest, jobID uuid.UUID) (string, error)
}

type Config struct {
	Budgets   Budgets
	BaseFPS   int // fps the generation stage natively produces
	OutputDir string
}

func (c *Config) normalize() {
	zero := Budgets{}
	if c.Budgets == zero {
		c.Budgets = DefaultBudgets()
	}
	if c.BaseFPS <= 0 {
		c.BaseFPS = 8
	}
	if c.OutputDir == "" {
		c.OutputDir = "outputs"
	}
}

// Orchestrator drives one job at a time through the stage sequence
// Preprocess -> Generate -> [Interpolate] -> [Upscale] -> Postprocess,
// then hands the artifact to object storage. Many orchestrator calls run
// concurrently, one per job; stages within a job are strictly sequential.
type Orchestrator struct {
	cfg    Config
	store  Store
	stages StageRunner
	objs   storage.ObjectStore
	log    zerolog.Logger
}

func NewOrchestrator(cfg Config, store Store, stages StageRunner, objs storage.ObjectStore, log zerolog.Logger) *Orchestrator {
	cfg.normalize()
	return &Orchestrator{
		cfg:    cfg,
		store:  store,
		stages: stages,
		objs:   objs,
		log:    log.With().Str("component", "orchestrator").Logger(),
	}
}

// Run executes the full pipeline for one job. Nothing is returned: every
// outcome, including faults, ends up in the job record. The job must be
// pending; when it is not (already cancelled, or a duplicate delivery)
// Run aborts silently.
func (o *Orchestrator) Run(ctx context.Context, spec entity.GenerationSpec, jobID uuid.UUID) {
	log := o.log.With().Str("job_id", jobID.String()).Logger()

	var localPath string
	defer func() {
		if localPath != "" {
			o.objs.CleanupLocal(localPath)
		}
	}()

	ok, err := o.store.TransitionStatus(ctx, jobID, entity.StatusPending, entity.StatusProcessing)
	if err != nil {
		log.Error().Err(err).Msg("failed to start job")
		return
	}
	if !ok {
		// Job left pending already (cancelled, or double delivery).
		log.Info().Msg("job no longer pending, skipping")
		return
	}

	localPath, err = o.execute(ctx, log, spec, jobID)
	if err != nil {
		o.handleFailure(ctx, log, jobID, err)
		return
	}

	uploadingPct := 100 - o.cfg.Budgets.Saving
	o.setProgress(ctx, log, jobID, uploadingPct, "Uploading to storage")

	objectKey, size, err := o.objs.Upload(ctx, localPath, jobID.String())
	if err != nil {
		o.handleFailure(ctx, log, jobID, fmt.Errorf("upload artifact: %w", err))
		return
	}

	if _, err := o.store.SaveResult(ctx, jobID, objectKey, o.objs.Bucket(), size); err != nil {
		o.handleFailure(ctx, log, jobID, fmt.Errorf("save result: %w", err))
		return
	}

	o.setProgress(ctx, log, jobID, 100, "Completed")
	if _, err := o.store.TransitionStatus(ctx, jobID, entity.StatusProcessing, entity.StatusCompleted); err != nil {
		log.Error().Err(err).Msg("failed to mark job completed")
		return
	}

	log.Info().
		Str("object_key", objectKey).
		Str("bucket", o.objs.Bucket()).
		Int64("size_bytes", size).
		Msg("job completed")
}

// execute runs the stage sequence and returns the local artifact path.
// A cancellation observed by any stage surfaces as stage.ErrCancelled.
func (o *Orchestrator) execute(ctx context.Context, log zerolog.Logger, spec entity.GenerationSpec, jobID uuid.UUID) (string, error) {
	o.setProgress(ctx, log, jobID, o.cfg.Budgets.Preprocessing, "Processing parameters")

	derived, err := o.stages.Preprocess(ctx, toPreprocessRequest(spec), jobID)
	if err != nil {
		return "", err
	}

	needsInterpolation := derived.FPSFactor > 1
	needsUpscaling := derived.ScaleFactor > 1
	ranges := Allocate(o.cfg.Budgets, needsInterpolation, needsUpscaling)

	log.Info().
		Bool("interpolation", needsInterpolation).
		Bool("upscaling", needsUpscaling).
		Int("generation_start", ranges.Generation.Start).
		Int("generation_end", ranges.Generation.End).
		Msg("progress windows allocated")

	genReporter := NewReporter(o.store, log, jobID, ranges.Generation, "Generating frames (%d/%d)")
	frames, err := o.stages.Generate(ctx, toGenerateRequest(spec, derived, o.cfg.BaseFPS), jobID, func(current, total int) {
		genReporter.Report(ctx, current, total)
	})
	if err != nil {
		return "", err
	}
	if len(frames) == 0 {
		return "", errors.New("generation produced no frames")
	}

	if needsInterpolation {
		o.setProgress(ctx, log, jobID, ranges.Interpolation.Start, "Starting frame interpolation")

		reporter := NewReporter(o.store, log, jobID, ranges.Interpolation, "Interpolating frames (%d/%d)")
		frames, err = o.stages.Interpolate(ctx, frames, derived.FPSFactor, jobID, func(current, total int) {
			reporter.Report(ctx, current, total)
		})
		if err != nil {
			return "", err
		}
	} else {
		log.Debug().Msg("skipping interpolation")
	}

	if needsUpscaling {
		o.setProgress(ctx, log, jobID, ranges.Upscaling.Start, "Starting frame upscaling")

		reporter := NewReporter(o.store, log, jobID, ranges.Upscaling, "Upscaling frames (%d/%d)")
		frames, err = o.stages.Upscale(ctx, frames, derived.ScaleFactor, jobID, func(current, total int) {
			reporter.Report(ctx, current, total)
		})
		if err != nil {
			return "", err
		}
	} else {
		log.Debug().Msg("skipping upscaling")
	}

	if len(frames) == 0 {
		return "", errors.New("no frames available for saving")
	}

	o.setProgress(ctx, log, jobID, ranges.Saving.Start, "Post-processing and saving video")

	finalFPS := o.cfg.BaseFPS * derived.FPSFactor
	path, err := o.stages.Postprocess(ctx, toPostprocessRequest(frames, spec, finalFPS, o.cfg.OutputDir), jobID)
	if err != nil {
		return "", err
	}
	return path, nil
}

// handleFailure resolves the race between a stage fault and an external
// cancellation: cancellation always wins, so a job that was cancelled
// while a stage was failing stays cancelled instead of flipping to failed.
func (o *Orchestrator) handleFailure(ctx context.Context, log zerolog.Logger, jobID uuid.UUID, cause error) {
	if errors.Is(cause, stage.ErrCancelled) {
		log.Info().Msg("job cancelled")
		return
	}

	if cancelled, err := o.store.IsCancelled(ctx, jobID); err == nil && cancelled {
		log.Info().Msg("job cancelled during failure")
		return
	}

	log.Error().Err(cause).Msg("job failed")
	if _, err := o.store.TransitionStatus(ctx, jobID, entity.StatusProcessing, entity.StatusFailed); err != nil {
		log.Error().Err(err).Msg("failed to mark job failed")
	}
	if _, err := o.store.SetError(ctx, jobID, cause.Error()); err != nil {
		log.Error().Err(err).Msg("failed to persist error message")
	}
}

func (o *Orchestrator) setProgress(ctx context.Context, log zerolog.Logger, jobID uuid.UUID, pct int, step string) {
	if _, err := o.store.SetProgress(ctx, jobID, pct, step); err != nil {
		log.Warn().Err(err).Int("progress", pct).Msg("progress update failed")
	}
}
