package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"video-pipeline-service/internal/entity"
)

type JobRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to entity.JobStatus) (bool, error)
	SetError(ctx context.Context, id uuid.UUID, msg string) (bool, error)
}

// PipelineRunner executes the whole generation pipeline for one job and
// persists its outcome. Implemented by pipeline.Orchestrator.
type PipelineRunner interface {
	Run(ctx context.Context, spec entity.GenerationSpec, jobID uuid.UUID)
}

// Processor turns a claimed queue entry into a pipeline run: it resolves
// the job record and hands the stored generation spec to the pipeline.
type Processor struct {
	repo     JobRepo
	pipeline PipelineRunner
	log      zerolog.Logger
}

func NewProcessor(repo JobRepo, pipeline PipelineRunner, log zerolog.Logger) *Processor {
	return &Processor{
		repo:     repo,
		pipeline: pipeline,
		log:      log.With().Str("component", "processor").Logger(),
	}
}

func (p *Processor) Process(ctx context.Context, jobID string) error {
	start := time.Now()

	id, err := uuid.Parse(jobID)
	if err != nil {
		p.log.Error().Err(err).Str("job_id", jobID).Msg("malformed job id claimed")
		return err
	}
	log := p.log.With().Str("job_id", id.String()).Logger()

	job, err := p.repo.GetByID(ctx, id)
	if err != nil {
		log.Error().Err(err).Msg("failed to load job")
		return err
	}

	if job.Spec == nil {
		// Corrupt record: a queued job always carries its spec.
		if _, terr := p.repo.TransitionStatus(ctx, id, entity.StatusPending, entity.StatusFailed); terr != nil {
			log.Error().Err(terr).Msg("failed to fail specless job")
		}
		_, _ = p.repo.SetError(ctx, id, "job has no generation spec")
		log.Error().Msg("job has no generation spec")
		return nil
	}

	log.Info().Str("name", job.Name).Msg("job claimed")

	p.pipeline.Run(ctx, *job.Spec, id)

	log.Info().
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("job processing finished")
	return nil
}
