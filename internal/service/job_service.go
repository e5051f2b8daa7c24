package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"video-pipeline-service/internal/entity"
)

// Repository port (implementation: postgresql.JobRepository).
type JobRepository interface {
	Create(ctx context.Context, job *entity.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	RequestCancel(ctx context.Context, id uuid.UUID) (bool, error)
	List(ctx context.Context, userID *int64) ([]*entity.Job, error)
	ListUnread(ctx context.Context, userID int64) ([]*entity.Job, error)
	MarkAsRead(ctx context.Context, id uuid.UUID) (bool, error)
	Stats(ctx context.Context, userID int64) (*entity.JobStats, error)
}

// Narrow queue port, only for handing created jobs to the workers.
type JobQueue interface {
	Enqueue(ctx context.Context, jobID string) error
}

type JobService struct {
	repo  JobRepository
	queue JobQueue
	log   zerolog.Logger
}

func NewJobService(repo JobRepository, queue JobQueue, log zerolog.Logger) *JobService {
	return &JobService{repo: repo, queue: queue, log: log}
}

const maxJobNameLen = 50

// CreateJob persists a pending job for the given spec and enqueues its id
// for the orchestrator workers.
func (s *JobService) CreateJob(ctx context.Context, spec entity.GenerationSpec, userID *int64) (uuid.UUID, error) {
	if spec.Prompt == "" {
		return uuid.Nil, errors.New("prompt is required")
	}
	spec.ApplyDefaults()

	// Truncate on runes so multi-byte prompts stay valid UTF-8.
	name := spec.Prompt
	if runes := []rune(name); len(runes) > maxJobNameLen {
		name = string(runes[:maxJobNameLen-3]) + "..."
	}

	job := &entity.Job{
		ID:     uuid.New(),
		UserID: userID,
		Name:   name,
		Status: entity.StatusPending,
		Spec:   &spec,
	}

	if err := s.repo.Create(ctx, job); err != nil {
		return uuid.Nil, fmt.Errorf("create job: %w", err)
	}

	if err := s.queue.Enqueue(ctx, job.ID.String()); err != nil {
		return uuid.Nil, fmt.Errorf("enqueue job: %w", err)
	}

	s.log.Info().Str("job_id", job.ID.String()).Msg("job created")
	return job.ID, nil
}

func (s *JobService) GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	return s.repo.GetByID(ctx, id)
}

// CancelJob requests cooperative cancellation. It only flips the persisted
// status; running stages pick the change up at their next checkpoint.
// Returns false when the job is already terminal (or missing).
func (s *JobService) CancelJob(ctx context.Context, id uuid.UUID) (bool, error) {
	ok, err := s.repo.RequestCancel(ctx, id)
	if err != nil {
		return false, err
	}
	if ok {
		s.log.Info().Str("job_id", id.String()).Msg("job marked as cancelled")
	}
	return ok, nil
}

func (s *JobService) ListJobs(ctx context.Context, userID *int64) ([]*entity.Job, error) {
	return s.repo.List(ctx, userID)
}

// UnreadJobs returns the user's unread jobs together with counters for the
// notification badge.
func (s *JobService) UnreadJobs(ctx context.Context, userID int64) ([]*entity.Job, *entity.JobStats, error) {
	jobs, err := s.repo.ListUnread(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	stats, err := s.repo.Stats(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return jobs, stats, nil
}

func (s *JobService) MarkJobAsRead(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.repo.MarkAsRead(ctx, id)
}
