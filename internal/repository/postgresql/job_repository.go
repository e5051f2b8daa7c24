package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"video-pipeline-service/internal/entity"
)

var ErrNotFound = errors.New("not found")

// JobRepository persists video generation jobs. Status, progress and error
// are written independently (single-row updates); conditional transitions
// are enforced with a WHERE clause on the previous status so two writers
// can never both win.
type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

func (r *JobRepository) Create(ctx context.Context, job *entity.Job) error {
	specJSON, err := json.Marshal(job.Spec)
	if err != nil {
		return fmt.Errorf("marshal spec: %w", err)
	}

	const q = `
INSERT INTO video_jobs (id, user_id, name, status, progress, spec)
VALUES ($1, $2, $3, $4, $5, $6);
`
	_, err = r.pool.Exec(ctx, q, job.ID, job.UserID, job.Name, string(job.Status), job.Progress, specJSON)
	return err
}

func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	const q = `
SELECT j.id, j.user_id, j.name, j.status, j.progress, j.current_step,
       j.error_message, j.marked_as_read, j.created_at, j.started_at, j.completed_at,
       j.spec,
       r.object_key, r.bucket, r.file_size_bytes, r.created_at
FROM video_jobs j
LEFT JOIN video_job_results r ON r.job_id = j.id
WHERE j.id = $1;
`

	var (
		job        entity.Job
		statusText string
		specBytes  []byte

		resultKey     *string
		resultBucket  *string
		resultSize    *int64
		resultCreated *time.Time
	)

	if err := r.pool.QueryRow(ctx, q, id).Scan(
		&job.ID,
		&job.UserID,
		&job.Name,
		&statusText,
		&job.Progress,
		&job.CurrentStep,
		&job.ErrorMessage,
		&job.MarkedAsRead,
		&job.CreatedAt,
		&job.StartedAt,
		&job.CompletedAt,
		&specBytes,
		&resultKey,
		&resultBucket,
		&resultSize,
		&resultCreated,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	job.Status = entity.JobStatus(statusText)
	if len(specBytes) > 0 {
		var spec entity.GenerationSpec
		if err := json.Unmarshal(specBytes, &spec); err != nil {
			return nil, fmt.Errorf("unmarshal spec: %w", err)
		}
		job.Spec = &spec
	}
	if resultKey != nil && resultBucket != nil {
		res := &entity.JobResult{ObjectKey: *resultKey, Bucket: *resultBucket}
		if resultSize != nil {
			res.FileSizeBytes = *resultSize
		}
		if resultCreated != nil {
			res.CreatedAt = *resultCreated
		}
		job.Result = res
	}

	return &job, nil
}

// TransitionStatus moves the job from one status to another. It returns
// false when the job is missing or no longer in the expected status, which
// callers treat as "somebody else got there first", not as an error.
func (r *JobRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to entity.JobStatus) (bool, error) {
	const q = `
UPDATE video_jobs
SET status = $3,
    started_at   = CASE WHEN $3 = 'processing' THEN now() ELSE started_at END,
    completed_at = CASE WHEN $3 IN ('completed','failed','cancelled') THEN now() ELSE completed_at END
WHERE id = $1 AND status = $2;
`
	tag, err := r.pool.Exec(ctx, q, id, string(from), string(to))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// RequestCancel flips a pending or processing job to cancelled. Terminal
// jobs are left untouched and false is returned.
func (r *JobRepository) RequestCancel(ctx context.Context, id uuid.UUID) (bool, error) {
	const q = `
UPDATE video_jobs
SET status = 'cancelled', completed_at = now()
WHERE id = $1 AND status IN ('pending', 'processing');
`
	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SetProgress records progress for a job that is still processing. Updates
// against terminal jobs are dropped silently (false).
func (r *JobRepository) SetProgress(ctx context.Context, id uuid.UUID, pct int, step string) (bool, error) {
	if pct < 0 || pct > 100 {
		return false, fmt.Errorf("progress %d out of range", pct)
	}
	const q = `
UPDATE video_jobs
SET progress = $2, current_step = $3
WHERE id = $1 AND status = 'processing';
`
	tag, err := r.pool.Exec(ctx, q, id, pct, step)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *JobRepository) SetError(ctx context.Context, id uuid.UUID, msg string) (bool, error) {
	const q = `UPDATE video_jobs SET error_message = $2 WHERE id = $1;`
	tag, err := r.pool.Exec(ctx, q, id, msg)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *JobRepository) SaveResult(ctx context.Context, id uuid.UUID, objectKey, bucket string, sizeBytes int64) (bool, error) {
	const q = `
INSERT INTO video_job_results (job_id, object_key, bucket, file_size_bytes, created_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (job_id) DO UPDATE
SET object_key = EXCLUDED.object_key,
    bucket = EXCLUDED.bucket,
    file_size_bytes = EXCLUDED.file_size_bytes,
    created_at = EXCLUDED.created_at;
`
	_, err := r.pool.Exec(ctx, q, id, objectKey, bucket, sizeBytes)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *JobRepository) statusIs(ctx context.Context, id uuid.UUID, status entity.JobStatus) (bool, error) {
	const q = `SELECT status FROM video_jobs WHERE id = $1;`
	var current string
	if err := r.pool.QueryRow(ctx, q, id).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, err
	}
	return entity.JobStatus(current) == status, nil
}

// IsCancelled is the polled cancellation checkpoint used by every stage
// worker and the orchestrator. The persisted status is the single source
// of truth, so the answer is correct even across processes.
func (r *JobRepository) IsCancelled(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.statusIs(ctx, id, entity.StatusCancelled)
}

func (r *JobRepository) IsCompleted(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.statusIs(ctx, id, entity.StatusCompleted)
}

func (r *JobRepository) List(ctx context.Context, userID *int64) ([]*entity.Job, error) {
	const q = `
SELECT id, user_id, name, status, progress, current_step, error_message,
       marked_as_read, created_at, started_at, completed_at, spec
FROM video_jobs
WHERE $1::bigint IS NULL OR user_id = $1
ORDER BY created_at DESC;
`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (r *JobRepository) ListUnread(ctx context.Context, userID int64) ([]*entity.Job, error) {
	const q = `
SELECT id, user_id, name, status, progress, current_step, error_message,
       marked_as_read, created_at, started_at, completed_at, spec
FROM video_jobs
WHERE user_id = $1 AND marked_as_read = false
ORDER BY created_at DESC;
`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (r *JobRepository) MarkAsRead(ctx context.Context, id uuid.UUID) (bool, error) {
	const q = `UPDATE video_jobs SET marked_as_read = true WHERE id = $1;`
	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *JobRepository) Stats(ctx context.Context, userID int64) (*entity.JobStats, error) {
	const q = `
SELECT count(*),
       count(*) FILTER (WHERE status IN ('pending', 'processing')),
       count(*) FILTER (WHERE status = 'failed'),
       count(*) FILTER (WHERE status = 'completed'),
       count(*) FILTER (WHERE marked_as_read = false)
FROM video_jobs
WHERE user_id = $1;
`
	var s entity.JobStats
	if err := r.pool.QueryRow(ctx, q, userID).Scan(
		&s.TotalCount, &s.ActiveCount, &s.FailedCount, &s.CompletedCount, &s.UnreadCount,
	); err != nil {
		return nil, err
	}
	return &s, nil
}

func scanJobs(rows pgx.Rows) ([]*entity.Job, error) {
	var jobs []*entity.Job
	for rows.Next() {
		var (
			job        entity.Job
			statusText string
			specBytes  []byte
		)
		if err := rows.Scan(
			&job.ID,
			&job.UserID,
			&job.Name,
			&statusText,
			&job.Progress,
			&job.CurrentStep,
			&job.ErrorMessage,
			&job.MarkedAsRead,
			&job.CreatedAt,
			&job.StartedAt,
			&job.CompletedAt,
			&specBytes,
		); err != nil {
			return nil, err
		}
		job.Status = entity.JobStatus(statusText)
		if len(specBytes) > 0 {
			var spec entity.GenerationSpec
			if err := json.Unmarshal(specBytes, &spec); err != nil {
				return nil, fmt.Errorf("unmarshal spec: %w", err)
			}
			job.Spec = &spec
		}
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}
