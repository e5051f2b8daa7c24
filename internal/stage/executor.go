package stage

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CancelChecker reads the persisted cancellation flag for a job.
type CancelChecker interface {
	IsCancelled(ctx context.Context, id uuid.UUID) (bool, error)
}

// Executor brackets a stage operation with cancellation checkpoints and
// tracks the job currently held by this replica. Cancellation is advisory
// and polled: the persisted job status is the only source of truth, so a
// stage routed to a fresh replica still observes it.
type Executor struct {
	checker   CancelChecker
	log       zerolog.Logger
	replicaID string

	mu      sync.Mutex
	current uuid.UUID
}

func NewExecutor(checker CancelChecker, log zerolog.Logger, replicaID string) *Executor {
	return &Executor{
		checker:   checker,
		log:       log.With().Str("replica", replicaID).Logger(),
		replicaID: replicaID,
	}
}

func (e *Executor) ReplicaID() string { return e.replicaID }

// CurrentJob returns the job this replica is working on, or uuid.Nil.
func (e *Executor) CurrentJob() uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Cancelled reads the persisted flag. A read failure is logged and treated
// as "not cancelled" so a flaky store cannot abort work spuriously.
func (e *Executor) Cancelled(ctx context.Context, jobID uuid.UUID) bool {
	cancelled, err := e.checker.IsCancelled(ctx, jobID)
	if err != nil {
		e.log.Warn().Err(err).Str("job_id", jobID.String()).Msg("cancellation check failed")
		return false
	}
	if cancelled {
		e.log.Info().Str("job_id", jobID.String()).Msg("job detected as cancelled")
	}
	return cancelled
}

// CheckFunc adapts Cancelled into the iteration-granularity hook handed to
// engines.
func (e *Executor) CheckFunc(ctx context.Context, jobID uuid.UUID) func() bool {
	return func() bool { return e.Cancelled(ctx, jobID) }
}

// Run executes fn with cancellation checks before starting expensive work
// and after finishing it. It returns ErrCancelled when cancellation is
// observed at either checkpoint or reported by fn itself.
func (e *Executor) Run(ctx context.Context, jobID uuid.UUID, operation string, fn func(ctx context.Context) error) error {
	e.mu.Lock()
	e.current = jobID
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.current = uuid.Nil
		e.mu.Unlock()
	}()

	log := e.log.With().Str("job_id", jobID.String()).Str("operation", operation).Logger()
	log.Info().Msg("operation started")

	if e.Cancelled(ctx, jobID) {
		log.Info().Msg("operation cancelled before start")
		return ErrCancelled
	}

	if err := fn(ctx); err != nil {
		if errors.Is(err, ErrCancelled) {
			log.Info().Msg("operation cancelled")
			return ErrCancelled
		}
		log.Error().Err(err).Msg("operation failed")
		return err
	}

	if e.Cancelled(ctx, jobID) {
		log.Info().Msg("operation cancelled after completion")
		return ErrCancelled
	}

	log.Info().Msg("operation completed")
	return nil
}
