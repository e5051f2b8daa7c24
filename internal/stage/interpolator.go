package stage

import (
	"context"
	"errors"
	"image"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Interpolator raises the frame rate by inserting intermediate frames.
// On an engine fault that is not a cancellation it degrades gracefully:
// the unmodified input frames come back and the job continues at the base
// frame rate. Interpolation is an enhancement stage, so availability wins
// over quality here. Cancellation is never swallowed.
type Interpolator struct {
	engine InterpolatorEngine
	exec   *Executor
	log    zerolog.Logger
}

func NewInterpolator(engine InterpolatorEngine, exec *Executor, log zerolog.Logger) *Interpolator {
	return &Interpolator{engine: engine, exec: exec, log: log}
}

func (i *Interpolator) Execute(ctx context.Context, frames []image.Image, factor int, jobID uuid.UUID, progress ProgressFunc) ([]image.Image, error) {
	hooks := Hooks{
		Progress:  progress,
		Cancelled: i.exec.CheckFunc(ctx, jobID),
	}

	out := frames
	err := i.exec.Run(ctx, jobID, "frame interpolation", func(ctx context.Context) error {
		result, err := i.engine.Interpolate(ctx, frames, factor, hooks)
		if err != nil {
			if errors.Is(err, ErrCancelled) {
				return err
			}
			i.log.Error().Err(err).
				Str("job_id", jobID.String()).
				Msg("interpolation failed, continuing with original frames")
			out = frames
			return nil
		}
		out = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	i.log.Info().
		Str("job_id", jobID.String()).
		Int("frames_in", len(frames)).
		Int("frames_out", len(out)).
		Msg("interpolation done")
	return out, nil
}
