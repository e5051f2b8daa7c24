package stage

import (
	"context"
	"errors"
	"image"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Upscaler raises frame resolution by an integer factor. Like the
// interpolator it degrades gracefully on engine faults, returning the
// input frames unchanged; the postprocessor then pads to the target size.
type Upscaler struct {
	engine UpscalerEngine
	exec   *Executor
	log    zerolog.Logger
}

func NewUpscaler(engine UpscalerEngine, exec *Executor, log zerolog.Logger) *Upscaler {
	return &Upscaler{engine: engine, exec: exec, log: log}
}

func (u *Upscaler) Execute(ctx context.Context, frames []image.Image, factor int, jobID uuid.UUID, progress ProgressFunc) ([]image.Image, error) {
	hooks := Hooks{
		Progress:  progress,
		Cancelled: u.exec.CheckFunc(ctx, jobID),
	}

	out := frames
	err := u.exec.Run(ctx, jobID, "frame upscaling", func(ctx context.Context) error {
		result, err := u.engine.Upscale(ctx, frames, factor, hooks)
		if err != nil {
			if errors.Is(err, ErrCancelled) {
				return err
			}
			u.log.Error().Err(err).
				Str("job_id", jobID.String()).
				Msg("upscaling failed, continuing with original frames")
			out = frames
			return nil
		}
		out = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(out) > 0 {
		b := out[0].Bounds()
		u.log.Info().
			Str("job_id", jobID.String()).
			Int("width", b.Dx()).
			Int("height", b.Dy()).
			Msg("upscaling done")
	}
	return out, nil
}
