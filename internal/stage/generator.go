package stage

import (
	"context"
	"image"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Generator runs the base frame generation engine under the cancellation
// bracket. Engine faults propagate: generation is the one stage whose
// output cannot be substituted, so a fault fails the job.
type Generator struct {
	engine GeneratorEngine
	exec   *Executor
	log    zerolog.Logger
}

func NewGenerator(engine GeneratorEngine, exec *Executor, log zerolog.Logger) *Generator {
	return &Generator{engine: engine, exec: exec, log: log}
}

func (g *Generator) Execute(ctx context.Context, req GenerateRequest, jobID uuid.UUID, progress ProgressFunc) ([]image.Image, error) {
	hooks := Hooks{
		Progress:  progress,
		Cancelled: g.exec.CheckFunc(ctx, jobID),
	}

	var frames []image.Image
	err := g.exec.Run(ctx, jobID, "frame generation", func(ctx context.Context) error {
		out, err := g.engine.Generate(ctx, req, hooks)
		if err != nil {
			return err
		}
		frames = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	g.log.Info().
		Str("job_id", jobID.String()).
		Int("frames", len(frames)).
		Msg("base frames generated")
	return frames, nil
}
