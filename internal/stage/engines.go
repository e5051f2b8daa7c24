package stage

import (
	"context"
	"image"
)

// GeneratorEngine produces base frames for a request. Implementations must
// poll hooks.Cancelled at denoising-step granularity and report progress
// per step.
type GeneratorEngine interface {
	Generate(ctx context.Context, req GenerateRequest, hooks Hooks) ([]image.Image, error)
}

// InterpolatorEngine inserts factor-1 intermediate frames between each
// adjacent frame pair. Cancellation is polled per frame pair.
type InterpolatorEngine interface {
	Interpolate(ctx context.Context, frames []image.Image, factor int, hooks Hooks) ([]image.Image, error)
}

// UpscalerEngine scales every frame by an integer factor. Cancellation is
// polled per frame.
type UpscalerEngine interface {
	Upscale(ctx context.Context, frames []image.Image, factor int, hooks Hooks) ([]image.Image, error)
}

// Encoder writes frames to a video file at the given path.
type Encoder interface {
	Encode(path string, frames []image.Image, fps int) error
}
