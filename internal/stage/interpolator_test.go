package stage_test

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"video-pipeline-service/internal/stage"
)

type stubInterpolatorEngine struct {
	err error
}

func (e stubInterpolatorEngine) Interpolate(ctx context.Context, frames []image.Image, factor int, hooks stage.Hooks) ([]image.Image, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([]image.Image, 0, len(frames)*factor)
	for _, f := range frames {
		for i := 0; i < factor; i++ {
			out = append(out, f)
		}
	}
	return out, nil
}

type stubUpscalerEngine struct {
	err error
}

func (e stubUpscalerEngine) Upscale(ctx context.Context, frames []image.Image, factor int, hooks stage.Hooks) ([]image.Image, error) {
	if e.err != nil {
		return nil, e.err
	}
	return frames, nil
}

func testFrames(n int) []image.Image {
	out := make([]image.Image, n)
	for i := range out {
		out[i] = image.NewRGBA(image.Rect(0, 0, 8, 8))
	}
	return out
}

func TestInterpolator_Success(t *testing.T) {
	exec := stage.NewExecutor(noCancel{}, zerolog.Nop(), "r1")
	it := stage.NewInterpolator(stubInterpolatorEngine{}, exec, zerolog.Nop())

	out, err := it.Execute(context.Background(), testFrames(4), 2, uuid.New(), nil)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(out) != 8 {
		t.Fatalf("expected 8 frames, got %d", len(out))
	}
}

func TestInterpolator_DegradesOnEngineFault(t *testing.T) {
	exec := stage.NewExecutor(noCancel{}, zerolog.Nop(), "r1")
	it := stage.NewInterpolator(stubInterpolatorEngine{err: errors.New("model crashed")}, exec, zerolog.Nop())

	in := testFrames(4)
	out, err := it.Execute(context.Background(), in, 2, uuid.New(), nil)
	if err != nil {
		t.Fatalf("engine fault must degrade, not fail: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("expected original %d frames back, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("frame %d is not the original input frame", i)
		}
	}
}

func TestInterpolator_NeverSwallowsCancellation(t *testing.T) {
	exec := stage.NewExecutor(noCancel{}, zerolog.Nop(), "r1")
	it := stage.NewInterpolator(stubInterpolatorEngine{err: stage.ErrCancelled}, exec, zerolog.Nop())

	_, err := it.Execute(context.Background(), testFrames(4), 2, uuid.New(), nil)
	if !errors.Is(err, stage.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestUpscaler_DegradesOnEngineFault(t *testing.T) {
	exec := stage.NewExecutor(noCancel{}, zerolog.Nop(), "r1")
	up := stage.NewUpscaler(stubUpscalerEngine{err: errors.New("oom")}, exec, zerolog.Nop())

	in := testFrames(3)
	out, err := up.Execute(context.Background(), in, 2, uuid.New(), nil)
	if err != nil {
		t.Fatalf("engine fault must degrade, not fail: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("expected original %d frames back, got %d", len(in), len(out))
	}
}

func TestUpscaler_NeverSwallowsCancellation(t *testing.T) {
	exec := stage.NewExecutor(noCancel{}, zerolog.Nop(), "r1")
	up := stage.NewUpscaler(stubUpscalerEngine{err: stage.ErrCancelled}, exec, zerolog.Nop())

	_, err := up.Execute(context.Background(), testFrames(3), 2, uuid.New(), nil)
	if !errors.Is(err, stage.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}
