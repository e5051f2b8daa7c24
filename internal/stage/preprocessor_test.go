package stage_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"video-pipeline-service/internal/stage"
)

type noCancel struct{}

func (noCancel) IsCancelled(ctx context.Context, id uuid.UUID) (bool, error) { return false, nil }

func newTestPreprocessor() *stage.Preprocessor {
	exec := stage.NewExecutor(noCancel{}, zerolog.Nop(), "test-replica")
	return stage.NewPreprocessor(stage.DefaultPreprocessConfig(), exec, zerolog.Nop())
}

func TestPreprocessor_HighFPSAndResolution(t *testing.T) {
	p := newTestPreprocessor()

	// 16 fps on an 8 fps base needs 2x interpolation; 2048px needs 2x upscaling.
	out, err := p.Execute(context.Background(), stage.PreprocessRequest{
		Width:       2048,
		Height:      1536,
		VideoLength: 4,
		TargetFPS:   16,
	}, uuid.New())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if out.FPSFactor != 2 {
		t.Fatalf("expected fps factor 2, got %d", out.FPSFactor)
	}
	if out.ScaleFactor != 2 {
		t.Fatalf("expected scale factor 2, got %d", out.ScaleFactor)
	}
	if out.AdjustedWidth != 1024 || out.AdjustedHeight != 768 {
		t.Fatalf("expected 1024x768, got %dx%d", out.AdjustedWidth, out.AdjustedHeight)
	}
	// interpolation adds a second of generation time
	if out.AdjustedLength != 5 {
		t.Fatalf("expected length 5, got %d", out.AdjustedLength)
	}
}

func TestPreprocessor_DefaultsPassThrough(t *testing.T) {
	p := newTestPreprocessor()

	out, err := p.Execute(context.Background(), stage.PreprocessRequest{
		Width:       512,
		Height:      512,
		VideoLength: 4,
		TargetFPS:   8,
	}, uuid.New())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if out.FPSFactor != 1 || out.ScaleFactor != 1 {
		t.Fatalf("expected factors 1/1, got %d/%d", out.FPSFactor, out.ScaleFactor)
	}
	if out.AdjustedWidth != 512 || out.AdjustedHeight != 512 {
		t.Fatalf("expected 512x512, got %dx%d", out.AdjustedWidth, out.AdjustedHeight)
	}
	if out.AdjustedLength != 4 {
		t.Fatalf("expected length 4, got %d", out.AdjustedLength)
	}
}

func TestPreprocessor_DimensionsAlignedDown(t *testing.T) {
	p := newTestPreprocessor()

	// 2020/2 = 1010, aligned down to 1008; 900/2 = 450, aligned to 448.
	out, err := p.Execute(context.Background(), stage.PreprocessRequest{
		Width:       2020,
		Height:      900,
		VideoLength: 4,
		TargetFPS:   8,
	}, uuid.New())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if out.ScaleFactor != 2 {
		t.Fatalf("expected scale factor 2, got %d", out.ScaleFactor)
	}
	if out.AdjustedWidth != 1008 || out.AdjustedHeight != 448 {
		t.Fatalf("expected 1008x448, got %dx%d", out.AdjustedWidth, out.AdjustedHeight)
	}
	if out.AdjustedWidth%8 != 0 || out.AdjustedHeight%8 != 0 {
		t.Fatalf("dimensions not 8-aligned: %dx%d", out.AdjustedWidth, out.AdjustedHeight)
	}
}

func TestPreprocessor_EquidistantScaleRoundsUp(t *testing.T) {
	p := newTestPreprocessor()

	// 3000px needs a raw scale of 3, equidistant between 2 and 4; the
	// larger power wins so the generator stays under the dimension limit.
	out, err := p.Execute(context.Background(), stage.PreprocessRequest{
		Width:       3000,
		Height:      3000,
		VideoLength: 4,
		TargetFPS:   8,
	}, uuid.New())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if out.ScaleFactor != 4 {
		t.Fatalf("expected scale factor 4, got %d", out.ScaleFactor)
	}
	// 3000/4 = 750, aligned down to 744
	if out.AdjustedWidth != 744 || out.AdjustedHeight != 744 {
		t.Fatalf("expected 744x744, got %dx%d", out.AdjustedWidth, out.AdjustedHeight)
	}
}

func TestPreprocessor_TinyDimensionsClamped(t *testing.T) {
	p := newTestPreprocessor()

	out, err := p.Execute(context.Background(), stage.PreprocessRequest{
		Width:       10,
		Height:      10,
		VideoLength: 2,
		TargetFPS:   8,
	}, uuid.New())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if out.AdjustedWidth != 8 || out.AdjustedHeight != 8 {
		t.Fatalf("expected 8x8 minimum, got %dx%d", out.AdjustedWidth, out.AdjustedHeight)
	}
}

func TestPreprocessor_LowTargetFPSNeverInterpolates(t *testing.T) {
	p := newTestPreprocessor()

	out, err := p.Execute(context.Background(), stage.PreprocessRequest{
		Width:       512,
		Height:      512,
		VideoLength: 4,
		TargetFPS:   4,
	}, uuid.New())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if out.FPSFactor != 1 {
		t.Fatalf("expected fps factor 1 below base fps, got %d", out.FPSFactor)
	}
}
