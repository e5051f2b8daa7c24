package stage_test

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"video-pipeline-service/internal/stage"
)

type recordingEncoder struct {
	path   string
	frames []image.Image
	fps    int
	err    error
}

func (e *recordingEncoder) Encode(path string, frames []image.Image, fps int) error {
	e.path = path
	e.frames = frames
	e.fps = fps
	return e.err
}

func newTestPostprocessor(enc stage.Encoder) *stage.Postprocessor {
	exec := stage.NewExecutor(noCancel{}, zerolog.Nop(), "r1")
	return stage.NewPostprocessor(stage.DefaultPostprocessConfig(), enc, exec, zerolog.Nop())
}

func sizedFrames(n, w, h int) []image.Image {
	out := make([]image.Image, n)
	for i := range out {
		out[i] = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	return out
}

func TestPostprocessor_EmptyFramesRejected(t *testing.T) {
	p := newTestPostprocessor(&recordingEncoder{})

	_, err := p.Execute(context.Background(), stage.PostprocessRequest{
		OutputDir: t.TempDir(),
	}, uuid.New())
	if !errors.Is(err, stage.ErrNoFrames) {
		t.Fatalf("expected ErrNoFrames, got %v", err)
	}
}

func TestPostprocessor_TrimsToTargetDuration(t *testing.T) {
	enc := &recordingEncoder{}
	p := newTestPostprocessor(enc)

	// 10 frames down to 2s * 4fps = 8
	_, err := p.Execute(context.Background(), stage.PostprocessRequest{
		Frames:         sizedFrames(10, 16, 16),
		TargetDuration: 2,
		FPS:            4,
		TargetWidth:    16,
		TargetHeight:   16,
		Prompt:         "ocean waves",
		VideoLength:    2,
		OutputFormat:   "gif",
		OutputDir:      t.TempDir(),
	}, uuid.New())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if len(enc.frames) != 8 {
		t.Fatalf("expected 8 encoded frames, got %d", len(enc.frames))
	}
	if enc.fps != 4 {
		t.Fatalf("expected fps 4, got %d", enc.fps)
	}
}

func TestPostprocessor_FitsFramesToTargetSize(t *testing.T) {
	enc := &recordingEncoder{}
	p := newTestPostprocessor(enc)

	_, err := p.Execute(context.Background(), stage.PostprocessRequest{
		Frames:       sizedFrames(2, 64, 32), // cropped and padded to 48x48
		FPS:          8,
		TargetWidth:  48,
		TargetHeight: 48,
		Prompt:       "test",
		OutputFormat: "gif",
		OutputDir:    t.TempDir(),
	}, uuid.New())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	for i, f := range enc.frames {
		b := f.Bounds()
		if b.Dx() != 48 || b.Dy() != 48 {
			t.Fatalf("frame %d is %dx%d, expected 48x48", i, b.Dx(), b.Dy())
		}
	}
}

func TestPostprocessor_UnsupportedFormatFallsBack(t *testing.T) {
	enc := &recordingEncoder{}
	p := newTestPostprocessor(enc)

	path, err := p.Execute(context.Background(), stage.PostprocessRequest{
		Frames:       sizedFrames(2, 16, 16),
		FPS:          8,
		TargetWidth:  16,
		TargetHeight: 16,
		Prompt:       "test",
		OutputFormat: "exe",
		OutputDir:    t.TempDir(),
	}, uuid.New())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if filepath.Ext(path) != ".gif" {
		t.Fatalf("expected fallback to .gif, got %s", path)
	}
}

func TestPostprocessor_OutputPathUsesPromptSlug(t *testing.T) {
	enc := &recordingEncoder{}
	p := newTestPostprocessor(enc)

	dir := t.TempDir()
	path, err := p.Execute(context.Background(), stage.PostprocessRequest{
		Frames:       sizedFrames(1, 16, 16),
		FPS:          8,
		TargetWidth:  16,
		TargetHeight: 16,
		Prompt:       "A Calm Ocean!",
		Seed:         42,
		VideoLength:  4,
		OutputFormat: "gif",
		OutputDir:    dir,
	}, uuid.New())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	name := filepath.Base(path)
	if !strings.HasPrefix(name, "a_calm_ocean_seed42_4s_8fps_") {
		t.Fatalf("unexpected output name %s", name)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("expected output under %s, got %s", dir, path)
	}
}

func TestPostprocessor_EncoderFaultIsFatal(t *testing.T) {
	enc := &recordingEncoder{err: errors.New("disk full")}
	p := newTestPostprocessor(enc)

	_, err := p.Execute(context.Background(), stage.PostprocessRequest{
		Frames:       sizedFrames(1, 16, 16),
		FPS:          8,
		TargetWidth:  16,
		TargetHeight: 16,
		Prompt:       "test",
		OutputFormat: "gif",
		OutputDir:    t.TempDir(),
	}, uuid.New())
	if err == nil {
		t.Fatal("expected encoder fault to fail the stage")
	}
}
